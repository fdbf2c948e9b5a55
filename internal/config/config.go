package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/charleschow/nhl-predictor/internal/core/games"
)

type Config struct {
	// Files
	StatsCSVPath          string
	PredictionsCSVPath    string
	HighConfidenceCSVPath string
	DBPath                string
	ModelConfigPath       string

	// Reference day. Empty Today means the current date in Timezone.
	Today    string
	Timezone string

	StrictPairing bool

	// Service
	HTTPPort          int
	RefreshSchedule   string
	RefreshRatePerMin int

	// Alerts. Empty disables the webhook.
	DiscordWebhookURL string

	// Telemetry
	LogLevel string
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		StatsCSVPath:          envStr("STATS_CSV_PATH", "matches.csv"),
		PredictionsCSVPath:    envStr("PREDICTIONS_CSV_PATH", "predictions.csv"),
		HighConfidenceCSVPath: envStr("HIGH_CONFIDENCE_CSV_PATH", "high_confidence_predictions.csv"),
		DBPath:                envStr("DB_PATH", "data/predictions.db"),
		ModelConfigPath:       envStr("MODEL_CONFIG_PATH", ""),

		Today:    envStr("TODAY", ""),
		Timezone: envStr("TIMEZONE", "America/New_York"),

		// Off by default: unpaired rows are dropped and counted instead.
		StrictPairing: envBool("STRICT_PAIRING", false),

		HTTPPort:          envInt("HTTP_PORT", 8090),
		RefreshSchedule:   envStr("REFRESH_SCHEDULE", "0 6 * * *"),
		RefreshRatePerMin: envInt("REFRESH_RATE_PER_MIN", 2),

		DiscordWebhookURL: envStr("DISCORD_WEBHOOK_URL", ""),

		LogLevel: envStr("LOG_LEVEL", "info"),
	}
}

// Location resolves Timezone, falling back to UTC for an empty value.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// TodayFunc returns the clock that decides past from future. A fixed TODAY
// pins every call to that day.
func (c *Config) TodayFunc() (func() time.Time, error) {
	if c.Today != "" {
		d, err := games.ParseDay(c.Today)
		if err != nil {
			return nil, fmt.Errorf("TODAY: %w", err)
		}
		return func() time.Time { return d }, nil
	}
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}
	return func() time.Time { return games.Day(time.Now().In(loc)) }, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}
