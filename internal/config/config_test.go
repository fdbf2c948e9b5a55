package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charleschow/nhl-predictor/internal/core/matchup"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HTTP_PORT", "9100")
	t.Setenv("STRICT_PAIRING", "true")
	t.Setenv("REFRESH_RATE_PER_MIN", "not-a-number")

	cfg := Load()
	assert.Equal(t, 9100, cfg.HTTPPort)
	assert.True(t, cfg.StrictPairing)
	assert.Equal(t, 2, cfg.RefreshRatePerMin)
	assert.Equal(t, "matches.csv", cfg.StatsCSVPath)
}

func TestTodayFuncFixed(t *testing.T) {
	cfg := &Config{Today: "2024-02-10"}
	today, err := cfg.TodayFunc()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC), today())

	cfg = &Config{Today: "10/02/2024"}
	_, err = cfg.TodayFunc()
	assert.Error(t, err)
}

func TestDefaultModelConfig(t *testing.T) {
	mc := DefaultModelConfig()
	require.NoError(t, mc.Validate())
	assert.Equal(t, 5, mc.Window)
	assert.Equal(t, 0.6, mc.Threshold)
	assert.Equal(t, 100, mc.Classifier.Trees)
	assert.Equal(t, 4, mc.Classifier.MaxDepth)
	assert.Equal(t, uint64(42), mc.Classifier.Seed)
	assert.Equal(t, "Utah Mammoth", mc.TeamAliases["utah hockey club"])

	names, err := mc.FeatureNames()
	require.NoError(t, err)
	assert.Equal(t, matchup.FeatureVenueCode, names[0])
}

func TestLoadModelConfigOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte("window: 3\nfeature_set: boxscore\nclassifier:\n  trees: 10\n"), 0o644))

	mc, err := LoadModelConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3, mc.Window)
	assert.Equal(t, 10, mc.Classifier.Trees)
	assert.Equal(t, 0.1, mc.Classifier.LearningRate, "unset keys keep their defaults")
	assert.Equal(t, "boxscore", mc.FeatureSet)
}

func TestValidateCollectsAll(t *testing.T) {
	mc := DefaultModelConfig()
	mc.Threshold = 1
	mc.Window = 0
	mc.FeatureSet = "everything"

	err := mc.Validate()
	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs, 3)
}
