package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/charleschow/nhl-predictor/internal/adapters/csvstore"
	"github.com/charleschow/nhl-predictor/internal/adapters/sqlstore"
	"github.com/charleschow/nhl-predictor/internal/config"
	"github.com/charleschow/nhl-predictor/internal/core/report"
	"github.com/charleschow/nhl-predictor/internal/core/teams"
	"github.com/charleschow/nhl-predictor/internal/pipeline"
	"github.com/charleschow/nhl-predictor/internal/refresh"
	"github.com/charleschow/nhl-predictor/internal/telemetry"
)

func main() {
	cfg := config.Load()
	statsPath := flag.String("stats", cfg.StatsCSVPath, "team box-score CSV")
	today := flag.String("today", cfg.Today, "reference day YYYY-MM-DD (default: current day in TIMEZONE)")
	noPersist := flag.Bool("no-db", false, "skip writing the run to SQLite")
	flag.Parse()
	cfg.Today = *today

	telemetry.Init(telemetry.ParseLogLevel(cfg.LogLevel))

	mc, err := config.LoadModelConfig(cfg.ModelConfigPath)
	if err != nil {
		telemetry.Errorf("model config: %v", err)
		os.Exit(1)
	}
	opts, err := pipeline.OptionsFromConfig(mc, cfg.StrictPairing)
	if err != nil {
		telemetry.Errorf("model config: %v", err)
		os.Exit(1)
	}
	todayFn, err := cfg.TodayFunc()
	if err != nil {
		telemetry.Errorf("%v", err)
		os.Exit(1)
	}

	started := time.Now()
	records, err := csvstore.LoadRecords(*statsPath, teams.NewResolver(mc.TeamAliases))
	if err != nil {
		telemetry.Errorf("%v", err)
		os.Exit(1)
	}

	res, err := pipeline.Run(records, todayFn(), opts)
	if err != nil {
		telemetry.Errorf("pipeline: %v", err)
		os.Exit(1)
	}

	out := os.Stdout
	report.TeamStats(out, res.Teams)
	report.Quality(out, res.Quality)
	if res.Predictions.NoFutureGames {
		telemetry.Infof("No future games found after %s", res.Today.Format("2006-01-02"))
	} else {
		report.Predictions(out, res.Predictions.Predictions)
		report.HighConfidence(out, res.Predictions.HighConfidence, opts.ConfidenceBar)
	}
	if res.Evaluation != nil {
		report.Evaluation(out, res.Evaluation)
	}

	if err := csvstore.SaveOutputs(cfg.PredictionsCSVPath, cfg.HighConfidenceCSVPath, res.Predictions); err != nil {
		telemetry.Errorf("%v", err)
		os.Exit(1)
	}
	telemetry.Infof("Predictions saved to %s", cfg.PredictionsCSVPath)

	if *noPersist {
		return
	}
	store, err := sqlstore.Open(cfg.DBPath)
	if err != nil {
		telemetry.Warnf("run store: %v", err)
		return
	}
	defer store.Close()
	run := refresh.RunRecord(uuid.NewString(), started, len(records), res)
	if err := store.SaveRun(context.Background(), run, res.Predictions.Predictions, opts.ConfidenceBar, res.Evaluation); err != nil {
		telemetry.Warnf("run store: %v", err)
		return
	}
	telemetry.Infof("Run %s recorded in %s", run.ID, cfg.DBPath)
}
