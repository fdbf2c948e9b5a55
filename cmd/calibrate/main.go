package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/charleschow/nhl-predictor/internal/adapters/csvstore"
	"github.com/charleschow/nhl-predictor/internal/config"
	"github.com/charleschow/nhl-predictor/internal/core/evaluate"
	"github.com/charleschow/nhl-predictor/internal/core/matchup"
	"github.com/charleschow/nhl-predictor/internal/core/model"
	"github.com/charleschow/nhl-predictor/internal/core/predict"
	"github.com/charleschow/nhl-predictor/internal/core/report"
	"github.com/charleschow/nhl-predictor/internal/core/teams"
	"github.com/charleschow/nhl-predictor/internal/pipeline"
	"github.com/charleschow/nhl-predictor/internal/telemetry"
)

// calibrate backtests the classifier on the trailing holdout of past games
// and reports how well its probabilities line up with observed home wins.
func main() {
	cfg := config.Load()
	statsPath := flag.String("stats", cfg.StatsCSVPath, "team box-score CSV")
	today := flag.String("today", cfg.Today, "reference day YYYY-MM-DD")
	holdout := flag.Float64("holdout", 0, "holdout fraction (default from model config)")
	featureSet := flag.String("features", "", "feature set override: pregame or boxscore")
	thresholds := flag.String("thresholds", "0.5,0.55,0.6,0.65,0.7", "comma-separated thresholds for the sweep")
	flag.Parse()
	cfg.Today = *today

	telemetry.Init(telemetry.ParseLogLevel(cfg.LogLevel))

	mc, err := config.LoadModelConfig(cfg.ModelConfigPath)
	if err != nil {
		fail(err)
	}
	if *featureSet != "" {
		mc.FeatureSet, mc.Features = *featureSet, nil
	}
	if *holdout > 0 {
		mc.HoldoutFraction = *holdout
	}
	if err := mc.Validate(); err != nil {
		fail(err)
	}
	opts, err := pipeline.OptionsFromConfig(mc, cfg.StrictPairing)
	if err != nil {
		fail(err)
	}
	sweep, err := parseThresholds(*thresholds)
	if err != nil {
		fail(err)
	}
	todayFn, err := cfg.TodayFunc()
	if err != nil {
		fail(err)
	}

	records, err := csvstore.LoadRecords(*statsPath, teams.NewResolver(mc.TeamAliases))
	if err != nil {
		fail(err)
	}
	res, err := pipeline.Run(records, todayFn(), opts)
	if err != nil {
		fail(err)
	}
	if res.EvaluationErr != nil {
		fail(res.EvaluationErr)
	}

	fmt.Println("=== Win Probability Calibration ===")
	fmt.Printf("Feature set: %s (%d features)  |  Holdout: %.0f%%\n", mc.FeatureSet, len(opts.Features), mc.HoldoutFraction*100)

	report.Evaluation(os.Stdout, res.Evaluation)
	report.Calibration(os.Stdout, res.Evaluation)
	report.Sweep(os.Stdout, evaluate.Sweep(res.Evaluation.Rows, sweep))

	if err := printImportance(res.Matchups, res, opts); err != nil {
		telemetry.Warnf("importance: %v", err)
	}
}

// printImportance refits on the backtest training slice so importances
// describe the model that produced the holdout scores.
func printImportance(ms []matchup.Matchup, res *pipeline.Result, opts pipeline.Options) error {
	train, _, err := evaluate.Holdout(ms, res.Today, opts.Evaluation.HoldoutFraction)
	if err != nil {
		return err
	}
	gb := model.NewGradientBoosting(opts.Classifier)
	if _, err := predict.Fit(func() model.Classifier { return gb }, train, opts.Features); err != nil {
		return err
	}
	imp := gb.Importance()

	idx := make([]int, len(imp))
	var total float64
	for i := range idx {
		idx[i] = i
		total += imp[i]
	}
	sort.Slice(idx, func(a, b int) bool { return imp[idx[a]] > imp[idx[b]] })

	fmt.Println("\n=== Feature Importance (total gain) ===")
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "feature\tgain\tshare")
	fmt.Fprintln(w, "----\t----\t----")
	for _, i := range idx {
		share := 0.0
		if total > 0 {
			share = imp[i] / total
		}
		fmt.Fprintf(w, "%s\t%.3f\t%.1f%%\n", opts.Features[i], imp[i], share*100)
	}
	return w.Flush()
}

func parseThresholds(s string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil || v <= 0 || v >= 1 {
			return nil, fmt.Errorf("threshold %q must be a number in (0,1)", part)
		}
		out = append(out, v)
	}
	return out, nil
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "calibrate: %v\n", err)
	os.Exit(1)
}
