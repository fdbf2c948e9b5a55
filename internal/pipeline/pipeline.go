// Package pipeline runs the stages from raw team-game rows to scored
// matchups. Every stage receives today explicitly.
package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/charleschow/nhl-predictor/internal/config"
	"github.com/charleschow/nhl-predictor/internal/core/evaluate"
	"github.com/charleschow/nhl-predictor/internal/core/form"
	"github.com/charleschow/nhl-predictor/internal/core/games"
	"github.com/charleschow/nhl-predictor/internal/core/matchup"
	"github.com/charleschow/nhl-predictor/internal/core/model"
	"github.com/charleschow/nhl-predictor/internal/core/predict"
	"github.com/charleschow/nhl-predictor/internal/core/summary"
	"github.com/charleschow/nhl-predictor/internal/telemetry"
)

var ErrNoRecords = errors.New("stats table is empty")

type Options struct {
	Window        int
	Stats         []games.Stat
	Features      []string
	Threshold     float64
	ConfidenceBar float64
	Classifier    model.Config
	Evaluation    evaluate.Config

	// StrictPairing fails the run on any row that cannot be reconciled.
	StrictPairing bool
	// Encoder overrides the per-run encoder built from the reconciled games.
	Encoder *matchup.Encoder
	// NewClassifier overrides the gradient boosting classifier.
	NewClassifier  func() model.Classifier
	SkipEvaluation bool
}

func DefaultOptions() Options {
	stats := games.DefaultRollingStats()
	return Options{
		Window:        form.DefaultWindow,
		Stats:         stats,
		Features:      matchup.PregameFeatures(stats),
		Threshold:     predict.DefaultThreshold,
		ConfidenceBar: predict.DefaultConfidenceBar,
		Classifier:    model.DefaultConfig(),
		Evaluation:    evaluate.DefaultConfig(),
	}
}

func OptionsFromConfig(mc config.ModelConfig, strict bool) (Options, error) {
	stats, err := mc.Stats()
	if err != nil {
		return Options{}, err
	}
	features, err := mc.FeatureNames()
	if err != nil {
		return Options{}, err
	}
	ev := evaluate.DefaultConfig()
	ev.HoldoutFraction = mc.HoldoutFraction
	ev.Cutoff = mc.EvalCutoff
	return Options{
		Window:        mc.Window,
		Stats:         stats,
		Features:      features,
		Threshold:     mc.Threshold,
		ConfidenceBar: mc.ConfidenceBar,
		Classifier:    mc.Classifier.Model(),
		Evaluation:    ev,
		StrictPairing: strict,
	}, nil
}

func (o Options) classifierFactory() func() model.Classifier {
	if o.NewClassifier != nil {
		return o.NewClassifier
	}
	cfg := o.Classifier
	return func() model.Classifier { return model.NewGradientBoosting(cfg) }
}

type Result struct {
	Today    time.Time
	Features []string

	Teams       []summary.TeamSummary
	Quality     games.Quality
	Form        FormStats
	Assembly    matchup.Stats
	Matchups    []matchup.Matchup
	Encoder     *matchup.Encoder
	Predictions *predict.Result

	// Evaluation is nil when EvaluationErr is set or evaluation was skipped.
	// A failed backtest does not fail the run.
	Evaluation    *evaluate.Report
	EvaluationErr error
}

type FormStats struct {
	Rows    int
	Dropped int
	Imputed int
}

// Run executes one full pass. Any failure that prevents producing the
// prediction tables is returned as an error.
func Run(records []games.Record, today time.Time, opts Options) (*Result, error) {
	defer telemetry.Metrics.PipelineLatency.Since(time.Now())
	today = games.Day(today)

	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	if err := matchup.ValidateFeatures(opts.Features, opts.Stats); err != nil {
		return nil, fmt.Errorf("features: %w", err)
	}
	calc, err := form.NewCalculator(opts.Window, opts.Stats)
	if err != nil {
		return nil, err
	}

	res := &Result{Today: today, Features: opts.Features}
	telemetry.Metrics.RowsLoaded.Add(int64(len(records)))

	ledger := games.NewLedger(records)
	res.Teams = summary.Summarize(ledger, today)
	telemetry.Stage("summary").Info("teams summarized", "teams", len(res.Teams))

	table := calc.Compute(ledger, today)
	res.Form = FormStats{Rows: len(table.Records), Dropped: len(table.Dropped), Imputed: table.Imputed}
	telemetry.Metrics.RowsDroppedHistory.Add(int64(res.Form.Dropped))
	telemetry.Metrics.RowsImputed.Add(int64(res.Form.Imputed))
	telemetry.Stage("form").Info("rolling form computed",
		"window", opts.Window, "rows", res.Form.Rows, "dropped", res.Form.Dropped, "imputed", res.Form.Imputed)

	gs, q := games.Reconcile(records)
	res.Quality = q
	telemetry.Metrics.UnpairedRows.Add(int64(q.UnpairedHome + q.UnpairedAway))
	telemetry.Metrics.DuplicateRows.Add(int64(q.Duplicates))
	if q.Faults() > 0 {
		if opts.StrictPairing {
			return nil, fmt.Errorf("reconcile: %w", q.Err())
		}
		telemetry.Warnf("reconcile: %d unpaired home, %d unpaired away, %d duplicate, %d conflicting rows dropped",
			q.UnpairedHome, q.UnpairedAway, q.Duplicates, q.Conflicts)
	}

	enc := opts.Encoder
	if enc == nil {
		enc = matchup.EncoderFromGames(gs)
	}
	res.Encoder = enc

	res.Matchups, res.Assembly = matchup.Assemble(gs, table, enc, today)
	telemetry.Metrics.MatchupsBuilt.Add(int64(res.Assembly.Built))
	telemetry.Stage("matchup").Info("matchups assembled",
		"games", res.Assembly.Games, "built", res.Assembly.Built, "dropped_history", res.Assembly.DroppedHistory)
	if res.Assembly.MissingResult > 0 {
		telemetry.Warnf("%d past games have no recorded result", res.Assembly.MissingResult)
	}

	newClf := opts.classifierFactory()
	p := &predict.Predictor{
		NewClassifier: newClf,
		Features:      opts.Features,
		Threshold:     opts.Threshold,
		ConfidenceBar: opts.ConfidenceBar,
	}
	res.Predictions, err = p.Predict(res.Matchups, today)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	telemetry.Stage("predict").Info("predictions scored",
		"training_rows", res.Predictions.TrainingRows,
		"predictions", len(res.Predictions.Predictions),
		"high_confidence", len(res.Predictions.HighConfidence))

	if !opts.SkipEvaluation {
		res.Evaluation, res.EvaluationErr = evaluate.Evaluate(res.Matchups, today, newClf, opts.Features, opts.Evaluation)
		if res.EvaluationErr != nil {
			telemetry.Warnf("evaluation skipped: %v", res.EvaluationErr)
		} else {
			telemetry.Stage("evaluate").Info("backtest complete",
				"train", res.Evaluation.TrainRows, "test", res.Evaluation.TestRows,
				"accuracy", res.Evaluation.Accuracy, "precision", res.Evaluation.Precision)
		}
	}

	telemetry.Metrics.LastRunUnix.Set(time.Now().Unix())
	return res, nil
}
