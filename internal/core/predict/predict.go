// Package predict fits a fresh classifier on past matchups and scores the
// games on or after today.
package predict

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/charleschow/nhl-predictor/internal/core/matchup"
	"github.com/charleschow/nhl-predictor/internal/core/model"
	"github.com/charleschow/nhl-predictor/internal/telemetry"
)

// ErrFit marks a classifier failure during training or scoring.
var ErrFit = errors.New("classifier fit failed")

const (
	DefaultThreshold     = 0.6
	DefaultConfidenceBar = 0.6
	WinnerCutoff         = 0.5
)

// Record is a scored future matchup.
type Record struct {
	matchup.Matchup
	HomeWinProbability float64
	AwayWinProbability float64
	Prediction         int
	PredictedWinner    string
}

// Decide derives the binary flag and winner from a home win probability.
// The flag uses a strict comparison against threshold; the winner uses a
// fixed 0.5 cutoff, inclusive for the home side.
func Decide(m matchup.Matchup, p, threshold float64) Record {
	r := Record{
		Matchup:            m,
		HomeWinProbability: p,
		AwayWinProbability: 1 - p,
		PredictedWinner:    m.AwayTeam,
	}
	if p > threshold {
		r.Prediction = 1
	}
	if p >= WinnerCutoff {
		r.PredictedWinner = m.HomeTeam
	}
	return r
}

type Result struct {
	Predictions    []Record
	HighConfidence []Record

	NoFutureGames   bool
	TrainingRows    int
	SkippedNoResult int
	Importance      map[string]float64
}

// Predictor retrains on every call; it carries no model state between runs.
type Predictor struct {
	NewClassifier func() model.Classifier
	Features      []string
	Threshold     float64
	ConfidenceBar float64
}

func New(cfg model.Config, features []string) *Predictor {
	return &Predictor{
		NewClassifier: func() model.Classifier { return model.NewGradientBoosting(cfg) },
		Features:      features,
		Threshold:     DefaultThreshold,
		ConfidenceBar: DefaultConfidenceBar,
	}
}

// Split partitions matchups into training rows (before today with a target)
// and inference rows (on or after today).
func Split(ms []matchup.Matchup, today time.Time) (train, infer []matchup.Matchup, skipped int) {
	for _, m := range ms {
		switch {
		case m.IsFuture(today):
			infer = append(infer, m)
		case m.HasTarget:
			train = append(train, m)
		default:
			skipped++
		}
	}
	return train, infer, skipped
}

// Fit trains a new classifier on ms.
func Fit(newClassifier func() model.Classifier, ms []matchup.Matchup, features []string) (model.Classifier, error) {
	X, err := matchup.Matrix(ms, features)
	if err != nil {
		return nil, err
	}
	y := make([]int, len(ms))
	for i, m := range ms {
		y[i] = m.Target
	}
	clf := newClassifier()
	start := time.Now()
	if err := clf.Fit(X, y); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFit, err)
	}
	telemetry.Metrics.FitLatency.Since(start)
	return clf, nil
}

// Score returns P(home win) per matchup.
func Score(clf model.Classifier, ms []matchup.Matchup, features []string) ([]float64, error) {
	X, err := matchup.Matrix(ms, features)
	if err != nil {
		return nil, err
	}
	p, err := clf.PredictProba(X)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFit, err)
	}
	return p, nil
}

func (p *Predictor) Predict(ms []matchup.Matchup, today time.Time) (*Result, error) {
	if len(p.Features) == 0 {
		return nil, errors.New("predictor has no features")
	}
	train, infer, skipped := Split(ms, today)
	res := &Result{TrainingRows: len(train), SkippedNoResult: skipped}
	if skipped > 0 {
		telemetry.Warnf("%d past matchups have no recorded result and were left out of training", skipped)
	}
	if len(infer) == 0 {
		telemetry.Infof("no future games found")
		res.NoFutureGames = true
		return res, nil
	}

	clf, err := Fit(p.NewClassifier, train, p.Features)
	if err != nil {
		return nil, err
	}
	probs, err := Score(clf, infer, p.Features)
	if err != nil {
		return nil, err
	}
	if imp, ok := clf.(interface{ Importance() []float64 }); ok {
		res.Importance = make(map[string]float64, len(p.Features))
		for i, v := range imp.Importance() {
			res.Importance[p.Features[i]] = v
		}
	}

	res.Predictions = make([]Record, len(infer))
	for i, m := range infer {
		res.Predictions[i] = Decide(m, probs[i], p.Threshold)
	}
	sort.SliceStable(res.Predictions, func(i, j int) bool {
		return res.Predictions[i].Date.Before(res.Predictions[j].Date)
	})
	res.HighConfidence = HighConfidence(res.Predictions, p.ConfidenceBar)
	telemetry.Metrics.PredictionsScored.Add(int64(len(res.Predictions)))
	return res, nil
}

// HighConfidence keeps predictions with home win probability above bar,
// highest first.
func HighConfidence(rs []Record, bar float64) []Record {
	var out []Record
	for _, r := range rs {
		if r.HomeWinProbability > bar {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].HomeWinProbability > out[j].HomeWinProbability
	})
	return out
}

// Row is the flat, persisted form of a Record.
type Row struct {
	Date               time.Time
	Season             string
	HomeTeam           string
	AwayTeam           string
	HomeWinProbability float64
	AwayWinProbability float64
	Prediction         int
	PredictedWinner    string
}

func (r Record) Row() Row {
	return Row{
		Date:               r.Date,
		Season:             r.Season,
		HomeTeam:           r.HomeTeam,
		AwayTeam:           r.AwayTeam,
		HomeWinProbability: r.HomeWinProbability,
		AwayWinProbability: r.AwayWinProbability,
		Prediction:         r.Prediction,
		PredictedWinner:    r.PredictedWinner,
	}
}
