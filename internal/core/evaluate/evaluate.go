// Package evaluate backtests the classifier on a trailing chronological
// holdout of past matchups.
package evaluate

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/charleschow/nhl-predictor/internal/core/matchup"
	"github.com/charleschow/nhl-predictor/internal/core/model"
	"github.com/charleschow/nhl-predictor/internal/core/predict"
)

var ErrInsufficientHistory = errors.New("not enough past matchups to hold out a test slice")

const (
	LabelCorrect   = "Correct"
	LabelIncorrect = "Incorrect"
)

type Config struct {
	HoldoutFraction float64
	Cutoff          float64
	Buckets         int
}

func DefaultConfig() Config {
	return Config{HoldoutFraction: 0.2, Cutoff: 0.5, Buckets: 10}
}

type Row struct {
	Date        time.Time
	HomeTeam    string
	AwayTeam    string
	Predicted   int
	Probability float64
	Target      int
}

func (r Row) Correct() bool { return r.Predicted == r.Target }

func (r Row) CorrectLabel() string {
	if r.Correct() {
		return LabelCorrect
	}
	return LabelIncorrect
}

type Bucket struct {
	Label      string
	Count      int
	MeanPred   float64
	ActualFreq float64
}

type Report struct {
	TrainRows int
	TestRows  int
	Cutoff    float64
	Accuracy  float64
	Precision float64
	Recall    float64
	Brier     float64
	LogLoss   float64
	Rows      []Row
	Buckets   []Bucket
}

// Holdout orders past matchups with a target by date and splits off the
// last ceil(fraction*n) as the test slice.
func Holdout(ms []matchup.Matchup, today time.Time, fraction float64) (train, test []matchup.Matchup, err error) {
	if fraction <= 0 || fraction >= 1 {
		return nil, nil, fmt.Errorf("holdout fraction must be in (0,1), got %g", fraction)
	}
	var eligible []matchup.Matchup
	for _, m := range ms {
		if !m.IsFuture(today) && m.HasTarget {
			eligible = append(eligible, m)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool { return eligible[i].Date.Before(eligible[j].Date) })

	n := len(eligible)
	nTest := int(math.Ceil(fraction * float64(n)))
	if nTest == 0 || nTest >= n {
		return nil, nil, fmt.Errorf("%w: %d eligible matchups", ErrInsufficientHistory, n)
	}
	return eligible[:n-nTest], eligible[n-nTest:], nil
}

// Evaluate fits a fresh classifier on the training slice and scores the
// holdout.
func Evaluate(ms []matchup.Matchup, today time.Time, newClassifier func() model.Classifier, features []string, cfg Config) (*Report, error) {
	train, test, err := Holdout(ms, today, cfg.HoldoutFraction)
	if err != nil {
		return nil, err
	}
	clf, err := predict.Fit(newClassifier, train, features)
	if err != nil {
		return nil, err
	}
	probs, err := predict.Score(clf, test, features)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, len(test))
	for i, m := range test {
		rows[i] = Row{
			Date:        m.Date,
			HomeTeam:    m.HomeTeam,
			AwayTeam:    m.AwayTeam,
			Probability: probs[i],
			Target:      m.Target,
		}
		if probs[i] > cfg.Cutoff {
			rows[i].Predicted = 1
		}
	}

	rep := Score(rows, cfg.Buckets)
	rep.TrainRows = len(train)
	rep.Cutoff = cfg.Cutoff
	return rep, nil
}

// Score computes the metrics of already-labelled rows.
func Score(rows []Row, buckets int) *Report {
	rep := &Report{TestRows: len(rows), Rows: rows}
	if len(rows) == 0 {
		return rep
	}
	var correct, tp, fp, fn int
	var brier, logLoss float64
	for _, r := range rows {
		if r.Correct() {
			correct++
		}
		switch {
		case r.Predicted == 1 && r.Target == 1:
			tp++
		case r.Predicted == 1 && r.Target == 0:
			fp++
		case r.Predicted == 0 && r.Target == 1:
			fn++
		}
		d := r.Probability - float64(r.Target)
		brier += d * d
		p := math.Min(math.Max(r.Probability, 1e-15), 1-1e-15)
		if r.Target == 1 {
			logLoss -= math.Log(p)
		} else {
			logLoss -= math.Log(1 - p)
		}
	}
	n := float64(len(rows))
	rep.Accuracy = float64(correct) / n
	if tp+fp > 0 {
		rep.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		rep.Recall = float64(tp) / float64(tp+fn)
	}
	rep.Brier = brier / n
	rep.LogLoss = logLoss / n
	rep.Buckets = Calibration(rows, buckets)
	return rep
}

type bucketAccum struct {
	sumPred float64
	count   int
	wins    int
}

// Calibration groups rows into equal-width probability buckets and compares
// the mean prediction with the observed home win rate. Empty buckets are
// omitted.
func Calibration(rows []Row, n int) []Bucket {
	if n < 1 {
		return nil
	}
	acc := make([]bucketAccum, n)
	for _, r := range rows {
		i := int(r.Probability * float64(n))
		if i >= n {
			i = n - 1
		}
		if i < 0 {
			i = 0
		}
		acc[i].sumPred += r.Probability
		acc[i].count++
		acc[i].wins += r.Target
	}
	var out []Bucket
	width := 100 / n
	for i, a := range acc {
		if a.count == 0 {
			continue
		}
		out = append(out, Bucket{
			Label:      fmt.Sprintf("%d-%d%%", i*width, (i+1)*width),
			Count:      a.count,
			MeanPred:   a.sumPred / float64(a.count),
			ActualFreq: float64(a.wins) / float64(a.count),
		})
	}
	return out
}

type SweepPoint struct {
	Threshold float64
	Flagged   int
	Precision float64
	Accuracy  float64
}

// Sweep re-labels the holdout at each threshold, showing how the decision
// threshold trades volume against precision.
func Sweep(rows []Row, thresholds []float64) []SweepPoint {
	out := make([]SweepPoint, 0, len(thresholds))
	relabeled := make([]Row, len(rows))
	for _, th := range thresholds {
		for i, r := range rows {
			r.Predicted = 0
			if r.Probability > th {
				r.Predicted = 1
			}
			relabeled[i] = r
		}
		rep := Score(relabeled, 0)
		var flagged int
		for _, r := range relabeled {
			flagged += r.Predicted
		}
		out = append(out, SweepPoint{
			Threshold: th,
			Flagged:   flagged,
			Precision: rep.Precision,
			Accuracy:  rep.Accuracy,
		})
	}
	return out
}
