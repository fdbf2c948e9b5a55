package api

import (
	"github.com/charleschow/nhl-predictor/internal/adapters/sqlstore"
	"github.com/charleschow/nhl-predictor/internal/core/evaluate"
	"github.com/charleschow/nhl-predictor/internal/core/games"
	"github.com/charleschow/nhl-predictor/internal/core/predict"
	"github.com/charleschow/nhl-predictor/internal/core/summary"
)

type predictionView struct {
	Date               string  `json:"date"`
	Season             string  `json:"season"`
	HomeTeam           string  `json:"home_team"`
	AwayTeam           string  `json:"away_team"`
	HomeWinProbability float64 `json:"home_win_probability"`
	AwayWinProbability float64 `json:"away_win_probability"`
	Prediction         int     `json:"prediction"`
	PredictedWinner    string  `json:"predicted_winner"`
}

func predictionViews(rs []predict.Record) []predictionView {
	out := make([]predictionView, len(rs))
	for i, r := range rs {
		out[i] = predictionView{
			Date:               r.Date.Format(games.DateLayout),
			Season:             r.Season,
			HomeTeam:           r.HomeTeam,
			AwayTeam:           r.AwayTeam,
			HomeWinProbability: r.HomeWinProbability,
			AwayWinProbability: r.AwayWinProbability,
			Prediction:         r.Prediction,
			PredictedWinner:    r.PredictedWinner,
		}
	}
	return out
}

type teamView struct {
	Team             string  `json:"team"`
	Games            int     `json:"games"`
	WinRate          float64 `json:"win_rate"`
	Record           string  `json:"record"`
	AvgShots         float64 `json:"avg_shots"`
	ShootingAccuracy float64 `json:"shooting_accuracy"`
	AvgPIM           float64 `json:"avg_pim"`
}

func teamViews(ts []summary.TeamSummary) []teamView {
	out := make([]teamView, len(ts))
	for i, s := range ts {
		out[i] = teamView{
			Team:             s.Team,
			Games:            s.Games,
			WinRate:          s.WinRate,
			Record:           s.Ratio(),
			AvgShots:         s.AvgShots,
			ShootingAccuracy: s.ShootingAccuracy,
			AvgPIM:           s.AvgPIM,
		}
	}
	return out
}

type evaluationRowView struct {
	Date        string  `json:"date"`
	HomeTeam    string  `json:"home_team"`
	AwayTeam    string  `json:"away_team"`
	Predicted   int     `json:"predicted"`
	Probability float64 `json:"probability"`
	Target      int     `json:"target"`
	Correct     string  `json:"correct"`
}

type bucketView struct {
	Label      string  `json:"label"`
	Count      int     `json:"count"`
	MeanPred   float64 `json:"mean_pred"`
	ActualFreq float64 `json:"actual_freq"`
}

type evaluationView struct {
	TrainRows int                 `json:"train_rows"`
	TestRows  int                 `json:"test_rows"`
	Cutoff    float64             `json:"cutoff"`
	Accuracy  float64             `json:"accuracy"`
	Precision float64             `json:"precision"`
	Recall    float64             `json:"recall"`
	Brier     float64             `json:"brier"`
	LogLoss   float64             `json:"log_loss"`
	Rows      []evaluationRowView `json:"rows"`
	Buckets   []bucketView        `json:"buckets"`
}

func evaluationViewOf(rep *evaluate.Report) evaluationView {
	v := evaluationView{
		TrainRows: rep.TrainRows,
		TestRows:  rep.TestRows,
		Cutoff:    rep.Cutoff,
		Accuracy:  rep.Accuracy,
		Precision: rep.Precision,
		Recall:    rep.Recall,
		Brier:     rep.Brier,
		LogLoss:   rep.LogLoss,
		Rows:      make([]evaluationRowView, len(rep.Rows)),
		Buckets:   make([]bucketView, len(rep.Buckets)),
	}
	for i, r := range rep.Rows {
		v.Rows[i] = evaluationRowView{
			Date:        r.Date.Format(games.DateLayout),
			HomeTeam:    r.HomeTeam,
			AwayTeam:    r.AwayTeam,
			Predicted:   r.Predicted,
			Probability: r.Probability,
			Target:      r.Target,
			Correct:     r.CorrectLabel(),
		}
	}
	for i, b := range rep.Buckets {
		v.Buckets[i] = bucketView(b)
	}
	return v
}

type runView struct {
	ID             string   `json:"id"`
	StartedAt      string   `json:"started_at"`
	Today          string   `json:"today"`
	RowsLoaded     int      `json:"rows_loaded"`
	Matchups       int      `json:"matchups"`
	TrainingRows   int      `json:"training_rows"`
	Predictions    int      `json:"predictions"`
	HighConfidence int      `json:"high_confidence"`
	Unpaired       int      `json:"unpaired"`
	Accuracy       *float64 `json:"accuracy,omitempty"`
	Precision      *float64 `json:"precision,omitempty"`
}

func runViews(runs []sqlstore.Run) []runView {
	out := make([]runView, len(runs))
	for i, r := range runs {
		out[i] = runView{
			ID:             r.ID,
			StartedAt:      r.StartedAt.UTC().Format("2006-01-02T15:04:05Z"),
			Today:          r.Today.Format(games.DateLayout),
			RowsLoaded:     r.RowsLoaded,
			Matchups:       r.Matchups,
			TrainingRows:   r.TrainingRows,
			Predictions:    r.Predictions,
			HighConfidence: r.HighConfidence,
			Unpaired:       r.Unpaired,
			Accuracy:       r.Accuracy,
			Precision:      r.Precision,
		}
	}
	return out
}
