// Package report renders pipeline outputs as aligned text tables.
package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charleschow/nhl-predictor/internal/core/evaluate"
	"github.com/charleschow/nhl-predictor/internal/core/games"
	"github.com/charleschow/nhl-predictor/internal/core/predict"
	"github.com/charleschow/nhl-predictor/internal/core/summary"
)

const (
	dividerHeavy = "========================================================================"
	dividerLight = "~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~"

	HighConfidencePreview = 10
)

func newTable(w io.Writer, cols ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(cols, "\t"))
	fmt.Fprintln(tw, strings.Repeat("----\t", len(cols)))
	return tw
}

func title(w io.Writer, s string) {
	fmt.Fprintf(w, "\n%s\n  %s\n%s\n", dividerHeavy, s, dividerHeavy)
}

func TeamStats(w io.Writer, rows []summary.TeamSummary) {
	title(w, "Team Stats")
	if len(rows) == 0 {
		fmt.Fprintln(w, "(no data)")
		return
	}
	tw := newTable(w, "team", "games", "win_rate", "w:l", "avg_shots", "shooting_accuracy", "avg_pim")
	for _, s := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%.3f\t%s\t%.3f\t%.3f\t%.3f\n",
			s.Team, s.Games, s.WinRate, s.Ratio(), s.AvgShots, s.ShootingAccuracy, s.AvgPIM)
	}
	tw.Flush()
}

func Predictions(w io.Writer, rows []predict.Record) {
	title(w, "Predictions")
	predictionTable(w, rows)
}

// HighConfidence prints at most the first HighConfidencePreview rows.
func HighConfidence(w io.Writer, rows []predict.Record, bar float64) {
	title(w, fmt.Sprintf("High Confidence (home win probability > %.2f)", bar))
	if len(rows) > HighConfidencePreview {
		rows = rows[:HighConfidencePreview]
	}
	predictionTable(w, rows)
}

func predictionTable(w io.Writer, rows []predict.Record) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "(no games)")
		return
	}
	tw := newTable(w, "date", "season", "home_team", "away_team", "home_win_prob", "away_win_prob", "prediction", "predicted_winner")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.3f\t%.3f\t%d\t%s\n",
			r.Date.Format(games.DateLayout), r.Season, r.HomeTeam, r.AwayTeam,
			r.HomeWinProbability, r.AwayWinProbability, r.Prediction, r.PredictedWinner)
	}
	tw.Flush()
}

func Evaluation(w io.Writer, rep *evaluate.Report) {
	title(w, "Model Evaluation (temporal holdout)")
	fmt.Fprintf(w, "Train rows: %d  |  Test rows: %d  |  Cutoff: %.2f\n", rep.TrainRows, rep.TestRows, rep.Cutoff)
	fmt.Fprintf(w, "Accuracy: %.2f\n", rep.Accuracy)
	fmt.Fprintf(w, "Precision: %.2f\n", rep.Precision)
	fmt.Fprintln(w, dividerLight)
	tw := newTable(w, "date", "home_team", "away_team", "predicted", "probability", "target", "correct")
	for _, r := range rep.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.3f\t%d\t%s\n",
			r.Date.Format(games.DateLayout), r.HomeTeam, r.AwayTeam, r.Predicted, r.Probability, r.Target, r.CorrectLabel())
	}
	tw.Flush()
}

func Calibration(w io.Writer, rep *evaluate.Report) {
	title(w, "Calibration")
	fmt.Fprintf(w, "Brier: %.4f  |  Log-loss: %.4f  |  Recall: %.2f\n", rep.Brier, rep.LogLoss, rep.Recall)
	if len(rep.Buckets) == 0 {
		fmt.Fprintln(w, "(no data)")
		return
	}
	tw := newTable(w, "bucket", "count", "mean_pred", "actual", "gap")
	for _, b := range rep.Buckets {
		fmt.Fprintf(tw, "%s\t%d\t%.3f\t%.3f\t%+.3f\n", b.Label, b.Count, b.MeanPred, b.ActualFreq, b.ActualFreq-b.MeanPred)
	}
	tw.Flush()
}

func Sweep(w io.Writer, pts []evaluate.SweepPoint) {
	title(w, "Threshold Sweep")
	tw := newTable(w, "threshold", "flagged", "precision", "accuracy")
	for _, p := range pts {
		fmt.Fprintf(tw, "%.2f\t%d\t%.3f\t%.3f\n", p.Threshold, p.Flagged, p.Precision, p.Accuracy)
	}
	tw.Flush()
}

func Quality(w io.Writer, q games.Quality) {
	if q.Faults() == 0 {
		return
	}
	fmt.Fprintln(w, dividerLight)
	fmt.Fprintf(w, "  Data quality: %d paired  |  %d unpaired home  |  %d unpaired away  |  %d duplicates  |  %d conflicts\n",
		q.Paired, q.UnpairedHome, q.UnpairedAway, q.Duplicates, q.Conflicts)
	for _, r := range q.Unpaired {
		fmt.Fprintf(w, "    %s  %s vs %s (%s)\n", r.Date.Format(games.DateLayout), r.Team, r.Opponent, r.Venue)
	}
	fmt.Fprintln(w, dividerLight)
}
