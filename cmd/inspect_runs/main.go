package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charleschow/nhl-predictor/internal/adapters/sqlstore"
	"github.com/charleschow/nhl-predictor/internal/config"
	"github.com/charleschow/nhl-predictor/internal/core/games"
)

func main() {
	cfg := config.Load()
	dbPath := flag.String("db", cfg.DBPath, "run store path")
	n := flag.Int("n", 10, "number of recent runs to display")
	runID := flag.String("run", "", "show predictions and backtest rows of one run (\"latest\" for the newest)")
	flag.Parse()

	if _, err := os.Stat(*dbPath); err != nil {
		fmt.Printf("  (cannot open %s: %v)\n", *dbPath, err)
		os.Exit(1)
	}
	store, err := sqlstore.Open(*dbPath)
	if err != nil {
		fmt.Printf("  (cannot open %s: %v)\n", *dbPath, err)
		os.Exit(1)
	}
	defer store.Close()
	ctx := context.Background()

	if *runID == "" {
		printRuns(ctx, store, *n)
		return
	}
	id := *runID
	if id == "latest" {
		run, err := store.LatestRun(ctx)
		if err != nil {
			fmt.Printf("  (%v)\n", err)
			return
		}
		id = run.ID
	}
	printRun(ctx, store, id)
}

func printRuns(ctx context.Context, store *sqlstore.RunStore, n int) {
	fmt.Println("=== Runs ===")
	runs, err := store.Runs(ctx, n)
	if err != nil {
		fmt.Printf("  (query error: %v)\n", err)
		return
	}
	if len(runs) == 0 {
		fmt.Println("(no data)")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	cols := []string{"id", "started_at", "today", "rows", "matchups", "train", "preds", "high", "unpaired", "accuracy", "precision", "brier"}
	fmt.Fprintln(w, strings.Join(cols, "\t"))
	fmt.Fprintln(w, strings.Repeat("----\t", len(cols)))
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\t%s\t%s\n",
			r.ID[:8], r.StartedAt.Local().Format("2006-01-02 3:04 PM"), r.Today.Format(games.DateLayout),
			r.RowsLoaded, r.Matchups, r.TrainingRows, r.Predictions, r.HighConfidence, r.Unpaired,
			fmtMetric(r.Accuracy), fmtMetric(r.Precision), fmtMetric(r.Brier))
	}
	w.Flush()
}

func printRun(ctx context.Context, store *sqlstore.RunStore, id string) {
	fmt.Printf("=== Run %s ===\n", id)
	preds, err := store.Predictions(ctx, id)
	if err != nil {
		fmt.Printf("  (query error: %v)\n", err)
		return
	}
	if len(preds) == 0 {
		fmt.Println("(no predictions)")
	} else {
		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "date\thome_team\taway_team\thome_win_prob\tprediction\tpredicted_winner\thigh")
		fmt.Fprintln(w, strings.Repeat("----\t", 7))
		for _, p := range preds {
			high := ""
			if p.HighConfidence {
				high = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%.3f\t%d\t%s\t%s\n",
				p.Date.Format(games.DateLayout), p.HomeTeam, p.AwayTeam, p.HomeWinProbability, p.Prediction, p.PredictedWinner, high)
		}
		w.Flush()
	}

	rows, err := store.Evaluations(ctx, id)
	if err != nil {
		fmt.Printf("  (query error: %v)\n", err)
		return
	}
	if len(rows) == 0 {
		return
	}
	fmt.Printf("\n=== Backtest (%d rows) ===\n", len(rows))
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "date\thome_team\taway_team\tpredicted\tprobability\ttarget\tcorrect")
	fmt.Fprintln(w, strings.Repeat("----\t", 7))
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.3f\t%d\t%s\n",
			r.Date.Format(games.DateLayout), r.HomeTeam, r.AwayTeam, r.Predicted, r.Probability, r.Target, r.CorrectLabel())
	}
	w.Flush()
}

func fmtMetric(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.3f", *v)
}
