// Package sqlstore keeps a history of pipeline runs in SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charleschow/nhl-predictor/internal/core/evaluate"
	"github.com/charleschow/nhl-predictor/internal/core/games"
	"github.com/charleschow/nhl-predictor/internal/core/predict"
	"github.com/charleschow/nhl-predictor/internal/telemetry"

	_ "modernc.org/sqlite"
)

var ErrNoRuns = errors.New("no runs recorded")

// fixed-width so started_at sorts lexically
const tsLayout = "2006-01-02T15:04:05.000000Z"

// Run is the summary row of one pipeline invocation. Evaluation metrics are
// nil when the backtest did not run.
type Run struct {
	ID             string
	StartedAt      time.Time
	Today          time.Time
	RowsLoaded     int
	Matchups       int
	TrainingRows   int
	Predictions    int
	HighConfidence int
	Unpaired       int
	Features       string

	Accuracy  *float64
	Precision *float64
	Brier     *float64
}

type StoredPrediction struct {
	predict.Row
	HighConfidence bool
}

type RunStore struct {
	db *sql.DB
	mu sync.Mutex
}

func Open(path string) (*RunStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id              TEXT    PRIMARY KEY,
			started_at      TEXT    NOT NULL,
			today           TEXT    NOT NULL,
			rows_loaded     INTEGER NOT NULL,
			matchups        INTEGER NOT NULL,
			training_rows   INTEGER NOT NULL,
			predictions     INTEGER NOT NULL,
			high_confidence INTEGER NOT NULL,
			unpaired        INTEGER NOT NULL,
			features        TEXT,
			accuracy        REAL,
			precision       REAL,
			brier           REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
		`CREATE TABLE IF NOT EXISTS predictions (
			id                   INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id               TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			date                 TEXT    NOT NULL,
			season               TEXT,
			home_team            TEXT    NOT NULL,
			away_team            TEXT    NOT NULL,
			home_win_probability REAL    NOT NULL,
			away_win_probability REAL    NOT NULL,
			prediction           INTEGER NOT NULL,
			predicted_winner     TEXT    NOT NULL,
			high_confidence      INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_predictions_run ON predictions(run_id)`,
		`CREATE TABLE IF NOT EXISTS evaluations (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id        TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			date          TEXT    NOT NULL,
			home_team     TEXT    NOT NULL,
			away_team     TEXT    NOT NULL,
			predicted     INTEGER NOT NULL,
			probability   REAL    NOT NULL,
			target        INTEGER NOT NULL,
			correct_label TEXT    NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_evaluations_run ON evaluations(run_id)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init schema (%s): %w", stmt, err)
		}
	}

	var count int64
	if err := db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&count); err != nil {
		db.Close()
		return nil, fmt.Errorf("read run count: %w", err)
	}
	telemetry.Plainf("run store: opened %s  runs=%d", path, count)

	return &RunStore{db: db}, nil
}

func (s *RunStore) Close() error { return s.db.Close() }

// SaveRun writes the run, its predictions and its backtest rows in one
// transaction.
func (s *RunStore) SaveRun(ctx context.Context, run Run, preds []predict.Record, highConfidenceBar float64, eval *evaluate.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (
			id, started_at, today, rows_loaded, matchups, training_rows,
			predictions, high_confidence, unpaired, features,
			accuracy, precision, brier
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		run.ID,
		run.StartedAt.UTC().Format(tsLayout),
		run.Today.Format(games.DateLayout),
		run.RowsLoaded,
		run.Matchups,
		run.TrainingRows,
		run.Predictions,
		run.HighConfidence,
		run.Unpaired,
		run.Features,
		run.Accuracy,
		run.Precision,
		run.Brier,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	predStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO predictions (
			run_id, date, season, home_team, away_team,
			home_win_probability, away_win_probability, prediction, predicted_winner, high_confidence
		) VALUES (?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare predictions: %w", err)
	}
	defer predStmt.Close()
	for _, p := range preds {
		if _, err := predStmt.ExecContext(ctx,
			run.ID,
			p.Date.Format(games.DateLayout),
			p.Season,
			p.HomeTeam,
			p.AwayTeam,
			p.HomeWinProbability,
			p.AwayWinProbability,
			p.Prediction,
			p.PredictedWinner,
			boolToInt(p.HomeWinProbability > highConfidenceBar),
		); err != nil {
			return fmt.Errorf("insert prediction: %w", err)
		}
	}

	if eval != nil {
		evalStmt, err := tx.PrepareContext(ctx,
			`INSERT INTO evaluations (
				run_id, date, home_team, away_team, predicted, probability, target, correct_label
			) VALUES (?,?,?,?,?,?,?,?)`)
		if err != nil {
			return fmt.Errorf("prepare evaluations: %w", err)
		}
		defer evalStmt.Close()
		for _, r := range eval.Rows {
			if _, err := evalStmt.ExecContext(ctx,
				run.ID,
				r.Date.Format(games.DateLayout),
				r.HomeTeam,
				r.AwayTeam,
				r.Predicted,
				r.Probability,
				r.Target,
				r.CorrectLabel(),
			); err != nil {
				return fmt.Errorf("insert evaluation: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

const runColumns = `id, started_at, today, rows_loaded, matchups, training_rows,
	predictions, high_confidence, unpaired, COALESCE(features, ''), accuracy, precision, brier`

// Runs returns the most recent runs, newest first.
func (s *RunStore) Runs(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *RunStore) LatestRun(ctx context.Context) (Run, error) {
	runs, err := s.Runs(ctx, 1)
	if err != nil {
		return Run{}, err
	}
	if len(runs) == 0 {
		return Run{}, ErrNoRuns
	}
	return runs[0], nil
}

// Predictions returns a run's predictions in date order.
func (s *RunStore) Predictions(ctx context.Context, runID string) ([]StoredPrediction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, COALESCE(season, ''), home_team, away_team,
			home_win_probability, away_win_probability, prediction, predicted_winner, high_confidence
		FROM predictions WHERE run_id = ? ORDER BY date, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	defer rows.Close()

	var out []StoredPrediction
	for rows.Next() {
		var p StoredPrediction
		var date string
		var high int
		if err := rows.Scan(&date, &p.Season, &p.HomeTeam, &p.AwayTeam,
			&p.HomeWinProbability, &p.AwayWinProbability, &p.Prediction, &p.PredictedWinner, &high); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		if p.Date, err = games.ParseDay(date); err != nil {
			return nil, err
		}
		p.HighConfidence = high == 1
		out = append(out, p)
	}
	return out, rows.Err()
}

// Evaluations returns a run's backtest rows in date order.
func (s *RunStore) Evaluations(ctx context.Context, runID string) ([]evaluate.Row, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, home_team, away_team, predicted, probability, target
		FROM evaluations WHERE run_id = ? ORDER BY date, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query evaluations: %w", err)
	}
	defer rows.Close()

	var out []evaluate.Row
	for rows.Next() {
		var r evaluate.Row
		var date string
		if err := rows.Scan(&date, &r.HomeTeam, &r.AwayTeam, &r.Predicted, &r.Probability, &r.Target); err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		if r.Date, err = games.ParseDay(date); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Prune deletes all but the newest keep runs.
func (s *RunStore) Prune(ctx context.Context, keep int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY started_at DESC, id DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var r Run
	var started, today string
	var acc, prec, brier sql.NullFloat64
	if err := sc.Scan(&r.ID, &started, &today, &r.RowsLoaded, &r.Matchups, &r.TrainingRows,
		&r.Predictions, &r.HighConfidence, &r.Unpaired, &r.Features, &acc, &prec, &brier); err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	var err error
	if r.StartedAt, err = time.Parse(tsLayout, started); err != nil {
		return Run{}, fmt.Errorf("run %s started_at: %w", r.ID, err)
	}
	if r.Today, err = games.ParseDay(today); err != nil {
		return Run{}, fmt.Errorf("run %s today: %w", r.ID, err)
	}
	r.Accuracy = nullable(acc)
	r.Precision = nullable(prec)
	r.Brier = nullable(brier)
	return r, nil
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
