// Package refresh re-runs the pipeline on demand or on a schedule and keeps
// the latest outputs for the API.
package refresh

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/charleschow/nhl-predictor/internal/adapters/csvstore"
	"github.com/charleschow/nhl-predictor/internal/adapters/sqlstore"
	"github.com/charleschow/nhl-predictor/internal/core/evaluate"
	"github.com/charleschow/nhl-predictor/internal/core/games"
	"github.com/charleschow/nhl-predictor/internal/core/predict"
	"github.com/charleschow/nhl-predictor/internal/events"
	"github.com/charleschow/nhl-predictor/internal/pipeline"
	"github.com/charleschow/nhl-predictor/internal/telemetry"
)

const (
	TriggerStartup  = "startup"
	TriggerSchedule = "schedule"
	TriggerAPI      = "api"
)

// Source supplies the complete stats table.
type Source interface {
	Load(ctx context.Context) ([]games.Record, error)
}

// Store persists finished runs.
type Store interface {
	SaveRun(ctx context.Context, run sqlstore.Run, preds []predict.Record, highConfidenceBar float64, eval *evaluate.Report) error
}

type Config struct {
	Source   Source
	Store    Store // optional
	Bus      *events.Bus
	Pipeline pipeline.Options
	Today    func() time.Time

	// CSV outputs, skipped when empty.
	PredictionsPath    string
	HighConfidencePath string
}

// Snapshot is the outcome of one successful refresh.
type Snapshot struct {
	RunID     string
	Trigger   string
	StartedAt time.Time
	Duration  time.Duration
	Result    *pipeline.Result
}

type Service struct {
	cfg     Config
	sfGroup singleflight.Group
	latest  atomic.Pointer[Snapshot]
	now     func() time.Time
}

func New(cfg Config) *Service {
	if cfg.Bus == nil {
		cfg.Bus = events.NewBus()
	}
	if cfg.Today == nil {
		cfg.Today = func() time.Time { return games.Day(time.Now()) }
	}
	return &Service{cfg: cfg, now: time.Now}
}

// Latest returns the most recent successful snapshot, or nil.
func (s *Service) Latest() *Snapshot { return s.latest.Load() }

// Refresh runs one pass. A call that arrives while a pass is running joins
// it and receives the same snapshot, whose Trigger names the caller that
// started it. The pass runs under the starting caller's ctx; a joining
// caller whose ctx ends first returns ctx.Err() without cancelling the pass.
func (s *Service) Refresh(ctx context.Context, trigger string) (*Snapshot, error) {
	ch := s.sfGroup.DoChan("refresh", func() (any, error) {
		return s.refresh(ctx, trigger)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			telemetry.Metrics.RefreshShared.Inc()
		}
		return res.Val.(*Snapshot), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Service) refresh(ctx context.Context, trigger string) (*Snapshot, error) {
	runID := uuid.NewString()
	started := s.now()
	telemetry.Metrics.RefreshRuns.Inc()
	s.publish(runID, events.EventRefreshStarted, events.RefreshStarted{RunID: runID, Trigger: trigger})

	snap, err := s.run(ctx, runID, trigger, started)
	if err != nil {
		telemetry.Metrics.RefreshErrors.Inc()
		telemetry.Errorf("refresh %s (%s): %v", runID, trigger, err)
		s.publish(runID, events.EventRefreshFailed, events.RefreshFailed{RunID: runID, Trigger: trigger, Error: err.Error()})
		return nil, err
	}

	s.latest.Store(snap)
	s.publish(runID, events.EventRefreshCompleted, completedPayload(snap))
	telemetry.Infof("refresh %s (%s): done in %s", runID, trigger, snap.Duration.Round(time.Millisecond))
	return snap, nil
}

func (s *Service) run(ctx context.Context, runID, trigger string, started time.Time) (*Snapshot, error) {
	records, err := s.cfg.Source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	today := s.cfg.Today()
	res, err := pipeline.Run(records, today, s.cfg.Pipeline)
	if err != nil {
		return nil, err
	}

	if s.cfg.PredictionsPath != "" {
		if err := csvstore.SaveOutputs(s.cfg.PredictionsPath, s.cfg.HighConfidencePath, res.Predictions); err != nil {
			return nil, fmt.Errorf("write predictions: %w", err)
		}
	}

	if s.cfg.Store != nil {
		run := RunRecord(runID, started, len(records), res)
		if err := s.cfg.Store.SaveRun(ctx, run, res.Predictions.Predictions, s.cfg.Pipeline.ConfidenceBar, res.Evaluation); err != nil {
			return nil, fmt.Errorf("persist run: %w", err)
		}
	}

	return &Snapshot{
		RunID:     runID,
		Trigger:   trigger,
		StartedAt: started,
		Duration:  s.now().Sub(started),
		Result:    res,
	}, nil
}

// RunRecord summarizes a pipeline result for the run store.
func RunRecord(runID string, started time.Time, rowsLoaded int, res *pipeline.Result) sqlstore.Run {
	run := sqlstore.Run{
		ID:             runID,
		StartedAt:      started,
		Today:          res.Today,
		RowsLoaded:     rowsLoaded,
		Matchups:       len(res.Matchups),
		TrainingRows:   res.Predictions.TrainingRows,
		Predictions:    len(res.Predictions.Predictions),
		HighConfidence: len(res.Predictions.HighConfidence),
		Unpaired:       res.Quality.UnpairedHome + res.Quality.UnpairedAway,
		Features:       strings.Join(res.Features, ","),
	}
	if ev := res.Evaluation; ev != nil {
		run.Accuracy, run.Precision, run.Brier = &ev.Accuracy, &ev.Precision, &ev.Brier
	}
	return run
}

func completedPayload(snap *Snapshot) events.RefreshCompleted {
	res := snap.Result
	p := events.RefreshCompleted{
		RunID:          snap.RunID,
		Trigger:        snap.Trigger,
		Today:          res.Today.Format(games.DateLayout),
		Predictions:    len(res.Predictions.Predictions),
		HighConfidence: len(res.Predictions.HighConfidence),
		NoFutureGames:  res.Predictions.NoFutureGames,
		UnpairedRows:   res.Quality.UnpairedHome + res.Quality.UnpairedAway,
		DurationMs:     snap.Duration.Milliseconds(),
	}
	if ev := res.Evaluation; ev != nil {
		p.Accuracy, p.Precision = &ev.Accuracy, &ev.Precision
	}
	return p
}

func (s *Service) publish(runID string, t events.EventType, payload any) {
	s.cfg.Bus.Publish(events.Event{
		ID:        runID,
		Type:      t,
		Timestamp: s.now(),
		Payload:   payload,
	})
}
