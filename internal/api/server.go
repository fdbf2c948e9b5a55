// Package api serves the latest pipeline outputs over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/charleschow/nhl-predictor/internal/adapters/sqlstore"
	"github.com/charleschow/nhl-predictor/internal/core/games"
	"github.com/charleschow/nhl-predictor/internal/refresh"
	"github.com/charleschow/nhl-predictor/internal/telemetry"
)

const refreshTimeout = 5 * time.Minute

// Refresher is the part of the refresh service the API drives.
type Refresher interface {
	Latest() *refresh.Snapshot
	Refresh(ctx context.Context, trigger string) (*refresh.Snapshot, error)
}

// RunLister reads persisted run history.
type RunLister interface {
	Runs(ctx context.Context, limit int) ([]sqlstore.Run, error)
}

type Server struct {
	refresher Refresher
	runs      RunLister // optional
	ws        http.HandlerFunc
	limiter   *rate.Limiter
}

// NewServer allows refreshesPerMin manual refreshes per minute; scheduled
// refreshes bypass the limiter. ws may be nil.
func NewServer(r Refresher, runs RunLister, ws http.HandlerFunc, refreshesPerMin int) *Server {
	if refreshesPerMin < 1 {
		refreshesPerMin = 1
	}
	return &Server{
		refresher: r,
		runs:      runs,
		ws:        ws,
		limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(refreshesPerMin)), 1),
	}
}

func (s *Server) Routes() http.Handler {
	router := chi.NewRouter()

	router.NotFound(notFoundResponse)
	router.MethodNotAllowed(methodNotAllowedResponse)
	router.Use(recoverPanic)

	router.Get("/healthz", s.health)
	router.Get("/teams", s.teams)
	router.Route("/predictions", func(router chi.Router) {
		router.Get("/", s.predictions)
		router.Get("/high-confidence", s.highConfidence)
	})
	router.Get("/evaluation", s.evaluation)
	router.Get("/runs", s.listRuns)
	router.Post("/refresh", s.refresh)
	if s.ws != nil {
		router.Get("/ws", s.ws)
	}
	return router
}

// ListenAndServe blocks until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		telemetry.Plainf("api: listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")
				serverErrorResponse(w, r, fmt.Errorf("%v", err))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	data := envelope{
		"status":  "ok",
		"metrics": telemetry.TakeSnapshot(),
	}
	if snap := s.refresher.Latest(); snap != nil {
		data["last_run"] = envelope{
			"id":         snap.RunID,
			"trigger":    snap.Trigger,
			"started_at": snap.StartedAt.UTC().Format(time.RFC3339),
			"today":      snap.Result.Today.Format(games.DateLayout),
		}
	}
	if err := writeJSON(w, http.StatusOK, data, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (s *Server) teams(w http.ResponseWriter, r *http.Request) {
	snap := s.refresher.Latest()
	if snap == nil {
		noSnapshotResponse(w, r)
		return
	}
	if err := writeJSON(w, http.StatusOK, envelope{"teams": teamViews(snap.Result.Teams)}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (s *Server) predictions(w http.ResponseWriter, r *http.Request) {
	snap := s.refresher.Latest()
	if snap == nil {
		noSnapshotResponse(w, r)
		return
	}
	p := snap.Result.Predictions
	data := envelope{
		"run_id":          snap.RunID,
		"today":           snap.Result.Today.Format(games.DateLayout),
		"no_future_games": p.NoFutureGames,
		"predictions":     predictionViews(p.Predictions),
	}
	if err := writeJSON(w, http.StatusOK, data, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (s *Server) highConfidence(w http.ResponseWriter, r *http.Request) {
	snap := s.refresher.Latest()
	if snap == nil {
		noSnapshotResponse(w, r)
		return
	}
	rows := snap.Result.Predictions.HighConfidence
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			errorResponse(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n < len(rows) {
			rows = rows[:n]
		}
	}
	data := envelope{"run_id": snap.RunID, "predictions": predictionViews(rows)}
	if err := writeJSON(w, http.StatusOK, data, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (s *Server) evaluation(w http.ResponseWriter, r *http.Request) {
	snap := s.refresher.Latest()
	if snap == nil {
		noSnapshotResponse(w, r)
		return
	}
	if snap.Result.Evaluation == nil {
		msg := "evaluation unavailable"
		if snap.Result.EvaluationErr != nil {
			msg = snap.Result.EvaluationErr.Error()
		}
		errorResponse(w, r, http.StatusUnprocessableEntity, msg)
		return
	}
	data := envelope{"run_id": snap.RunID, "evaluation": evaluationViewOf(snap.Result.Evaluation)}
	if err := writeJSON(w, http.StatusOK, data, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		notFoundResponse(w, r)
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			errorResponse(w, r, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	runs, err := s.runs.Runs(r.Context(), limit)
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, envelope{"runs": runViews(runs)}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		rateLimitExceededResponse(w, r)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), refreshTimeout)
	defer cancel()

	snap, err := s.refresher.Refresh(ctx, refresh.TriggerAPI)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		errorResponse(w, r, http.StatusGatewayTimeout, "refresh did not finish in time")
		return
	case err != nil:
		serverErrorResponse(w, r, err)
		return
	}
	p := snap.Result.Predictions
	data := envelope{
		"run_id":          snap.RunID,
		"trigger":         snap.Trigger,
		"predictions":     len(p.Predictions),
		"high_confidence": len(p.HighConfidence),
		"no_future_games": p.NoFutureGames,
		"duration_ms":     snap.Duration.Milliseconds(),
	}
	if err := writeJSON(w, http.StatusOK, data, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
