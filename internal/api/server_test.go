package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charleschow/nhl-predictor/internal/adapters/sqlstore"
	"github.com/charleschow/nhl-predictor/internal/core/evaluate"
	"github.com/charleschow/nhl-predictor/internal/core/matchup"
	"github.com/charleschow/nhl-predictor/internal/core/predict"
	"github.com/charleschow/nhl-predictor/internal/core/summary"
	"github.com/charleschow/nhl-predictor/internal/pipeline"
	"github.com/charleschow/nhl-predictor/internal/refresh"
)

type fakeRefresher struct {
	snap  *refresh.Snapshot
	err   error
	calls int
}

func (f *fakeRefresher) Latest() *refresh.Snapshot { return f.snap }

func (f *fakeRefresher) Refresh(context.Context, string) (*refresh.Snapshot, error) {
	f.calls++
	return f.snap, f.err
}

type fakeRuns []sqlstore.Run

func (f fakeRuns) Runs(_ context.Context, limit int) ([]sqlstore.Run, error) {
	if limit < len(f) {
		return f[:limit], nil
	}
	return f, nil
}

func snapshot() *refresh.Snapshot {
	today := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	m := matchup.Matchup{Date: today.AddDate(0, 0, 1), Season: "2024-2025", HomeTeam: "Boston Bruins", AwayTeam: "Ottawa Senators"}
	m2 := m
	m2.HomeTeam, m2.AwayTeam = "Ottawa Senators", "Boston Bruins"
	preds := []predict.Record{predict.Decide(m, 0.71, 0.6), predict.Decide(m2, 0.65, 0.6), predict.Decide(m, 0.2, 0.6)}
	return &refresh.Snapshot{
		RunID:     "run-1",
		Trigger:   refresh.TriggerStartup,
		StartedAt: today,
		Result: &pipeline.Result{
			Today: today,
			Teams: []summary.TeamSummary{{Team: "Boston Bruins", Games: 2, Wins: 1, Losses: 1, WinRate: 0.5}},
			Predictions: &predict.Result{
				Predictions:    preds,
				HighConfidence: predict.HighConfidence(preds, 0.6),
			},
			Evaluation: evaluate.Score([]evaluate.Row{{Date: today.AddDate(0, 0, -1), HomeTeam: "A", AwayTeam: "B", Predicted: 1, Probability: 0.7, Target: 1}}, 10),
		},
	}
}

func do(t *testing.T, h http.Handler, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestNoSnapshotYet(t *testing.T) {
	h := NewServer(&fakeRefresher{}, nil, nil, 2).Routes()
	for _, path := range []string{"/predictions", "/predictions/high-confidence", "/teams", "/evaluation"} {
		rec, _ := do(t, h, http.MethodGet, path)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}
	rec, body := do(t, h, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.NotContains(t, body, "last_run")
}

func TestPredictionsEndpoints(t *testing.T) {
	h := NewServer(&fakeRefresher{snap: snapshot()}, nil, nil, 2).Routes()

	rec, body := do(t, h, http.MethodGet, "/predictions")
	require.Equal(t, http.StatusOK, rec.Code)
	preds := body["predictions"].([]any)
	require.Len(t, preds, 3)
	first := preds[0].(map[string]any)
	assert.Equal(t, "2025-01-11", first["date"])
	assert.Equal(t, "Boston Bruins", first["predicted_winner"])
	assert.Equal(t, float64(1), first["prediction"])

	_, body = do(t, h, http.MethodGet, "/predictions/high-confidence?limit=1")
	high := body["predictions"].([]any)
	require.Len(t, high, 1)
	assert.Equal(t, 0.71, high[0].(map[string]any)["home_win_probability"])

	rec, _ = do(t, h, http.MethodGet, "/predictions/high-confidence?limit=zero")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	_, body = do(t, h, http.MethodGet, "/teams")
	teams := body["teams"].([]any)
	assert.Equal(t, "1:1", teams[0].(map[string]any)["record"])

	_, body = do(t, h, http.MethodGet, "/evaluation")
	ev := body["evaluation"].(map[string]any)
	assert.Equal(t, float64(1), ev["accuracy"])
	assert.Equal(t, "Correct", ev["rows"].([]any)[0].(map[string]any)["correct"])
}

func TestEvaluationUnavailable(t *testing.T) {
	snap := snapshot()
	snap.Result.Evaluation = nil
	snap.Result.EvaluationErr = evaluate.ErrInsufficientHistory
	h := NewServer(&fakeRefresher{snap: snap}, nil, nil, 2).Routes()
	rec, body := do(t, h, http.MethodGet, "/evaluation")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, body["error"], "not enough past matchups")
}

func TestRefreshRateLimited(t *testing.T) {
	f := &fakeRefresher{snap: snapshot()}
	h := NewServer(f, nil, nil, 1).Routes()

	rec, body := do(t, h, http.MethodPost, "/refresh")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "run-1", body["run_id"])
	assert.Equal(t, refresh.TriggerStartup, body["trigger"])

	rec, _ = do(t, h, http.MethodPost, "/refresh")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 1, f.calls)
}

func TestRefreshErrors(t *testing.T) {
	h := NewServer(&fakeRefresher{err: context.DeadlineExceeded}, nil, nil, 60).Routes()
	rec, _ := do(t, h, http.MethodPost, "/refresh")
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)

	h = NewServer(&fakeRefresher{err: errors.New("boom")}, nil, nil, 60).Routes()
	rec, body := do(t, h, http.MethodPost, "/refresh")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, body["error"], "boom")
}

func TestRuns(t *testing.T) {
	h := NewServer(&fakeRefresher{}, nil, nil, 2).Routes()
	rec, _ := do(t, h, http.MethodGet, "/runs")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	runs := fakeRuns{{ID: "b", StartedAt: time.Now()}, {ID: "a", StartedAt: time.Now()}}
	h = NewServer(&fakeRefresher{}, runs, nil, 2).Routes()
	rec, body := do(t, h, http.MethodGet, "/runs?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["runs"], 1)
}

func TestMethodNotAllowed(t *testing.T) {
	h := NewServer(&fakeRefresher{}, nil, nil, 2).Routes()
	rec, _ := do(t, h, http.MethodGet, "/refresh")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

type blockingRefresher struct {
	fakeRefresher
	entered chan struct{}
	release chan struct{}
}

func (b *blockingRefresher) Refresh(context.Context, string) (*refresh.Snapshot, error) {
	close(b.entered)
	<-b.release
	return b.snap, nil
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestListenAndServeDrainsInFlightRequests(t *testing.T) {
	b := &blockingRefresher{
		fakeRefresher: fakeRefresher{snap: snapshot()},
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	port := freePort(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	served := make(chan error, 1)
	go func() { served <- NewServer(b, nil, nil, 60).ListenAndServe(ctx, port) }()

	url := fmt.Sprintf("http://127.0.0.1:%d", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return true
	}, 2*time.Second, 20*time.Millisecond)

	status := make(chan int, 1)
	go func() {
		resp, err := http.Post(url+"/refresh", "application/json", nil)
		if err != nil {
			status <- 0
			return
		}
		resp.Body.Close()
		status <- resp.StatusCode
	}()
	<-b.entered

	cancel()
	select {
	case <-served:
		t.Fatal("server returned while a request was still running")
	case <-time.After(100 * time.Millisecond):
	}

	close(b.release)
	assert.Equal(t, http.StatusOK, <-status)
	assert.NoError(t, <-served)
}
