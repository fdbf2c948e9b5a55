package telemetry

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type Counter struct {
	val atomic.Int64
}

func (c *Counter) Inc()         { c.val.Add(1) }
func (c *Counter) Add(n int64)  { c.val.Add(n) }
func (c *Counter) Value() int64 { return c.val.Load() }

type Gauge struct {
	val atomic.Int64
}

func (g *Gauge) Set(v int64)  { g.val.Store(v) }
func (g *Gauge) Value() int64 { return g.val.Load() }

type LatencyTracker struct {
	mu      sync.Mutex
	samples []time.Duration
	maxKeep int
}

func NewLatencyTracker(maxKeep int) *LatencyTracker {
	return &LatencyTracker{maxKeep: maxKeep}
}

func (lt *LatencyTracker) Record(d time.Duration) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	lt.samples = append(lt.samples, d)
	if len(lt.samples) > lt.maxKeep {
		lt.samples = lt.samples[len(lt.samples)-lt.maxKeep:]
	}
}

// Since records the time elapsed from start. Use as defer lt.Since(time.Now()).
func (lt *LatencyTracker) Since(start time.Time) { lt.Record(time.Since(start)) }

func (lt *LatencyTracker) P50() time.Duration { return lt.percentile(0.50) }
func (lt *LatencyTracker) P99() time.Duration { return lt.percentile(0.99) }

func (lt *LatencyTracker) Count() int {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return len(lt.samples)
}

func (lt *LatencyTracker) percentile(p float64) time.Duration {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	if len(lt.samples) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(lt.samples))
	copy(sorted, lt.samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

// Metrics is the global metrics registry.
var Metrics = struct {
	RowsLoaded         Counter
	RowsDroppedHistory Counter
	RowsImputed        Counter
	UnpairedRows       Counter
	DuplicateRows      Counter
	MatchupsBuilt      Counter
	PredictionsScored  Counter
	RefreshRuns        Counter
	RefreshErrors      Counter
	RefreshShared      Counter // callers that received a snapshot shared with a concurrent caller
	LastRunUnix        Gauge
	PipelineLatency    *LatencyTracker
	FitLatency         *LatencyTracker
}{
	PipelineLatency: NewLatencyTracker(1000),
	FitLatency:      NewLatencyTracker(1000),
}

// Snapshot is a point-in-time copy of Metrics for health endpoints.
type Snapshot struct {
	RowsLoaded         int64   `json:"rows_loaded"`
	RowsDroppedHistory int64   `json:"rows_dropped_history"`
	RowsImputed        int64   `json:"rows_imputed"`
	UnpairedRows       int64   `json:"unpaired_rows"`
	DuplicateRows      int64   `json:"duplicate_rows"`
	MatchupsBuilt      int64   `json:"matchups_built"`
	PredictionsScored  int64   `json:"predictions_scored"`
	RefreshRuns        int64   `json:"refresh_runs"`
	RefreshErrors      int64   `json:"refresh_errors"`
	RefreshShared      int64   `json:"refresh_shared"`
	LastRunUnix        int64   `json:"last_run_unix"`
	PipelineP50Ms      float64 `json:"pipeline_p50_ms"`
	FitP50Ms           float64 `json:"fit_p50_ms"`
}

func TakeSnapshot() Snapshot {
	return Snapshot{
		RowsLoaded:         Metrics.RowsLoaded.Value(),
		RowsDroppedHistory: Metrics.RowsDroppedHistory.Value(),
		RowsImputed:        Metrics.RowsImputed.Value(),
		UnpairedRows:       Metrics.UnpairedRows.Value(),
		DuplicateRows:      Metrics.DuplicateRows.Value(),
		MatchupsBuilt:      Metrics.MatchupsBuilt.Value(),
		PredictionsScored:  Metrics.PredictionsScored.Value(),
		RefreshRuns:        Metrics.RefreshRuns.Value(),
		RefreshErrors:      Metrics.RefreshErrors.Value(),
		RefreshShared:      Metrics.RefreshShared.Value(),
		LastRunUnix:        Metrics.LastRunUnix.Value(),
		PipelineP50Ms:      float64(Metrics.PipelineLatency.P50()) / float64(time.Millisecond),
		FitP50Ms:           float64(Metrics.FitLatency.P50()) / float64(time.Millisecond),
	}
}
