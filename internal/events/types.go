package events

// RefreshStarted is published before a refresh loads the stats table.
type RefreshStarted struct {
	RunID   string `json:"run_id"`
	Trigger string `json:"trigger"` // "startup", "schedule", "api"
}

// RefreshCompleted is published once a run's outputs are available.
type RefreshCompleted struct {
	RunID          string   `json:"run_id"`
	Trigger        string   `json:"trigger"`
	Today          string   `json:"today"`
	Predictions    int      `json:"predictions"`
	HighConfidence int      `json:"high_confidence"`
	NoFutureGames  bool     `json:"no_future_games,omitempty"`
	Accuracy       *float64 `json:"accuracy,omitempty"`
	Precision      *float64 `json:"precision,omitempty"`
	UnpairedRows   int      `json:"unpaired_rows,omitempty"`
	DurationMs     int64    `json:"duration_ms"`
}

type RefreshFailed struct {
	RunID   string `json:"run_id"`
	Trigger string `json:"trigger"`
	Error   string `json:"error"`
}
