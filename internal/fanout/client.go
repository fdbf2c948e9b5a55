package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/charleschow/nhl-predictor/internal/events"
	"github.com/charleschow/nhl-predictor/internal/telemetry"
)

const (
	minBackoff = 1 * time.Second
	maxBackoff = 30 * time.Second
)

// TriggerResync marks a RefreshCompleted rebuilt from the service's current
// snapshot after a (re)connect rather than received live.
const TriggerResync = "resync"

// Client connects to a prediction service's fanout endpoint and republishes
// received refresh events onto a local in-process bus. Runs completed while
// the client was disconnected are caught up from the HTTP snapshot.
type Client struct {
	addr       string
	bus        *events.Bus
	httpClient *http.Client

	// lastRunID is the newest completed run seen; only touched by the
	// connect goroutine.
	lastRunID string
}

func NewClient(addr string, bus *events.Bus) *Client {
	return &Client{
		addr:       addr,
		bus:        bus,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// ConnectWithRetry connects to the fanout server and reconnects on failure
// with exponential backoff. Blocks until ctx is cancelled.
func (c *Client) ConnectWithRetry(ctx context.Context) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		connStart := time.Now()
		err := c.connect(ctx)
		if ctx.Err() != nil {
			return
		}

		if time.Since(connStart) > time.Minute {
			attempt = 0
		}

		attempt++
		backoff := time.Duration(float64(minBackoff) * math.Pow(2, float64(min(attempt-1, 5))))
		if backoff > maxBackoff {
			backoff = maxBackoff
		}

		if err != nil {
			telemetry.Warnf("fanout: connection lost (attempt %d): %v, retrying in %s", attempt, err, backoff)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

func (c *Client) connect(ctx context.Context) error {
	url := fmt.Sprintf("ws://%s/ws", c.addr)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	telemetry.Infof("fanout: connected to %s", c.addr)
	if err := c.resync(ctx); err != nil {
		telemetry.Warnf("fanout: resync: %v", err)
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		evt, err := UnmarshalEvent(msg)
		if err != nil {
			telemetry.Warnf("fanout: unmarshal error: %v", err)
			continue
		}

		if rc, ok := evt.Payload.(events.RefreshCompleted); ok {
			if rc.RunID == c.lastRunID {
				continue // already caught up by resync
			}
			c.lastRunID = rc.RunID
		}
		c.bus.Publish(evt)
	}
}

type snapshotBody struct {
	RunID         string            `json:"run_id"`
	Today         string            `json:"today"`
	NoFutureGames bool              `json:"no_future_games"`
	Predictions   []json.RawMessage `json:"predictions"`
}

// resync publishes the service's latest run when it differs from the last
// run this client saw. A service with no completed run yet is not an error.
func (c *Client) resync(ctx context.Context) error {
	var all snapshotBody
	ok, err := c.getJSON(ctx, "/predictions", &all)
	if err != nil || !ok || all.RunID == "" || all.RunID == c.lastRunID {
		return err
	}
	var high snapshotBody
	if _, err := c.getJSON(ctx, "/predictions/high-confidence", &high); err != nil {
		return err
	}
	highCount := len(high.Predictions)
	if high.RunID != all.RunID {
		highCount = 0 // a refresh landed between the two reads
	}

	c.lastRunID = all.RunID
	c.bus.Publish(events.Event{
		ID:        all.RunID,
		Type:      events.EventRefreshCompleted,
		Timestamp: time.Now(),
		Payload: events.RefreshCompleted{
			RunID:          all.RunID,
			Trigger:        TriggerResync,
			Today:          all.Today,
			Predictions:    len(all.Predictions),
			HighConfidence: highCount,
			NoFutureGames:  all.NoFutureGames,
		},
	})
	return nil
}

// getJSON reports ok=false for 503, the service's answer before its first run.
func (c *Client) getJSON(ctx context.Context, path string, v any) (ok bool, err error) {
	url := fmt.Sprintf("http://%s%s", c.addr, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		return false, nil
	case resp.StatusCode != http.StatusOK:
		return false, fmt.Errorf("get %s: status=%d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}
