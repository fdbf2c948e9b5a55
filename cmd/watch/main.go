package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/charleschow/nhl-predictor/internal/config"
	"github.com/charleschow/nhl-predictor/internal/events"
	"github.com/charleschow/nhl-predictor/internal/fanout"
	"github.com/charleschow/nhl-predictor/internal/telemetry"
)

// watch tails refresh events from a running prediction service.
func main() {
	addr := flag.String("addr", "localhost:8090", "prediction service host:port")
	flag.Parse()

	cfg := config.Load()
	telemetry.Init(telemetry.ParseLogLevel(cfg.LogLevel))

	bus := events.NewBus()
	bus.Subscribe(events.EventRefreshStarted, func(e events.Event) error {
		p := e.Payload.(events.RefreshStarted)
		telemetry.Infof("refresh %s started (%s)", p.RunID, p.Trigger)
		return nil
	})
	bus.Subscribe(events.EventRefreshCompleted, func(e events.Event) error {
		p := e.Payload.(events.RefreshCompleted)
		if p.NoFutureGames {
			telemetry.Infof("refresh %s done: no future games after %s", p.RunID, p.Today)
			return nil
		}
		if p.Trigger == fanout.TriggerResync {
			telemetry.Infof("latest run %s for %s: %d predictions, %d high confidence",
				p.RunID, p.Today, p.Predictions, p.HighConfidence)
			return nil
		}
		telemetry.Infof("refresh %s done: %d predictions, %d high confidence, %dms",
			p.RunID, p.Predictions, p.HighConfidence, p.DurationMs)
		if p.Accuracy != nil && p.Precision != nil {
			telemetry.Infof("  backtest accuracy %.2f  precision %.2f", *p.Accuracy, *p.Precision)
		}
		return nil
	})
	bus.Subscribe(events.EventRefreshFailed, func(e events.Event) error {
		p := e.Payload.(events.RefreshFailed)
		telemetry.Warnf("refresh %s failed: %s", p.RunID, p.Error)
		return nil
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	fanout.NewClient(*addr, bus).ConnectWithRetry(ctx)
}
