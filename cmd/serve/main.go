package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/charleschow/nhl-predictor/internal/adapters/csvstore"
	"github.com/charleschow/nhl-predictor/internal/adapters/discord"
	"github.com/charleschow/nhl-predictor/internal/adapters/sqlstore"
	"github.com/charleschow/nhl-predictor/internal/api"
	"github.com/charleschow/nhl-predictor/internal/config"
	"github.com/charleschow/nhl-predictor/internal/core/teams"
	"github.com/charleschow/nhl-predictor/internal/events"
	"github.com/charleschow/nhl-predictor/internal/fanout"
	"github.com/charleschow/nhl-predictor/internal/pipeline"
	"github.com/charleschow/nhl-predictor/internal/refresh"
	"github.com/charleschow/nhl-predictor/internal/telemetry"
)

const keepRuns = 500

func main() {
	cfg := config.Load()
	telemetry.Init(telemetry.ParseLogLevel(cfg.LogLevel))
	telemetry.Infof("Starting prediction service")

	mc, err := config.LoadModelConfig(cfg.ModelConfigPath)
	if err != nil {
		telemetry.Errorf("Failed to load model config: %v", err)
		os.Exit(1)
	}
	opts, err := pipeline.OptionsFromConfig(mc, cfg.StrictPairing)
	if err != nil {
		telemetry.Errorf("Failed to load model config: %v", err)
		os.Exit(1)
	}
	todayFn, err := cfg.TodayFunc()
	if err != nil {
		telemetry.Errorf("%v", err)
		os.Exit(1)
	}
	loc, err := cfg.Location()
	if err != nil {
		telemetry.Errorf("%v", err)
		os.Exit(1)
	}

	bus := events.NewBus()

	// ── Run store ──────────────────────────────────────────────
	store, err := sqlstore.Open(cfg.DBPath)
	if err != nil {
		telemetry.Errorf("Run store: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	// ── Refresh service ────────────────────────────────────────
	svc := refresh.New(refresh.Config{
		Source:             csvstore.FileSource{Path: cfg.StatsCSVPath, Resolver: teams.NewResolver(mc.TeamAliases)},
		Store:              store,
		Bus:                bus,
		Pipeline:           opts,
		Today:              todayFn,
		PredictionsPath:    cfg.PredictionsCSVPath,
		HighConfidencePath: cfg.HighConfidenceCSVPath,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Alerts ─────────────────────────────────────────────────
	notifier := discord.NewNotifier(cfg.DiscordWebhookURL)
	if notifier.Enabled() {
		subscribeAlerts(ctx, bus, svc, notifier, opts.ConfidenceBar)
		telemetry.Infof("Discord alerts enabled")
	}

	if _, err := svc.Refresh(ctx, refresh.TriggerStartup); err != nil {
		telemetry.Warnf("Initial refresh failed: %v", err)
	}

	// ── Schedule ───────────────────────────────────────────────
	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(cfg.RefreshSchedule, func() {
		runCtx, runCancel := context.WithTimeout(ctx, 5*time.Minute)
		defer runCancel()
		if _, err := svc.Refresh(runCtx, refresh.TriggerSchedule); err != nil {
			return
		}
		if n, err := store.Prune(runCtx, keepRuns); err == nil && n > 0 {
			telemetry.Infof("Pruned %d old runs", n)
		}
	}); err != nil {
		telemetry.Errorf("Bad REFRESH_SCHEDULE %q: %v", cfg.RefreshSchedule, err)
		os.Exit(1)
	}
	c.Start()

	// ── HTTP + fanout ──────────────────────────────────────────
	hub := fanout.NewServer(bus)
	server := api.NewServer(svc, store, hub.HandleWS, cfg.RefreshRatePerMin)
	httpDone := make(chan error, 1)
	go func() {
		httpDone <- server.ListenAndServe(ctx, cfg.HTTPPort)
	}()

	// ── Shutdown ───────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		telemetry.Infof("Shutting down prediction service...")
		cancel()
		// ListenAndServe returns once in-flight requests have drained.
		if err := <-httpDone; err != nil {
			telemetry.Warnf("HTTP shutdown: %v", err)
		}
	case err := <-httpDone:
		telemetry.Errorf("HTTP server: %v", err)
		cancel()
	}

	// Let a scheduled refresh finish before the store closes.
	<-c.Stop().Done()

	telemetry.Infof("Shutdown complete  refreshes=%d  errors=%d  predictions=%d",
		telemetry.Metrics.RefreshRuns.Value(),
		telemetry.Metrics.RefreshErrors.Value(),
		telemetry.Metrics.PredictionsScored.Value(),
	)
}

// subscribeAlerts posts each run's high-confidence picks and every failure.
// Webhook calls run off the publisher's goroutine.
func subscribeAlerts(ctx context.Context, bus *events.Bus, svc *refresh.Service, n *discord.Notifier, bar float64) {
	bus.Subscribe(events.EventRefreshCompleted, func(e events.Event) error {
		snap := svc.Latest()
		if snap == nil || snap.RunID != e.ID {
			return nil
		}
		res := snap.Result
		go func() {
			sendCtx, sendCancel := context.WithTimeout(ctx, 15*time.Second)
			defer sendCancel()
			if err := n.HighConfidencePicks(sendCtx, res.Today, res.Predictions.HighConfidence, bar, res.Evaluation); err != nil {
				telemetry.Warnf("discord: %v", err)
			}
		}()
		return nil
	})
	bus.Subscribe(events.EventRefreshFailed, func(e events.Event) error {
		p, ok := e.Payload.(events.RefreshFailed)
		if !ok {
			return nil
		}
		go func() {
			sendCtx, sendCancel := context.WithTimeout(ctx, 15*time.Second)
			defer sendCancel()
			if err := n.RefreshFailed(sendCtx, p.RunID, p.Trigger, p.Error); err != nil {
				telemetry.Warnf("discord: %v", err)
			}
		}()
		return nil
	})
}
