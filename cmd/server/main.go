package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/roomcast/internal/adapter/httpserver"
	"github.com/pscheid92/roomcast/internal/adapter/metrics"
	"github.com/pscheid92/roomcast/internal/adapter/websocket"
	"github.com/pscheid92/roomcast/internal/app"
	"github.com/pscheid92/roomcast/internal/eventlog"
	"github.com/pscheid92/roomcast/internal/platform/config"
	"github.com/pscheid92/roomcast/internal/platform/logging"
	"github.com/pscheid92/roomcast/internal/platform/version"
	"github.com/pscheid92/roomcast/internal/registry"
	"golang.org/x/sync/errgroup"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "version", version.Get().String(), "env", cfg.AppEnv, "port", cfg.Port)

	promRegistry := metrics.NewRegistry()
	metricSet := metrics.NewSet(promRegistry)

	connections := registry.New(registry.NewRooms(), registry.WithMetrics(metricSet.Connections))
	events := eventlog.New(cfg.EventLogCapacity,
		eventlog.WithMetrics(metricSet.EventLog),
		eventlog.WithClock(clock),
	)

	appSvc := app.NewService(connections, events, clock, app.Config{
		HeartbeatInterval:    cfg.HeartbeatInterval,
		StreamInterval:       cfg.StreamInterval,
		KeepAliveEvery:       cfg.StreamKeepAliveEvery,
		NotificationInterval: cfg.NotificationInterval,
		StockInterval:        cfg.StockInterval,
		SendTimeout:          cfg.WriteTimeout,
	}, app.WithMetrics(metricSet))

	statsTicker := app.NewStatsTicker(appSvc, clock, cfg.StatsInterval, metricSet.Connections)

	wsHandler := websocket.NewHandler(appSvc,
		websocket.NewCheckOrigin(cfg.AppURL, cfg.IsDevelopment()),
		clock,
		websocket.WithWriteTimeout(cfg.WriteTimeout),
		websocket.WithSendBuffer(cfg.SendBufferSize),
	)

	srv := httpserver.NewServer(cfg, appSvc, wsHandler,
		httpserver.WithClock(clock),
		httpserver.WithMetrics(metricSet, metrics.Handler(promRegistry)),
		httpserver.WithHealthChecks(httpserver.HealthCheck{Name: "core", Check: appSvc.Ready}),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(srv.Start)

	g.Go(func() error {
		statsTicker.Run(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		appSvc.Shutdown()
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	slog.Info("Application stopped")
}
