package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stagekit/ontime-bridge/internal/config"
	"github.com/stagekit/ontime-bridge/internal/discovery"
	"github.com/stagekit/ontime-bridge/internal/host"
	"github.com/stagekit/ontime-bridge/internal/logging"
	_ "github.com/stagekit/ontime-bridge/internal/metrics" // Initialize metrics
	"github.com/stagekit/ontime-bridge/internal/ontime"
	"github.com/stagekit/ontime-bridge/internal/server"
)

func main() {
	// Initialize structured logging
	logging.InitLogger()

	slog.Info("starting ontime bridge")

	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Discover the device when no host is configured
	if cfg.OntimeHost == "" && cfg.DiscoveryEnabled {
		inst, err := discovery.Browse(ctx, cfg.DiscoveryTimeout)
		if err != nil {
			slog.Error("device discovery failed", "error", err)
			os.Exit(1)
		}
		cfg.OntimeHost = inst.Host
		cfg.OntimePort = inst.Port
		slog.Info("device discovered", "name", inst.Name, "host", inst.Host, "port", inst.Port)
	}

	// Connect the variable/feedback surface
	sink, err := host.NewRedisSink(cfg.RedisURL, cfg.RedisKeyPrefix)
	if err != nil {
		slog.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer sink.Close()
	slog.Info("redis connection established", "key_prefix", cfg.RedisKeyPrefix)

	client := ontime.NewClient(ontime.Config{
		Host:              cfg.OntimeHost,
		Port:              cfg.OntimePort,
		ReconnectInterval: cfg.ReconnectInterval,
		HTTPTimeout:       cfg.HTTPTimeout,
	}, sink, ontime.WithEventsRefreshed(func(events []ontime.Event) {
		slog.Info("event directory refreshed", "count", len(events))
	}))

	if err := client.Connect(ctx); err != nil {
		// Dial failures retry on the reconnect interval; only a bad
		// configuration is fatal here.
		if errors.Is(err, ontime.ErrBadConfig) {
			slog.Error("invalid device configuration", "error", err)
			os.Exit(1)
		}
		slog.Warn("initial connection failed, retrying", "error", err)
	}

	// Internal metrics/health server
	metricsSrv := server.New(cfg.MetricsAddr, map[string]server.ReadinessCheck{
		"redis": sink.Ping,
		"ontime": func(ctx context.Context) error {
			if !client.Connected() {
				return ontime.ErrNotConnected
			}
			return nil
		},
	})
	go func() {
		slog.Info("metrics server listening", "addr", cfg.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	client.Disconnect()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("metrics server shutdown failed", "error", err)
	}

	slog.Info("shutdown complete")
}
