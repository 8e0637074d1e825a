package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skylink-io/droneview/internal/config"
	"github.com/skylink-io/droneview/internal/drone"
	"github.com/skylink-io/droneview/internal/httpapi"
	"github.com/skylink-io/droneview/internal/logging"
	"github.com/skylink-io/droneview/internal/session"
	"github.com/skylink-io/droneview/internal/telemetry"
	"github.com/skylink-io/droneview/internal/video"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logging.New(0, "", 0).Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.SlogLevel(), cfg.LogFile, cfg.LogMaxSizeMB)

	factory := func(renderer video.Renderer, onStatus func(session.Status), onMessage func(string)) *session.Session {
		transport := drone.NewWSTransport(cfg.DroneWSURL, drone.RetryConfig{
			Attempts: cfg.ReconnectAttempts,
			Delay:    cfg.ReconnectDelay,
		}, logger)
		return session.New(session.Config{
			Transport:        transport,
			Telemetry:        telemetry.NewHTTPClient(cfg.DroneStatusURL, cfg.PollInterval),
			Renderer:         renderer,
			Logger:           logger,
			PollPeriod:       cfg.PollInterval,
			Debounce:         cfg.ResizeDebounce,
			RestartDelay:     cfg.RestartDelay,
			FrameRate:        cfg.FrameRate,
			LogCapacity:      cfg.LogCapacity,
			OnStatus:         onStatus,
			OnServiceMessage: onMessage,
		})
	}

	api := httpapi.New(factory, logger)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("server starting", "addr", httpServer.Addr, "drone", cfg.DroneWSURL)
	if err := httpapi.RunServer(ctx, httpServer, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server terminated with error", "err", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
