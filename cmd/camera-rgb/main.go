// Command camera-rgb ingests RTSP camera streams and publishes the latest
// decoded RGB888 frame of each camera on the CAMERA_RGB topic.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/config"
	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/service"
)

const shutdownTimeout = 5 * time.Second

func main() {
	// Parse command line flags
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to optional YAML configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logger
	logLevel := cfg.SlogLevel()
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting camera-rgb driver",
		"config", *configPath,
		"log_level", logLevel.String(),
	)

	svc, err := service.New(cfg)
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := svc.Run(ctx)
	if runErr != nil {
		slog.Error("service error", "error", runErr)
	} else if ctx.Err() != nil {
		slog.Info("received shutdown signal")
	} else {
		slog.Info("all streams ended")
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := svc.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
	}

	if runErr != nil {
		// Non-zero so the orchestrator restarts us; there is no in-process reconnect.
		os.Exit(1)
	}
	slog.Info("camera-rgb driver stopped")
}
