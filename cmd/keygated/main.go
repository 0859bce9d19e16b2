package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/filipexyz/keygate/internal/config"
	"github.com/filipexyz/keygate/internal/domain"
	"github.com/filipexyz/keygate/internal/engine"
	"github.com/filipexyz/keygate/internal/events"
	"github.com/filipexyz/keygate/internal/scope"
	"github.com/filipexyz/keygate/internal/server"
	"github.com/filipexyz/keygate/internal/store"
)

func main() {
	// Setup signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup logging
	setupLogging(cfg)

	// Scope registry
	registry := scope.DefaultRegistry()
	if cfg.ScopesFile != "" {
		registry, err = scope.LoadRegistry(cfg.ScopesFile)
		if err != nil {
			slog.Error("failed to load scope registry", "error", err)
			os.Exit(1)
		}
		slog.Info("scope registry loaded", "file", cfg.ScopesFile)
	}

	// Connect to NATS for the event stream
	var ev *events.Client
	emitter := engine.Emitter(engine.NoopEmitter{})
	if cfg.EventsEnabled {
		ev, err = events.Connect(cfg.NatsURL)
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer ev.Close()
		if err := ev.EnsureStream(ctx); err != nil {
			slog.Error("failed to setup JetStream stream", "error", err)
			os.Exit(1)
		}
		emitter = events.NewPublisher(ev.JetStream())
		slog.Info("connected to NATS", "url", cfg.NatsURL)
	} else {
		slog.Info("events disabled")
	}

	// Engine over an in-memory store and wall-clock slots
	eng := engine.New(store.New(), domain.NewWallClock(cfg.SlotInterval),
		engine.WithEmitter(emitter),
		engine.WithWindowSlots(cfg.WindowSlots),
	)

	// Create and start HTTP server
	srv := server.New(cfg, eng, ev, registry)

	go func() {
		slog.Info("starting server", "port", cfg.Port)
		if err := srv.Start(); err != nil {
			slog.Error("server error", "error", err)
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
}

func setupLogging(cfg *config.Config) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.LogLevel {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	var sink io.Writer = os.Stdout
	if cfg.LogFile != "" {
		sink = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    100, // MB
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		})
	}

	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(sink, opts)
	} else {
		handler = slog.NewJSONHandler(sink, opts)
	}

	slog.SetDefault(slog.New(handler))
}
