package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lester-yat/POS-UMG-ARDUINO/service/bridge"
	"github.com/lester-yat/POS-UMG-ARDUINO/service/config"
	"github.com/lester-yat/POS-UMG-ARDUINO/service/db"
	"github.com/lester-yat/POS-UMG-ARDUINO/service/metrics"
	"github.com/lester-yat/POS-UMG-ARDUINO/service/nats"
	"github.com/lester-yat/POS-UMG-ARDUINO/service/serial"
	"github.com/lester-yat/POS-UMG-ARDUINO/service/server"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting terminal bridge",
		"addr", cfg.ServerAddr,
		"serial_port", cfg.SerialPort,
		"log_level", cfg.LogLevel,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database connection pool
	dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	store := db.NewStore(dbPool)

	// NATS is optional: the bridge keeps approving transactions even when
	// nobody is listening for movement events.
	var publisher nats.Publisher
	if cfg.NATSURL != "" {
		p, err := nats.NewPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.Warn("failed to connect to NATS, movement events disabled", "error", err)
		} else {
			publisher = p
			defer p.Close()
			logger.Info("connected to NATS", "url", cfg.NATSURL)
		}
	}

	m := metrics.NewMetrics(nil)

	// Serial device: the card terminal speaks newline-delimited text.
	device, err := serial.OpenPort(cfg.SerialPort, cfg.SerialBaudRate)
	if err != nil {
		logger.Error("failed to open serial port", "port", cfg.SerialPort, "error", err)
		os.Exit(1)
	}
	defer device.Close()
	logger.Info("opened serial port", "port", cfg.SerialPort, "baud", cfg.SerialBaudRate)

	processor := bridge.NewProcessor(store, publisher, m, logger)
	responder := bridge.NewResponder(device, m, logger)
	pipeline := bridge.NewPipeline(device, processor, responder, cfg.MaxLineBuffer, cfg.PendingQueueSize, m, logger)

	pipelineErrors := make(chan error, 1)
	go func() {
		pipelineErrors <- pipeline.Run(ctx)
	}()

	httpServer := server.New(cfg.ServerAddr, store, publisher, m, logger)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case err := <-pipelineErrors:
		if err != nil {
			logger.Error("pipeline error", "error", err)
			os.Exit(1)
		}
		logger.Warn("pipeline stopped, shutting down")
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Stop the pipeline first so no transaction is cut off mid-reply.
		cancel()
		if err := <-pipelineErrors; err != nil {
			logger.Error("pipeline stopped with error", "error", err)
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
