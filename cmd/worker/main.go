package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/sitetime/internal/config"
	"github.com/benvon/sitetime/internal/logger"
	"github.com/benvon/sitetime/internal/navigator"
	"github.com/benvon/sitetime/internal/queue"
	"github.com/benvon/sitetime/internal/scheduler"
	"github.com/benvon/sitetime/internal/storage"
	"github.com/benvon/sitetime/internal/telemetry"
	"github.com/benvon/sitetime/internal/tracker"
	"github.com/benvon/sitetime/internal/workers"
	"go.uber.org/zap"
)

// eventPrefetch keeps tab events strictly ordered through the single tracker
const eventPrefetch = 1

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.WorkerDebugMode || *debugFlag

	zapLogger, err := logger.New(cfg.LogFormat, debugMode, "worker")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync(zapLogger)
	}()

	if !cfg.IsQueueMode() {
		zapLogger.Fatal("worker_requires_queue_mode", zap.String("event_mode", cfg.EventMode))
	}

	zapLogger.Info("starting_worker",
		zap.Bool("debug_mode", debugMode),
		zap.String("storage_backend", cfg.StorageBackend),
		zap.Duration("flush_interval", cfg.FlushInterval),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing := telemetry.Setup(ctx, cfg.OTELEnabled, "worker", cfg.OTELEndpoint, zapLogger)
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
		}
	}()

	store, err := storage.Open(ctx, cfg.StorageBackend, cfg.DatabaseURL, cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("failed_to_open_storage", zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			zapLogger.Warn("failed_to_close_storage", zap.Error(err))
		}
	}()

	q, err := queue.Connect(ctx, cfg.RabbitMQURL, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq", zap.Error(err))
	}
	defer func() {
		if err := q.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()
	q.SetCommandTTL(cfg.CommandTTL)

	trk := tracker.New(store, store, navigator.NewQueueNavigator(q), tracker.Config{
		MinInterval:  cfg.MinInterval,
		BlockPageURL: cfg.BlockPageURL,
		WriteTimeout: cfg.StorageTimeout,
	}, zapLogger.Named("tracker"))

	sched := scheduler.New(trk, trk.AlarmName(), cfg.FlushInterval, cfg.FlushAtMidnight, zapLogger.Named("scheduler"))
	if err := sched.Start(ctx); err != nil {
		zapLogger.Fatal("failed_to_start_scheduler", zap.Error(err))
	}

	if cfg.RabbitMQPrefetch != eventPrefetch {
		zapLogger.Warn("event_prefetch_pinned",
			zap.Int("configured", cfg.RabbitMQPrefetch),
			zap.Int("used", eventPrefetch),
		)
	}

	processor := workers.NewEventProcessor(trk, zapLogger)
	done := make(chan error, 1)
	go func() {
		done <- processor.Run(ctx, q, eventPrefetch)
	}()

	zapLogger.Info("worker_started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		zapLogger.Info("worker_shutdown_signal_received")
	case err := <-done:
		zapLogger.Error("event_processor_stopped", zap.Error(err))
	}

	cancel()
	sched.Stop()

	flushCtx, flushCancel := context.WithTimeout(context.Background(), cfg.StorageTimeout)
	defer flushCancel()
	trk.Flush(flushCtx)

	zapLogger.Info("worker_stopped")
}
