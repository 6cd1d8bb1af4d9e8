package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/sitetime/internal/config"
	"github.com/benvon/sitetime/internal/handlers"
	"github.com/benvon/sitetime/internal/logger"
	"github.com/benvon/sitetime/internal/middleware"
	"github.com/benvon/sitetime/internal/navigator"
	"github.com/benvon/sitetime/internal/queue"
	"github.com/benvon/sitetime/internal/redisstore"
	"github.com/benvon/sitetime/internal/scheduler"
	"github.com/benvon/sitetime/internal/services/timetrack"
	"github.com/benvon/sitetime/internal/storage"
	"github.com/benvon/sitetime/internal/telemetry"
	"github.com/benvon/sitetime/internal/tracker"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
)

const requestTimeout = 30 * time.Second

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.New(cfg.LogFormat, debugMode, "server")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync(zapLogger)
	}()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("storage_backend", cfg.StorageBackend),
		zap.String("event_mode", cfg.EventMode),
		zap.Duration("flush_interval", cfg.FlushInterval),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing := telemetry.Setup(ctx, cfg.OTELEnabled, "server", cfg.OTELEndpoint, zapLogger)
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
	zapLogger.Info("storage_opened", zap.String("backend", cfg.StorageBackend))

	svc := timetrack.NewService(store, zapLogger.Named("ledger"))
	outbox := navigator.NewOutbox(cfg.OutboxCapacity, cfg.CommandTTL, zapLogger.Named("outbox"))

	deps := handlers.RouterDeps{
		Service:  svc,
		Commands: outbox,
		Logger:   zapLogger,
	}

	var (
		trk   *tracker.Tracker
		sched *scheduler.Scheduler
		qc    handlers.QueueChecker
	)

	if cfg.IsQueueMode() {
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

		deps.Sink = handlers.PublishingSink{Publisher: q}
		qc = q

		go func() {
			if err := navigator.Relay(ctx, q, outbox, cfg.RabbitMQPrefetch, zapLogger.Named("relay")); err != nil {
				zapLogger.Error("command_relay_stopped", zap.Error(err))
			}
		}()
		zapLogger.Info("queue_mode_enabled", zap.Int("prefetch", cfg.RabbitMQPrefetch))
	} else {
		trk = tracker.New(store, store, outbox, tracker.Config{
			MinInterval:  cfg.MinInterval,
			BlockPageURL: cfg.BlockPageURL,
			WriteTimeout: cfg.StorageTimeout,
		}, zapLogger.Named("tracker"))

		sched = scheduler.New(trk, trk.AlarmName(), cfg.FlushInterval, cfg.FlushAtMidnight, zapLogger.Named("scheduler"))
		if err := sched.Start(ctx); err != nil {
			zapLogger.Fatal("failed_to_start_scheduler", zap.Error(err))
		}

		deps.Sink = trk
		deps.Status = trk
	}
	deps.Health = handlers.NewHealthChecker(store, qc, zapLogger)

	limiterClient, closeLimiter := rateLimitClient(store, cfg.RedisURL, zapLogger)
	defer closeLimiter()
	rateLimitMW, err := middleware.RateLimit(cfg.RateLimit, limiterClient, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limiter", zap.Error(err))
	}

	r := handlers.NewRouter(deps)

	// Route-level middleware runs only for matched routes
	if cfg.OTELEnabled {
		r.Use(otelmux.Middleware(telemetry.DefaultServiceName))
	}
	r.Use(middleware.ContentType(middleware.DefaultContentTypes, zapLogger))
	r.Use(middleware.Timeout(requestTimeout, "/api/v1/commands"))

	// Outer middleware also covers preflight requests and unmatched routes; first listed runs first
	handler := chain(r,
		middleware.SecurityHeaders(cfg.EnableHSTS),
		middleware.CORS(cfg.AllowedOrigins, zapLogger, debugMode),
		middleware.RequestID,
		middleware.Logging(zapLogger),
		middleware.ErrorHandler(zapLogger),
		rateLimitMW,
		middleware.MaxRequestSize(middleware.DefaultMaxRequestSize, zapLogger),
	)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// long-poll on /commands may hold a response for up to MaxCommandWait
		WriteTimeout:   handlers.MaxCommandWait + 15*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}
	if sched != nil {
		sched.Stop()
	}
	if trk != nil {
		// commit the in-flight interval before the store closes
		trk.Flush(shutdownCtx)
	}
	cancel()

	zapLogger.Info("server_exited")
}

// chain wraps h so the first middleware is the outermost
func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// rateLimitClient shares Redis with the limiter when one is available so
// limits hold across server replicas. A nil client selects the in-memory store.
func rateLimitClient(store storage.Store, redisURL string, log *zap.Logger) (*redis.Client, func()) {
	noop := func() {}
	if rs, ok := store.(*redisstore.Store); ok {
		return rs.Client(), noop
	}
	if redisURL == "" {
		log.Info("rate_limiter_using_memory_store")
		return nil, noop
	}
	rs, err := redisstore.New(redisURL)
	if err != nil {
		log.Warn("rate_limiter_redis_unavailable_using_memory_store", zap.Error(err))
		return nil, noop
	}
	return rs.Client(), func() {
		if err := rs.Close(); err != nil {
			log.Warn("failed_to_close_redis_connection", zap.Error(err))
		}
	}
}
