// cmd/worker/main.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	redis_a "github.com/ammerola/data-forge/internal/adapters/redis_adapter"
	"github.com/ammerola/data-forge/internal/bootstrap"
	"github.com/ammerola/data-forge/internal/pkg/config"
	"github.com/ammerola/data-forge/internal/pkg/logger"
	"github.com/ammerola/data-forge/internal/workers"
)

func main() {
	slogger := logger.SetupLogger("info", "json")

	cfg, err := config.Load(slogger)
	if err != nil {
		slogger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	slogger = logger.SetupLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	slogger.Info("starting worker",
		slog.String("environment", cfg.App.Environment),
		slog.String("store", cfg.Store.Driver),
		slog.String("redis_addr", cfg.Asynq.RedisAddr))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, slogger); err != nil {
		slogger.Error("worker failed", slog.Any("error", err))
		os.Exit(1)
	}
	slogger.Info("worker shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	backend, err := bootstrap.Open(ctx, cfg, true, logger)
	if err != nil {
		return fmt.Errorf("failed to open stores: %w", err)
	}
	defer backend.Close()

	if backend.Redis == nil {
		return fmt.Errorf("worker requires redis at %s", cfg.GetRedisAddress())
	}

	exportStorage, err := bootstrap.NewExportStorage(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize export storage: %w", err)
	}

	cache := redis_a.NewCache(backend.Redis, cfg.Redis.TTL, logger)

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Asynq.RedisAddr,
		Password: cfg.Asynq.RedisPassword,
		DB:       cfg.Asynq.RedisDB,
	}
	client := asynq.NewClient(redisOpt)
	defer client.Close()

	sources := make(map[string]workers.ItemSource, len(backend.Persistence))
	for name, p := range backend.Persistence {
		sources[name] = p
	}

	exportProcessor := workers.NewExportProcessor(sources, exportStorage, cache, client, workers.ExportProcessorConfig{
		URLExpiry: cfg.Export.URLExpiry,
		SheetName: cfg.Export.SheetName,
	}, logger)
	cleanupProcessor := workers.NewCleanupProcessor(exportStorage, cache, logger)

	mux := asynq.NewServeMux()
	mux.HandleFunc(workers.TypeExportDeliver, exportProcessor.ProcessTask)
	mux.HandleFunc(workers.TypeExportExpire, cleanupProcessor.ExpireExport)

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:     cfg.Asynq.Concurrency,
		Queues:          cfg.Asynq.Queues,
		StrictPriority:  cfg.Asynq.StrictPriority,
		ErrorHandler:    asynq.ErrorHandlerFunc(handleError(logger)),
		RetryDelayFunc:  workers.RetryDelay,
		ShutdownTimeout: cfg.Asynq.ShutdownTimeout,
		HealthCheckFunc: healthCheck(logger),
		Logger:          newAsynqLogger(logger),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(mux); err != nil {
			return fmt.Errorf("failed to run worker server: %w", err)
		}
		logger.Info("worker started successfully",
			slog.Int("concurrency", cfg.Asynq.Concurrency),
			slog.Any("queues", cfg.Asynq.Queues))

		<-gctx.Done()
		logger.Info("shutdown signal received")
		srv.Shutdown()
		return nil
	})

	return g.Wait()
}

func handleError(logger *slog.Logger) func(context.Context, *asynq.Task, error) {
	return func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		logger.ErrorContext(ctx, "task processing failed",
			slog.String("type", task.Type()),
			slog.Int("retried", retried),
			slog.Int("max_retry", maxRetry),
			slog.Any("error", err))
	}
}

func healthCheck(logger *slog.Logger) func(error) {
	return func(err error) {
		if err != nil {
			logger.Error("worker health check failed", slog.Any("error", err))
		}
	}
}

// asynqLogger adapts slog for Asynq
type asynqLogger struct {
	logger *slog.Logger
}

func newAsynqLogger(logger *slog.Logger) *asynqLogger {
	return &asynqLogger{
		logger: logger.With(slog.String("component", "asynq")),
	}
}

func (l *asynqLogger) Debug(args ...interface{}) {
	l.logger.Debug(fmt.Sprint(args...))
}

func (l *asynqLogger) Info(args ...interface{}) {
	l.logger.Info(fmt.Sprint(args...))
}

func (l *asynqLogger) Warn(args ...interface{}) {
	l.logger.Warn(fmt.Sprint(args...))
}

func (l *asynqLogger) Error(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
}

func (l *asynqLogger) Fatal(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
	os.Exit(1)
}
