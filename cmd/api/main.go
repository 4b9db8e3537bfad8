// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/ammerola/data-forge/internal/adapters/gemini"
	redis_a "github.com/ammerola/data-forge/internal/adapters/redis_adapter"
	"github.com/ammerola/data-forge/internal/bootstrap"
	"github.com/ammerola/data-forge/internal/core/ports"
	"github.com/ammerola/data-forge/internal/core/services"
	"github.com/ammerola/data-forge/internal/handlers"
	"github.com/ammerola/data-forge/internal/handlers/middleware"
	"github.com/ammerola/data-forge/internal/pkg/config"
	"github.com/ammerola/data-forge/internal/pkg/logger"
)

// Build information injected at compile time
var (
	Version   = "dev"
	BuildTime = "unknown"
	GoVersion = "unknown"
)

func main() {
	slogger := logger.SetupLogger("debug", "json")

	slogger.Info("starting data forge api",
		slog.String("version", Version),
		slog.String("build_time", BuildTime),
		slog.String("go_version", GoVersion),
	)

	cfg, err := config.Load(slogger)
	if err != nil {
		slogger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	slogger = logger.SetupLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	slogger.Info("configuration loaded",
		slog.String("environment", cfg.App.Environment),
		slog.String("store", cfg.Store.Driver),
		slog.String("log_level", cfg.App.LogLevel),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	deps, err := initializeDependencies(ctx, cfg, slogger)
	if err != nil {
		slogger.Error("failed to initialize dependencies", slog.Any("error", err))
		os.Exit(1)
	}
	defer deps.cleanup()

	server := setupHTTPServer(ctx, cfg, deps, slogger)

	serverErrors := make(chan error, 1)
	go func() {
		slogger.Info("starting HTTP server",
			slog.String("address", cfg.GetServerAddress()),
			slog.Bool("tls", cfg.Server.TLSEnabled),
		)

		if cfg.Server.TLSEnabled {
			serverErrors <- server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			serverErrors <- server.ListenAndServe()
		}
	}()

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slogger.Error("server error", slog.Any("error", err))
		}
	case <-ctx.Done():
		slogger.Info("shutdown signal received")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slogger.Error("failed to gracefully shutdown server", slog.Any("error", err))
			server.Close()
		}

		slogger.Info("server shutdown complete")
	}
}

// dependencies holds all application dependencies
type dependencies struct {
	backend        *bootstrap.Backend
	catalogs       map[string]ports.CatalogService
	asynqClient    *asynq.Client
	asynqInspector *asynq.Inspector
	catalogHandler *handlers.CatalogHandler
	exportHandler  *handlers.ExportHandler
	healthHandler  *handlers.HealthHandler
}

func (d *dependencies) cleanup() {
	if d.asynqClient != nil {
		d.asynqClient.Close()
	}
	if d.asynqInspector != nil {
		d.asynqInspector.Close()
	}
	if d.backend != nil {
		d.backend.Close()
	}
}

func initializeDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*dependencies, error) {
	deps := &dependencies{}

	needRedis := cfg.Features.Cache || cfg.Features.ExportJobs
	backend, err := bootstrap.Open(ctx, cfg, needRedis, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open stores: %w", err)
	}
	deps.backend = backend

	ai, summarizer, err := newAIClient(ctx, cfg, logger)
	if err != nil {
		deps.cleanup()
		return nil, err
	}

	// Open loads (or seeds) every variant concurrently; each service owns
	// its own persistence adapter.
	svcs := make([]*services.CatalogService, len(backend.Variants))
	g, gctx := errgroup.WithContext(ctx)
	for i, v := range backend.Variants {
		svc := services.NewCatalogService(v, backend.Persistence[v.Name], ai, logger)
		svcs[i] = svc
		g.Go(func() error {
			return svc.Open(gctx, v.InitialItems(), ports.SeedPolicy(cfg.Store.SeedPolicy))
		})
	}
	if err := g.Wait(); err != nil {
		deps.cleanup()
		return nil, fmt.Errorf("failed to open catalogs: %w", err)
	}

	deps.catalogs = make(map[string]ports.CatalogService, len(svcs))
	for _, svc := range svcs {
		deps.catalogs[svc.Variant().Name] = svc
	}

	var (
		cache       ports.CacheRepository
		invalidator handlers.CacheInvalidator
		enqueuer    *asynq.Client
		inspector   handlers.TaskInspector
		queues      handlers.QueueInspector
	)

	if backend.Redis != nil && cfg.Features.Cache {
		redisCache := redis_a.NewCache(backend.Redis, cfg.Redis.TTL, logger)
		cache = redisCache
		invalidator = redis_a.NewCacheManager(redisCache, logger)
	}

	if backend.Redis != nil && cfg.Features.ExportJobs {
		logger.Info("initializing Asynq client")

		redisOpt := asynq.RedisClientOpt{
			Addr:     cfg.Asynq.RedisAddr,
			Password: cfg.Asynq.RedisPassword,
			DB:       cfg.Asynq.RedisDB,
		}
		deps.asynqClient = asynq.NewClient(redisOpt)
		deps.asynqInspector = asynq.NewInspector(redisOpt)
		enqueuer = deps.asynqClient
		inspector = deps.asynqInspector
		queues = deps.asynqInspector
		if cache == nil {
			cache = redis_a.NewCache(backend.Redis, cfg.Redis.TTL, logger)
		}
	}

	deps.catalogHandler = handlers.NewCatalogHandler(deps.catalogs, cache, invalidator, summarizer, logger)

	exportCfg := handlers.ExportHandlerConfig{Queue: cfg.Export.Queue, SheetName: cfg.Export.SheetName}
	if enqueuer != nil {
		deps.exportHandler = handlers.NewExportHandler(deps.catalogs, enqueuer, inspector, cache, exportCfg, logger)
	} else {
		deps.exportHandler = handlers.NewExportHandler(deps.catalogs, nil, nil, cache, exportCfg, logger)
	}

	deps.healthHandler = handlers.NewHealthHandler(Version, cfg.App.Environment, backend.Checkers, queues, logger)

	logger.Info("all dependencies initialized successfully",
		slog.Int("catalogs", len(deps.catalogs)),
		slog.Bool("cache", cache != nil),
		slog.Bool("export_jobs", enqueuer != nil),
		slog.Bool("ai", ai != nil),
	)
	return deps, nil
}

// newAIClient returns nil interfaces when AI validation is disabled
func newAIClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ports.SchemaValidator, ports.Summarizer, error) {
	if !cfg.AI.Enabled {
		return nil, nil, nil
	}

	sm, err := config.NewSecretsManager(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create secrets manager: %w", err)
	}
	if err := config.ResolveAIKey(ctx, cfg, sm); err != nil {
		return nil, nil, err
	}

	client, err := gemini.NewClient(ctx, gemini.Config{
		APIKey:  cfg.AI.APIKey,
		Model:   cfg.AI.Model,
		Timeout: cfg.AI.Timeout,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize gemini client: %w", err)
	}

	if !cfg.Features.Summary {
		return client, nil, nil
	}
	return client, client, nil
}

func setupHTTPServer(ctx context.Context, cfg *config.Config, deps *dependencies, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()

	deps.healthHandler.RegisterRoutes(mux)
	deps.catalogHandler.RegisterRoutes(mux)
	deps.exportHandler.RegisterRoutes(mux)

	chain := []middleware.Middleware{
		middleware.RequestID(cfg.Security.RequestIDHeader),
		middleware.Logger(logger),
		middleware.Recovery(logger),
	}
	if cfg.Security.RateLimitRequests > 0 {
		chain = append(chain, middleware.RateLimit(ctx, cfg.Security.RateLimitRequests, cfg.Security.RateLimitDuration))
	}
	if len(cfg.Security.AllowedOrigins) > 0 {
		chain = append(chain, middleware.CORS(cfg.Security.AllowedOrigins))
	}
	if cfg.Security.SecureHeaders {
		chain = append(chain, middleware.SecureHeaders)
	}
	if cfg.Server.RequestTimeout > 0 {
		chain = append(chain, middleware.Timeout(cfg.Server.RequestTimeout))
	}
	chain = append(chain, middleware.Compression)

	return &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        middleware.Chain(mux, chain...),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
}
