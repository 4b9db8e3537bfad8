// Package bootstrap opens the infrastructure shared by the data-forge
// binaries: variant stores, the Redis client and export storage.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ammerola/data-forge/internal/adapters/db"
	"github.com/ammerola/data-forge/internal/adapters/memory"
	redis_a "github.com/ammerola/data-forge/internal/adapters/redis_adapter"
	"github.com/ammerola/data-forge/internal/adapters/sqlite"
	"github.com/ammerola/data-forge/internal/adapters/storage"
	"github.com/ammerola/data-forge/internal/core/domain"
	"github.com/ammerola/data-forge/internal/core/ports"
	"github.com/ammerola/data-forge/internal/core/services"
	"github.com/ammerola/data-forge/internal/pkg/config"
)

const migrationRetries = 3

// Backend holds the durable stores of every configured variant
type Backend struct {
	Variants []*domain.Variant
	// Persistence is keyed by variant name
	Persistence map[string]*services.Persistence
	// Checkers are the probes exposed by the health endpoints
	Checkers map[string]ports.HealthChecker
	// Redis is nil unless a Redis-backed store or feature is enabled
	Redis *redis.Client

	closers []func()
	logger  *slog.Logger
}

// Variants resolves the configured variant names
func Variants(cfg *config.Config) ([]*domain.Variant, error) {
	if len(cfg.Store.Variants) == 0 {
		return domain.Variants, nil
	}

	variants := make([]*domain.Variant, 0, len(cfg.Store.Variants))
	for _, name := range cfg.Store.Variants {
		v, err := domain.VariantByName(name)
		if err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	return variants, nil
}

// Open connects the configured store driver and builds one persistence
// adapter per variant. needRedis forces a Redis connection even when the
// store driver does not use it.
func Open(ctx context.Context, cfg *config.Config, needRedis bool, logger *slog.Logger) (*Backend, error) {
	variants, err := Variants(cfg)
	if err != nil {
		return nil, err
	}

	b := &Backend{
		Variants:    variants,
		Persistence: make(map[string]*services.Persistence, len(variants)),
		Checkers:    make(map[string]ports.HealthChecker),
		logger:      logger,
	}

	if needRedis || cfg.Store.Driver == config.StoreDriverRedis {
		client, err := NewRedisClient(ctx, cfg)
		if err != nil {
			if cfg.Store.Driver == config.StoreDriverRedis {
				return nil, err
			}
			logger.WarnContext(ctx, "redis unavailable, continuing without redis features",
				slog.String("address", cfg.GetRedisAddress()),
				slog.Any("error", err))
		} else {
			b.Redis = client
			b.closers = append(b.closers, func() { client.Close() })
		}
	}

	repos, err := b.openRepositories(ctx, cfg)
	if err != nil {
		b.Close()
		return nil, err
	}

	for _, v := range variants {
		b.Persistence[v.Name] = services.NewPersistence(repos[v.Name], v, logger)
	}
	return b, nil
}

func (b *Backend) openRepositories(ctx context.Context, cfg *config.Config) (map[string]ports.ItemRepository, error) {
	repos := make(map[string]ports.ItemRepository, len(b.Variants))

	switch cfg.Store.Driver {
	case config.StoreDriverSQLite:
		store, err := sqlite.Open(ctx, sqlite.Config{
			Path:        cfg.Store.SQLitePath,
			BusyTimeout: int(cfg.Store.BusyTimeout / time.Millisecond),
		}, b.logger)
		if err != nil {
			return nil, err
		}
		b.Checkers["sqlite"] = store
		for _, v := range b.Variants {
			repos[v.Name] = store.Repository(v.Name)
		}

	case config.StoreDriverPostgres:
		if err := db.RunMigrationsWithRetry(ctx, &db.MigrationConfig{
			DatabaseURL: cfg.GetDatabaseURL(),
		}, b.logger, migrationRetries); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}

		database, err := db.NewDatabase(ctx, &db.Config{
			Host:               cfg.Database.Host,
			Port:               cfg.Database.Port,
			User:               cfg.Database.User,
			Password:           cfg.Database.Password,
			Database:           cfg.Database.Name,
			SSLMode:            cfg.Database.SSLMode,
			MaxConnections:     cfg.Database.MaxConnections,
			MinConnections:     cfg.Database.MinConnections,
			MaxConnLifetime:    cfg.Database.MaxConnLifetime,
			MaxConnIdleTime:    cfg.Database.MaxConnIdleTime,
			HealthCheckPeriod:  cfg.Database.HealthCheckPeriod,
			ConnectTimeout:     cfg.Database.ConnectTimeout,
			EnableQueryLogging: cfg.Database.EnableQueryLogging,
		}, b.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		b.closers = append(b.closers, database.Close)
		b.Checkers["postgres"] = database
		for _, v := range b.Variants {
			repos[v.Name] = db.NewItemRepository(database, v.Name, b.logger)
		}

	case config.StoreDriverRedis:
		for _, v := range b.Variants {
			repos[v.Name] = redis_a.NewItemStore(b.Redis, cfg.Redis.KeyPrefix, v.Name, b.logger)
		}

	case config.StoreDriverMemory:
		for _, v := range b.Variants {
			repos[v.Name] = memory.NewItemRepository()
		}

	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}

	if b.Redis != nil {
		b.Checkers["redis"] = redis_a.NewCache(b.Redis, cfg.Redis.TTL, b.logger)
	}
	return repos, nil
}

// Close releases the persistence adapters, then the shared connections
func (b *Backend) Close() {
	for name, p := range b.Persistence {
		if err := p.Close(); err != nil {
			b.logger.Error("failed to close persistence",
				slog.String("variant", name),
				slog.Any("error", err))
		}
	}
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// NewRedisClient connects and pings a Redis client built from cfg.Redis
func NewRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddress(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewExportStorage returns the configured export file store
func NewExportStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ports.ExportStorage, error) {
	switch cfg.Export.Driver {
	case config.ExportDriverS3:
		s3, err := storage.NewS3Storage(ctx, &storage.S3Config{
			Region:          cfg.AWS.Region,
			Bucket:          cfg.AWS.S3Bucket,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			Endpoint:        cfg.AWS.S3Endpoint,
			UsePathStyle:    cfg.AWS.UsePathStyle,
		}, logger)
		if err != nil {
			return nil, err
		}
		return s3, nil
	case config.ExportDriverLocal, "":
		local, err := storage.NewLocalStorage(cfg.Export.LocalDir, cfg.Export.BaseURL, logger)
		if err != nil {
			return nil, err
		}
		return local, nil
	default:
		return nil, fmt.Errorf("unsupported export driver %q", cfg.Export.Driver)
	}
}
