// Package sqlite stores catalogs in a local single-file SQLite database.
package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite
const DriverName = "sqlite"

var schema = []string{`
CREATE TABLE IF NOT EXISTS catalog_items (
	variant     TEXT    NOT NULL,
	id          TEXT    NOT NULL,
	position    INTEGER NOT NULL,
	name        TEXT    NOT NULL,
	category    TEXT    NOT NULL,
	price       TEXT    NOT NULL,
	stock       INTEGER NOT NULL,
	description TEXT    NOT NULL DEFAULT '',
	PRIMARY KEY (variant, id)
)`,
	`CREATE INDEX IF NOT EXISTS idx_catalog_items_position ON catalog_items (variant, position)`,
}

func init() {
	sqlx.BindDriver(DriverName, sqlx.QUESTION)
}

// Config holds SQLite settings
type Config struct {
	Path        string
	BusyTimeout int
}

// Store is a SQLite database shared by the repositories of every variant.
// The database is closed when the last repository is closed.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger

	mu   sync.Mutex
	refs int
}

// Open opens (creating if needed) the database file and applies the schema
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5000
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", cfg.Path, cfg.BusyTimeout)
	if cfg.Path == ":memory:" {
		dsn = ":memory:"
	}

	db, err := sqlx.ConnectContext(ctx, DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single connection serializes writers and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)

	store := NewStore(db, logger)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	store.logger.InfoContext(ctx, "sqlite store opened", slog.String("path", cfg.Path))
	return store, nil
}

// NewStore wraps an existing connection without applying the schema
func NewStore(db *sqlx.DB, logger *slog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With(slog.String("component", "sqlite")),
	}
}

// Migrate applies the schema
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply sqlite schema: %w", err)
		}
	}
	return nil
}

// Repository returns the repository for one variant
func (s *Store) Repository(variant string) *ItemRepository {
	s.mu.Lock()
	s.refs++
	s.mu.Unlock()

	return &ItemRepository{
		db:      s.db,
		variant: variant,
		release: s.release,
		logger:  s.logger.With(slog.String("variant", variant)),
	}
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Health reports connection statistics
func (s *Store) Health(ctx context.Context) map[string]interface{} {
	stats := s.db.Stats()
	health := map[string]interface{}{
		"status":           "healthy",
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
	}
	if err := s.Ping(ctx); err != nil {
		health["status"] = "unhealthy"
		health["error"] = err.Error()
	}
	return health
}

func (s *Store) release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refs--
	if s.refs > 0 {
		return nil
	}
	s.logger.Info("closing sqlite store")
	return s.db.Close()
}
