// internal/core/ports/persistence.go
package ports

import (
	"context"

	"github.com/ammerola/data-forge/internal/core/domain"
)

// SeedPolicy decides when initial data is (re)written to an existing store
type SeedPolicy string

const (
	// SeedWhenEmpty seeds only a store holding no items
	SeedWhenEmpty SeedPolicy = "empty"
	// SeedWhenMismatched also reseeds when the stored id set differs from the initial set
	SeedWhenMismatched SeedPolicy = "mismatch"
)

// Persistence synchronizes an in-memory collection with durable storage
type Persistence interface {
	// Load returns domain.ErrNotFound when nothing is stored
	Load(ctx context.Context) ([]domain.Item, error)
	// Save replaces the stored collection with items
	Save(ctx context.Context, items []domain.Item) error
	// Seed writes the valid initial items when policy requires it and
	// reports how many were inserted
	Seed(ctx context.Context, initial []domain.Item, policy SeedPolicy) (int, error)
	Close() error
}
