// internal/core/ports/item_repository.go
package ports

import (
	"context"

	"github.com/ammerola/data-forge/internal/core/domain"
)

// ItemRepository is the durable storage capability behind one catalog variant.
// Implementations are owned exclusively by the Persistence adapter and return
// items in insertion order.
type ItemRepository interface {
	GetAll(ctx context.Context) ([]domain.Item, error)
	// Get returns nil, nil when no item has the id
	Get(ctx context.Context, id string) (*domain.Item, error)
	PutOne(ctx context.Context, item domain.Item) error
	PutMany(ctx context.Context, items []domain.Item) error
	DeleteMany(ctx context.Context, ids []string) error
	Count(ctx context.Context) (int64, error)
	Keys(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
	// ReplaceAll atomically swaps the stored collection for items
	ReplaceAll(ctx context.Context, items []domain.Item) error
	Close() error
}
