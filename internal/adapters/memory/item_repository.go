// Package memory provides a process-local ItemRepository used by tests and
// by deployments that do not need durable storage.
package memory

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/ammerola/data-forge/internal/core/domain"
	"github.com/ammerola/data-forge/internal/core/ports"
)

// ErrClosed is returned by every operation after Close
var ErrClosed = errors.New("memory repository is closed")

// ItemRepository keeps items in insertion order behind a mutex
type ItemRepository struct {
	mu       sync.RWMutex
	items    []domain.Item
	writeErr error
	writes   int
	closed   bool
}

// Statically assert that *ItemRepository implements the ItemRepository interface.
var _ ports.ItemRepository = (*ItemRepository)(nil)

// NewItemRepository creates a repository holding items
func NewItemRepository(items ...domain.Item) *ItemRepository {
	return &ItemRepository{items: slices.Clone(items)}
}

// FailWrites makes every subsequent write return err; nil restores writes
func (r *ItemRepository) FailWrites(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writeErr = err
}

// Writes returns the number of successful write operations
func (r *ItemRepository) Writes() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.writes
}

func (r *ItemRepository) GetAll(ctx context.Context) ([]domain.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, ErrClosed
	}
	return slices.Clone(r.items), nil
}

func (r *ItemRepository) Get(ctx context.Context, id string) (*domain.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, ErrClosed
	}
	if idx := r.indexOf(id); idx >= 0 {
		item := r.items[idx]
		return &item, nil
	}
	return nil, nil
}

func (r *ItemRepository) PutOne(ctx context.Context, item domain.Item) error {
	return r.write(func() {
		r.put(item)
	})
}

func (r *ItemRepository) PutMany(ctx context.Context, items []domain.Item) error {
	return r.write(func() {
		for _, item := range items {
			r.put(item)
		}
	})
}

func (r *ItemRepository) DeleteMany(ctx context.Context, ids []string) error {
	return r.write(func() {
		r.items = slices.DeleteFunc(r.items, func(item domain.Item) bool {
			return slices.Contains(ids, item.ID)
		})
	})
}

func (r *ItemRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return 0, ErrClosed
	}
	return int64(len(r.items)), nil
}

func (r *ItemRepository) Keys(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, ErrClosed
	}
	return domain.IDs(r.items), nil
}

func (r *ItemRepository) Clear(ctx context.Context) error {
	return r.write(func() {
		r.items = nil
	})
}

func (r *ItemRepository) ReplaceAll(ctx context.Context, items []domain.Item) error {
	return r.write(func() {
		r.items = slices.Clone(items)
	})
}

// Close marks the repository closed
func (r *ItemRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *ItemRepository) write(fn func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if r.writeErr != nil {
		return r.writeErr
	}
	fn()
	r.writes++
	return nil
}

func (r *ItemRepository) put(item domain.Item) {
	if idx := r.indexOf(item.ID); idx >= 0 {
		r.items[idx] = item
		return
	}
	r.items = append(r.items, item)
}

func (r *ItemRepository) indexOf(id string) int {
	return slices.IndexFunc(r.items, func(item domain.Item) bool {
		return item.ID == id
	})
}
