// internal/adapters/redis_adapter/item_store.go
package redis_a

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/redis/go-redis/v9"

	"github.com/ammerola/data-forge/internal/core/domain"
	"github.com/ammerola/data-forge/internal/core/ports"
)

// ErrTxConflict is returned when optimistic retries are exhausted.
var ErrTxConflict = errors.New("item store: too many concurrent writers")

const defaultMaxRetries = 50

// ItemStore keeps one catalog variant as a single JSON array under one key.
// Writes run in WATCH/MULTI transactions and retry on conflict.
type ItemStore struct {
	client     redis.UniversalClient
	key        string
	maxRetries int
	logger     *slog.Logger
}

var _ ports.ItemRepository = (*ItemStore)(nil)

// NewItemStore creates a store for variant under prefix:catalog:variant.
func NewItemStore(client redis.UniversalClient, prefix, variant string, logger *slog.Logger) *ItemStore {
	key := BuildKey(PrefixCatalog, variant)
	if prefix != "" {
		key = prefix + ":" + key
	}
	return &ItemStore{
		client:     client,
		key:        key,
		maxRetries: defaultMaxRetries,
		logger: logger.With(
			slog.String("repository", "redis"),
			slog.String("variant", variant),
		),
	}
}

// Key returns the Redis key holding the collection.
func (s *ItemStore) Key() string {
	return s.key
}

func (s *ItemStore) GetAll(ctx context.Context) ([]domain.Item, error) {
	return s.read(ctx, s.client)
}

func (s *ItemStore) Get(ctx context.Context, id string) (*domain.Item, error) {
	items, err := s.read(ctx, s.client)
	if err != nil {
		return nil, err
	}
	if i := indexOf(items, id); i >= 0 {
		return &items[i], nil
	}
	return nil, nil
}

func (s *ItemStore) PutOne(ctx context.Context, item domain.Item) error {
	return s.PutMany(ctx, []domain.Item{item})
}

func (s *ItemStore) PutMany(ctx context.Context, items []domain.Item) error {
	if len(items) == 0 {
		return nil
	}
	return s.update(ctx, func(current []domain.Item) []domain.Item {
		for _, item := range items {
			if i := indexOf(current, item.ID); i >= 0 {
				current[i] = item
			} else {
				current = append(current, item)
			}
		}
		return current
	})
}

func (s *ItemStore) DeleteMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.update(ctx, func(current []domain.Item) []domain.Item {
		return slices.DeleteFunc(current, func(item domain.Item) bool {
			return slices.Contains(ids, item.ID)
		})
	})
}

func (s *ItemStore) Count(ctx context.Context) (int64, error) {
	items, err := s.read(ctx, s.client)
	if err != nil {
		return 0, err
	}
	return int64(len(items)), nil
}

func (s *ItemStore) Keys(ctx context.Context) ([]string, error) {
	items, err := s.read(ctx, s.client)
	if err != nil {
		return nil, err
	}
	return domain.IDs(items), nil
}

func (s *ItemStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis del error: %w", err)
	}
	return nil
}

// ReplaceAll overwrites the document with a single SET.
func (s *ItemStore) ReplaceAll(ctx context.Context, items []domain.Item) error {
	data, err := encodeItems(items)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}
	s.logger.DebugContext(ctx, "collection replaced", slog.Int("items", len(items)))
	return nil
}

// Close is a no-op; the client is owned by the caller.
func (s *ItemStore) Close() error {
	return nil
}

func (s *ItemStore) update(ctx context.Context, fn func([]domain.Item) []domain.Item) error {
	txf := func(tx *redis.Tx) error {
		current, err := s.read(ctx, tx)
		if err != nil {
			return err
		}

		data, err := encodeItems(fn(current))
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.key, data, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err := s.client.Watch(ctx, txf, s.key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return fmt.Errorf("redis transaction error: %w", err)
		}
		s.logger.DebugContext(ctx, "optimistic lock conflict, retrying", slog.Int("attempt", attempt+1))
	}

	return ErrTxConflict
}

func (s *ItemStore) read(ctx context.Context, c redis.Cmdable) ([]domain.Item, error) {
	data, err := c.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []domain.Item{}, nil
		}
		return nil, fmt.Errorf("redis get error: %w", err)
	}

	var items []domain.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode collection %s: %w", s.key, err)
	}
	return items, nil
}

func encodeItems(items []domain.Item) ([]byte, error) {
	if items == nil {
		items = []domain.Item{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode collection: %w", err)
	}
	return data, nil
}

func indexOf(items []domain.Item, id string) int {
	return slices.IndexFunc(items, func(item domain.Item) bool { return item.ID == id })
}
