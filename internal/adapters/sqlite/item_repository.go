package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/ammerola/data-forge/internal/core/domain"
	"github.com/ammerola/data-forge/internal/core/ports"
)

const (
	selectItems = `SELECT id, name, category, price, stock, description FROM catalog_items WHERE variant = ?`

	upsertItem = `INSERT INTO catalog_items (variant, id, position, name, category, price, stock, description)
VALUES (?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM catalog_items WHERE variant = ?), ?, ?, ?, ?, ?)
ON CONFLICT (variant, id) DO UPDATE SET
	name = excluded.name,
	category = excluded.category,
	price = excluded.price,
	stock = excluded.stock,
	description = excluded.description`

	insertAt = `INSERT INTO catalog_items (variant, id, position, name, category, price, stock, description)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
)

type itemRow struct {
	ID          string          `db:"id"`
	Name        string          `db:"name"`
	Category    string          `db:"category"`
	Price       decimal.Decimal `db:"price"`
	Stock       int             `db:"stock"`
	Description string          `db:"description"`
}

func (r itemRow) toDomain() domain.Item {
	return domain.Item{
		ID:          r.ID,
		Name:        r.Name,
		Category:    domain.Category(r.Category),
		Price:       r.Price,
		Stock:       r.Stock,
		Description: r.Description,
	}
}

// ItemRepository stores one variant's items in the catalog_items table
type ItemRepository struct {
	db      *sqlx.DB
	variant string
	release func() error
	once    sync.Once
	logger  *slog.Logger
}

// Statically assert that *ItemRepository implements the ItemRepository interface.
var _ ports.ItemRepository = (*ItemRepository)(nil)

// NewItemRepository creates a repository over db that does not own it
func NewItemRepository(db *sqlx.DB, variant string, logger *slog.Logger) *ItemRepository {
	return &ItemRepository{
		db:      db,
		variant: variant,
		release: func() error { return nil },
		logger:  logger.With(slog.String("component", "sqlite"), slog.String("variant", variant)),
	}
}

func (r *ItemRepository) GetAll(ctx context.Context) ([]domain.Item, error) {
	var rows []itemRow
	if err := r.db.SelectContext(ctx, &rows, selectItems+` ORDER BY position`, r.variant); err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}

	items := make([]domain.Item, len(rows))
	for i, row := range rows {
		items[i] = row.toDomain()
	}
	return items, nil
}

func (r *ItemRepository) Get(ctx context.Context, id string) (*domain.Item, error) {
	var row itemRow
	err := r.db.GetContext(ctx, &row, selectItems+` AND id = ?`, r.variant, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item %s: %w", id, err)
	}

	item := row.toDomain()
	return &item, nil
}

func (r *ItemRepository) PutOne(ctx context.Context, item domain.Item) error {
	if _, err := r.db.ExecContext(ctx, upsertItem, r.upsertArgs(item)...); err != nil {
		return fmt.Errorf("failed to put item %s: %w", item.ID, err)
	}
	return nil
}

func (r *ItemRepository) PutMany(ctx context.Context, items []domain.Item) error {
	if len(items) == 0 {
		return nil
	}
	return r.transaction(ctx, func(tx *sqlx.Tx) error {
		for _, item := range items {
			if _, err := tx.ExecContext(ctx, upsertItem, r.upsertArgs(item)...); err != nil {
				return fmt.Errorf("failed to put item %s: %w", item.ID, err)
			}
		}
		return nil
	})
}

func (r *ItemRepository) DeleteMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := sqlx.In(`DELETE FROM catalog_items WHERE variant = ? AND id IN (?)`, r.variant, ids)
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to delete items: %w", err)
	}
	return nil
}

func (r *ItemRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM catalog_items WHERE variant = ?`, r.variant); err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return count, nil
}

func (r *ItemRepository) Keys(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM catalog_items WHERE variant = ? ORDER BY position`, r.variant); err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	return ids, nil
}

func (r *ItemRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM catalog_items WHERE variant = ?`, r.variant); err != nil {
		return fmt.Errorf("failed to clear items: %w", err)
	}
	return nil
}

func (r *ItemRepository) ReplaceAll(ctx context.Context, items []domain.Item) error {
	return r.transaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM catalog_items WHERE variant = ?`, r.variant); err != nil {
			return fmt.Errorf("failed to clear items: %w", err)
		}
		for i, item := range items {
			_, err := tx.ExecContext(ctx, insertAt,
				r.variant, item.ID, i, item.Name, string(item.Category),
				item.Price.String(), item.Stock, item.Description)
			if err != nil {
				return fmt.Errorf("failed to insert item %s: %w", item.ID, err)
			}
		}
		return nil
	})
}

// Close releases this repository's reference to the shared database
func (r *ItemRepository) Close() error {
	var err error
	r.once.Do(func() {
		err = r.release()
	})
	return err
}

func (r *ItemRepository) upsertArgs(item domain.Item) []any {
	return []any{
		r.variant, item.ID, r.variant,
		item.Name, string(item.Category), item.Price.String(), item.Stock, item.Description,
	}
}

func (r *ItemRepository) transaction(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.logger.ErrorContext(ctx, "failed to rollback transaction",
				slog.String("error", rbErr.Error()))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
