// internal/adapters/db/item_repository.go
package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ammerola/data-forge/internal/core/domain"
	"github.com/ammerola/data-forge/internal/core/ports"
)

const itemsTable = "catalog_items"

var itemColumns = []string{"id", "name", "category", "price::text", "stock", "description"}

// ItemRepository stores one catalog variant in the shared catalog_items table.
type ItemRepository struct {
	db      *Database
	variant string
	logger  *slog.Logger
}

var _ ports.ItemRepository = (*ItemRepository)(nil)

// NewItemRepository creates a repository scoped to variant.
func NewItemRepository(db *Database, variant string, logger *slog.Logger) *ItemRepository {
	return &ItemRepository{
		db:      db,
		variant: variant,
		logger: logger.With(
			slog.String("repository", "postgres"),
			slog.String("variant", variant),
		),
	}
}

func (r *ItemRepository) GetAll(ctx context.Context) ([]domain.Item, error) {
	query, args, err := r.selectAll().ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}

	items, err := ScanMany(rows, func(row pgx.Rows) (domain.Item, error) {
		return scanItem(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan items: %w", err)
	}
	return items, nil
}

func (r *ItemRepository) Get(ctx context.Context, id string) (*domain.Item, error) {
	query, args, err := r.selectAll().Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	item, err := ScanOne(r.db.pool.QueryRow(ctx, query, args...), func(row pgx.Row) (*domain.Item, error) {
		item, err := scanItem(row)
		return &item, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find item %q: %w", id, err)
	}
	return item, nil
}

func (r *ItemRepository) PutOne(ctx context.Context, item domain.Item) error {
	query, args, err := r.upsert(item).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build upsert: %w", err)
	}

	if _, err := r.db.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save item %q: %w", item.ID, err)
	}

	r.logger.DebugContext(ctx, "item saved", slog.String("id", item.ID))
	return nil
}

// PutMany upserts items in one transaction using a pipelined batch.
func (r *ItemRepository) PutMany(ctx context.Context, items []domain.Item) error {
	if len(items) == 0 {
		return nil
	}

	return r.db.Transaction(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, item := range items {
			query, args, err := r.upsert(item).ToSql()
			if err != nil {
				return fmt.Errorf("failed to build upsert: %w", err)
			}
			batch.Queue(query, args...)
		}
		return r.sendBatch(ctx, tx, batch)
	})
}

func (r *ItemRepository) DeleteMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := psql.Delete(itemsTable).
		Where(squirrel.Eq{"variant": r.variant, "id": ids}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}

	tag, err := r.db.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete items: %w", err)
	}

	r.logger.DebugContext(ctx, "items deleted", slog.Int64("rows", tag.RowsAffected()))
	return nil
}

func (r *ItemRepository) Count(ctx context.Context) (int64, error) {
	query, args, err := psql.Select("COUNT(*)").From(itemsTable).
		Where(squirrel.Eq{"variant": r.variant}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count: %w", err)
	}

	var count int64
	if err := r.db.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return count, nil
}

func (r *ItemRepository) Keys(ctx context.Context) ([]string, error) {
	query, args, err := psql.Select("id").From(itemsTable).
		Where(squirrel.Eq{"variant": r.variant}).
		OrderBy("position ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query keys: %w", err)
	}

	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan keys: %w", err)
	}
	return keys, nil
}

func (r *ItemRepository) Clear(ctx context.Context) error {
	query, args, err := r.deleteVariant().ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}

	if _, err := r.db.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to clear items: %w", err)
	}
	return nil
}

// ReplaceAll deletes the variant's rows and inserts items with fresh
// positions in a single transaction.
func (r *ItemRepository) ReplaceAll(ctx context.Context, items []domain.Item) error {
	return r.db.Transaction(ctx, func(tx pgx.Tx) error {
		query, args, err := r.deleteVariant().ToSql()
		if err != nil {
			return fmt.Errorf("failed to build delete: %w", err)
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to clear items: %w", err)
		}

		if len(items) == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		for i, item := range items {
			query, args, err := r.insertAt(item, int64(i+1)).ToSql()
			if err != nil {
				return fmt.Errorf("failed to build insert: %w", err)
			}
			batch.Queue(query, args...)
		}
		return r.sendBatch(ctx, tx, batch)
	})
}

// Close is a no-op; the pool is shared between variants and closed by its owner.
func (r *ItemRepository) Close() error {
	return nil
}

func (r *ItemRepository) sendBatch(ctx context.Context, tx DBTX, batch *pgx.Batch) error {
	br := tx.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to write item %d: %w", i, err)
		}
	}
	return nil
}

func (r *ItemRepository) selectAll() squirrel.SelectBuilder {
	return psql.Select(itemColumns...).
		From(itemsTable).
		Where(squirrel.Eq{"variant": r.variant}).
		OrderBy("position ASC")
}

func (r *ItemRepository) deleteVariant() squirrel.DeleteBuilder {
	return psql.Delete(itemsTable).Where(squirrel.Eq{"variant": r.variant})
}

// upsert appends new ids after the current last position and updates
// existing rows in place.
func (r *ItemRepository) upsert(item domain.Item) squirrel.InsertBuilder {
	next := squirrel.Expr(
		"COALESCE((SELECT MAX(position) FROM "+itemsTable+" WHERE variant = ?), 0) + 1",
		r.variant,
	)
	return r.insert(item, next).Suffix(
		"ON CONFLICT (variant, id) DO UPDATE SET " +
			"name = EXCLUDED.name, category = EXCLUDED.category, price = EXCLUDED.price, " +
			"stock = EXCLUDED.stock, description = EXCLUDED.description, updated_at = NOW()",
	)
}

func (r *ItemRepository) insertAt(item domain.Item, position int64) squirrel.InsertBuilder {
	return r.insert(item, position)
}

func (r *ItemRepository) insert(item domain.Item, position any) squirrel.InsertBuilder {
	return psql.Insert(itemsTable).
		Columns("variant", "id", "position", "name", "category", "price", "stock", "description").
		Values(
			r.variant,
			item.ID,
			position,
			item.Name,
			string(item.Category),
			squirrel.Expr("CAST(? AS NUMERIC)", item.Price.String()),
			item.Stock,
			item.Description,
		)
}

func scanItem(row pgx.Row) (domain.Item, error) {
	var (
		item     domain.Item
		category string
		price    string
	)
	if err := row.Scan(&item.ID, &item.Name, &category, &price, &item.Stock, &item.Description); err != nil {
		return domain.Item{}, err
	}

	p, err := decimal.NewFromString(price)
	if err != nil {
		return domain.Item{}, fmt.Errorf("invalid price %q for item %q: %w", price, item.ID, err)
	}
	item.Category = domain.Category(category)
	item.Price = p
	return item, nil
}
