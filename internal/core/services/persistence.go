// internal/core/services/persistence.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ammerola/data-forge/internal/core/domain"
	"github.com/ammerola/data-forge/internal/core/ports"
)

// Persistence mirrors a catalog collection into an ItemRepository
type Persistence struct {
	repo    ports.ItemRepository
	variant *domain.Variant
	logger  *slog.Logger
}

// Statically assert that *Persistence implements the Persistence interface.
var _ ports.Persistence = (*Persistence)(nil)

// NewPersistence creates a persistence adapter that owns repo
func NewPersistence(repo ports.ItemRepository, variant *domain.Variant, logger *slog.Logger) *Persistence {
	return &Persistence{
		repo:    repo,
		variant: variant,
		logger: logger.With(
			slog.String("service", "persistence"),
			slog.String("variant", variant.Name)),
	}
}

// Load reads the stored collection
func (p *Persistence) Load(ctx context.Context) ([]domain.Item, error) {
	items, err := p.repo.GetAll(ctx)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load", Err: err}
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("stored %s: %w", p.variant.Name, domain.ErrNotFound)
	}
	return items, nil
}

// Save replaces the stored collection. Failures are not retried.
func (p *Persistence) Save(ctx context.Context, items []domain.Item) error {
	if err := p.repo.ReplaceAll(ctx, items); err != nil {
		p.logger.ErrorContext(ctx, "failed to save collection",
			slog.Int("count", len(items)),
			slog.String("error", err.Error()))
		return &domain.PersistenceError{Op: "save", Err: err}
	}

	p.logger.DebugContext(ctx, "saved collection", slog.Int("count", len(items)))
	return nil
}

// Seed writes the valid initial items to an empty store, or, under
// SeedWhenMismatched, to a store whose id set differs from theirs.
// Running it again against a correctly seeded store changes nothing.
func (p *Persistence) Seed(ctx context.Context, initial []domain.Item, policy ports.SeedPolicy) (int, error) {
	valid := p.validInitial(ctx, initial)

	count, err := p.repo.Count(ctx)
	if err != nil {
		return 0, &domain.PersistenceError{Op: "count", Err: err}
	}

	if count == 0 {
		if err := p.repo.PutMany(ctx, valid); err != nil {
			return 0, &domain.PersistenceError{Op: "seed", Err: err}
		}
		p.logger.InfoContext(ctx, "seeded store", slog.Int("count", len(valid)))
		return len(valid), nil
	}

	if policy != ports.SeedWhenMismatched {
		return 0, nil
	}

	keys, err := p.repo.Keys(ctx)
	if err != nil {
		return 0, &domain.PersistenceError{Op: "keys", Err: err}
	}
	if sameIDs(keys, domain.IDs(valid)) {
		return 0, nil
	}

	p.logger.InfoContext(ctx, "stored ids differ from initial data, re-seeding",
		slog.Int("stored", len(keys)),
		slog.Int("initial", len(valid)))

	if err := p.repo.ReplaceAll(ctx, valid); err != nil {
		return 0, &domain.PersistenceError{Op: "seed", Err: err}
	}
	return len(valid), nil
}

// Close releases the underlying repository
func (p *Persistence) Close() error {
	if err := p.repo.Close(); err != nil {
		return fmt.Errorf("failed to close %s repository: %w", p.variant.Name, err)
	}
	return nil
}

func (p *Persistence) validInitial(ctx context.Context, initial []domain.Item) []domain.Item {
	valid := make([]domain.Item, 0, len(initial))
	for _, item := range initial {
		if err := p.variant.Validate(item); err != nil {
			var verr *domain.ValidationError
			attrs := []any{slog.String("item_id", item.ID)}
			if errors.As(err, &verr) {
				for field, msg := range verr.Fields {
					attrs = append(attrs, slog.String(field, msg))
				}
			}
			p.logger.WarnContext(ctx, "dropping invalid initial item", attrs...)
			continue
		}
		valid = append(valid, item)
	}
	return valid
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}
