// internal/core/services/persistence_test.go
package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/data-forge/internal/adapters/memory"
	"github.com/ammerola/data-forge/internal/core/domain"
	"github.com/ammerola/data-forge/internal/core/ports"
	"github.com/ammerola/data-forge/internal/core/services"
	"github.com/ammerola/data-forge/test/helpers"
	"github.com/ammerola/data-forge/test/mocks"
)

func TestPersistence_SeedTwiceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewItemRepository()
	p := services.NewPersistence(repo, domain.Products, helpers.TestLogger())
	initial := domain.InitialProducts()
	require.Len(t, initial, 6)

	for _, policy := range []ports.SeedPolicy{ports.SeedWhenEmpty, ports.SeedWhenMismatched} {
		t.Run(string(policy), func(t *testing.T) {
			require.NoError(t, repo.Clear(ctx))

			n, err := p.Seed(ctx, initial, policy)
			require.NoError(t, err)
			assert.Equal(t, 6, n)

			n, err = p.Seed(ctx, initial, policy)
			require.NoError(t, err)
			assert.Zero(t, n)

			items, err := p.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, domain.IDs(initial), domain.IDs(items))
		})
	}
}

func TestPersistence_SeedDropsInvalidItems(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewItemRepository()
	p := services.NewPersistence(repo, domain.Postcards, helpers.TestLogger())

	initial := helpers.CreateTestItems(4)
	initial[1].Price = decimal.Zero
	initial[3].Name = "no"

	n, err := p.Seed(ctx, initial, ports.SeedWhenMismatched)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	keys, err := repo.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{initial[0].ID, initial[2].ID}, keys)

	n, err = p.Seed(ctx, initial, ports.SeedWhenMismatched)
	require.NoError(t, err)
	assert.Zero(t, n, "invalid items must not cause endless re-seeding")
}

func TestPersistence_SeedPolicies(t *testing.T) {
	ctx := context.Background()
	initial := helpers.CreateTestItems(3)
	stale := helpers.CreateTestItem(func(i *domain.Item) { i.ID = "stale-1" })

	tests := []struct {
		name     string
		stored   []domain.Item
		policy   ports.SeedPolicy
		wantN    int
		wantKeys []string
	}{
		{
			name:     "empty_store_is_seeded",
			policy:   ports.SeedWhenEmpty,
			wantN:    3,
			wantKeys: domain.IDs(initial),
		},
		{
			name:     "non_empty_store_kept_when_empty_policy",
			stored:   []domain.Item{stale},
			policy:   ports.SeedWhenEmpty,
			wantN:    0,
			wantKeys: []string{"stale-1"},
		},
		{
			name:     "mismatched_ids_are_reseeded",
			stored:   []domain.Item{stale},
			policy:   ports.SeedWhenMismatched,
			wantN:    3,
			wantKeys: domain.IDs(initial),
		},
		{
			name:     "subset_of_ids_is_reseeded",
			stored:   initial[:2],
			policy:   ports.SeedWhenMismatched,
			wantN:    3,
			wantKeys: domain.IDs(initial),
		},
		{
			name: "matching_ids_with_edits_are_kept",
			stored: []domain.Item{
				initial[2],
				initial[0],
				helpers.CreateTestItem(func(i *domain.Item) { i.ID = initial[1].ID; i.Stock = 0 }),
			},
			policy:   ports.SeedWhenMismatched,
			wantN:    0,
			wantKeys: []string{initial[2].ID, initial[0].ID, initial[1].ID},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := memory.NewItemRepository(tt.stored...)
			p := services.NewPersistence(repo, domain.Postcards, helpers.TestLogger())

			n, err := p.Seed(ctx, initial, tt.policy)
			require.NoError(t, err)
			assert.Equal(t, tt.wantN, n)

			keys, err := repo.Keys(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.wantKeys, keys)
		})
	}
}

func TestPersistence_Load(t *testing.T) {
	ctx := context.Background()

	t.Run("empty_store_is_not_found", func(t *testing.T) {
		p := services.NewPersistence(memory.NewItemRepository(), domain.Postcards, helpers.TestLogger())
		_, err := p.Load(ctx)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("returns_items_in_order", func(t *testing.T) {
		items := helpers.CreateTestItems(5)
		p := services.NewPersistence(memory.NewItemRepository(items...), domain.Postcards, helpers.TestLogger())

		got, err := p.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.IDs(items), domain.IDs(got))
	})

	t.Run("read_failure_is_persistence_error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockItemRepository(ctrl)
		repo.EXPECT().GetAll(gomock.Any()).Return(nil, errors.New("disk unreadable"))

		p := services.NewPersistence(repo, domain.Postcards, helpers.TestLogger())
		_, err := p.Load(ctx)

		var pe *domain.PersistenceError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "load", pe.Op)
		assert.NotErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestPersistence_SaveFailures(t *testing.T) {
	ctx := context.Background()
	items := helpers.CreateTestItems(2)

	tests := []struct {
		name       string
		setupMocks func(*mocks.MockItemRepository)
		call       func(*services.Persistence) error
		wantOp     string
	}{
		{
			name: "save_write_rejected",
			setupMocks: func(m *mocks.MockItemRepository) {
				m.EXPECT().ReplaceAll(gomock.Any(), items).Return(errors.New("quota exceeded"))
			},
			call:   func(p *services.Persistence) error { return p.Save(ctx, items) },
			wantOp: "save",
		},
		{
			name: "seed_count_fails",
			setupMocks: func(m *mocks.MockItemRepository) {
				m.EXPECT().Count(gomock.Any()).Return(int64(0), errors.New("connection refused"))
			},
			call: func(p *services.Persistence) error {
				_, err := p.Seed(ctx, items, ports.SeedWhenEmpty)
				return err
			},
			wantOp: "count",
		},
		{
			name: "seed_insert_fails",
			setupMocks: func(m *mocks.MockItemRepository) {
				m.EXPECT().Count(gomock.Any()).Return(int64(0), nil)
				m.EXPECT().PutMany(gomock.Any(), items).Return(errors.New("constraint violation"))
			},
			call: func(p *services.Persistence) error {
				_, err := p.Seed(ctx, items, ports.SeedWhenEmpty)
				return err
			},
			wantOp: "seed",
		},
		{
			name: "reseed_replace_fails",
			setupMocks: func(m *mocks.MockItemRepository) {
				m.EXPECT().Count(gomock.Any()).Return(int64(1), nil)
				m.EXPECT().Keys(gomock.Any()).Return([]string{"other"}, nil)
				m.EXPECT().ReplaceAll(gomock.Any(), items).Return(errors.New("tx aborted"))
			},
			call: func(p *services.Persistence) error {
				_, err := p.Seed(ctx, items, ports.SeedWhenMismatched)
				return err
			},
			wantOp: "seed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			repo := mocks.NewMockItemRepository(ctrl)
			tt.setupMocks(repo)

			err := tt.call(services.NewPersistence(repo, domain.Postcards, helpers.TestLogger()))

			var pe *domain.PersistenceError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.wantOp, pe.Op)
		})
	}
}

func TestPersistence_Close(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockItemRepository(ctrl)
	repo.EXPECT().Close().Return(nil)

	p := services.NewPersistence(repo, domain.Postcards, helpers.TestLogger())
	assert.NoError(t, p.Close())
}
