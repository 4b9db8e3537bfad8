package redis_a_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redis_a "github.com/ammerola/data-forge/internal/adapters/redis_adapter"
	"github.com/ammerola/data-forge/internal/core/domain"
	"github.com/ammerola/data-forge/internal/core/services"
	"github.com/ammerola/data-forge/test/helpers"
)

func newTestStore(t *testing.T, variant string) (*redis_a.ItemStore, *helpers.TestRedis) {
	t.Helper()
	r := helpers.SetupTestRedis(t)
	return redis_a.NewItemStore(r.Client, "test", variant, helpers.TestLogger()), r
}

func TestItemStore_Key(t *testing.T) {
	store, _ := newTestStore(t, "postcards")
	assert.Equal(t, "test:catalog:postcards", store.Key())
}

func TestItemStore_PutManyAndGetAll(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, "postcards")

	empty, err := store.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	items := helpers.CreateTestItems(4)
	require.NoError(t, store.PutMany(ctx, items))

	got, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, domain.IDs(items), domain.IDs(got))
	assert.True(t, items[2].Price.Equal(got[2].Price))
}

func TestItemStore_PutOneUpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, "postcards")

	items := helpers.CreateTestItems(3)
	require.NoError(t, store.PutMany(ctx, items))

	updated := items[1]
	updated.Stock = 0
	require.NoError(t, store.PutOne(ctx, updated))

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.IDs(items), keys)

	got, err := store.Get(ctx, updated.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 0, got.Stock)

	missing, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestItemStore_DeleteManyAndCount(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, "postcards")

	require.NoError(t, store.PutMany(ctx, helpers.CreateTestItems(4)))
	require.NoError(t, store.DeleteMany(ctx, []string{"item-01", "item-03"}))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"item-02", "item-04"}, keys)
}

func TestItemStore_ReplaceAllAndClear(t *testing.T) {
	ctx := context.Background()
	store, r := newTestStore(t, "postcards")

	require.NoError(t, store.PutMany(ctx, helpers.CreateTestItems(4)))
	require.NoError(t, store.ReplaceAll(ctx, []domain.Item{
		helpers.CreateTestItem(func(i *domain.Item) { i.ID = "z" }),
		helpers.CreateTestItem(func(i *domain.Item) { i.ID = "a" }),
	}))

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a"}, keys)

	require.NoError(t, store.Clear(ctx))
	assert.False(t, r.Server.Exists(store.Key()))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestItemStore_VariantsAreIsolated(t *testing.T) {
	ctx := context.Background()
	r := helpers.SetupTestRedis(t)
	postcards := redis_a.NewItemStore(r.Client, "", "postcards", helpers.TestLogger())
	products := redis_a.NewItemStore(r.Client, "", "products", helpers.TestLogger())

	require.NoError(t, postcards.PutMany(ctx, helpers.CreateTestItems(2)))

	count, err := products.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, "catalog:products", products.Key())
}

func TestItemStore_CorruptDocument(t *testing.T) {
	ctx := context.Background()
	store, r := newTestStore(t, "postcards")

	require.NoError(t, r.Server.Set(store.Key(), "{not json"))

	_, err := store.GetAll(ctx)
	assert.ErrorContains(t, err, "decode collection")

	assert.Error(t, store.PutOne(ctx, helpers.CreateTestItem()))
}

func TestItemStore_ConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, "postcards")

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			errs <- store.PutOne(ctx, helpers.CreateTestItem(func(item *domain.Item) {
				item.ID = fmt.Sprintf("w-%d", n)
			}))
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(writers), count)
}

func TestItemStore_PersistenceSeed(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, "products")
	p := services.NewPersistence(store, domain.Products, helpers.TestLogger())

	inserted, err := p.Seed(ctx, domain.InitialProducts(), "mismatch")
	require.NoError(t, err)
	assert.Equal(t, len(domain.InitialProducts()), inserted)

	inserted, err = p.Seed(ctx, domain.InitialProducts(), "mismatch")
	require.NoError(t, err)
	assert.Zero(t, inserted)

	items, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.IDs(domain.InitialProducts()), domain.IDs(items))
}
