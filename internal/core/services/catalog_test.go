// internal/core/services/catalog_test.go
package services_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/data-forge/internal/adapters/memory"
	"github.com/ammerola/data-forge/internal/core/domain"
	"github.com/ammerola/data-forge/internal/core/ports"
	"github.com/ammerola/data-forge/internal/core/services"
	"github.com/ammerola/data-forge/internal/core/table"
	"github.com/ammerola/data-forge/test/helpers"
	"github.com/ammerola/data-forge/test/mocks"
)

func newCatalog(t *testing.T, ai ports.SchemaValidator, items ...domain.Item) (*services.CatalogService, *memory.ItemRepository) {
	t.Helper()

	repo := memory.NewItemRepository(items...)
	store := services.NewPersistence(repo, domain.Postcards, helpers.TestLogger())
	svc := services.NewCatalogService(domain.Postcards, store, ai, helpers.TestLogger())
	require.NoError(t, svc.Open(context.Background(), items, ports.SeedWhenEmpty))
	return svc, repo
}

func storedItems(t *testing.T, repo *memory.ItemRepository) []domain.Item {
	t.Helper()
	items, err := repo.GetAll(context.Background())
	require.NoError(t, err)
	return items
}

func TestCatalogService_OpenSeedsEmptyStore(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewItemRepository()
	store := services.NewPersistence(repo, domain.Postcards, helpers.TestLogger())
	svc := services.NewCatalogService(domain.Postcards, store, nil, helpers.TestLogger())

	require.NoError(t, svc.Open(ctx, domain.InitialPostcards(), ports.SeedWhenMismatched))

	assert.Len(t, svc.All(), 20)
	assert.Len(t, storedItems(t, repo), 20)
}

func TestCatalogService_OpenFallsBackOnLoadFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockPersistence(ctrl)
	initial := helpers.CreateTestItems(3)

	store.EXPECT().Seed(gomock.Any(), initial, ports.SeedWhenEmpty).Return(0, errors.New("seed failed"))
	store.EXPECT().Load(gomock.Any()).Return(nil, &domain.PersistenceError{Op: "load", Err: errors.New("io")})

	svc := services.NewCatalogService(domain.Postcards, store, nil, helpers.TestLogger())
	err := svc.Open(context.Background(), initial, ports.SeedWhenEmpty)

	assert.True(t, domain.IsPersistenceError(err))
	assert.Equal(t, domain.IDs(initial), domain.IDs(svc.All()))
}

func TestCatalogService_Upsert(t *testing.T) {
	ctx := context.Background()
	items := helpers.CreateTestItems(3)
	svc, repo := newCatalog(t, nil, items...)

	replaced := items[1]
	replaced.Name = "Replaced Name"
	require.NoError(t, svc.Upsert(ctx, replaced))

	added := helpers.CreateTestItem(func(i *domain.Item) { i.ID = "new-item" })
	require.NoError(t, svc.Upsert(ctx, added))

	all := svc.All()
	assert.Equal(t, []string{items[0].ID, items[1].ID, items[2].ID, "new-item"}, domain.IDs(all))
	assert.Equal(t, "Replaced Name", all[1].Name)
	assert.Equal(t, domain.IDs(all), domain.IDs(storedItems(t, repo)))
	assert.EqualValues(t, 2, svc.Revision())
}

func TestCatalogService_BatchAssignStockZero(t *testing.T) {
	ctx := context.Background()
	items := helpers.CreateTestItems(15)
	svc, repo := newCatalog(t, nil, items...)

	targets := []string{items[2].ID, items[7].ID, items[11].ID}
	n, err := svc.BatchAssign(ctx, targets, domain.FieldStock, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	stored := storedItems(t, repo)
	require.Len(t, stored, 15)

	for i, item := range svc.All() {
		isTarget := item.ID == items[2].ID || item.ID == items[7].ID || item.ID == items[11].ID
		if isTarget {
			assert.Equal(t, 0, item.Stock, item.ID)
		} else {
			assert.Equal(t, items[i].Stock, item.Stock, item.ID)
			assert.NotZero(t, item.Stock)
		}
		assert.Equal(t, item, stored[i])
	}
}

func TestCatalogService_BatchAssignRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	items := helpers.CreateTestItems(3)
	svc, repo := newCatalog(t, nil, items...)
	writes := repo.Writes()

	tests := []struct {
		name  string
		field string
		value any
		errIs error
	}{
		{name: "id_is_not_mutable", field: domain.FieldID, value: "x", errIs: domain.ErrFieldNotMutable},
		{name: "name_is_not_mutable", field: domain.FieldName, value: "New", errIs: domain.ErrFieldNotMutable},
		{name: "wrong_value_type", field: domain.FieldStock, value: "ten"},
		{name: "unknown_category", field: domain.FieldCategory, value: domain.CategoryToys},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.BatchAssign(ctx, domain.IDs(items), tt.field, tt.value)
			require.Error(t, err)
			if tt.errIs != nil {
				assert.ErrorIs(t, err, tt.errIs)
			}
			assert.Equal(t, items, svc.All())
		})
	}
	assert.Equal(t, writes, repo.Writes())
}

func TestCatalogService_BatchAssignSelectedClearsSelection(t *testing.T) {
	ctx := context.Background()
	items := helpers.CreateTestItems(4)
	svc, _ := newCatalog(t, nil, items...)

	_, err := svc.Toggle(items[0].ID, true)
	require.NoError(t, err)
	_, err = svc.Toggle(items[3].ID, true)
	require.NoError(t, err)

	n, err := svc.BatchAssignSelected(ctx, domain.FieldCategory, domain.CategoryVintage)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Zero(t, svc.Selection().Count)

	all := svc.All()
	assert.Equal(t, domain.CategoryVintage, all[0].Category)
	assert.Equal(t, domain.CategoryVintage, all[3].Category)
	assert.Equal(t, items[1].Category, all[1].Category)
}

func TestCatalogService_DeletePurgesSelection(t *testing.T) {
	ctx := context.Background()
	items := helpers.CreateTestItems(5)
	svc, repo := newCatalog(t, nil, items...)

	svc.SelectAll()
	n, err := svc.Delete(ctx, []string{items[1].ID, items[3].ID, "unknown"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	state := svc.Selection()
	assert.Equal(t, []string{items[0].ID, items[2].ID, items[4].ID}, state.IDs)
	assert.True(t, state.AllSelected)
	assert.Len(t, storedItems(t, repo), 3)

	_, err = svc.Get(items[1].ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	n, err = svc.Delete(ctx, []string{items[1].ID})
	require.NoError(t, err)
	assert.Zero(t, n, "deleting again is a no-op")
}

func TestCatalogService_DeleteSelected(t *testing.T) {
	ctx := context.Background()
	items := helpers.CreateTestItems(3)
	svc, _ := newCatalog(t, nil, items...)

	_, err := svc.Toggle(items[2].ID, true)
	require.NoError(t, err)

	n, err := svc.DeleteSelected(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, domain.IDs(items[:2]), domain.IDs(svc.All()))
	assert.Zero(t, svc.Selection().Count)
}

func TestCatalogService_PersistenceFailureKeepsMemory(t *testing.T) {
	ctx := context.Background()
	items := helpers.CreateTestItems(3)
	svc, repo := newCatalog(t, nil, items...)

	repo.FailWrites(errors.New("quota exceeded"))

	updated := items[0]
	updated.Stock = 999
	err := svc.Upsert(ctx, updated)

	var pe *domain.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "save", pe.Op)
	assert.Equal(t, 999, svc.All()[0].Stock, "in-memory update must survive")
	assert.Equal(t, items[0].Stock, storedItems(t, repo)[0].Stock)

	repo.FailWrites(nil)
	require.NoError(t, svc.Upsert(ctx, updated))
	assert.Equal(t, 999, storedItems(t, repo)[0].Stock)
}

func TestCatalogService_BatchAssignSelectedKeepsClearingOnWriteFailure(t *testing.T) {
	ctx := context.Background()
	items := helpers.CreateTestItems(2)
	svc, repo := newCatalog(t, nil, items...)

	svc.SelectAll()
	repo.FailWrites(errors.New("disk full"))

	n, err := svc.BatchAssignSelected(ctx, domain.FieldStock, 7)
	assert.True(t, domain.IsPersistenceError(err))
	assert.Equal(t, 2, n)
	assert.Zero(t, svc.Selection().Count)
	assert.Equal(t, 7, svc.All()[1].Stock)
}

func TestCatalogService_SubmitEdit(t *testing.T) {
	ctx := context.Background()
	base := helpers.CreateTestItems(2)

	tests := []struct {
		name       string
		item       domain.Item
		setupMocks func(*mocks.MockSchemaValidator)
		check      func(t *testing.T, err error)
		wantSaved  bool
	}{
		{
			name: "local_validation_error",
			item: helpers.CreateTestItem(func(i *domain.Item) { i.ID = base[0].ID; i.Price = decimal.NewFromInt(-1) }),
			setupMocks: func(m *mocks.MockSchemaValidator) {},
			check: func(t *testing.T, err error) {
				var verr *domain.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Contains(t, verr.Fields, domain.FieldPrice)
			},
		},
		{
			name: "ai_rejects_with_field_mapping",
			item: helpers.CreateTestItem(func(i *domain.Item) { i.ID = base[0].ID; i.Name = "Xyz postcard" }),
			setupMocks: func(m *mocks.MockSchemaValidator) {
				m.EXPECT().
					ValidateSchema(gomock.Any(), gomock.Any(), domain.Postcards.SchemaDescription).
					Return(&domain.AIValidationResult{
						IsValid:          false,
						ValidationErrors: []string{"The name looks like placeholder text.", "Overall the record seems fake."},
						Reasoning:        "placeholder",
					}, nil)
			},
			check: func(t *testing.T, err error) {
				var aerr *domain.AIValidationError
				require.ErrorAs(t, err, &aerr)
				assert.Equal(t, "The name looks like placeholder text.", aerr.FieldErrors[domain.FieldName])
				assert.Equal(t, []string{"Overall the record seems fake."}, aerr.FormErrors)
				assert.False(t, aerr.Unavailable())
			},
		},
		{
			name: "ai_unavailable_rejects_with_fixed_message",
			item: helpers.CreateTestItem(func(i *domain.Item) { i.ID = base[0].ID }),
			setupMocks: func(m *mocks.MockSchemaValidator) {
				m.EXPECT().
					ValidateSchema(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil, errors.New("dial tcp: connection refused"))
			},
			check: func(t *testing.T, err error) {
				var aerr *domain.AIValidationError
				require.ErrorAs(t, err, &aerr)
				assert.True(t, aerr.Unavailable())
				assert.Equal(t, []string{domain.AIUnavailableMessage}, aerr.Result.ValidationErrors)
				assert.Equal(t, domain.AIUnavailableReasoning, aerr.Result.Reasoning)
				assert.NotContains(t, err.Error(), "connection refused")
			},
		},
		{
			name: "ai_accepts_and_item_is_saved",
			item: helpers.CreateTestItem(func(i *domain.Item) { i.ID = base[1].ID; i.Name = "Accepted Name" }),
			setupMocks: func(m *mocks.MockSchemaValidator) {
				m.EXPECT().
					ValidateSchema(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(&domain.AIValidationResult{IsValid: true}, nil)
			},
			check: func(t *testing.T, err error) {
				require.NoError(t, err)
			},
			wantSaved: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			ai := mocks.NewMockSchemaValidator(ctrl)
			tt.setupMocks(ai)

			svc, repo := newCatalog(t, ai, base...)
			saved, err := svc.SubmitEdit(ctx, tt.item, ports.EditUpdate)
			tt.check(t, err)

			got, getErr := svc.Get(tt.item.ID)
			require.NoError(t, getErr)
			if tt.wantSaved {
				assert.Equal(t, tt.item.Name, got.Name)
				assert.Equal(t, saved, storedItems(t, repo)[1])
				return
			}
			assert.Equal(t, base, svc.All(), "rejected edits must not change the collection")
		})
	}
}

func TestCatalogService_SubmitEditCreatesID(t *testing.T) {
	svc, _ := newCatalog(t, nil, helpers.CreateTestItems(1)...)

	created, err := svc.SubmitEdit(context.Background(), helpers.CreateTestItem(func(i *domain.Item) { i.ID = "" }), ports.EditCreate)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	got, err := svc.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestCatalogService_SubmitEditModes(t *testing.T) {
	ctx := context.Background()
	base := helpers.CreateTestItems(2)

	tests := []struct {
		name    string
		item    domain.Item
		mode    ports.EditMode
		wantErr error
	}{
		{
			name:    "create_with_taken_id_conflicts",
			item:    helpers.CreateTestItem(func(i *domain.Item) { i.ID = base[0].ID; i.Name = "Duplicate" }),
			mode:    ports.EditCreate,
			wantErr: domain.ErrAlreadyExists,
		},
		{
			name:    "update_of_missing_id_is_not_found",
			item:    helpers.CreateTestItem(func(i *domain.Item) { i.ID = "pc-missing" }),
			mode:    ports.EditUpdate,
			wantErr: domain.ErrNotFound,
		},
		{
			name: "upsert_inserts_new_id",
			item: helpers.CreateTestItem(func(i *domain.Item) { i.ID = "pc-new" }),
			mode: ports.EditUpsert,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// no expectations: rejected modes must not reach the AI validator
			ctrl := gomock.NewController(t)
			ai := mocks.NewMockSchemaValidator(ctrl)
			if tt.wantErr == nil {
				ai.EXPECT().ValidateSchema(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(&domain.AIValidationResult{IsValid: true}, nil)
			}

			svc, repo := newCatalog(t, ai, base...)
			_, err := svc.SubmitEdit(ctx, tt.item, tt.mode)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, base, svc.All())
				assert.Equal(t, base, storedItems(t, repo))
				return
			}
			require.NoError(t, err)
			assert.Len(t, svc.All(), 3)
		})
	}
}

func TestCatalogService_UpdateLosesToConcurrentDelete(t *testing.T) {
	ctx := context.Background()
	base := helpers.CreateTestItems(2)

	ctrl := gomock.NewController(t)
	ai := mocks.NewMockSchemaValidator(ctrl)
	svc, repo := newCatalog(t, ai, base...)

	// the item is deleted while the edit waits on AI validation
	ai.EXPECT().ValidateSchema(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ map[string]any, _ string) (*domain.AIValidationResult, error) {
			n, err := svc.Delete(ctx, []string{base[0].ID})
			require.NoError(t, err)
			require.Equal(t, 1, n)
			return &domain.AIValidationResult{IsValid: true}, nil
		})

	edit := base[0]
	edit.Name = "Edited After Delete"
	_, err := svc.SubmitEdit(ctx, edit, ports.EditUpdate)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Get(base[0].ID)
	assert.ErrorIs(t, err, domain.ErrNotFound, "a deleted item is not resurrected")
	assert.Equal(t, base[1:], svc.All())
	assert.Equal(t, base[1:], storedItems(t, repo))
}

func TestCatalogService_CreateLosesToConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	base := helpers.CreateTestItems(1)
	first := helpers.CreateTestItem(func(i *domain.Item) { i.ID = "pc-race"; i.Name = "First Writer" })

	ctrl := gomock.NewController(t)
	ai := mocks.NewMockSchemaValidator(ctrl)
	svc, _ := newCatalog(t, ai, base...)

	ai.EXPECT().ValidateSchema(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ map[string]any, _ string) (*domain.AIValidationResult, error) {
			require.NoError(t, svc.Upsert(ctx, first))
			return &domain.AIValidationResult{IsValid: true}, nil
		})

	second := first
	second.Name = "Second Writer"
	_, err := svc.SubmitEdit(ctx, second, ports.EditCreate)
	require.ErrorIs(t, err, domain.ErrAlreadyExists)
	assert.Contains(t, err.Error(), `"pc-race" already exists`)

	got, err := svc.Get("pc-race")
	require.NoError(t, err)
	assert.Equal(t, "First Writer", got.Name)
}

func TestCatalogService_Selection(t *testing.T) {
	items := helpers.CreateTestItems(3)
	svc, _ := newCatalog(t, nil, items...)

	state, err := svc.Toggle(items[0].ID, true)
	require.NoError(t, err)
	assert.True(t, state.PartiallySelected)
	assert.False(t, state.AllSelected)
	assert.Equal(t, 3, state.Total)

	_, err = svc.Toggle("missing", true)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	state = svc.SelectAll()
	assert.True(t, state.AllSelected)
	assert.False(t, state.PartiallySelected)

	state = svc.SelectNone()
	assert.Zero(t, state.Count)
	assert.False(t, state.AllSelected)
}

func TestCatalogService_ViewState(t *testing.T) {
	svc, _ := newCatalog(t, nil, domain.InitialPostcards()...)

	state := svc.View()
	assert.Equal(t, domain.FieldName, state.View.SortKey)
	assert.Equal(t, 2, state.Page.TotalPages)
	assert.Equal(t, "1920s Flapper", state.Page.Items[0].Name)

	state = svc.SetPage(2)
	assert.Len(t, state.Page.Items, 10)

	state = svc.SetPage(7)
	assert.Equal(t, 2, state.View.Page, "page is clamped into range")

	state = svc.SetPage(math.MaxInt)
	assert.Equal(t, 2, state.View.Page)
	assert.Len(t, state.Page.Items, 10)
	assert.Equal(t, 2, svc.View().View.Page, "view stays usable after an oversized page")

	state = svc.SetPage(math.MinInt)
	assert.Equal(t, 1, state.View.Page)

	state = svc.SetSearch("happy")
	assert.Equal(t, 1, state.View.Page)
	assert.Equal(t, 1, state.Page.TotalPages)
	assert.Equal(t, 6, state.Page.FilteredCount)

	state = svc.ClickSort(domain.FieldName)
	assert.Equal(t, table.Descending, state.View.Direction)
	assert.Equal(t, "Happy Valentine's Day", state.Page.Items[0].Name)

	state = svc.ClickSort("unknown")
	assert.Equal(t, domain.FieldName, state.View.SortKey)
}

func TestCatalogService_ExportTargets(t *testing.T) {
	svc, _ := newCatalog(t, nil, domain.InitialPostcards()...)

	assert.Len(t, svc.ExportTargets(""), 20)
	assert.Len(t, svc.ExportTargets("holiday"), 6)

	_, err := svc.Toggle("a1b2c3d4", true)
	require.NoError(t, err)
	_, err = svc.Toggle("e5f6a7b8", true)
	require.NoError(t, err)

	assert.Equal(t, []string{"a1b2c3d4", "e5f6a7b8"}, domain.IDs(svc.ExportTargets("")))
	assert.Equal(t, []string{"e5f6a7b8"}, domain.IDs(svc.ExportTargets("holiday")))
	assert.Len(t, svc.ExportTargets("vintage"), 2, "no selected rows in the filtered set falls back to the filtered set")
}

func TestCatalogService_List(t *testing.T) {
	svc, _ := newCatalog(t, nil, domain.InitialPostcards()...)

	page := svc.List(table.Query{SortKey: domain.FieldPrice, Direction: table.Descending, Page: 1, PageSize: 5})
	assert.Len(t, page.Items, 5)
	assert.Equal(t, 4, page.TotalPages)
	assert.Equal(t, "4.99", page.Items[0].Price.String())

	assert.Equal(t, domain.FieldName, svc.View().View.SortKey, "List must not change the view")
}
