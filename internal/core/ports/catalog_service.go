// internal/core/ports/catalog_service.go
package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/ammerola/data-forge/internal/core/domain"
	"github.com/ammerola/data-forge/internal/core/table"
)

// CatalogService defines the application service port for one catalog variant.
// Mutations return *domain.PersistenceError when the durable write failed; the
// in-memory change is kept in that case.
type CatalogService interface {
	Variant() *domain.Variant
	Revision() uint64

	All() []domain.Item
	Get(id string) (domain.Item, error)
	List(q table.Query) table.Page

	Upsert(ctx context.Context, item domain.Item) error
	SubmitEdit(ctx context.Context, item domain.Item, mode EditMode) (domain.Item, error)
	Delete(ctx context.Context, ids []string) (int, error)
	DeleteSelected(ctx context.Context) (int, error)
	BatchAssign(ctx context.Context, ids []string, field string, value any) (int, error)
	BatchAssignSelected(ctx context.Context, field string, value any) (int, error)

	Selection() SelectionState
	SelectAll() SelectionState
	SelectNone() SelectionState
	Toggle(id string, selected bool) (SelectionState, error)

	View() ViewState
	SetSearch(search string) ViewState
	ClickSort(key string) ViewState
	SetPage(page int) ViewState

	ExportTargets(search string) []domain.Item
	Stats() CatalogStats
}

// EditMode states what SubmitEdit expects of the item's id
type EditMode int

const (
	// EditUpsert inserts or replaces
	EditUpsert EditMode = iota
	// EditCreate fails with domain.ErrAlreadyExists when the id is taken
	EditCreate
	// EditUpdate fails with domain.ErrNotFound when the id is absent
	EditUpdate
)

// SelectionState describes the current batch-operation target
type SelectionState struct {
	IDs               []string `json:"ids"`
	Count             int      `json:"count"`
	Total             int      `json:"total"`
	AllSelected       bool     `json:"all_selected"`
	PartiallySelected bool     `json:"partially_selected"`
}

// ViewState pairs the transient view parameters with the page they produce
type ViewState struct {
	View table.View `json:"view"`
	Page table.Page `json:"page"`
}

// CategoryCount is the number of items in one category
type CategoryCount struct {
	Category domain.Category `json:"category"`
	Count    int             `json:"count"`
}

// CategoryStock is the total stock held in one category
type CategoryStock struct {
	Category domain.Category `json:"category"`
	Stock    int             `json:"stock"`
}

// CatalogStats summarizes a catalog for charts and dashboards
type CatalogStats struct {
	Variant           string          `json:"variant"`
	TotalItems        int             `json:"total_items"`
	TotalStock        int             `json:"total_stock"`
	InventoryValue    decimal.Decimal `json:"inventory_value"`
	OutOfStock        int             `json:"out_of_stock"`
	ItemsByCategory   []CategoryCount `json:"items_by_category"`
	StockDistribution []CategoryStock `json:"stock_distribution"`
}
