// internal/core/services/catalog.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/ammerola/data-forge/internal/core/domain"
	"github.com/ammerola/data-forge/internal/core/ports"
	"github.com/ammerola/data-forge/internal/core/table"
)

// CatalogService owns the authoritative in-memory collection of one catalog
// variant together with its selection and view state. Every mutation is
// written through to persistence while the service lock is held, so durable
// writes apply in mutation order.
type CatalogService struct {
	mu        sync.Mutex
	variant   *domain.Variant
	store     ports.Persistence
	validator *EditValidator
	items     []domain.Item
	selection *table.Selection
	view      table.View
	revision  uint64
	logger    *slog.Logger
}

// Statically assert that *CatalogService implements the CatalogService interface.
var _ ports.CatalogService = (*CatalogService)(nil)

// NewCatalogService creates a catalog service. ai may be nil to skip AI validation.
func NewCatalogService(variant *domain.Variant, store ports.Persistence, ai ports.SchemaValidator, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		variant:   variant,
		store:     store,
		validator: NewEditValidator(ai, variant, logger),
		items:     []domain.Item{},
		selection: table.NewSelection(),
		view:      table.DefaultView(),
		logger: logger.With(
			slog.String("service", "catalog"),
			slog.String("variant", variant.Name)),
	}
}

// Open seeds the store and loads it into memory. When nothing is stored the
// valid initial items are used. A load failure is returned after falling back
// to the initial items, so the service stays usable.
func (s *CatalogService) Open(ctx context.Context, initial []domain.Item, policy ports.SeedPolicy) error {
	if n, err := s.store.Seed(ctx, initial, policy); err != nil {
		s.logger.ErrorContext(ctx, "error seeding store", slog.String("error", err.Error()))
	} else if n > 0 {
		s.logger.InfoContext(ctx, "seeded catalog", slog.Int("count", n))
	}

	items, err := s.store.Load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case err == nil:
		s.items = items
	case errors.Is(err, domain.ErrNotFound):
		s.items = s.validOnly(initial)
		return nil
	default:
		s.items = s.validOnly(initial)
		return fmt.Errorf("failed to load %s: %w", s.variant.Name, err)
	}

	s.logger.InfoContext(ctx, "catalog loaded", slog.Int("count", len(s.items)))
	return nil
}

// Close releases the persistence adapter
func (s *CatalogService) Close() error {
	return s.store.Close()
}

// Variant returns the catalog variant
func (s *CatalogService) Variant() *domain.Variant {
	return s.variant
}

// Revision increases on every mutation
func (s *CatalogService) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// All returns a copy of the collection in insertion order
func (s *CatalogService) All() []domain.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

// Get returns the item with id or domain.ErrNotFound
func (s *CatalogService) Get(id string) (domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return domain.Item{}, fmt.Errorf("%s %q: %w", s.variant.Singular, id, domain.ErrNotFound)
	}
	return s.items[idx], nil
}

// List computes a page of the collection without touching the view state
func (s *CatalogService) List(q table.Query) table.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return table.ComputePage(s.items, s.variant, q)
}

// Upsert replaces the item with the same id in place or appends it
func (s *CatalogService) Upsert(ctx context.Context, item domain.Item) error {
	return s.save(ctx, item, ports.EditUpsert)
}

// SubmitEdit runs the edit boundary: existence check for mode, local
// validation, AI validation, then save. Rejections leave the collection
// unchanged.
func (s *CatalogService) SubmitEdit(ctx context.Context, item domain.Item, mode ports.EditMode) (domain.Item, error) {
	item.EnsureID()

	// fail fast before the AI round trip; save checks again under the lock
	s.mu.Lock()
	err := s.checkEditLocked(item.ID, mode)
	s.mu.Unlock()
	if err != nil {
		return item, err
	}

	if err := s.variant.Validate(item); err != nil {
		return item, err
	}
	if err := s.validator.Validate(ctx, item); err != nil {
		return item, err
	}
	return item, s.save(ctx, item, mode)
}

func (s *CatalogService) save(ctx context.Context, item domain.Item, mode ports.EditMode) error {
	item.EnsureID()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkEditLocked(item.ID, mode); err != nil {
		return err
	}

	if idx := s.indexOf(item.ID); idx >= 0 {
		s.items[idx] = item
	} else {
		s.items = append(s.items, item)
	}
	s.revision++

	if err := s.persistLocked(ctx); err != nil {
		return fmt.Errorf("upsert %s %q: %w", s.variant.Singular, item.ID, err)
	}

	s.logger.InfoContext(ctx, "saved item",
		slog.String("item_id", item.ID),
		slog.String("name", item.Name))
	return nil
}

// Delete removes every item whose id is in ids; unknown ids are ignored
func (s *CatalogService) Delete(ctx context.Context, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(ctx, ids)
}

// DeleteSelected deletes the selected items
func (s *CatalogService) DeleteSelected(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(ctx, s.selection.IDs())
}

// BatchAssign sets field to value on every item whose id is in ids. value
// must already have the field's semantic type.
func (s *CatalogService) BatchAssign(ctx context.Context, ids []string, field string, value any) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batchAssignLocked(ctx, ids, field, value)
}

// BatchAssignSelected applies BatchAssign to the selection and clears it
// once the in-memory change is made
func (s *CatalogService) BatchAssignSelected(ctx context.Context, field string, value any) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.batchAssignLocked(ctx, s.selection.IDs(), field, value)
	if err != nil && !domain.IsPersistenceError(err) {
		return 0, err
	}
	s.selection.SelectNone()
	return n, err
}

// Selection returns the current selection state
func (s *CatalogService) Selection() ports.SelectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectionStateLocked()
}

// SelectAll selects every item in the collection
func (s *CatalogService) SelectAll() ports.SelectionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selection.SelectAll(domain.IDs(s.items))
	return s.selectionStateLocked()
}

// SelectNone clears the selection
func (s *CatalogService) SelectNone() ports.SelectionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selection.SelectNone()
	return s.selectionStateLocked()
}

// Toggle selects or deselects one item. Selecting an unknown id fails with
// domain.ErrNotFound.
func (s *CatalogService) Toggle(id string, selected bool) (ports.SelectionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if selected && s.indexOf(id) < 0 {
		return s.selectionStateLocked(), fmt.Errorf("%s %q: %w", s.variant.Singular, id, domain.ErrNotFound)
	}
	s.selection.Toggle(id, selected)
	return s.selectionStateLocked(), nil
}

// View returns the view state and its page
func (s *CatalogService) View() ports.ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewStateLocked()
}

// SetSearch changes the search text and returns to the first page
func (s *CatalogService) SetSearch(search string) ports.ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.view.SetSearch(search)
	return s.viewStateLocked()
}

// ClickSort sorts by key, flipping the direction on a repeated key
func (s *CatalogService) ClickSort(key string) ports.ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.variant.Field(key); ok {
		s.view.ClickSort(key)
	}
	return s.viewStateLocked()
}

// SetPage moves the view to page, clamped into range
func (s *CatalogService) SetPage(page int) ports.ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.view.SetPage(page)
	return s.viewStateLocked()
}

// ExportTargets returns the selected items among those matching search, or
// every matching item when none of them is selected
func (s *CatalogService) ExportTargets(search string) []domain.Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	filtered := table.Filter(s.items, s.variant, search)
	selected := make([]domain.Item, 0, s.selection.Len())
	for _, item := range filtered {
		if s.selection.Has(item.ID) {
			selected = append(selected, item)
		}
	}
	if len(selected) > 0 {
		return selected
	}
	return filtered
}

// Stats summarizes the collection
func (s *CatalogService) Stats() ports.CatalogStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ComputeStats(s.variant, s.items)
}

func (s *CatalogService) deleteLocked(ctx context.Context, ids []string) (int, error) {
	doomed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		doomed[id] = struct{}{}
	}

	before := len(s.items)
	s.items = slices.DeleteFunc(s.items, func(item domain.Item) bool {
		_, ok := doomed[item.ID]
		return ok
	})
	removed := before - len(s.items)
	s.selection.Remove(ids...)

	if removed == 0 {
		return 0, nil
	}
	s.revision++

	if err := s.persistLocked(ctx); err != nil {
		return removed, fmt.Errorf("delete %d %s: %w", removed, s.variant.Name, err)
	}

	s.logger.InfoContext(ctx, "deleted items", slog.Int("count", removed))
	return removed, nil
}

func (s *CatalogService) batchAssignLocked(ctx context.Context, ids []string, field string, value any) (int, error) {
	targets := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		targets[id] = struct{}{}
	}

	updated := slices.Clone(s.items)
	n := 0
	for i := range updated {
		if _, ok := targets[updated[i].ID]; !ok {
			continue
		}
		if err := s.variant.Assign(&updated[i], field, value); err != nil {
			return 0, fmt.Errorf("batch assign %s: %w", field, err)
		}
		n++
	}

	s.selection.Retain(domain.IDs(updated))
	if n == 0 {
		return 0, nil
	}

	s.items = updated
	s.revision++

	if err := s.persistLocked(ctx); err != nil {
		return n, fmt.Errorf("batch assign %s: %w", field, err)
	}

	s.logger.InfoContext(ctx, "batch updated items",
		slog.String("field", field),
		slog.Int("count", n))
	return n, nil
}

func (s *CatalogService) persistLocked(ctx context.Context) error {
	return s.store.Save(ctx, slices.Clone(s.items))
}

func (s *CatalogService) selectionStateLocked() ports.SelectionState {
	universe := domain.IDs(s.items)
	return ports.SelectionState{
		IDs:               s.selection.IDs(),
		Count:             s.selection.Len(),
		Total:             len(universe),
		AllSelected:       s.selection.IsAllSelected(universe),
		PartiallySelected: s.selection.IsPartiallySelected(universe),
	}
}

func (s *CatalogService) viewStateLocked() ports.ViewState {
	q := s.view.Query()
	matching := len(table.Filter(s.items, s.variant, q.Search))
	s.view.Clamp(table.TotalPages(matching, q.PageSize))

	page := table.ComputePage(s.items, s.variant, s.view.Query())
	return ports.ViewState{View: s.view, Page: page}
}

func (s *CatalogService) checkEditLocked(id string, mode ports.EditMode) error {
	exists := s.indexOf(id) >= 0
	switch {
	case mode == ports.EditCreate && exists:
		return fmt.Errorf("%s %q %w", s.variant.Singular, id, domain.ErrAlreadyExists)
	case mode == ports.EditUpdate && !exists:
		return fmt.Errorf("%s %q: %w", s.variant.Singular, id, domain.ErrNotFound)
	}
	return nil
}

func (s *CatalogService) indexOf(id string) int {
	return slices.IndexFunc(s.items, func(item domain.Item) bool {
		return item.ID == id
	})
}

func (s *CatalogService) validOnly(items []domain.Item) []domain.Item {
	out := make([]domain.Item, 0, len(items))
	for _, item := range items {
		if s.variant.Validate(item) == nil {
			out = append(out, item)
		}
	}
	return out
}
