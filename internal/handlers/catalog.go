// internal/handlers/catalog.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ammerola/data-forge/internal/core/domain"
	"github.com/ammerola/data-forge/internal/core/ports"
	"github.com/ammerola/data-forge/internal/core/table"
	"github.com/ammerola/data-forge/internal/export"
	"github.com/ammerola/data-forge/internal/pkg/logger"
)

// APIPrefix is the versioned root of the catalog API
const APIPrefix = "/api/v1"

const (
	statsTTL   = 10 * time.Minute
	summaryTTL = time.Hour
)

// CacheInvalidator drops derived data cached for a catalog
type CacheInvalidator interface {
	InvalidateCatalog(ctx context.Context, variant string)
}

// CatalogHandler serves the item, selection, view and statistics endpoints
// of every catalog variant
type CatalogHandler struct {
	catalogs    map[string]ports.CatalogService
	cache       ports.CacheRepository
	invalidator CacheInvalidator
	summarizer  ports.Summarizer
	logger      *slog.Logger
}

// NewCatalogHandler creates a catalog handler. cache, invalidator and
// summarizer are optional.
func NewCatalogHandler(
	catalogs map[string]ports.CatalogService,
	cache ports.CacheRepository,
	invalidator CacheInvalidator,
	summarizer ports.Summarizer,
	logger *slog.Logger,
) *CatalogHandler {
	return &CatalogHandler{
		catalogs:    catalogs,
		cache:       cache,
		invalidator: invalidator,
		summarizer:  summarizer,
		logger:      logger.With(slog.String("handler", "catalog")),
	}
}

// RegisterRoutes mounts the catalog endpoints on mux
func (h *CatalogHandler) RegisterRoutes(mux *http.ServeMux) {
	base := APIPrefix + "/catalogs/{variant}"

	mux.HandleFunc("GET "+APIPrefix+"/catalogs", h.ListCatalogs)

	mux.HandleFunc("GET "+base+"/items", h.ListItems)
	mux.HandleFunc("GET "+base+"/items/{id}", h.GetItem)
	mux.HandleFunc("POST "+base+"/items", h.CreateItem)
	mux.HandleFunc("PUT "+base+"/items/{id}", h.UpdateItem)
	mux.HandleFunc("DELETE "+base+"/items/{id}", h.DeleteItem)
	mux.HandleFunc("POST "+base+"/items/batch-delete", h.BatchDelete)
	mux.HandleFunc("POST "+base+"/items/batch-update", h.BatchUpdate)

	mux.HandleFunc("GET "+base+"/selection", h.GetSelection)
	mux.HandleFunc("PUT "+base+"/selection", h.SetSelection)
	mux.HandleFunc("POST "+base+"/selection", h.ToggleSelection)

	mux.HandleFunc("GET "+base+"/view", h.GetView)
	mux.HandleFunc("PATCH "+base+"/view", h.UpdateView)

	mux.HandleFunc("GET "+base+"/stats", h.GetStats)
	mux.HandleFunc("GET "+base+"/summary", h.GetSummary)
}

// CatalogInfo describes one catalog variant
type CatalogInfo struct {
	Name       string            `json:"name"`
	Singular   string            `json:"singular"`
	Categories []domain.Category `json:"categories"`
	Fields     []string          `json:"fields"`
	Items      int               `json:"items"`
	Revision   uint64            `json:"revision"`
}

// ListCatalogs handles GET /api/v1/catalogs
func (h *CatalogHandler) ListCatalogs(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.catalogs))
	for name := range h.catalogs {
		names = append(names, name)
	}
	slices.Sort(names)

	infos := make([]CatalogInfo, 0, len(names))
	for _, name := range names {
		svc := h.catalogs[name]
		v := svc.Variant()
		infos = append(infos, CatalogInfo{
			Name:       v.Name,
			Singular:   v.Singular,
			Categories: v.Categories,
			Fields:     v.FieldNames(),
			Items:      len(svc.All()),
			Revision:   svc.Revision(),
		})
	}

	respondJSON(w, http.StatusOK, infos)
}

// ListItems handles GET /items
func (h *CatalogHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	svc, ctx, ok := h.resolve(w, r)
	if !ok {
		return
	}

	q, err := parseListQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	page := svc.List(q)
	h.logger.DebugContext(ctx, "listed items",
		slog.Int("page", page.Page),
		slog.Int("filtered", page.FilteredCount))

	respondJSON(w, http.StatusOK, page)
}

// GetItem handles GET /items/{id}
func (h *CatalogHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	svc, ctx, ok := h.resolve(w, r)
	if !ok {
		return
	}

	item, err := svc.Get(r.PathValue("id"))
	if err != nil {
		handleServiceError(ctx, w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, item)
}

// CreateItem handles POST /items
func (h *CatalogHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	svc, ctx, ok := h.resolve(w, r)
	if !ok {
		return
	}

	var item domain.Item
	if err := decodeJSON(w, r, &item); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	saved, err := svc.SubmitEdit(ctx, item, ports.EditCreate)
	h.afterMutation(ctx, svc, err)
	respondMutation(ctx, w, h.logger, http.StatusCreated, MutationResponse{Item: &saved, Affected: 1}, err)
}

// UpdateItem handles PUT /items/{id}
func (h *CatalogHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	svc, ctx, ok := h.resolve(w, r)
	if !ok {
		return
	}

	var item domain.Item
	if err := decodeJSON(w, r, &item); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	item.ID = r.PathValue("id")

	saved, err := svc.SubmitEdit(ctx, item, ports.EditUpdate)
	h.afterMutation(ctx, svc, err)
	respondMutation(ctx, w, h.logger, http.StatusOK, MutationResponse{Item: &saved, Affected: 1}, err)
}

// DeleteItem handles DELETE /items/{id}
func (h *CatalogHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	svc, ctx, ok := h.resolve(w, r)
	if !ok {
		return
	}

	id := r.PathValue("id")
	if _, err := svc.Get(id); err != nil {
		handleServiceError(ctx, w, h.logger, err)
		return
	}

	n, err := svc.Delete(ctx, []string{id})
	h.afterMutation(ctx, svc, err)
	respondMutation(ctx, w, h.logger, http.StatusOK, MutationResponse{Affected: n}, err)
}

// BatchDeleteRequest names the items to delete; without ids the selection is used
type BatchDeleteRequest struct {
	IDs []string `json:"ids"`
}

// BatchDelete handles POST /items/batch-delete
func (h *CatalogHandler) BatchDelete(w http.ResponseWriter, r *http.Request) {
	svc, ctx, ok := h.resolve(w, r)
	if !ok {
		return
	}

	var req BatchDeleteRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var (
		n   int
		err error
	)
	if req.IDs == nil {
		n, err = svc.DeleteSelected(ctx)
	} else {
		n, err = svc.Delete(ctx, req.IDs)
	}

	h.afterMutation(ctx, svc, err)
	respondMutation(ctx, w, h.logger, http.StatusOK, MutationResponse{Affected: n}, err)
}

// BatchUpdateRequest assigns one field on many items. Value is a JSON string
// or number; without ids the selection is updated and then cleared.
type BatchUpdateRequest struct {
	IDs   []string        `json:"ids"`
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

// BatchUpdate handles POST /items/batch-update
func (h *CatalogHandler) BatchUpdate(w http.ResponseWriter, r *http.Request) {
	svc, ctx, ok := h.resolve(w, r)
	if !ok {
		return
	}

	var req BatchUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Field == "" {
		respondError(w, http.StatusBadRequest, "field is required")
		return
	}

	raw, err := rawValue(req.Value)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	value, err := svc.Variant().ParseFieldValue(req.Field, raw)
	if err != nil {
		handleServiceError(ctx, w, h.logger, err)
		return
	}

	var n int
	if req.IDs == nil {
		n, err = svc.BatchAssignSelected(ctx, req.Field, value)
	} else {
		n, err = svc.BatchAssign(ctx, req.IDs, req.Field, value)
	}

	h.afterMutation(ctx, svc, err)
	respondMutation(ctx, w, h.logger, http.StatusOK, MutationResponse{Affected: n}, err)
}

// GetSelection handles GET /selection
func (h *CatalogHandler) GetSelection(w http.ResponseWriter, r *http.Request) {
	svc, _, ok := h.resolve(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, svc.Selection())
}

// SelectionModeRequest selects every item or none
type SelectionModeRequest struct {
	Mode string `json:"mode"`
}

// SetSelection handles PUT /selection
func (h *CatalogHandler) SetSelection(w http.ResponseWriter, r *http.Request) {
	svc, _, ok := h.resolve(w, r)
	if !ok {
		return
	}

	var req SelectionModeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	switch strings.ToLower(req.Mode) {
	case "all":
		respondJSON(w, http.StatusOK, svc.SelectAll())
	case "none":
		respondJSON(w, http.StatusOK, svc.SelectNone())
	default:
		respondError(w, http.StatusBadRequest, `mode must be "all" or "none"`)
	}
}

// ToggleRequest selects or deselects one item. Without selected the current
// state is flipped.
type ToggleRequest struct {
	ID       string `json:"id"`
	Selected *bool  `json:"selected"`
}

// ToggleSelection handles POST /selection
func (h *CatalogHandler) ToggleSelection(w http.ResponseWriter, r *http.Request) {
	svc, ctx, ok := h.resolve(w, r)
	if !ok {
		return
	}

	var req ToggleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ID == "" {
		respondError(w, http.StatusBadRequest, "id is required")
		return
	}

	selected := !slices.Contains(svc.Selection().IDs, req.ID)
	if req.Selected != nil {
		selected = *req.Selected
	}

	state, err := svc.Toggle(req.ID, selected)
	if err != nil {
		handleServiceError(ctx, w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

// GetView handles GET /view
func (h *CatalogHandler) GetView(w http.ResponseWriter, r *http.Request) {
	svc, _, ok := h.resolve(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, svc.View())
}

// ViewUpdateRequest carries view intents, applied as search, sort, then page
type ViewUpdateRequest struct {
	Search *string `json:"search"`
	Sort   *string `json:"sort"`
	Page   *int    `json:"page"`
}

// UpdateView handles PATCH /view
func (h *CatalogHandler) UpdateView(w http.ResponseWriter, r *http.Request) {
	svc, _, ok := h.resolve(w, r)
	if !ok {
		return
	}

	var req ViewUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Sort != nil {
		if _, known := svc.Variant().Field(*req.Sort); !known {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown sort key %q", *req.Sort))
			return
		}
	}

	state := svc.View()
	if req.Search != nil {
		state = svc.SetSearch(*req.Search)
	}
	if req.Sort != nil {
		state = svc.ClickSort(*req.Sort)
	}
	if req.Page != nil {
		state = svc.SetPage(*req.Page)
	}

	respondJSON(w, http.StatusOK, state)
}

// GetStats handles GET /stats
func (h *CatalogHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	svc, ctx, ok := h.resolve(w, r)
	if !ok {
		return
	}

	if h.cache == nil {
		respondJSON(w, http.StatusOK, svc.Stats())
		return
	}

	var stats ports.CatalogStats
	key := derivedKey("stats", svc)
	err := h.cache.GetOrSet(ctx, key, &stats, func() (interface{}, error) {
		return svc.Stats(), nil
	}, statsTTL)
	if err != nil {
		h.logger.WarnContext(ctx, "stats cache unavailable",
			slog.String("key", key),
			slog.Any("error", err))
		stats = svc.Stats()
	}

	respondJSON(w, http.StatusOK, stats)
}

// SummaryResponse is the AI generated overview of a catalog
type SummaryResponse struct {
	Variant  string `json:"variant"`
	Revision uint64 `json:"revision"`
	Summary  string `json:"summary"`
}

// GetSummary handles GET /summary
func (h *CatalogHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	svc, ctx, ok := h.resolve(w, r)
	if !ok {
		return
	}

	if h.summarizer == nil {
		respondError(w, http.StatusServiceUnavailable, "AI summary is not enabled")
		return
	}

	items := svc.All()
	if len(items) == 0 {
		respondError(w, http.StatusUnprocessableEntity, "There is no data to summarize")
		return
	}

	resp := SummaryResponse{Variant: svc.Variant().Name, Revision: svc.Revision()}
	generate := func() (interface{}, error) {
		dataset := export.ToDelimitedText(export.RecordsFor(svc.Variant(), items))
		return h.summarizer.Summarize(ctx, string(dataset))
	}

	var err error
	if h.cache != nil {
		err = h.cache.GetOrSet(ctx, derivedKey("summary", svc), &resp.Summary, generate, summaryTTL)
	} else {
		var v interface{}
		if v, err = generate(); err == nil {
			resp.Summary = v.(string)
		}
	}

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			handleServiceError(ctx, w, h.logger, err)
			return
		}
		h.logger.ErrorContext(ctx, "failed to summarize catalog", slog.Any("error", err))
		respondError(w, http.StatusBadGateway, "Failed to generate summary")
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// resolve looks up the catalog named by the {variant} path segment and scopes
// the request context to it
func (h *CatalogHandler) resolve(w http.ResponseWriter, r *http.Request) (ports.CatalogService, context.Context, bool) {
	return resolveCatalog(w, r, h.catalogs, h.logger)
}

func resolveCatalog(w http.ResponseWriter, r *http.Request, catalogs map[string]ports.CatalogService, l *slog.Logger) (ports.CatalogService, context.Context, bool) {
	name := strings.ToLower(r.PathValue("variant"))
	ctx := logger.WithVariant(r.Context(), name)

	svc, ok := catalogs[name]
	if !ok {
		handleServiceError(ctx, w, l, fmt.Errorf("%w: %q", domain.ErrUnknownVariant, name))
		return nil, ctx, false
	}
	return svc, ctx, true
}

func (h *CatalogHandler) afterMutation(ctx context.Context, svc ports.CatalogService, err error) {
	if h.invalidator == nil || (err != nil && !domain.IsPersistenceError(err)) {
		return
	}
	h.invalidator.InvalidateCatalog(ctx, svc.Variant().Name)
}

// derivedKey names cached data derived from one revision of a catalog
func derivedKey(kind string, svc ports.CatalogService) string {
	return fmt.Sprintf("%s:%s:%d", kind, svc.Variant().Name, svc.Revision())
}

func parseListQuery(r *http.Request) (table.Query, error) {
	values := r.URL.Query()
	q := table.Query{
		Search:    values.Get("search"),
		SortKey:   values.Get("sort"),
		Direction: table.ParseSortDirection(values.Get("order")),
		Page:      1,
		PageSize:  table.DefaultPageSize,
	}

	if s := values.Get("page"); s != "" {
		page, err := strconv.Atoi(s)
		if err != nil || page < 1 {
			return q, errors.New("page must be a positive integer")
		}
		q.Page = page
	}

	if s := values.Get("page_size"); s != "" {
		size, err := strconv.Atoi(s)
		if err != nil || size < 1 || size > 100 {
			return q, errors.New("page_size must be between 1 and 100")
		}
		q.PageSize = size
	}

	return q, nil
}

// rawValue unwraps a JSON string or passes a JSON number through as text
func rawValue(msg json.RawMessage) (string, error) {
	if len(msg) == 0 || string(msg) == "null" {
		return "", errors.New("value is required")
	}

	var s string
	if err := json.Unmarshal(msg, &s); err == nil {
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(msg, &n); err != nil {
		return "", errors.New("value must be a string or a number")
	}
	return n.String(), nil
}

// decodeOptionalJSON accepts an empty body as the zero value
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dest interface{}) error {
	if r.ContentLength == 0 {
		return nil
	}
	err := decodeJSON(w, r, dest)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
