// Package table implements the catalog table engine: search filtering,
// stable sorting, pagination and selection tracking.
package table

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ammerola/data-forge/internal/core/domain"
)

// DefaultPageSize is the number of rows on one page
const DefaultPageSize = 10

// SortDirection orders sorted rows
type SortDirection string

// Sort directions
const (
	Ascending  SortDirection = "asc"
	Descending SortDirection = "desc"
)

// ParseSortDirection maps "desc" (any case) to Descending and anything else to Ascending
func ParseSortDirection(s string) SortDirection {
	if strings.EqualFold(strings.TrimSpace(s), string(Descending)) {
		return Descending
	}
	return Ascending
}

// Query holds the view parameters used to compute one page
type Query struct {
	Search    string        `json:"search"`
	SortKey   string        `json:"sort_key,omitempty"`
	Direction SortDirection `json:"direction"`
	Page      int           `json:"page"`
	PageSize  int           `json:"page_size"`
}

// Page is the visible slice of the filtered, sorted collection
type Page struct {
	Items         []domain.Item `json:"items"`
	Page          int           `json:"page"`
	PageSize      int           `json:"page_size"`
	TotalPages    int           `json:"total_pages"`
	FilteredCount int           `json:"filtered_count"`
}

// ComputePage filters, sorts and paginates items. It never mutates items and
// returns an empty page for an out-of-range page number.
func ComputePage(items []domain.Item, variant *domain.Variant, q Query) Page {
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	filtered := Filter(items, variant, q.Search)
	sorted := SortStable(filtered, variant, q.SortKey, q.Direction)

	return Page{
		Items:         Paginate(sorted, q.Page, pageSize),
		Page:          q.Page,
		PageSize:      pageSize,
		TotalPages:    TotalPages(len(sorted), pageSize),
		FilteredCount: len(sorted),
	}
}

// Filter returns the items where any field, rendered as text, contains the
// query case-insensitively. An empty query matches everything.
func Filter(items []domain.Item, variant *domain.Variant, query string) []domain.Item {
	out := make([]domain.Item, 0, len(items))
	if query == "" {
		return append(out, items...)
	}

	needle := strings.ToLower(query)
	for _, item := range items {
		if Matches(item, variant, needle) {
			out = append(out, item)
		}
	}
	return out
}

// Matches reports whether any descriptor field of item contains the lowercased needle
func Matches(item domain.Item, variant *domain.Variant, needle string) bool {
	for _, f := range variant.Fields {
		if strings.Contains(strings.ToLower(variant.FieldText(item, f.Name)), needle) {
			return true
		}
	}
	return false
}

// SortStable returns a copy of items ordered by key. Ties keep their input
// order in both directions. An empty or unknown key keeps the input order.
func SortStable(items []domain.Item, variant *domain.Variant, key string, dir SortDirection) []domain.Item {
	out := slices.Clone(items)
	if out == nil {
		out = []domain.Item{}
	}
	if _, ok := variant.Field(key); !ok {
		return out
	}

	slices.SortStableFunc(out, func(a, b domain.Item) int {
		c := compareValues(variant.Value(a, key), variant.Value(b, key))
		if dir == Descending {
			return -c
		}
		return c
	})
	return out
}

func compareValues(a, b any) int {
	switch av := a.(type) {
	case string:
		return strings.Compare(av, b.(string))
	case int:
		bv := b.(int)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case decimal.Decimal:
		return av.Cmp(b.(decimal.Decimal))
	}
	return 0
}

// TotalPages is ceil(count/pageSize) with a minimum of one
func TotalPages(count, pageSize int) int {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	pages := count / pageSize
	if count%pageSize != 0 {
		pages++
	}
	if pages < 1 {
		return 1
	}
	return pages
}

// Paginate returns the 1-based page of items. Pages outside the available
// range yield an empty slice.
func Paginate(items []domain.Item, page, pageSize int) []domain.Item {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	// range check before multiplying so huge page numbers cannot overflow
	if page < 1 || len(items) == 0 || page-1 > (len(items)-1)/pageSize {
		return []domain.Item{}
	}
	start := (page - 1) * pageSize
	end := start + min(pageSize, len(items)-start)
	return slices.Clone(items[start:end])
}

// ClampPage bounds page into [1, totalPages]
func ClampPage(page, totalPages int) int {
	if totalPages < 1 {
		totalPages = 1
	}
	return max(1, min(page, totalPages))
}
