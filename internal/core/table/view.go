package table

import "github.com/ammerola/data-forge/internal/core/domain"

// View is the transient sort, filter and page state of one catalog table
type View struct {
	Search    string        `json:"search"`
	SortKey   string        `json:"sort_key"`
	Direction SortDirection `json:"direction"`
	Page      int           `json:"page"`
}

// DefaultView sorts by name ascending on the first page
func DefaultView() View {
	return View{SortKey: domain.FieldName, Direction: Ascending, Page: 1}
}

// SetSearch changes the search text and returns to the first page
func (v *View) SetSearch(search string) {
	v.Search = search
	v.Page = 1
}

// ClickSort flips the direction when key is already the sort key, otherwise
// sorts ascending by key
func (v *View) ClickSort(key string) {
	if v.SortKey == key {
		if v.Direction == Ascending {
			v.Direction = Descending
		} else {
			v.Direction = Ascending
		}
		return
	}
	v.SortKey = key
	v.Direction = Ascending
}

// SetPage moves to a page; callers clamp afterwards
func (v *View) SetPage(page int) {
	v.Page = page
}

// Clamp bounds the page into [1, totalPages]
func (v *View) Clamp(totalPages int) {
	v.Page = ClampPage(v.Page, totalPages)
}

// Query converts the view to engine parameters
func (v View) Query() Query {
	return Query{
		Search:    v.Search,
		SortKey:   v.SortKey,
		Direction: v.Direction,
		Page:      v.Page,
		PageSize:  DefaultPageSize,
	}
}
