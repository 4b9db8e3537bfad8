// internal/core/domain/item.go
package domain

import (
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Category is one value of a variant's fixed category enumeration
type Category string

// Field names shared by every variant
const (
	FieldID          = "id"
	FieldName        = "name"
	FieldCategory    = "category"
	FieldPrice       = "price"
	FieldStock       = "stock"
	FieldDescription = "description"
)

// MinNameLength is the shortest accepted item name
const MinNameLength = 3

// Item represents a single catalog entry (a product or a postcard)
type Item struct {
	ID          string          `json:"id" yaml:"id"`
	Name        string          `json:"name" yaml:"name"`
	Category    Category        `json:"category" yaml:"category"`
	Price       decimal.Decimal `json:"price" yaml:"price"`
	Stock       int             `json:"stock" yaml:"stock"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
}

// EnsureID assigns a fresh identifier when the item has none
func (i *Item) EnsureID() {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
}

// Fields returns the item as a field name to value mapping
func (i Item) Fields() map[string]any {
	fields := map[string]any{
		FieldID:       i.ID,
		FieldName:     i.Name,
		FieldCategory: string(i.Category),
		FieldPrice:    i.Price.InexactFloat64(),
		FieldStock:    i.Stock,
	}
	if i.Description != "" {
		fields[FieldDescription] = i.Description
	}
	return fields
}

// IDs extracts the identifiers of items in order
func IDs(items []Item) []string {
	ids := make([]string, len(items))
	for idx, item := range items {
		ids[idx] = item.ID
	}
	return ids
}

func nameTooShort(name string) bool {
	return utf8.RuneCountInString(name) < MinNameLength
}
