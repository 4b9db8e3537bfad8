// internal/core/domain/variant.go
package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// FieldKind is the semantic type of an item field
type FieldKind string

// Field kinds
const (
	KindString  FieldKind = "string"
	KindEnum    FieldKind = "enum"
	KindDecimal FieldKind = "decimal"
	KindInteger FieldKind = "integer"
)

// FieldDescriptor describes one item field. The ordered descriptor list of a
// variant drives search matching and export column order.
type FieldDescriptor struct {
	Name     string    `json:"name"`
	Kind     FieldKind `json:"kind"`
	Mutable  bool      `json:"mutable"`
	Optional bool      `json:"optional,omitempty"`
}

// ItemFields is the field layout shared by all variants
var ItemFields = []FieldDescriptor{
	{Name: FieldID, Kind: KindString},
	{Name: FieldName, Kind: KindString},
	{Name: FieldCategory, Kind: KindEnum, Mutable: true},
	{Name: FieldPrice, Kind: KindDecimal, Mutable: true},
	{Name: FieldStock, Kind: KindInteger, Mutable: true},
	{Name: FieldDescription, Kind: KindString, Optional: true},
}

// Variant is one instantiation of the generic catalog item
type Variant struct {
	Name              string
	Singular          string
	Categories        []Category
	Fields            []FieldDescriptor
	SchemaDescription string
}

// Postcard categories
const (
	CategoryTravel   Category = "Travel"
	CategoryArt      Category = "Art"
	CategoryGreeting Category = "Greeting"
	CategoryVintage  Category = "Vintage"
	CategoryHoliday  Category = "Holiday"
)

// Product categories
const (
	CategoryElectronics Category = "Electronics"
	CategoryApparel     Category = "Apparel"
	CategoryHome        Category = "Home"
	CategoryBooks       Category = "Books"
	CategoryToys        Category = "Toys"
)

// Postcards is the postcard catalog variant
var Postcards = newVariant("postcards", "postcard",
	[]Category{CategoryTravel, CategoryArt, CategoryGreeting, CategoryVintage, CategoryHoliday})

// Products is the product catalog variant
var Products = newVariant("products", "product",
	[]Category{CategoryElectronics, CategoryApparel, CategoryHome, CategoryBooks, CategoryToys})

// Variants lists every known variant
var Variants = []*Variant{Postcards, Products}

func newVariant(name, singular string, categories []Category) *Variant {
	quoted := make([]string, len(categories))
	for i, c := range categories {
		quoted[i] = strconv.Quote(string(c))
	}

	schema := fmt.Sprintf(`
    A %[1]s object with the following fields:
    - id: string (unique identifier, should not be changed)
    - name: string (must be at least %[2]d characters long)
    - category: one of %[3]s
    - price: a positive number
    - stock: a non-negative integer
    - description: string (optional, a brief summary of the %[1]s)
  `, singular, MinNameLength, strings.Join(quoted, ", "))

	return &Variant{
		Name:              name,
		Singular:          singular,
		Categories:        categories,
		Fields:            ItemFields,
		SchemaDescription: schema,
	}
}

// VariantByName looks up a variant by its catalog name
func VariantByName(name string) (*Variant, error) {
	for _, v := range Variants {
		if v.Name == name {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, name)
}

// Field returns the descriptor for a field name
func (v *Variant) Field(name string) (FieldDescriptor, bool) {
	for _, f := range v.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDescriptor{}, false
}

// FieldNames returns field names in descriptor order
func (v *Variant) FieldNames() []string {
	names := make([]string, len(v.Fields))
	for i, f := range v.Fields {
		names[i] = f.Name
	}
	return names
}

// HasCategory reports whether c belongs to the variant's enumeration
func (v *Variant) HasCategory(c Category) bool {
	for _, known := range v.Categories {
		if known == c {
			return true
		}
	}
	return false
}

// Value returns the typed value of a field
func (v *Variant) Value(item Item, field string) any {
	switch field {
	case FieldID:
		return item.ID
	case FieldName:
		return item.Name
	case FieldCategory:
		return string(item.Category)
	case FieldPrice:
		return item.Price
	case FieldStock:
		return item.Stock
	case FieldDescription:
		return item.Description
	}
	return nil
}

// FieldText renders a field value as text
func (v *Variant) FieldText(item Item, field string) string {
	switch value := v.Value(item, field).(type) {
	case string:
		return value
	case decimal.Decimal:
		return value.String()
	case int:
		return strconv.Itoa(value)
	}
	return ""
}

// Validate checks an item against the variant schema
func (v *Variant) Validate(item Item) error {
	fields := make(map[string]string)

	if nameTooShort(item.Name) {
		fields[FieldName] = fmt.Sprintf("Name must be at least %d characters long.", MinNameLength)
	}
	if !v.HasCategory(item.Category) {
		fields[FieldCategory] = v.invalidCategoryMessage(item.Category)
	}
	if !item.Price.IsPositive() {
		fields[FieldPrice] = "Price must be a positive number."
	}
	if item.Stock < 0 {
		fields[FieldStock] = "Stock cannot be negative."
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// ParseFieldValue coerces a raw batch-edit value to the field's semantic type.
// Only mutable fields are accepted.
func (v *Variant) ParseFieldValue(field, raw string) (any, error) {
	desc, ok := v.Field(field)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	if !desc.Mutable {
		return nil, fmt.Errorf("%w: %q", ErrFieldNotMutable, field)
	}

	raw = strings.TrimSpace(raw)
	switch desc.Kind {
	case KindEnum:
		c := Category(raw)
		if !v.HasCategory(c) {
			return nil, NewValidationError(field, v.invalidCategoryMessage(c))
		}
		return c, nil
	case KindDecimal:
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, NewValidationError(field, "Invalid number format.")
		}
		if !d.IsPositive() {
			return nil, NewValidationError(field, "Price must be a positive number.")
		}
		return d, nil
	case KindInteger:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, NewValidationError(field, "Invalid number format.")
		}
		if n < 0 {
			return nil, NewValidationError(field, "Stock cannot be negative.")
		}
		return n, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrFieldNotMutable, field)
}

// Assign sets a mutable field on the item. The value must already carry the
// field's semantic type (see ParseFieldValue).
func (v *Variant) Assign(item *Item, field string, value any) error {
	desc, ok := v.Field(field)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	if !desc.Mutable {
		return fmt.Errorf("%w: %q", ErrFieldNotMutable, field)
	}

	switch field {
	case FieldCategory:
		var c Category
		switch val := value.(type) {
		case Category:
			c = val
		case string:
			c = Category(val)
		default:
			return fmt.Errorf("category: unexpected value type %T", value)
		}
		if !v.HasCategory(c) {
			return NewValidationError(field, v.invalidCategoryMessage(c))
		}
		item.Category = c
	case FieldPrice:
		d, ok := value.(decimal.Decimal)
		if !ok {
			return fmt.Errorf("price: unexpected value type %T", value)
		}
		item.Price = d
	case FieldStock:
		n, ok := value.(int)
		if !ok {
			return fmt.Errorf("stock: unexpected value type %T", value)
		}
		item.Stock = n
	}
	return nil
}

func (v *Variant) invalidCategoryMessage(c Category) string {
	names := make([]string, len(v.Categories))
	for i, known := range v.Categories {
		names[i] = string(known)
	}
	return fmt.Sprintf("Invalid category %q, expected one of: %s.", string(c), strings.Join(names, ", "))
}
