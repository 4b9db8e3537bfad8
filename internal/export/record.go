// Package export encodes catalog rows as delimited text, structured text
// (JSON) or spreadsheets.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/ammerola/data-forge/internal/core/domain"
)

// Field is one key/value cell of a record
type Field struct {
	Key   string
	Value any
}

// Record is an ordered row; key order becomes column order
type Record []Field

// RecordsFor builds records for items using the variant's field descriptors
func RecordsFor(variant *domain.Variant, items []domain.Item) []Record {
	records := make([]Record, len(items))
	for i, item := range items {
		rec := make(Record, len(variant.Fields))
		for j, f := range variant.Fields {
			rec[j] = Field{Key: f.Name, Value: variant.Value(item, f.Name)}
		}
		records[i] = rec
	}
	return records
}

// Keys returns the record's keys in order
func (r Record) Keys() []string {
	keys := make([]string, len(r))
	for i, f := range r {
		keys[i] = f.Key
	}
	return keys
}

// Get returns the value stored under key
func (r Record) Get(key string) (any, bool) {
	for _, f := range r {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// MarshalJSON writes the record as an object with keys in record order
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalNoEscape(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		value, err := marshalNoEscape(jsonValue(f.Value))
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Key, err)
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// text renders a value for delimited text and spreadsheet cells
func text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case decimal.Decimal:
		return val.String()
	case int:
		return strconv.Itoa(val)
	case fmt.Stringer:
		return val.String()
	}
	return fmt.Sprint(v)
}

func jsonValue(v any) any {
	if d, ok := v.(decimal.Decimal); ok {
		return json.Number(d.String())
	}
	return v
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
