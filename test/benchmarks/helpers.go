// test/benchmarks/helpers.go
package benchmarks

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ammerola/data-forge/internal/core/domain"
)

var benchWords = []string{
	"harbour", "sunset", "vintage", "festive", "canyon", "portrait", "skyline", "meadow",
}

// generateItems builds n valid items of variant with repeating names and
// categories so filters and sorts see ties
func generateItems(variant *domain.Variant, n int) []domain.Item {
	items := make([]domain.Item, n)
	for i := range items {
		word := benchWords[i%len(benchWords)]
		items[i] = domain.Item{
			ID:          fmt.Sprintf("bench-%05d", i),
			Name:        fmt.Sprintf("%s %s %d", variant.Singular, word, i%97),
			Category:    variant.Categories[i%len(variant.Categories)],
			Price:       decimal.NewFromInt(int64(100 + i%500)).Shift(-2),
			Stock:       i % 250,
			Description: fmt.Sprintf("Benchmark %s number %d, %s edition.", variant.Singular, i, word),
		}
	}
	return items
}

// ids returns the ids of every step-th item
func ids(items []domain.Item, step int) []string {
	out := make([]string, 0, len(items)/step+1)
	for i := 0; i < len(items); i += step {
		out = append(out, items[i].ID)
	}
	return out
}
