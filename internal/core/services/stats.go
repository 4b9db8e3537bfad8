// internal/core/services/stats.go
package services

import (
	"github.com/shopspring/decimal"

	"github.com/ammerola/data-forge/internal/core/domain"
	"github.com/ammerola/data-forge/internal/core/ports"
)

// ComputeStats counts items per category (every category, zeros included) and
// totals stock per category, keeping only categories that hold stock
func ComputeStats(variant *domain.Variant, items []domain.Item) ports.CatalogStats {
	counts := make(map[domain.Category]int, len(variant.Categories))
	stock := make(map[domain.Category]int, len(variant.Categories))

	stats := ports.CatalogStats{
		Variant:           variant.Name,
		TotalItems:        len(items),
		InventoryValue:    decimal.Zero,
		ItemsByCategory:   make([]ports.CategoryCount, 0, len(variant.Categories)),
		StockDistribution: make([]ports.CategoryStock, 0, len(variant.Categories)),
	}

	for _, item := range items {
		counts[item.Category]++
		stock[item.Category] += item.Stock
		stats.TotalStock += item.Stock
		stats.InventoryValue = stats.InventoryValue.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Stock))))
		if item.Stock == 0 {
			stats.OutOfStock++
		}
	}

	for _, c := range variant.Categories {
		stats.ItemsByCategory = append(stats.ItemsByCategory, ports.CategoryCount{Category: c, Count: counts[c]})
		if stock[c] > 0 {
			stats.StockDistribution = append(stats.StockDistribution, ports.CategoryStock{Category: c, Stock: stock[c]})
		}
	}
	return stats
}
