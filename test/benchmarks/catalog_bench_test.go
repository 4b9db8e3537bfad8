package benchmarks

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ammerola/data-forge/internal/adapters/memory"
	"github.com/ammerola/data-forge/internal/adapters/sqlite"
	"github.com/ammerola/data-forge/internal/core/domain"
	"github.com/ammerola/data-forge/internal/core/ports"
	"github.com/ammerola/data-forge/internal/core/services"
	"github.com/ammerola/data-forge/internal/core/table"
	"github.com/ammerola/data-forge/internal/export"
	"github.com/ammerola/data-forge/test/helpers"
)

func BenchmarkTableOperations(b *testing.B) {
	variant := domain.Postcards

	for _, size := range []int{100, 1000, 10000} {
		items := generateItems(variant, size)

		b.Run(fmt.Sprintf("Filter/%d", size), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = table.Filter(items, variant, "sunset")
			}
		})

		b.Run(fmt.Sprintf("SortByPrice/%d", size), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = table.SortStable(items, variant, domain.FieldPrice, table.Descending)
			}
		})

		b.Run(fmt.Sprintf("ComputePage/%d", size), func(b *testing.B) {
			q := table.Query{
				Search:    "edition",
				SortKey:   domain.FieldName,
				Direction: table.Ascending,
				Page:      3,
				PageSize:  table.DefaultPageSize,
			}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = table.ComputePage(items, variant, q)
			}
		})
	}
}

func BenchmarkCatalogMutations(b *testing.B) {
	ctx := context.Background()
	variant := domain.Postcards
	logger := helpers.TestLogger()

	newService := func(b *testing.B, repo ports.ItemRepository, items []domain.Item) *services.CatalogService {
		b.Helper()
		svc := services.NewCatalogService(variant, services.NewPersistence(repo, variant, logger), nil, logger)
		if err := svc.Open(ctx, items, ports.SeedWhenEmpty); err != nil {
			b.Fatalf("open catalog: %v", err)
		}
		return svc
	}

	b.Run("Upsert/memory", func(b *testing.B) {
		svc := newService(b, memory.NewItemRepository(), generateItems(variant, 1000))
		item := generateItems(variant, 1)[0]

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			item.Stock = i
			_ = svc.Upsert(ctx, item)
		}
	})

	b.Run("BatchAssign/memory", func(b *testing.B) {
		items := generateItems(variant, 1000)
		svc := newService(b, memory.NewItemRepository(), items)
		targets := ids(items, 10)

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_, _ = svc.BatchAssign(ctx, targets, domain.FieldPrice, decimal.NewFromInt(int64(i%50+1)))
		}
	})

	b.Run("Upsert/sqlite", func(b *testing.B) {
		store, err := sqlite.Open(ctx, sqlite.Config{Path: ":memory:"}, logger)
		if err != nil {
			b.Fatalf("open sqlite: %v", err)
		}
		svc := newService(b, store.Repository(variant.Name), generateItems(variant, 200))
		defer svc.Close()
		item := generateItems(variant, 1)[0]

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			item.Stock = i
			_ = svc.Upsert(ctx, item)
		}
	})
}

func BenchmarkExportEncode(b *testing.B) {
	variant := domain.Products
	records := export.RecordsFor(variant, generateItems(variant, 1000))

	for _, format := range []export.Format{export.FormatCSV, export.FormatJSON, export.FormatXLSX} {
		b.Run(string(format), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := export.Encode(format, records, variant.Name); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkComputeStats(b *testing.B) {
	variant := domain.Products
	items := generateItems(variant, 5000)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = services.ComputeStats(variant, items)
	}
}
