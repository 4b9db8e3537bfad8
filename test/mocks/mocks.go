// test/mocks/mocks.go

// Package mocks contains generated mocks for the application's interfaces.
// Regenerate with `go generate ./test/mocks`.
package mocks

//go:generate mockgen -source=../../internal/core/ports/item_repository.go -destination=item_repository_mock.go -package=mocks
//go:generate mockgen -source=../../internal/core/ports/persistence.go -destination=persistence_mock.go -package=mocks
//go:generate mockgen -source=../../internal/core/ports/validator.go -destination=validator_mock.go -package=mocks
//go:generate mockgen -source=../../internal/core/ports/export_storage.go -destination=export_storage_mock.go -package=mocks
//go:generate mockgen -source=../../internal/core/ports/cache.go -destination=cache_mock.go -package=mocks
//go:generate mockgen -source=../../internal/workers/tasks.go -destination=enqueuer_mock.go -package=mocks
