// internal/core/ports/validator.go
package ports

import (
	"context"

	"github.com/ammerola/data-forge/internal/core/domain"
)

// SchemaValidator asks an external language-model service whether data
// satisfies a free-text schema description
type SchemaValidator interface {
	ValidateSchema(ctx context.Context, data map[string]any, schemaDescription string) (*domain.AIValidationResult, error)
}

// Summarizer produces a prose summary of a dataset
type Summarizer interface {
	Summarize(ctx context.Context, dataset string) (string, error)
}
