// internal/core/services/validation.go
package services

import (
	"context"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/ammerola/data-forge/internal/core/domain"
	"github.com/ammerola/data-forge/internal/core/ports"
)

// fuzzyMinLength is the shortest field name eligible for fuzzy matching
const fuzzyMinLength = 4

// EditValidator is the AI validation boundary of the edit flow
type EditValidator struct {
	ai      ports.SchemaValidator
	variant *domain.Variant
	logger  *slog.Logger
}

// NewEditValidator creates an edit validator. A nil ai accepts every item.
func NewEditValidator(ai ports.SchemaValidator, variant *domain.Variant, logger *slog.Logger) *EditValidator {
	return &EditValidator{
		ai:      ai,
		variant: variant,
		logger: logger.With(
			slog.String("service", "ai_validation"),
			slog.String("variant", variant.Name)),
	}
}

// Check asks the AI service for a verdict. Transport failures are reported as
// an invalid result with a fixed message and never returned as errors.
func (v *EditValidator) Check(ctx context.Context, item domain.Item) *domain.AIValidationResult {
	if v.ai == nil {
		return &domain.AIValidationResult{IsValid: true, ValidationErrors: []string{}}
	}

	result, err := v.ai.ValidateSchema(ctx, item.Fields(), v.variant.SchemaDescription)
	if err != nil || result == nil {
		attrs := []any{slog.String("item_id", item.ID)}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		v.logger.ErrorContext(ctx, "AI validation failed", attrs...)
		return domain.UnavailableResult()
	}
	return result
}

// Validate returns *domain.AIValidationError when the service rejects item
func (v *EditValidator) Validate(ctx context.Context, item domain.Item) error {
	result := v.Check(ctx, item)
	if result.IsValid {
		return nil
	}

	fieldErrors, formErrors := MapFieldErrors(v.variant, result.ValidationErrors)
	v.logger.InfoContext(ctx, "AI validation rejected item",
		slog.String("item_id", item.ID),
		slog.Int("field_errors", len(fieldErrors)),
		slog.Int("form_errors", len(formErrors)))

	return &domain.AIValidationError{
		Result:      *result,
		FieldErrors: fieldErrors,
		FormErrors:  formErrors,
	}
}

// MapFieldErrors attributes free-text messages to fields. A message goes to
// the first descriptor field named by one of its words, then to the first
// field within edit distance one of a word. Anything else stays form level.
// The attribution is heuristic and may be wrong.
func MapFieldErrors(variant *domain.Variant, messages []string) (map[string]string, []string) {
	fieldErrors := make(map[string]string)
	var formErrors []string

	for _, msg := range messages {
		field, ok := matchField(variant, msg)
		if !ok {
			formErrors = append(formErrors, msg)
			continue
		}
		if prev, exists := fieldErrors[field]; exists {
			fieldErrors[field] = prev + " " + msg
			continue
		}
		fieldErrors[field] = msg
	}
	return fieldErrors, formErrors
}

func matchField(variant *domain.Variant, msg string) (string, bool) {
	words := strings.FieldsFunc(strings.ToLower(msg), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})

	for _, f := range variant.Fields {
		for _, w := range words {
			if w == f.Name {
				return f.Name, true
			}
		}
	}

	for _, f := range variant.Fields {
		if utf8.RuneCountInString(f.Name) < fuzzyMinLength {
			continue
		}
		for _, w := range words {
			if levenshtein.ComputeDistance(w, f.Name) <= 1 {
				return f.Name, true
			}
		}
	}
	return "", false
}
