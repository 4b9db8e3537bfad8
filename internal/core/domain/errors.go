// internal/core/domain/errors.go
package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors
var (
	ErrNotFound             = errors.New("not found")
	ErrAlreadyExists        = errors.New("already exists")
	ErrFieldNotMutable      = errors.New("field is not mutable")
	ErrUnknownField         = errors.New("unknown field")
	ErrUnknownVariant       = errors.New("unknown catalog variant")
	ErrAIServiceUnavailable = errors.New("AI validation service is unavailable")
)

// Messages reported when the AI validation service cannot be reached
const (
	AIUnavailableMessage   = "AI validation service is unavailable."
	AIUnavailableReasoning = "Could not connect to the validation service."
)

// RootField collects messages that could not be attributed to a single field
const RootField = "root"

// ValidationError reports local schema violations keyed by field name
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError creates a validation error for a single field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AIValidationResult is the verdict returned by the AI validation service
type AIValidationResult struct {
	IsValid          bool     `json:"isValid"`
	ValidationErrors []string `json:"validationErrors"`
	Reasoning        string   `json:"reasoning"`
}

// UnavailableResult is reported in place of a transport failure
func UnavailableResult() *AIValidationResult {
	return &AIValidationResult{
		IsValid:          false,
		ValidationErrors: []string{AIUnavailableMessage},
		Reasoning:        AIUnavailableReasoning,
	}
}

// AIValidationError is returned when the AI validation service rejects an edit.
// FieldErrors is a best-effort attribution of messages to fields; anything
// unattributed is kept in FormErrors.
type AIValidationError struct {
	Result      AIValidationResult
	FieldErrors map[string]string
	FormErrors  []string
}

func (e *AIValidationError) Error() string {
	if len(e.Result.ValidationErrors) == 0 {
		return "AI validation rejected the item"
	}
	return "AI validation rejected the item: " + strings.Join(e.Result.ValidationErrors, "; ")
}

// Unavailable reports whether the rejection came from the service being unreachable
func (e *AIValidationError) Unavailable() bool {
	return e.Result.Reasoning == AIUnavailableReasoning
}

// PersistenceError reports a failed durable write; the in-memory state is kept
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsPersistenceError reports whether err carries a durable write failure
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
