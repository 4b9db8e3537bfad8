// internal/handlers/response.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ammerola/data-forge/internal/core/domain"
)

// maxBodyBytes bounds JSON request bodies
const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error      string            `json:"error"`
	Fields     map[string]string `json:"fields,omitempty"`
	FormErrors []string          `json:"form_errors,omitempty"`
	Reasoning  string            `json:"reasoning,omitempty"`
}

// Notification is a user-facing message accompanying a response
type Notification struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// MutationResponse reports the result of a change to a catalog. Persisted is
// false when the durable write failed; the change is still applied in memory.
type MutationResponse struct {
	Item         *domain.Item  `json:"item,omitempty"`
	Affected     int           `json:"affected"`
	Persisted    bool          `json:"persisted"`
	Notification *Notification `json:"notification,omitempty"`
}

func storageErrorNotification(err error) *Notification {
	return &Notification{
		Type:    "error",
		Title:   "Storage Error",
		Message: "Changes were applied but could not be saved: " + err.Error(),
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode response", slog.Any("error", err))
		}
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dest)
}

// handleServiceError maps domain errors to HTTP responses
func handleServiceError(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, err error) {
	var (
		validationErr *domain.ValidationError
		aiErr         *domain.AIValidationError
	)

	switch {
	case errors.As(err, &validationErr):
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:  "Validation failed",
			Fields: validationErr.Fields,
		})
	case errors.As(err, &aiErr):
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:      "AI validation failed",
			Fields:     aiErr.FieldErrors,
			FormErrors: aiErr.FormErrors,
			Reasoning:  aiErr.Result.Reasoning,
		})
	case errors.Is(err, domain.ErrUnknownVariant):
		respondError(w, http.StatusNotFound, "Catalog not found")
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, "Item not found")
	case errors.Is(err, domain.ErrAlreadyExists):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrUnknownField), errors.Is(err, domain.ErrFieldNotMutable):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "Request timed out")
	default:
		logger.ErrorContext(ctx, "request failed", slog.Any("error", err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// respondMutation writes a successful mutation, downgrading persistence
// failures to a notification
func respondMutation(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, status int, resp MutationResponse, err error) {
	if err != nil && !domain.IsPersistenceError(err) {
		handleServiceError(ctx, w, logger, err)
		return
	}

	resp.Persisted = err == nil
	if err != nil {
		logger.ErrorContext(ctx, "change kept in memory only", slog.Any("error", err))
		resp.Notification = storageErrorNotification(err)
	}
	respondJSON(w, status, resp)
}
