// internal/handlers/export.go
package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/ammerola/data-forge/internal/core/domain"
	"github.com/ammerola/data-forge/internal/core/ports"
	"github.com/ammerola/data-forge/internal/export"
	"github.com/ammerola/data-forge/internal/pkg/logger"
	"github.com/ammerola/data-forge/internal/workers"
)

// TaskInspector is the part of *asynq.Inspector used to report job state
type TaskInspector interface {
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
}

// ExportHandler serves file downloads and asynchronous export jobs
type ExportHandler struct {
	catalogs  map[string]ports.CatalogService
	enqueuer  workers.TaskEnqueuer
	inspector TaskInspector
	cache     ports.CacheRepository
	queue     string
	sheetName string
	logger    *slog.Logger
}

// ExportHandlerConfig holds export settings
type ExportHandlerConfig struct {
	Queue     string
	SheetName string
}

// NewExportHandler creates an export handler. enqueuer, inspector and cache
// may be nil, which disables export jobs.
func NewExportHandler(
	catalogs map[string]ports.CatalogService,
	enqueuer workers.TaskEnqueuer,
	inspector TaskInspector,
	cache ports.CacheRepository,
	cfg ExportHandlerConfig,
	logger *slog.Logger,
) *ExportHandler {
	if cfg.Queue == "" {
		cfg.Queue = "default"
	}
	return &ExportHandler{
		catalogs:  catalogs,
		enqueuer:  enqueuer,
		inspector: inspector,
		cache:     cache,
		queue:     cfg.Queue,
		sheetName: cfg.SheetName,
		logger:    logger.With(slog.String("handler", "export")),
	}
}

// RegisterRoutes mounts the export endpoints on mux
func (h *ExportHandler) RegisterRoutes(mux *http.ServeMux) {
	base := APIPrefix + "/catalogs/{variant}/export"

	mux.HandleFunc("GET "+base, h.Download)
	mux.HandleFunc("POST "+base+"/jobs", h.CreateJob)
	mux.HandleFunc("GET "+base+"/jobs/{id}", h.GetJob)
}

// Download handles GET /export?format=&search=. It exports the selected rows
// among those matching search, or every matching row when none is selected.
func (h *ExportHandler) Download(w http.ResponseWriter, r *http.Request) {
	svc, ctx, ok := resolveCatalog(w, r, h.catalogs, h.logger)
	if !ok {
		return
	}

	format, err := export.ParseFormat(formatParam(r))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	targets := svc.ExportTargets(r.URL.Query().Get("search"))
	if len(targets) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	data, err := export.Encode(format, export.RecordsFor(svc.Variant(), targets), h.sheetName)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to encode export",
			slog.String("format", string(format)),
			slog.Any("error", err))
		respondError(w, http.StatusInternalServerError, "Failed to generate export")
		return
	}

	filename := format.Filename(svc.Variant().Name)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(data); err != nil {
		h.logger.ErrorContext(ctx, "failed to write export response", slog.Any("error", err))
		return
	}

	h.logger.InfoContext(ctx, "export downloaded",
		slog.String("filename", filename),
		slog.Int("rows", len(targets)))
}

// JobResponse reports an export job
type JobResponse struct {
	TaskID string                `json:"task_id"`
	Status string                `json:"status"`
	Error  string                `json:"error,omitempty"`
	Result *workers.ExportResult `json:"result,omitempty"`
}

// CreateJob handles POST /export/jobs?format=&search=. The rows are fixed
// when the job is accepted.
func (h *ExportHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	svc, ctx, ok := resolveCatalog(w, r, h.catalogs, h.logger)
	if !ok {
		return
	}

	if h.enqueuer == nil {
		respondError(w, http.StatusServiceUnavailable, "Export jobs are not enabled")
		return
	}

	format, err := export.ParseFormat(formatParam(r))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	search := r.URL.Query().Get("search")
	targets := svc.ExportTargets(search)
	if len(targets) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	jobID := uuid.NewString()
	task, err := workers.NewExportDeliverTask(workers.ExportPayload{
		JobID:       jobID,
		Variant:     svc.Variant().Name,
		Format:      string(format),
		IDs:         domain.IDs(targets),
		Search:      search,
		RequestedBy: logger.RequestIDFromContext(ctx),
	})
	if err != nil {
		handleServiceError(ctx, w, h.logger, err)
		return
	}

	info, err := h.enqueuer.EnqueueContext(ctx, task, asynq.Queue(h.queue), asynq.TaskID(jobID))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to enqueue export", slog.Any("error", err))
		respondError(w, http.StatusServiceUnavailable, "Failed to queue export")
		return
	}

	h.logger.InfoContext(ctx, "export queued",
		slog.String("task_id", info.ID),
		slog.Int("rows", len(targets)))

	w.Header().Set("Location", fmt.Sprintf("%s/catalogs/%s/export/jobs/%s", APIPrefix, svc.Variant().Name, info.ID))
	respondJSON(w, http.StatusAccepted, JobResponse{TaskID: info.ID, Status: "queued"})
}

// GetJob handles GET /export/jobs/{id}
func (h *ExportHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	_, ctx, ok := resolveCatalog(w, r, h.catalogs, h.logger)
	if !ok {
		return
	}

	if h.cache == nil {
		respondError(w, http.StatusServiceUnavailable, "Export jobs are not enabled")
		return
	}

	id := r.PathValue("id")

	var result workers.ExportResult
	err := h.cache.Get(ctx, workers.ResultKey(id), &result)
	if err == nil {
		respondJSON(w, http.StatusOK, JobResponse{TaskID: id, Status: "completed", Result: &result})
		return
	}
	if !errors.Is(err, ports.ErrCacheMiss) {
		h.logger.WarnContext(ctx, "failed to read export result",
			slog.String("task_id", id),
			slog.Any("error", err))
	}

	if h.inspector == nil {
		respondJSON(w, http.StatusAccepted, JobResponse{TaskID: id, Status: "pending"})
		return
	}

	info, err := h.inspector.GetTaskInfo(h.queue, id)
	switch {
	case errors.Is(err, asynq.ErrTaskNotFound), errors.Is(err, asynq.ErrQueueNotFound):
		respondError(w, http.StatusNotFound, "Export job not found")
	case err != nil:
		h.logger.ErrorContext(ctx, "failed to inspect export job", slog.Any("error", err))
		respondError(w, http.StatusServiceUnavailable, "Failed to read export job")
	case info.State == asynq.TaskStateArchived:
		respondJSON(w, http.StatusOK, JobResponse{TaskID: id, Status: "failed", Error: info.LastErr})
	default:
		respondJSON(w, http.StatusAccepted, JobResponse{TaskID: id, Status: info.State.String()})
	}
}

func formatParam(r *http.Request) string {
	if f := r.URL.Query().Get("format"); f != "" {
		return f
	}
	return string(export.FormatCSV)
}
