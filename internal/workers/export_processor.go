// internal/workers/export_processor.go
package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/ammerola/data-forge/internal/core/domain"
	"github.com/ammerola/data-forge/internal/core/ports"
	"github.com/ammerola/data-forge/internal/core/table"
	"github.com/ammerola/data-forge/internal/export"
	"github.com/ammerola/data-forge/internal/pkg/logger"
)

// ErrNoRows is returned when an export selects nothing; it is not retried
var ErrNoRows = errors.New("export selects no rows")

// ItemSource loads the durable collection of one variant
type ItemSource interface {
	Load(ctx context.Context) ([]domain.Item, error)
}

// ExportProcessor renders export files from durable storage and publishes
// a download link
type ExportProcessor struct {
	sources   map[string]ItemSource
	storage   ports.ExportStorage
	cache     ports.CacheRepository
	enqueuer  TaskEnqueuer
	urlExpiry time.Duration
	sheetName string
	logger    *slog.Logger
}

// ExportProcessorConfig holds the processor settings
type ExportProcessorConfig struct {
	URLExpiry time.Duration
	SheetName string
}

// NewExportProcessor creates an export processor. enqueuer may be nil, in
// which case delivered files are never expired.
func NewExportProcessor(
	sources map[string]ItemSource,
	storage ports.ExportStorage,
	cache ports.CacheRepository,
	enqueuer TaskEnqueuer,
	cfg ExportProcessorConfig,
	logger *slog.Logger,
) *ExportProcessor {
	if cfg.URLExpiry <= 0 {
		cfg.URLExpiry = 24 * time.Hour
	}
	return &ExportProcessor{
		sources:   sources,
		storage:   storage,
		cache:     cache,
		enqueuer:  enqueuer,
		urlExpiry: cfg.URLExpiry,
		sheetName: cfg.SheetName,
		logger:    logger.With(slog.String("processor", "export")),
	}
}

// ProcessTask handles TypeExportDeliver
func (p *ExportProcessor) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ExportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	taskID := payload.JobID
	if taskID == "" {
		taskID, _ = asynq.GetTaskID(ctx)
	}
	if taskID == "" {
		taskID = uuid.NewString()
	}
	ctx = logger.WithValue(ctx, logger.ContextKeyTaskID, taskID)
	ctx = logger.WithVariant(ctx, payload.Variant)

	variant, err := domain.VariantByName(payload.Variant)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	format, err := export.ParseFormat(payload.Format)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	source, ok := p.sources[variant.Name]
	if !ok {
		return fmt.Errorf("no item source for %s: %w", variant.Name, asynq.SkipRetry)
	}

	p.logger.InfoContext(ctx, "processing export",
		slog.String("format", string(format)),
		slog.Int("ids", len(payload.IDs)),
		slog.String("requested_by", payload.RequestedBy))

	items, err := source.Load(ctx)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("load %s: %w", variant.Name, err)
	}

	targets := selectTargets(items, variant, payload)
	if len(targets) == 0 {
		p.logger.WarnContext(ctx, "export selects no rows")
		return fmt.Errorf("%w: %w", ErrNoRows, asynq.SkipRetry)
	}

	data, err := export.Encode(format, export.RecordsFor(variant, targets), p.sheetName)
	if err != nil {
		return fmt.Errorf("encode export: %w", err)
	}

	now := time.Now().UTC()
	key := fmt.Sprintf("exports/%s/%s-%s", variant.Name, now.Format("20060102T150405Z"), format.Filename(taskID))

	if _, err := p.storage.Upload(ctx, key, bytes.NewReader(data), format.ContentType()); err != nil {
		return fmt.Errorf("upload export: %w", err)
	}

	url, err := p.storage.GetPresignedURL(ctx, key, p.urlExpiry)
	if err != nil {
		return fmt.Errorf("presign export: %w", err)
	}

	result := ExportResult{
		TaskID:    taskID,
		Variant:   variant.Name,
		Format:    string(format),
		Key:       key,
		URL:       url,
		Rows:      len(targets),
		CreatedAt: now,
		ExpiresAt: now.Add(p.urlExpiry),
	}

	if err := p.cache.SetWithTTL(ctx, ResultKey(taskID), result, p.urlExpiry); err != nil {
		return fmt.Errorf("store export result: %w", err)
	}

	if w := t.ResultWriter(); w != nil {
		if b, err := json.Marshal(result); err == nil {
			w.Write(b)
		}
	}

	p.scheduleExpiry(ctx, taskID, key)

	p.logger.InfoContext(ctx, "export delivered",
		slog.String("key", key),
		slog.Int("rows", len(targets)),
		slog.Int("bytes", len(data)))

	return nil
}

func (p *ExportProcessor) scheduleExpiry(ctx context.Context, taskID, key string) {
	if p.enqueuer == nil {
		return
	}

	task, err := NewExportExpireTask(ExpirePayload{TaskID: taskID, Key: key})
	if err == nil {
		_, err = p.enqueuer.EnqueueContext(ctx, task, asynq.ProcessIn(p.urlExpiry))
	}
	if err != nil {
		p.logger.WarnContext(ctx, "failed to schedule export expiry",
			slog.String("key", key),
			slog.Any("error", err))
	}
}

// selectTargets keeps the requested ids in collection order, or the items
// matching the search when no ids are given
func selectTargets(items []domain.Item, variant *domain.Variant, payload ExportPayload) []domain.Item {
	if len(payload.IDs) == 0 {
		return table.Filter(items, variant, payload.Search)
	}

	wanted := make(map[string]struct{}, len(payload.IDs))
	for _, id := range payload.IDs {
		wanted[id] = struct{}{}
	}

	out := make([]domain.Item, 0, len(payload.IDs))
	for _, item := range items {
		if _, ok := wanted[item.ID]; ok {
			out = append(out, item)
		}
	}
	return out
}
