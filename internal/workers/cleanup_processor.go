// internal/workers/cleanup_processor.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/ammerola/data-forge/internal/core/ports"
)

// CleanupProcessor removes delivered exports once their links expire
type CleanupProcessor struct {
	storage ports.ExportStorage
	cache   ports.CacheRepository
	logger  *slog.Logger
}

// NewCleanupProcessor creates a new cleanup processor
func NewCleanupProcessor(storage ports.ExportStorage, cache ports.CacheRepository, logger *slog.Logger) *CleanupProcessor {
	return &CleanupProcessor{
		storage: storage,
		cache:   cache,
		logger:  logger.With(slog.String("processor", "cleanup")),
	}
}

// ExpireExport handles TypeExportExpire
func (p *CleanupProcessor) ExpireExport(ctx context.Context, t *asynq.Task) error {
	var payload ExpirePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.Key == "" {
		return fmt.Errorf("expire task without key: %w", asynq.SkipRetry)
	}

	if err := p.storage.Delete(ctx, payload.Key); err != nil {
		return fmt.Errorf("delete export %s: %w", payload.Key, err)
	}

	if payload.TaskID != "" {
		if err := p.cache.Delete(ctx, ResultKey(payload.TaskID)); err != nil {
			p.logger.WarnContext(ctx, "failed to drop export result",
				slog.String("task_id", payload.TaskID),
				slog.Any("error", err))
		}
	}

	p.logger.InfoContext(ctx, "export expired", slog.String("key", payload.Key))
	return nil
}
