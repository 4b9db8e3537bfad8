// internal/workers/tasks.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Task types
const (
	TypeExportDeliver = "export:deliver"
	TypeExportExpire  = "export:expire"
)

// Task defaults
const (
	DefaultMaxRetry  = 5
	DefaultRetention = 24 * time.Hour
	maxRetryDelay    = 10 * time.Minute
)

// TaskEnqueuer is the part of *asynq.Client used to schedule work
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ExportPayload describes the rows to deliver. When IDs is empty every item
// matching Search is exported.
type ExportPayload struct {
	// JobID is the result key suffix; it matches the asynq task id when the
	// task is enqueued with asynq.TaskID(JobID)
	JobID       string   `json:"job_id,omitempty"`
	Variant     string   `json:"variant"`
	Format      string   `json:"format"`
	IDs         []string `json:"ids,omitempty"`
	Search      string   `json:"search,omitempty"`
	RequestedBy string   `json:"requested_by,omitempty"`
}

// ExpirePayload names a delivered export to remove
type ExpirePayload struct {
	TaskID string `json:"task_id"`
	Key    string `json:"key"`
}

// ExportResult is stored in the cache once an export has been delivered
type ExportResult struct {
	TaskID    string    `json:"task_id"`
	Variant   string    `json:"variant"`
	Format    string    `json:"format"`
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	Rows      int       `json:"rows"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ResultKey is the cache key holding the result of an export task
func ResultKey(taskID string) string {
	return "export:" + taskID
}

// NewExportDeliverTask builds an export delivery task
func NewExportDeliverTask(p ExportPayload) (*asynq.Task, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal export payload: %w", err)
	}
	return asynq.NewTask(TypeExportDeliver, b,
		asynq.MaxRetry(DefaultMaxRetry),
		asynq.Retention(DefaultRetention)), nil
}

// NewExportExpireTask builds a task removing a delivered export
func NewExportExpireTask(p ExpirePayload) (*asynq.Task, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal expire payload: %w", err)
	}
	return asynq.NewTask(TypeExportExpire, b, asynq.MaxRetry(3)), nil
}

// RetryDelay backs off exponentially from one second up to ten minutes
func RetryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	if n < 0 {
		n = 0
	}
	if n > 10 {
		return maxRetryDelay
	}
	delay := time.Second * time.Duration(1<<uint(n))
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}
