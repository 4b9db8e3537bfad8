// internal/handlers/export_test.go
package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/data-forge/internal/core/ports"
	"github.com/ammerola/data-forge/internal/handlers"
	"github.com/ammerola/data-forge/internal/workers"
	"github.com/ammerola/data-forge/test/helpers"
	"github.com/ammerola/data-forge/test/mocks"
)

type fakeInspector struct {
	info *asynq.TaskInfo
	err  error
}

func (f fakeInspector) GetTaskInfo(queue, id string) (*asynq.TaskInfo, error) {
	return f.info, f.err
}

func newExportMux(tc testCatalog, enq workers.TaskEnqueuer, insp handlers.TaskInspector, cache ports.CacheRepository) *http.ServeMux {
	mux := http.NewServeMux()
	h := handlers.NewExportHandler(
		map[string]ports.CatalogService{"postcards": tc.svc},
		enq, insp, cache,
		handlers.ExportHandlerConfig{Queue: "exports", SheetName: "Postcards"},
		helpers.TestLogger())
	h.RegisterRoutes(mux)
	return mux
}

func TestExportHandler_Download(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		selectFirst    []string
		expectedStatus int
		validate       func(*testing.T, http.Header, string)
	}{
		{
			name:           "csv_of_filtered_rows",
			query:          "?format=csv&search=postcard+02",
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, h http.Header, body string) {
				assert.Equal(t, "text/csv;charset=utf-8;", h.Get("Content-Type"))
				assert.Equal(t, `attachment; filename="postcards.csv"`, h.Get("Content-Disposition"))
				lines := strings.Split(body, "\n")
				require.Len(t, lines, 2)
				assert.True(t, strings.HasPrefix(lines[1], "item-02,Test Postcard 02,"))
			},
		},
		{
			name:           "selection_within_filter_wins",
			query:          "?format=json",
			selectFirst:    []string{"item-03", "item-01"},
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, h http.Header, body string) {
				assert.Equal(t, "application/json;charset=utf-8;", h.Get("Content-Type"))
				assert.Contains(t, body, `"id": "item-01"`)
				assert.Contains(t, body, `"id": "item-03"`)
				assert.NotContains(t, body, `"id": "item-02"`)
			},
		},
		{
			name:           "selection_outside_filter_exports_filtered_rows",
			query:          "?search=postcard+04",
			selectFirst:    []string{"item-01"},
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, _ http.Header, body string) {
				assert.Contains(t, body, "item-04")
				assert.NotContains(t, body, "item-01")
			},
		},
		{
			name:           "xlsx",
			query:          "?format=excel",
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, h http.Header, body string) {
				assert.Equal(t, `attachment; filename="postcards.xlsx"`, h.Get("Content-Disposition"))
				assert.True(t, strings.HasPrefix(body, "PK"), "xlsx is a zip archive")
			},
		},
		{
			name:           "no_rows",
			query:          "?search=nothing+matches+this",
			expectedStatus: http.StatusNoContent,
		},
		{
			name:           "unsupported_format",
			query:          "?format=pdf",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := newTestCatalog(t, helpers.CreateTestItems(4), nil)
			for _, id := range tt.selectFirst {
				_, err := tc.svc.Toggle(id, true)
				require.NoError(t, err)
			}
			mux := newExportMux(tc, nil, nil, nil)

			w := do(t, mux, http.MethodGet, base+"/export"+tt.query, nil)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.validate != nil {
				tt.validate(t, w.Header(), w.Body.String())
			}
		})
	}
}

func TestExportHandler_CreateJob(t *testing.T) {
	t.Run("enqueues_fixed_ids", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		enq := mocks.NewMockTaskEnqueuer(ctrl)
		tc := newTestCatalog(t, helpers.CreateTestItems(4), nil)
		_, err := tc.svc.Toggle("item-02", true)
		require.NoError(t, err)

		enq.EXPECT().EnqueueContext(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
				assert.Equal(t, workers.TypeExportDeliver, task.Type())
				assert.Len(t, opts, 2)

				var p workers.ExportPayload
				require.NoError(t, json.Unmarshal(task.Payload(), &p))
				assert.NotEmpty(t, p.JobID)
				assert.Equal(t, "postcards", p.Variant)
				assert.Equal(t, "xlsx", p.Format)
				assert.Equal(t, []string{"item-02"}, p.IDs)
				return &asynq.TaskInfo{ID: "task-1", Queue: "exports"}, nil
			})

		w := do(t, newExportMux(tc, enq, nil, nil), http.MethodPost, base+"/export/jobs?format=xlsx", nil)

		require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
		assert.Equal(t, "/api/v1/catalogs/postcards/export/jobs/task-1", w.Header().Get("Location"))
		resp := decode[handlers.JobResponse](t, w)
		assert.Equal(t, "task-1", resp.TaskID)
		assert.Equal(t, "queued", resp.Status)
	})

	t.Run("queue_unavailable", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		enq := mocks.NewMockTaskEnqueuer(ctrl)
		enq.EXPECT().EnqueueContext(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("redis down"))

		tc := newTestCatalog(t, helpers.CreateTestItems(2), nil)
		w := do(t, newExportMux(tc, enq, nil, nil), http.MethodPost, base+"/export/jobs", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("no_rows", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		enq := mocks.NewMockTaskEnqueuer(ctrl)

		tc := newTestCatalog(t, helpers.CreateTestItems(2), nil)
		w := do(t, newExportMux(tc, enq, nil, nil), http.MethodPost, base+"/export/jobs?search=zzz", nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("jobs_disabled", func(t *testing.T) {
		tc := newTestCatalog(t, helpers.CreateTestItems(2), nil)
		w := do(t, newExportMux(tc, nil, nil, nil), http.MethodPost, base+"/export/jobs", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestExportHandler_GetJob(t *testing.T) {
	result := workers.ExportResult{TaskID: "task-1", Variant: "postcards", Format: "csv", URL: "https://files/x.csv", Rows: 2}

	tests := []struct {
		name           string
		inspector      handlers.TaskInspector
		setupCache     func(*mocks.MockCacheRepository)
		expectedStatus int
		expectedState  string
	}{
		{
			name: "completed_from_cache",
			setupCache: func(c *mocks.MockCacheRepository) {
				c.EXPECT().Get(gomock.Any(), "export:task-1", gomock.Any()).
					DoAndReturn(func(_ context.Context, _ string, dest interface{}) error {
						*dest.(*workers.ExportResult) = result
						return nil
					})
			},
			expectedStatus: http.StatusOK,
			expectedState:  "completed",
		},
		{
			name: "pending_without_inspector",
			setupCache: func(c *mocks.MockCacheRepository) {
				c.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any()).Return(ports.ErrCacheMiss)
			},
			expectedStatus: http.StatusAccepted,
			expectedState:  "pending",
		},
		{
			name:      "active_from_inspector",
			inspector: fakeInspector{info: &asynq.TaskInfo{ID: "task-1", State: asynq.TaskStateActive}},
			setupCache: func(c *mocks.MockCacheRepository) {
				c.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any()).Return(ports.ErrCacheMiss)
			},
			expectedStatus: http.StatusAccepted,
			expectedState:  "active",
		},
		{
			name:      "archived_is_failed",
			inspector: fakeInspector{info: &asynq.TaskInfo{ID: "task-1", State: asynq.TaskStateArchived, LastErr: "export selects no rows"}},
			setupCache: func(c *mocks.MockCacheRepository) {
				c.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any()).Return(ports.ErrCacheMiss)
			},
			expectedStatus: http.StatusOK,
			expectedState:  "failed",
		},
		{
			name:      "unknown_task",
			inspector: fakeInspector{err: fmt.Errorf("asynq: %w", asynq.ErrTaskNotFound)},
			setupCache: func(c *mocks.MockCacheRepository) {
				c.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any()).Return(ports.ErrCacheMiss)
			},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			cache := mocks.NewMockCacheRepository(ctrl)
			tt.setupCache(cache)

			tc := newTestCatalog(t, nil, nil)
			w := do(t, newExportMux(tc, nil, tt.inspector, cache), http.MethodGet, base+"/export/jobs/task-1", nil)

			require.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			if tt.expectedState != "" {
				assert.Equal(t, tt.expectedState, decode[handlers.JobResponse](t, w).Status)
			}
		})
	}
}
