// internal/workers/export_processor_test.go
package workers_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/data-forge/internal/core/domain"
	"github.com/ammerola/data-forge/internal/workers"
	"github.com/ammerola/data-forge/test/helpers"
	"github.com/ammerola/data-forge/test/mocks"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newDeliverTask(t *testing.T, p workers.ExportPayload) *asynq.Task {
	t.Helper()
	task, err := workers.NewExportDeliverTask(p)
	require.NoError(t, err)
	return task
}

func TestExportProcessor_ProcessTask(t *testing.T) {
	items := helpers.CreateTestItems(5)

	tests := []struct {
		name          string
		payload       workers.ExportPayload
		setupMocks    func(*mocks.MockPersistence, *mocks.MockExportStorage, *mocks.MockCacheRepository, *mocks.MockTaskEnqueuer)
		expectedError bool
		skipRetry     bool
		validate      func(*testing.T, string)
	}{
		{
			name:    "delivers_selected_ids_as_csv",
			payload: workers.ExportPayload{JobID: "job-7", Variant: "postcards", Format: "csv", IDs: []string{"item-04", "item-02"}},
			setupMocks: func(src *mocks.MockPersistence, st *mocks.MockExportStorage, c *mocks.MockCacheRepository, q *mocks.MockTaskEnqueuer) {
				src.EXPECT().Load(gomock.Any()).Return(items, nil)
				st.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any(), "text/csv;charset=utf-8;").
					DoAndReturn(func(_ context.Context, key string, r io.Reader, _ string) (string, error) {
						assert.True(t, strings.HasPrefix(key, "exports/postcards/"))
						assert.True(t, strings.HasSuffix(key, "-job-7.csv"))
						b, err := io.ReadAll(r)
						require.NoError(t, err)
						return key, writeBody(string(b))
					})
				st.EXPECT().GetPresignedURL(gomock.Any(), gomock.Any(), time.Hour).Return("https://files/export.csv", nil)
				c.EXPECT().SetWithTTL(gomock.Any(), gomock.Any(), gomock.Any(), time.Hour).
					DoAndReturn(func(_ context.Context, key string, v any, _ time.Duration) error {
						res := v.(workers.ExportResult)
						assert.Equal(t, "export:job-7", key)
						assert.Equal(t, "job-7", res.TaskID)
						assert.Equal(t, 2, res.Rows)
						assert.Equal(t, "https://files/export.csv", res.URL)
						return nil
					})
				q.EXPECT().EnqueueContext(gomock.Any(), gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
						assert.Equal(t, workers.TypeExportExpire, task.Type())
						return &asynq.TaskInfo{}, nil
					})
			},
			validate: func(t *testing.T, body string) {
				lines := strings.Split(body, "\n")
				require.Len(t, lines, 3)
				assert.Equal(t, "id,name,category,price,stock,description", lines[0])
				assert.True(t, strings.HasPrefix(lines[1], "item-02,"), "collection order is kept")
				assert.True(t, strings.HasPrefix(lines[2], "item-04,"))
			},
		},
		{
			name:    "filters_by_search_without_ids",
			payload: workers.ExportPayload{Variant: "postcards", Format: "json", Search: "postcard 03"},
			setupMocks: func(src *mocks.MockPersistence, st *mocks.MockExportStorage, c *mocks.MockCacheRepository, q *mocks.MockTaskEnqueuer) {
				src.EXPECT().Load(gomock.Any()).Return(items, nil)
				st.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, key string, r io.Reader, _ string) (string, error) {
						b, _ := io.ReadAll(r)
						return key, writeBody(string(b))
					})
				st.EXPECT().GetPresignedURL(gomock.Any(), gomock.Any(), gomock.Any()).Return("u", nil)
				c.EXPECT().SetWithTTL(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
				q.EXPECT().EnqueueContext(gomock.Any(), gomock.Any(), gomock.Any()).Return(&asynq.TaskInfo{}, nil)
			},
			validate: func(t *testing.T, body string) {
				var rows []map[string]any
				require.NoError(t, json.Unmarshal([]byte(body), &rows))
				require.Len(t, rows, 1)
				assert.Equal(t, "item-03", rows[0]["id"])
			},
		},
		{
			name:    "expiry_scheduling_failure_is_not_fatal",
			payload: workers.ExportPayload{Variant: "postcards", Format: "csv"},
			setupMocks: func(src *mocks.MockPersistence, st *mocks.MockExportStorage, c *mocks.MockCacheRepository, q *mocks.MockTaskEnqueuer) {
				src.EXPECT().Load(gomock.Any()).Return(items, nil)
				st.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("k", nil)
				st.EXPECT().GetPresignedURL(gomock.Any(), gomock.Any(), gomock.Any()).Return("u", nil)
				c.EXPECT().SetWithTTL(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
				q.EXPECT().EnqueueContext(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("redis down"))
			},
		},
		{
			name:    "no_rows_skips_retry",
			payload: workers.ExportPayload{Variant: "postcards", Format: "csv", Search: "no such postcard"},
			setupMocks: func(src *mocks.MockPersistence, _ *mocks.MockExportStorage, _ *mocks.MockCacheRepository, _ *mocks.MockTaskEnqueuer) {
				src.EXPECT().Load(gomock.Any()).Return(items, nil)
			},
			expectedError: true,
			skipRetry:     true,
		},
		{
			name:    "empty_store_skips_retry",
			payload: workers.ExportPayload{Variant: "postcards", Format: "csv"},
			setupMocks: func(src *mocks.MockPersistence, _ *mocks.MockExportStorage, _ *mocks.MockCacheRepository, _ *mocks.MockTaskEnqueuer) {
				src.EXPECT().Load(gomock.Any()).Return(nil, domain.ErrNotFound)
			},
			expectedError: true,
			skipRetry:     true,
		},
		{
			name:          "unknown_variant_skips_retry",
			payload:       workers.ExportPayload{Variant: "stamps", Format: "csv"},
			setupMocks:    func(*mocks.MockPersistence, *mocks.MockExportStorage, *mocks.MockCacheRepository, *mocks.MockTaskEnqueuer) {},
			expectedError: true,
			skipRetry:     true,
		},
		{
			name:          "unknown_format_skips_retry",
			payload:       workers.ExportPayload{Variant: "postcards", Format: "pdf"},
			setupMocks:    func(*mocks.MockPersistence, *mocks.MockExportStorage, *mocks.MockCacheRepository, *mocks.MockTaskEnqueuer) {},
			expectedError: true,
			skipRetry:     true,
		},
		{
			name:    "upload_failure_is_retried",
			payload: workers.ExportPayload{Variant: "postcards", Format: "xlsx"},
			setupMocks: func(src *mocks.MockPersistence, st *mocks.MockExportStorage, _ *mocks.MockCacheRepository, _ *mocks.MockTaskEnqueuer) {
				src.EXPECT().Load(gomock.Any()).Return(items, nil)
				st.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("", errors.New("bucket unavailable"))
			},
			expectedError: true,
		},
		{
			name:    "load_failure_is_retried",
			payload: workers.ExportPayload{Variant: "postcards", Format: "csv"},
			setupMocks: func(src *mocks.MockPersistence, _ *mocks.MockExportStorage, _ *mocks.MockCacheRepository, _ *mocks.MockTaskEnqueuer) {
				src.EXPECT().Load(gomock.Any()).Return(nil, errors.New("connection refused"))
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			src := mocks.NewMockPersistence(ctrl)
			st := mocks.NewMockExportStorage(ctrl)
			cache := mocks.NewMockCacheRepository(ctrl)
			enq := mocks.NewMockTaskEnqueuer(ctrl)
			tt.setupMocks(src, st, cache, enq)

			captured = ""
			processor := workers.NewExportProcessor(
				map[string]workers.ItemSource{"postcards": src},
				st, cache, enq,
				workers.ExportProcessorConfig{URLExpiry: time.Hour, SheetName: "Postcards"},
				helpers.TestLogger(),
			)

			err := processor.ProcessTask(context.Background(), newDeliverTask(t, tt.payload))

			if tt.expectedError {
				require.Error(t, err)
				assert.Equal(t, tt.skipRetry, errors.Is(err, asynq.SkipRetry))
				return
			}
			require.NoError(t, err)
			if tt.validate != nil {
				tt.validate(t, captured)
			}
		})
	}
}

func TestExportProcessor_WithoutEnqueuer(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mocks.NewMockPersistence(ctrl)
	st := mocks.NewMockExportStorage(ctrl)
	cache := mocks.NewMockCacheRepository(ctrl)

	src.EXPECT().Load(gomock.Any()).Return(helpers.CreateTestItems(2), nil)
	st.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("k", nil)
	st.EXPECT().GetPresignedURL(gomock.Any(), gomock.Any(), 24*time.Hour).Return("u", nil)
	cache.EXPECT().SetWithTTL(gomock.Any(), gomock.Any(), gomock.Any(), 24*time.Hour).Return(nil)

	processor := workers.NewExportProcessor(
		map[string]workers.ItemSource{"postcards": src},
		st, cache, nil, workers.ExportProcessorConfig{}, helpers.TestLogger())

	task := newDeliverTask(t, workers.ExportPayload{Variant: "postcards", Format: "csv"})
	require.NoError(t, processor.ProcessTask(context.Background(), task))
}

func TestExportProcessor_MissingSource(t *testing.T) {
	processor := workers.NewExportProcessor(map[string]workers.ItemSource{}, nil, nil, nil,
		workers.ExportProcessorConfig{}, helpers.TestLogger())

	task := newDeliverTask(t, workers.ExportPayload{Variant: "products", Format: "csv"})
	err := processor.ProcessTask(context.Background(), task)

	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestExportProcessor_MalformedPayload(t *testing.T) {
	processor := workers.NewExportProcessor(nil, nil, nil, nil, workers.ExportProcessorConfig{}, helpers.TestLogger())

	err := processor.ProcessTask(context.Background(), asynq.NewTask(workers.TypeExportDeliver, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

// captured holds the last uploaded body; subtests run sequentially
var captured string

func writeBody(body string) error {
	captured = body
	return nil
}
