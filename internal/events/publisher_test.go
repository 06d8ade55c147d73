package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/business-registry-scraper/internal/database"
	"github.com/maltedev/business-registry-scraper/internal/models"
)

// MockStreamClient is a mock for StreamClient
type MockStreamClient struct {
	mock.Mock
}

func (m *MockStreamClient) XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd {
	mockArgs := m.Called(ctx, args)
	cmd := redis.NewStringCmd(ctx)
	if mockArgs.Get(0) != nil {
		cmd.SetErr(mockArgs.Error(0))
	} else {
		cmd.SetVal("1700000000000-0")
	}
	return cmd
}

// MockOutboxStore is a mock for OutboxStore
type MockOutboxStore struct {
	mock.Mock
}

func (m *MockOutboxStore) Insert(ctx context.Context, event *database.OutboxEvent) error {
	return m.Called(ctx, event).Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func detailResult() *models.Result {
	name := "Acme LLC"
	detail := models.NewDetailRecord("UT")
	detail.Name = &name
	return &models.Result{
		JobID:       "job-1",
		Type:        models.JobTypeDetail,
		URL:         "https://businessregistration.utah.gov/EntitySearch/BusinessInformation/1",
		Found:       true,
		Detail:      detail,
		Strategy:    "form",
		CompletedAt: time.Now(),
	}
}

func TestStreamPublisher_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("writes result to stream", func(t *testing.T) {
		client := new(MockStreamClient)
		p := NewStreamPublisher(client, "stream:registry_results", 1000, testLogger())

		client.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
			values, _ := args.Values.(map[string]interface{})
			payload, ok := values["payload"].(string)
			if !ok {
				return false
			}
			var decoded models.Result
			if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
				return false
			}
			return args.Stream == "stream:registry_results" &&
				args.MaxLen == 1000 && args.Approx &&
				values["event_type"] == string(EventTypeDetailCompleted) &&
				values["aggregate_id"] == "job-1" &&
				decoded.Detail != nil && *decoded.Detail.Name == "Acme LLC"
		})).Return(nil)

		require.NoError(t, p.Publish(ctx, detailResult()))
		client.AssertExpectations(t)
	})

	t.Run("redis error is returned", func(t *testing.T) {
		client := new(MockStreamClient)
		p := NewStreamPublisher(client, "stream:registry_results", 0, testLogger())
		client.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
			return args.MaxLen == 0
		})).Return(errors.New("connection refused"))

		assert.Error(t, p.Publish(ctx, detailResult()))
	})
}

func TestOutboxPublisher_Publish(t *testing.T) {
	ctx := context.Background()
	store := new(MockOutboxStore)
	p := NewOutboxPublisher(store, "stream:registry_results", testLogger())

	result := &models.Result{JobID: "job-2", Type: models.JobTypeSearch, Query: "acme", Records: []models.SummaryRecord{}}
	store.On("Insert", ctx, mock.MatchedBy(func(e *database.OutboxEvent) bool {
		return e.AggregateType == "registry_job" &&
			e.AggregateID == "job-2" &&
			e.EventType == string(EventTypeSearchCompleted) &&
			e.TargetStream == "stream:registry_results" &&
			json.Valid(e.Payload)
	})).Return(nil)

	require.NoError(t, p.Publish(ctx, result))
	store.AssertExpectations(t)
}

func TestWriterPublisher(t *testing.T) {
	var buf bytes.Buffer
	p := NewWriterPublisher(&buf)

	require.NoError(t, p.Publish(context.Background(), &models.Result{JobID: "a", Type: models.JobTypeSearch}))
	require.NoError(t, p.Publish(context.Background(), &models.Result{JobID: "b", Type: models.JobTypeSearch}))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	assert.Contains(t, string(lines[1]), `"job_id":"b"`)
}
