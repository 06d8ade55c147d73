package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/maltedev/business-registry-scraper/internal/database"
	"github.com/maltedev/business-registry-scraper/internal/models"
)

type EventType string

const (
	EventTypeSearchCompleted EventType = "SEARCH_COMPLETED"
	EventTypeDetailCompleted EventType = "DETAIL_COMPLETED"

	aggregateType = "registry_job"
	sourceName    = "registry-scraper"
)

// Publisher delivers a finished job result downstream.
type Publisher interface {
	Publish(ctx context.Context, result *models.Result) error
}

func eventTypeFor(jobType models.JobType) EventType {
	if jobType == models.JobTypeDetail {
		return EventTypeDetailCompleted
	}
	return EventTypeSearchCompleted
}

// newEvent wraps result in an outbox-shaped event for stream.
func newEvent(result *models.Result, stream string) (*database.OutboxEvent, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return &database.OutboxEvent{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   result.JobID,
		EventType:     string(eventTypeFor(result.Type)),
		Payload:       data,
		TargetStream:  stream,
		CreatedAt:     time.Now(),
	}, nil
}

// StreamClient is the part of the Redis client StreamPublisher needs.
type StreamClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

// StreamPublisher appends results straight to a Redis stream.
type StreamPublisher struct {
	client StreamClient
	stream string
	maxLen int64
	logger *slog.Logger
}

func NewStreamPublisher(client StreamClient, stream string, maxLen int64, logger *slog.Logger) *StreamPublisher {
	return &StreamPublisher{
		client: client,
		stream: stream,
		maxLen: maxLen,
		logger: logger.With("component", "stream_publisher"),
	}
}

func (p *StreamPublisher) Publish(ctx context.Context, result *models.Result) error {
	event, err := newEvent(result, p.stream)
	if err != nil {
		return err
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: database.StreamValues(event, sourceName),
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("failed to publish result: %w", err)
	}

	p.logger.Debug("result published",
		"job_id", result.JobID,
		"event_type", event.EventType,
		"stream", p.stream,
		"message_id", id)
	return nil
}

// OutboxStore is the part of the outbox repository OutboxPublisher needs.
type OutboxStore interface {
	Insert(ctx context.Context, event *database.OutboxEvent) error
}

// OutboxPublisher stores results in the transactional outbox; the relay
// forwards them to the stream.
type OutboxPublisher struct {
	outbox OutboxStore
	stream string
	logger *slog.Logger
}

func NewOutboxPublisher(outbox OutboxStore, stream string, logger *slog.Logger) *OutboxPublisher {
	return &OutboxPublisher{
		outbox: outbox,
		stream: stream,
		logger: logger.With("component", "outbox_publisher"),
	}
}

func (p *OutboxPublisher) Publish(ctx context.Context, result *models.Result) error {
	event, err := newEvent(result, p.stream)
	if err != nil {
		return err
	}

	if err := p.outbox.Insert(ctx, event); err != nil {
		return fmt.Errorf("failed to publish result: %w", err)
	}

	p.logger.Info("result stored in outbox",
		"job_id", result.JobID,
		"event_type", event.EventType,
		"outbox_id", event.ID)
	return nil
}

// WriterPublisher writes each result as one JSON line.
type WriterPublisher struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewWriterPublisher(w io.Writer) *WriterPublisher {
	return &WriterPublisher{enc: json.NewEncoder(w)}
}

func (p *WriterPublisher) Publish(_ context.Context, result *models.Result) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enc.Encode(result)
}
