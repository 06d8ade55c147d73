package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/maltedev/business-registry-scraper/internal/models"
	"github.com/maltedev/business-registry-scraper/internal/queue"
)

// Enqueuer hands a job to whatever runs the consumer.
type Enqueuer interface {
	Enqueue(ctx context.Context, job *models.Job) (string, error)
}

// prepare validates job and fills in its id and enqueue time.
func prepare(job *models.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	return nil
}

// StreamClient is the part of the Redis client StreamProducer needs.
type StreamClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

// StreamProducer appends jobs to the Redis job stream in the format the
// consumer's RedisSource reads.
type StreamProducer struct {
	client StreamClient
	stream string
	logger *slog.Logger
}

func NewStreamProducer(client StreamClient, stream string, logger *slog.Logger) *StreamProducer {
	return &StreamProducer{
		client: client,
		stream: stream,
		logger: logger.With("component", "job_producer"),
	}
}

func (p *StreamProducer) Enqueue(ctx context.Context, job *models.Job) (string, error) {
	if err := prepare(job); err != nil {
		return "", err
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}

	msgID, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"payload": string(payload),
			"type":    string(job.Type),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}

	p.logger.Info("job enqueued", "job_id", job.ID, "type", job.Type, "message_id", msgID)
	return job.ID, nil
}

// QueueProducer feeds an in-process queue.
type QueueProducer struct {
	queue queue.Queue
}

func NewQueueProducer(q queue.Queue) *QueueProducer {
	return &QueueProducer{queue: q}
}

func (p *QueueProducer) Enqueue(_ context.Context, job *models.Job) (string, error) {
	if err := prepare(job); err != nil {
		return "", err
	}
	if err := p.queue.Push(job); err != nil {
		return "", err
	}
	return job.ID, nil
}
