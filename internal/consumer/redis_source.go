package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/maltedev/business-registry-scraper/internal/models"
)

// StreamClient is the part of the Redis client RedisSource needs.
type StreamClient interface {
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
	XAutoClaim(ctx context.Context, a *redis.XAutoClaimArgs) *redis.XAutoClaimCmd
}

type RedisSourceConfig struct {
	Stream   string
	Group    string
	Consumer string
	Block    time.Duration
	// ClaimMinIdle is how long a delivered job may stay unacknowledged before
	// it is handed out again. It must exceed the slowest job.
	ClaimMinIdle time.Duration
}

// RedisSource reads jobs from a Redis stream through a consumer group.
type RedisSource struct {
	client StreamClient
	cfg    RedisSourceConfig
	logger *slog.Logger

	mu          sync.Mutex
	claimCursor string
}

func NewRedisSource(client StreamClient, cfg RedisSourceConfig, logger *slog.Logger) *RedisSource {
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	if cfg.ClaimMinIdle <= 0 {
		cfg.ClaimMinIdle = 5 * time.Minute
	}
	return &RedisSource{
		client:      client,
		cfg:         cfg,
		logger:      logger.With("component", "redis_source", "stream", cfg.Stream, "group", cfg.Group),
		claimCursor: "0-0",
	}
}

// EnsureGroup creates the stream and consumer group if needed.
func (s *RedisSource) EnsureGroup(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, s.cfg.Stream, s.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// Fetch first takes over entries that have sat unacknowledged for
// ClaimMinIdle, whether left by a failed publish or by a dead worker, and only
// reads new entries when there are none.
func (s *RedisSource) Fetch(ctx context.Context, max int) ([]Delivery, error) {
	claimed, err := s.claimIdle(ctx, max)
	if err != nil {
		return nil, err
	}
	if len(claimed) > 0 {
		s.logger.Info("reclaimed pending jobs", "count", len(claimed))
		return s.deliveries(claimed), nil
	}

	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.cfg.Group,
		Consumer: s.cfg.Consumer,
		Streams:  []string{s.cfg.Stream, ">"},
		Count:    int64(max),
		Block:    s.cfg.Block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	var messages []redis.XMessage
	for _, stream := range streams {
		messages = append(messages, stream.Messages...)
	}

	s.logger.Debug("fetched jobs", "count", len(messages))
	return s.deliveries(messages), nil
}

// claimIdle walks the group's pending list with XAUTOCLAIM. The cursor is
// kept between calls and wraps to 0-0 at the end of the list.
func (s *RedisSource) claimIdle(ctx context.Context, max int) ([]redis.XMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages, next, err := s.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   s.cfg.Stream,
		Group:    s.cfg.Group,
		Consumer: s.cfg.Consumer,
		MinIdle:  s.cfg.ClaimMinIdle,
		Start:    s.claimCursor,
		Count:    int64(max),
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim pending jobs: %w", err)
	}

	if next == "" {
		next = "0-0"
	}
	s.claimCursor = next
	return messages, nil
}

func (s *RedisSource) deliveries(messages []redis.XMessage) []Delivery {
	deliveries := make([]Delivery, 0, len(messages))
	for _, msg := range messages {
		job, err := decodeJob(msg)
		id := msg.ID
		deliveries = append(deliveries, Delivery{
			MessageID: id,
			Job:       job,
			Err:       err,
			Ack: func(ctx context.Context) error {
				return s.client.XAck(ctx, s.cfg.Stream, s.cfg.Group, id).Err()
			},
		})
	}
	return deliveries
}

// decodeJob reads a job from a JSON "payload" field, or from flat
// id/type/query/url fields when there is none. The message id stands in for
// a missing job id.
func decodeJob(msg redis.XMessage) (models.Job, error) {
	var job models.Job

	if raw, ok := msg.Values["payload"]; ok {
		payload, ok := raw.(string)
		if !ok {
			return job, fmt.Errorf("%w: payload is not a string", models.ErrInvalidJob)
		}
		if err := json.Unmarshal([]byte(payload), &job); err != nil {
			return job, fmt.Errorf("%w: %v", models.ErrInvalidJob, err)
		}
	} else {
		job.ID = stringValue(msg.Values, "id")
		job.Type = models.JobType(stringValue(msg.Values, "type"))
		job.Query = stringValue(msg.Values, "query")
		job.URL = stringValue(msg.Values, "url")
	}

	job.Type = models.JobType(strings.ToLower(string(job.Type)))
	if job.ID == "" {
		job.ID = msg.ID
	}
	return job, nil
}

func stringValue(values map[string]interface{}, key string) string {
	s, _ := values[key].(string)
	return s
}
