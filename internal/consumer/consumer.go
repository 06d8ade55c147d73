package consumer

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/maltedev/business-registry-scraper/internal/events"
	"github.com/maltedev/business-registry-scraper/internal/metrics"
	"github.com/maltedev/business-registry-scraper/internal/models"
)

// ErrSourceClosed is returned by a Source that will never yield more jobs.
var ErrSourceClosed = errors.New("job source closed")

// Delivery is one job handed out by a Source. Err is set when the message
// could not be decoded; it is acknowledged and dropped.
type Delivery struct {
	MessageID string
	Job       models.Job
	Err       error
	Ack       func(ctx context.Context) error
}

type Source interface {
	// Fetch returns up to max deliveries. An empty slice with a nil error
	// means nothing arrived in time.
	Fetch(ctx context.Context, max int) ([]Delivery, error)
}

// Scraper is satisfied by the pipeline orchestrator.
type Scraper interface {
	Search(ctx context.Context, query string) []models.SummaryRecord
	Lookup(ctx context.Context, url string) *models.DetailRecord
	StrategyName() string
}

type Config struct {
	// Prefetch caps how many jobs are fetched and processed at once.
	Prefetch int
	// FetchBackoff is the pause after a failed fetch.
	FetchBackoff time.Duration
}

type Consumer struct {
	source    Source
	scraper   Scraper
	publisher events.Publisher
	cfg       Config
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func New(source Source, scraper Scraper, publisher events.Publisher, cfg Config, m *metrics.Metrics, logger *slog.Logger) *Consumer {
	if cfg.Prefetch < 1 {
		cfg.Prefetch = 1
	}
	if cfg.FetchBackoff <= 0 {
		cfg.FetchBackoff = time.Second
	}
	return &Consumer{
		source:    source,
		scraper:   scraper,
		publisher: publisher,
		cfg:       cfg,
		metrics:   m,
		logger:    logger.With("component", "consumer"),
	}
}

// Process runs one job through the scraper. It never fails; an empty
// outcome is reported with Found set to false.
func (c *Consumer) Process(ctx context.Context, job models.Job) *models.Result {
	result := &models.Result{
		JobID:    job.ID,
		Type:     job.Type,
		Query:    job.Query,
		URL:      job.URL,
		Strategy: c.scraper.StrategyName(),
	}

	switch job.Type {
	case models.JobTypeSearch:
		result.Records = c.scraper.Search(ctx, job.Query)
		result.Found = len(result.Records) > 0
	case models.JobTypeDetail:
		result.Detail = c.scraper.Lookup(ctx, job.URL)
		result.Found = result.Detail != nil
	}

	result.CompletedAt = time.Now().UTC()
	return result
}

// Run fetches and processes jobs until ctx is cancelled or the source is
// drained. At most Prefetch jobs are in flight; a slot freed by a finished
// job is refilled without waiting for the rest of its batch.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("consumer started", "prefetch", c.cfg.Prefetch)

	var (
		g        errgroup.Group
		inFlight atomic.Int64
		freed    = make(chan struct{}, 1)
	)
	g.SetLimit(c.cfg.Prefetch)

	for ctx.Err() == nil {
		free := c.cfg.Prefetch - int(inFlight.Load())
		if free <= 0 {
			select {
			case <-ctx.Done():
			case <-freed:
			}
			continue
		}

		deliveries, err := c.source.Fetch(ctx, free)
		if errors.Is(err, ErrSourceClosed) {
			c.logger.Info("job source drained")
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			c.logger.Error("failed to fetch jobs", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(c.cfg.FetchBackoff):
			}
			continue
		}

		for _, d := range deliveries {
			inFlight.Add(1)
			g.Go(func() error {
				defer func() {
					inFlight.Add(-1)
					select {
					case freed <- struct{}{}:
					default:
					}
				}()
				c.handle(ctx, d)
				return nil
			})
		}
	}

	_ = g.Wait()
	c.logger.Info("consumer stopped")
	return nil
}

func (c *Consumer) handle(ctx context.Context, d Delivery) {
	err := d.Err
	if err == nil {
		err = d.Job.Validate()
	}
	if err != nil {
		c.logger.Warn("dropping malformed job", "message_id", d.MessageID, "error", err)
		c.metrics.ObserveJob(string(d.Job.Type), "invalid")
		c.ack(ctx, d)
		return
	}

	result := c.Process(ctx, d.Job)

	if err := c.publisher.Publish(ctx, result); err != nil {
		// Left unacknowledged; the source hands it out again once it has been
		// idle long enough.
		c.logger.Error("failed to publish result", "job_id", d.Job.ID, "message_id", d.MessageID, "error", err)
		c.metrics.ObserveJob(string(d.Job.Type), "publish_failed")
		return
	}

	outcome := "empty"
	if result.Found {
		outcome = "found"
	}
	c.metrics.ObserveJob(string(d.Job.Type), outcome)
	c.logger.Info("job processed", "job_id", d.Job.ID, "type", d.Job.Type, "found", result.Found)

	c.ack(ctx, d)
}

func (c *Consumer) ack(ctx context.Context, d Delivery) {
	if d.Ack == nil {
		return
	}
	if err := d.Ack(ctx); err != nil {
		c.logger.Error("failed to acknowledge message", "message_id", d.MessageID, "error", err)
	}
}
