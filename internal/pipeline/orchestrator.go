package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/business-registry-scraper/internal/metrics"
	"github.com/maltedev/business-registry-scraper/internal/models"
	"github.com/maltedev/business-registry-scraper/internal/parser"
	"github.com/maltedev/business-registry-scraper/internal/ratelimit"
	"github.com/maltedev/business-registry-scraper/internal/scraper"
	"github.com/maltedev/business-registry-scraper/internal/useragent"
)

const (
	opSearch = "search"
	opDetail = "detail"
)

type Options struct {
	// MaxRetries is the number of extra attempts after a failed retrieval.
	// Zero disables retrying.
	MaxRetries int
	// RetryBackoff is multiplied by the attempt number before each retry.
	RetryBackoff time.Duration
}

// Orchestrator runs one retrieval strategy and the matching parser, and
// degrades every failure to an empty result.
type Orchestrator struct {
	strategy scraper.Strategy
	parser   parser.RegistryParser
	agents   useragent.Source
	limiter  ratelimit.Limiter
	metrics  *metrics.Metrics
	opts     Options
	logger   *slog.Logger
}

func New(strategy scraper.Strategy, p parser.RegistryParser, agents useragent.Source, limiter ratelimit.Limiter, m *metrics.Metrics, opts Options, logger *slog.Logger) *Orchestrator {
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &Orchestrator{
		strategy: strategy,
		parser:   p,
		agents:   agents,
		limiter:  limiter,
		metrics:  m,
		opts:     opts,
		logger:   logger.With("component", "orchestrator", "strategy", strategy.Name()),
	}
}

func (o *Orchestrator) StrategyName() string {
	return o.strategy.Name()
}

// Search returns the entities whose name starts with query. The result is
// never nil; any failure yields an empty slice.
func (o *Orchestrator) Search(ctx context.Context, query string) (records []models.SummaryRecord) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("search panicked", "query", query, "panic", fmt.Sprint(r))
			o.metrics.IncFailure(o.strategy.Name(), opSearch)
			records = make([]models.SummaryRecord, 0)
		}
	}()

	req := models.RetrievalRequest{Param: query, UserAgent: o.agents.UserAgent()}
	html, err := o.fetch(ctx, opSearch, req, o.strategy.FetchSearch)
	if err != nil {
		o.logger.Error("search retrieval failed", "query", query, "error", err)
		o.metrics.IncFailure(o.strategy.Name(), opSearch)
		return make([]models.SummaryRecord, 0)
	}
	if html == "" {
		o.logger.Warn("search returned no content", "query", query)
		o.metrics.IncEmpty(opSearch)
		return make([]models.SummaryRecord, 0)
	}

	records, err = o.parser.ParseSearch(html)
	if err != nil {
		o.logger.Error("failed to parse search results", "query", query, "error", err)
		o.metrics.IncFailure(o.strategy.Name(), opSearch)
		return make([]models.SummaryRecord, 0)
	}
	if records == nil {
		records = make([]models.SummaryRecord, 0)
	}
	if len(records) == 0 {
		o.metrics.IncEmpty(opSearch)
	}

	o.logger.Info("search completed", "query", query, "records", len(records))
	return records
}

// Lookup returns the detail record behind a detail URL, or nil when it could
// not be retrieved or parsed.
func (o *Orchestrator) Lookup(ctx context.Context, detailURL string) (record *models.DetailRecord) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("lookup panicked", "url", detailURL, "panic", fmt.Sprint(r))
			o.metrics.IncFailure(o.strategy.Name(), opDetail)
			record = nil
		}
	}()

	id, err := scraper.EntityIDFromURL(detailURL)
	if err != nil {
		o.logger.Error("invalid detail URL", "url", detailURL, "error", err)
		o.metrics.IncFailure(o.strategy.Name(), opDetail)
		return nil
	}

	req := models.RetrievalRequest{URL: detailURL, Param: id, UserAgent: o.agents.UserAgent()}
	html, err := o.fetch(ctx, opDetail, req, o.strategy.FetchDetail)
	if err != nil {
		o.logger.Error("detail retrieval failed", "url", detailURL, "error", err)
		o.metrics.IncFailure(o.strategy.Name(), opDetail)
		return nil
	}
	if html == "" {
		o.logger.Warn("detail returned no content", "url", detailURL)
		o.metrics.IncEmpty(opDetail)
		return nil
	}

	record, err = o.parser.ParseDetail(html)
	if errors.Is(err, parser.ErrNotDetailPage) {
		o.logger.Warn("page is not an entity detail page", "url", detailURL)
		o.metrics.IncEmpty(opDetail)
		return nil
	}
	if err != nil {
		o.logger.Error("failed to parse detail page", "url", detailURL, "error", err)
		o.metrics.IncFailure(o.strategy.Name(), opDetail)
		return nil
	}

	o.logger.Info("lookup completed", "url", detailURL, "name", models.Deref(record.Name))
	return record
}

type fetchFunc func(context.Context, models.RetrievalRequest) (string, error)

// fetch calls the strategy, retrying retrieval errors up to MaxRetries times
// with linear backoff. Empty content is not an error and is never retried.
func (o *Orchestrator) fetch(ctx context.Context, op string, req models.RetrievalRequest, fn fetchFunc) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= o.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(o.opts.RetryBackoff * time.Duration(attempt)):
			}
		}

		if err := o.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}

		start := time.Now()
		html, err := fn(ctx, req)
		o.metrics.ObserveRetrieval(o.strategy.Name(), op, time.Since(start))
		if err == nil {
			return html, nil
		}

		lastErr = err
		if ctx.Err() != nil || errors.Is(err, scraper.ErrInvalidURL) {
			break
		}
		if attempt < o.opts.MaxRetries {
			o.logger.Warn("retrieval failed, retrying", "op", op, "param", req.Param, "attempt", attempt+1, "error", err)
		}
	}
	return "", lastErr
}
