package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/maltedev/business-registry-scraper/internal/browser"
	"github.com/maltedev/business-registry-scraper/internal/config"
	"github.com/maltedev/business-registry-scraper/internal/consumer"
	"github.com/maltedev/business-registry-scraper/internal/events"
	"github.com/maltedev/business-registry-scraper/internal/jobs"
	"github.com/maltedev/business-registry-scraper/internal/models"
	"github.com/maltedev/business-registry-scraper/internal/parser"
	"github.com/maltedev/business-registry-scraper/internal/pipeline"
	"github.com/maltedev/business-registry-scraper/internal/queue"
	"github.com/maltedev/business-registry-scraper/internal/ratelimit"
	"github.com/maltedev/business-registry-scraper/internal/scraper"
	"github.com/maltedev/business-registry-scraper/internal/useragent"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "search: %v\n", err)
		os.Exit(1)
	}
}

var errUsage = errors.New("provide -query, -url or -batch")

func run() error {
	var (
		query       = flag.String("query", "", "Business name to search for")
		detailURL   = flag.String("url", "", "Entity detail URL to look up")
		batchFile   = flag.String("batch", "", "File with one query or detail URL per line (- for stdin)")
		strategy    = flag.String("strategy", "", "Retrieval strategy: browser or form (overrides RETRIEVAL_STRATEGY)")
		concurrency = flag.Int("concurrency", 1, "Jobs processed at once in batch mode")
	)
	flag.Parse()

	if *query == "" && *detailURL == "" && *batchFile == "" {
		flag.Usage()
		return errUsage
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if *strategy != "" {
		cfg.Strategy = *strategy
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// stdout carries results only.
	logger := config.NewLogger(cfg.Logging, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, cleanup, err := newStrategy(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize retrieval strategy: %w", err)
	}
	defer cleanup()

	orchestrator := pipeline.New(
		s,
		parser.New(cfg.ParserOptions()),
		useragent.NewRotating(cfg.UserAgents),
		ratelimit.New(cfg.Pipeline.RateLimit, cfg.Pipeline.RateBurst),
		nil,
		pipeline.Options{
			MaxRetries:   cfg.Pipeline.MaxRetries,
			RetryBackoff: cfg.Pipeline.RetryBackoff,
		},
		logger,
	)

	switch {
	case *batchFile != "":
		return runBatch(ctx, orchestrator, *batchFile, *concurrency, logger)
	case *detailURL != "":
		return printJSON(orchestrator.Lookup(ctx, *detailURL))
	default:
		return printJSON(orchestrator.Search(ctx, *query))
	}
}

// runBatch queues every line of path as a job and drains the queue through
// a consumer that writes one JSON result per line to stdout.
func runBatch(ctx context.Context, o *pipeline.Orchestrator, path string, concurrency int, logger *slog.Logger) error {
	in, err := openInput(path)
	if err != nil {
		return err
	}
	defer in.Close()

	q := queue.NewInMemoryQueue()
	producer := jobs.NewQueueProducer(q)

	scanner := bufio.NewScanner(in)
	queued := 0
	for scanner.Scan() {
		job := jobFromLine(scanner.Text())
		if job == nil {
			continue
		}
		if _, err := producer.Enqueue(ctx, job); err != nil {
			logger.Warn("skipping line", "line", scanner.Text(), "error", err)
			continue
		}
		queued++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read batch input: %w", err)
	}
	if err := q.Close(); err != nil {
		return err
	}

	logger.Info("batch queued", "jobs", queued)

	c := consumer.New(
		consumer.NewMemorySource(q, concurrency),
		o,
		events.NewWriterPublisher(os.Stdout),
		consumer.Config{Prefetch: concurrency},
		nil,
		logger,
	)
	return c.Run(ctx)
}

// jobFromLine treats URLs as detail lookups and anything else as a search.
func jobFromLine(line string) *models.Job {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}
	if strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://") {
		return &models.Job{Type: models.JobTypeDetail, URL: line}
	}
	return &models.Job{Type: models.JobTypeSearch, Query: line}
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open batch file: %w", err)
	}
	return f, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newStrategy(cfg *config.Config, logger *slog.Logger) (scraper.Strategy, func(), error) {
	kind, err := scraper.ParseKind(cfg.Strategy)
	if err != nil {
		return nil, nil, err
	}
	if kind != scraper.KindBrowser {
		return scraper.NewFormStrategy(cfg.ScraperSite(), cfg.ScraperTimeouts(), nil, logger), func() {}, nil
	}

	launcher, err := browser.NewLauncher(cfg.BrowserOptions(), logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := launcher.Close(); err != nil {
			logger.Warn("failed to close browser", "error", err)
		}
	}
	return scraper.NewBrowserStrategy(scraper.LauncherOpener(launcher), cfg.ScraperSite(), cfg.ScraperTimeouts(), nil, logger), cleanup, nil
}
