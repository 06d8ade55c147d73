package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/maltedev/business-registry-scraper/internal/api"
	"github.com/maltedev/business-registry-scraper/internal/browser"
	"github.com/maltedev/business-registry-scraper/internal/config"
	"github.com/maltedev/business-registry-scraper/internal/consumer"
	"github.com/maltedev/business-registry-scraper/internal/database"
	"github.com/maltedev/business-registry-scraper/internal/events"
	"github.com/maltedev/business-registry-scraper/internal/jobs"
	"github.com/maltedev/business-registry-scraper/internal/metrics"
	"github.com/maltedev/business-registry-scraper/internal/parser"
	"github.com/maltedev/business-registry-scraper/internal/pipeline"
	"github.com/maltedev/business-registry-scraper/internal/ratelimit"
	"github.com/maltedev/business-registry-scraper/internal/scraper"
	"github.com/maltedev/business-registry-scraper/internal/useragent"
)

func main() {
	if err := run(); err != nil {
		slog.Error("registry scraper failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := config.NewLogger(cfg.Logging, os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	strategy, closeStrategy, err := newStrategy(cfg, m, logger)
	if err != nil {
		return err
	}
	defer closeStrategy()

	orchestrator := pipeline.New(
		strategy,
		parser.New(cfg.ParserOptions()),
		useragent.NewRotating(cfg.UserAgents),
		ratelimit.New(cfg.Pipeline.RateLimit, cfg.Pipeline.RateBurst),
		m,
		pipeline.Options{
			MaxRetries:   cfg.Pipeline.MaxRetries,
			RetryBackoff: cfg.Pipeline.RetryBackoff,
		},
		logger,
	)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	var (
		publisher events.Publisher
		backlog   api.BacklogFunc
	)
	switch cfg.Results.Sink {
	case config.SinkOutbox:
		db, err := database.New(ctx, cfg.DatabaseConfig())
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			return err
		}
		defer db.Close()

		if err := db.EnsureSchema(ctx); err != nil {
			return err
		}

		outbox := database.NewOutboxRepository(db)
		publisher = events.NewOutboxPublisher(outbox, cfg.Redis.ResultStream, logger)

		relay := database.NewRelay(outbox, redisClient, logger, database.RelayConfig{
			PollInterval: cfg.Results.RelayInterval,
			BatchSize:    cfg.Results.RelayBatchSize,
		})
		backlog = relay.Backlog
		g.Go(func() error {
			if err := relay.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	default:
		publisher = events.NewStreamPublisher(redisClient, cfg.Redis.ResultStream, cfg.Redis.ResultMaxLen, logger)
	}

	if cfg.Consumer.Enabled {
		source := consumer.NewRedisSource(redisClient, consumer.RedisSourceConfig{
			Stream:       cfg.Redis.JobStream,
			Group:        cfg.Consumer.Group,
			Consumer:     cfg.Consumer.Name,
			Block:        cfg.Consumer.Block,
			ClaimMinIdle: cfg.Consumer.ClaimMinIdle,
		}, logger)
		if err := source.EnsureGroup(ctx); err != nil {
			return err
		}

		c := consumer.New(source, orchestrator, publisher, consumer.Config{
			Prefetch: cfg.Consumer.Prefetch,
		}, m, logger)
		g.Go(func() error {
			return c.Run(gctx)
		})
	}

	handlers := api.NewHandlers(
		orchestrator,
		jobs.NewStreamProducer(redisClient, cfg.Redis.JobStream, logger),
		backlog,
		logger,
	)
	server := &http.Server{
		Addr: cfg.Server.Address(),
		Handler: api.NewRouter(handlers, api.RouterOptions{
			RequestTimeout: cfg.Server.WriteTimeout,
			Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		}, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	g.Go(func() error {
		logger.Info("server starting",
			"addr", server.Addr,
			"strategy", orchestrator.StrategyName(),
			"sink", cfg.Results.Sink,
			"consumer", cfg.Consumer.Enabled)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// newStrategy builds the configured retrieval strategy and its cleanup.
func newStrategy(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (scraper.Strategy, func(), error) {
	kind, err := scraper.ParseKind(cfg.Strategy)
	if err != nil {
		return nil, nil, err
	}

	switch kind {
	case scraper.KindBrowser:
		launcher, err := browser.NewLauncher(cfg.BrowserOptions(), logger)
		if err != nil {
			logger.Error("failed to initialize browser", "error", err)
			return nil, nil, err
		}
		closeLauncher := func() {
			if err := launcher.Close(); err != nil {
				logger.Warn("failed to close browser", "error", err)
			}
		}
		s := scraper.NewBrowserStrategy(scraper.LauncherOpener(launcher), cfg.ScraperSite(), cfg.ScraperTimeouts(), m, logger)
		return s, closeLauncher, nil
	default:
		return scraper.NewFormStrategy(cfg.ScraperSite(), cfg.ScraperTimeouts(), m, logger), func() {}, nil
	}
}
