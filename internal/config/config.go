package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/maltedev/business-registry-scraper/internal/browser"
	"github.com/maltedev/business-registry-scraper/internal/database"
	"github.com/maltedev/business-registry-scraper/internal/parser"
	"github.com/maltedev/business-registry-scraper/internal/scraper"
)

type Config struct {
	Strategy   string         `env:"RETRIEVAL_STRATEGY" envDefault:"form"`
	UserAgents []string       `env:"SCRAPER_USER_AGENTS" envSeparator:"|"`
	Server     ServerConfig   `envPrefix:"SERVER_"`
	Site       SiteConfig     `envPrefix:"SITE_"`
	Browser    BrowserConfig  `envPrefix:"BROWSER_"`
	HTTPForm   HTTPFormConfig `envPrefix:"HTTP_"`
	Pipeline   PipelineConfig `envPrefix:"PIPELINE_"`
	Consumer   ConsumerConfig `envPrefix:"CONSUMER_"`
	Redis      RedisConfig    `envPrefix:"REDIS_"`
	Database   DatabaseConfig `envPrefix:"DB_"`
	Results    ResultsConfig  `envPrefix:"RESULT_"`
	Logging    LoggingConfig  `envPrefix:"LOG_"`
}

type ServerConfig struct {
	Host            string        `env:"HOST" envDefault:"0.0.0.0"`
	Port            int           `env:"PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type SiteConfig struct {
	State            string `env:"STATE" envDefault:"UT"`
	OriginURL        string `env:"ORIGIN_URL" envDefault:"https://businessregistration.utah.gov/"`
	SearchURL        string `env:"SEARCH_URL" envDefault:"https://businessregistration.utah.gov/EntitySearch/OnlineBusinessAndMarkSearchResult"`
	SearchReferer    string `env:"SEARCH_REFERER" envDefault:"https://businessregistration.utah.gov/EntitySearch/OnlineEntitySearch"`
	DetailReferer    string `env:"DETAIL_REFERER" envDefault:"https://businessregistration.utah.gov/EntitySearch/OnlineBusinessAndMarkSearchResult"`
	DetailURLPattern string `env:"DETAIL_URL_PATTERN" envDefault:"https://businessregistration.utah.gov/EntitySearch/BusinessInformation/%s"`
}

type BrowserConfig struct {
	RemoteURL         string        `env:"REMOTE_URL"`
	Headless          bool          `env:"HEADLESS" envDefault:"true"`
	NavigationTimeout time.Duration `env:"NAVIGATION_TIMEOUT" envDefault:"30s"`
	WaitTimeout       time.Duration `env:"WAIT_TIMEOUT" envDefault:"10s"`
	ConfirmTimeout    time.Duration `env:"CONFIRM_TIMEOUT" envDefault:"5s"`
	ViewportWidth     int           `env:"VIEWPORT_WIDTH" envDefault:"1920"`
	ViewportHeight    int           `env:"VIEWPORT_HEIGHT" envDefault:"1080"`
	Locale            string        `env:"LOCALE" envDefault:"en-US"`
	AcceptLanguage    string        `env:"ACCEPT_LANGUAGE" envDefault:"en-US,en;q=0.9"`
	TimezoneID        string        `env:"TIMEZONE" envDefault:"America/Denver"`
}

type HTTPFormConfig struct {
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
}

type PipelineConfig struct {
	MaxRetries   int           `env:"MAX_RETRIES" envDefault:"0"`
	RetryBackoff time.Duration `env:"RETRY_BACKOFF" envDefault:"2s"`
	// RateLimit is requests per second against the registry; 0 disables it.
	RateLimit float64 `env:"RATE_LIMIT" envDefault:"0"`
	RateBurst int     `env:"RATE_BURST" envDefault:"1"`
}

type ConsumerConfig struct {
	Enabled  bool          `env:"ENABLED" envDefault:"true"`
	Prefetch int           `env:"PREFETCH" envDefault:"10"`
	Group    string        `env:"GROUP" envDefault:"registry-scraper"`
	Name     string        `env:"NAME"`
	Block    time.Duration `env:"BLOCK" envDefault:"5s"`
	// ClaimMinIdle is how long a job may stay unacknowledged before another
	// fetch takes it over again.
	ClaimMinIdle time.Duration `env:"CLAIM_MIN_IDLE" envDefault:"5m"`
}

type RedisConfig struct {
	Addr         string `env:"ADDR" envDefault:"localhost:6379"`
	Password     string `env:"PASSWORD"`
	DB           int    `env:"DB" envDefault:"0"`
	JobStream    string `env:"JOB_STREAM" envDefault:"stream:registry_jobs"`
	ResultStream string `env:"RESULT_STREAM" envDefault:"stream:registry_results"`
	ResultMaxLen int64  `env:"RESULT_MAXLEN" envDefault:"10000"`
}

type DatabaseConfig struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     int    `env:"PORT" envDefault:"5432"`
	User     string `env:"USER" envDefault:"postgres"`
	Password string `env:"PASSWORD"`
	Name     string `env:"NAME" envDefault:"registry_scraper"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"`
	MaxConns int32  `env:"MAX_CONNS" envDefault:"10"`
}

const (
	SinkStream = "stream"
	SinkOutbox = "outbox"
)

type ResultsConfig struct {
	Sink           string        `env:"SINK" envDefault:"stream"`
	RelayInterval  time.Duration `env:"RELAY_INTERVAL" envDefault:"5s"`
	RelayBatchSize int           `env:"RELAY_BATCH_SIZE" envDefault:"100"`
}

type LoggingConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

// Load reads a .env file when present, then the environment. Variables that
// are already set win over the file.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if cfg.Consumer.Name == "" {
		cfg.Consumer.Name = defaultConsumerName()
	}
	return &cfg, nil
}

func defaultConsumerName() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-1"
}

func (c *Config) Validate() error {
	var errs []error

	if _, err := scraper.ParseKind(c.Strategy); err != nil {
		errs = append(errs, fmt.Errorf("RETRIEVAL_STRATEGY: %w", err))
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, errors.New("SERVER_PORT must be between 1 and 65535"))
	}
	if c.Site.OriginURL == "" || c.Site.SearchURL == "" {
		errs = append(errs, errors.New("SITE_ORIGIN_URL and SITE_SEARCH_URL are required"))
	}
	if strings.Count(c.Site.DetailURLPattern, "%s") != 1 {
		errs = append(errs, errors.New("SITE_DETAIL_URL_PATTERN must contain exactly one %s"))
	}
	if c.Browser.WaitTimeout <= 0 || c.Browser.ConfirmTimeout <= 0 {
		errs = append(errs, errors.New("BROWSER_WAIT_TIMEOUT and BROWSER_CONFIRM_TIMEOUT must be positive"))
	}
	if c.Pipeline.MaxRetries < 0 {
		errs = append(errs, errors.New("PIPELINE_MAX_RETRIES cannot be negative"))
	}
	if c.Pipeline.RateLimit < 0 {
		errs = append(errs, errors.New("PIPELINE_RATE_LIMIT cannot be negative"))
	}
	if c.Consumer.Prefetch < 1 {
		errs = append(errs, errors.New("CONSUMER_PREFETCH must be at least 1"))
	}
	if c.Consumer.ClaimMinIdle <= 0 {
		errs = append(errs, errors.New("CONSUMER_CLAIM_MIN_IDLE must be positive"))
	}
	if c.Results.Sink != SinkStream && c.Results.Sink != SinkOutbox {
		errs = append(errs, fmt.Errorf("RESULT_SINK must be %q or %q", SinkStream, SinkOutbox))
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		errs = append(errs, errors.New("LOG_FORMAT must be json or text"))
	}

	return errors.Join(errs...)
}

func (c *Config) ScraperSite() scraper.Site {
	return scraper.Site{
		OriginURL:     c.Site.OriginURL,
		SearchURL:     c.Site.SearchURL,
		SearchReferer: c.Site.SearchReferer,
		DetailReferer: c.Site.DetailReferer,
	}
}

func (c *Config) ScraperTimeouts() scraper.Timeouts {
	return scraper.Timeouts{
		Wait:    c.Browser.WaitTimeout,
		Confirm: c.Browser.ConfirmTimeout,
		Request: c.HTTPForm.RequestTimeout,
	}
}

func (c *Config) ParserOptions() parser.Options {
	return parser.Options{
		State:            c.Site.State,
		DetailURLPattern: c.Site.DetailURLPattern,
	}
}

func (c *Config) BrowserOptions() *browser.Options {
	opts := browser.DefaultOptions()
	opts.RemoteURL = c.Browser.RemoteURL
	opts.Headless = c.Browser.Headless
	opts.NavigationTimeout = c.Browser.NavigationTimeout
	opts.ViewportWidth = c.Browser.ViewportWidth
	opts.ViewportHeight = c.Browser.ViewportHeight
	opts.Locale = c.Browser.Locale
	opts.AcceptLanguage = c.Browser.AcceptLanguage
	opts.TimezoneID = c.Browser.TimezoneID
	return opts
}

func (c *Config) DatabaseConfig() database.Config {
	return database.Config{
		Host:     c.Database.Host,
		Port:     c.Database.Port,
		User:     c.Database.User,
		Password: c.Database.Password,
		Database: c.Database.Name,
		SSLMode:  c.Database.SSLMode,
		MaxConns: c.Database.MaxConns,
	}
}

// NewLogger builds the process logger from the logging settings.
func NewLogger(cfg LoggingConfig, w io.Writer) *slog.Logger {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", s)
	}
	return level, nil
}
