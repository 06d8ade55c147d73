package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "form", cfg.Strategy)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
	assert.Equal(t, "UT", cfg.Site.State)
	assert.Equal(t, 10*time.Second, cfg.Browser.WaitTimeout)
	assert.Equal(t, 5*time.Second, cfg.Browser.ConfirmTimeout)
	assert.Equal(t, 10, cfg.Consumer.Prefetch)
	assert.Equal(t, 5*time.Minute, cfg.Consumer.ClaimMinIdle)
	assert.Equal(t, 0, cfg.Pipeline.MaxRetries)
	assert.Equal(t, "stream:registry_jobs", cfg.Redis.JobStream)
	assert.Equal(t, SinkStream, cfg.Results.Sink)
	assert.NotEmpty(t, cfg.Consumer.Name)
	assert.Empty(t, cfg.UserAgents)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("RETRIEVAL_STRATEGY", "browser")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("BROWSER_REMOTE_URL", "ws://playwright:3000/")
	t.Setenv("PIPELINE_MAX_RETRIES", "2")
	t.Setenv("SCRAPER_USER_AGENTS", "Mozilla/5.0 (X11; Linux x86_64) Chrome/120, Safari|curl/8.0")
	t.Setenv("RESULT_SINK", "outbox")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "browser", cfg.Strategy)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "ws://playwright:3000/", cfg.BrowserOptions().RemoteURL)
	assert.Equal(t, 2, cfg.Pipeline.MaxRetries)
	assert.Equal(t, []string{"Mozilla/5.0 (X11; Linux x86_64) Chrome/120, Safari", "curl/8.0"}, cfg.UserAgents)
	assert.Equal(t, SinkOutbox, cfg.Results.Sink)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "unknown strategy", mutate: func(c *Config) { c.Strategy = "selenium" }, wantErr: "RETRIEVAL_STRATEGY"},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "SERVER_PORT"},
		{name: "pattern without placeholder", mutate: func(c *Config) { c.Site.DetailURLPattern = "https://x/" }, wantErr: "SITE_DETAIL_URL_PATTERN"},
		{name: "zero prefetch", mutate: func(c *Config) { c.Consumer.Prefetch = 0 }, wantErr: "CONSUMER_PREFETCH"},
		{name: "zero claim idle", mutate: func(c *Config) { c.Consumer.ClaimMinIdle = 0 }, wantErr: "CONSUMER_CLAIM_MIN_IDLE"},
		{name: "negative retries", mutate: func(c *Config) { c.Pipeline.MaxRetries = -1 }, wantErr: "PIPELINE_MAX_RETRIES"},
		{name: "unknown sink", mutate: func(c *Config) { c.Results.Sink = "kafka" }, wantErr: "RESULT_SINK"},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: "LOG_LEVEL"},
		{name: "bad log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "LOG_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			cfg, err := Load()
			require.NoError(t, err)

			tt.mutate(cfg)

			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	NewLogger(LoggingConfig{Level: "warn", Format: "json"}, &buf).Info("hidden")
	assert.Empty(t, buf.String())

	NewLogger(LoggingConfig{Level: "debug", Format: "text"}, &buf).Debug("shown", "k", "v")
	assert.Contains(t, buf.String(), "msg=shown")
	assert.Contains(t, buf.String(), "k=v")
}

func TestDerivedOptions(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load()
	require.NoError(t, err)

	site := cfg.ScraperSite()
	assert.Equal(t, cfg.Site.SearchURL, site.SearchURL)
	assert.Equal(t, "https://businessregistration.utah.gov", site.Origin())

	timeouts := cfg.ScraperTimeouts()
	assert.Equal(t, cfg.HTTPForm.RequestTimeout, timeouts.Request)

	db := cfg.DatabaseConfig()
	assert.Equal(t, "registry_scraper", db.Database)
}
