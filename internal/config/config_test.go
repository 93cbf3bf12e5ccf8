package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"API_KEY", "FMP_API_KEY", "STOCKS_BASE_URL", "STOCKS_START_DATE", "STOCKS_OUTPUT",
		"STOCKS_FORMAT", "STOCKS_LEDGER", "STOCKS_SCHEDULE", "STOCKS_RATE_STRATEGY",
		"STOCKS_LOG_LEVEL", "STOCKS_LOG_FORMAT", "STOCKS_THREADS", "STOCKS_RATE_LIMIT",
		"STOCKS_RATE_BURST", "STOCKS_RETRY_ATTEMPTS", "STOCKS_REQUEST_TIMEOUT",
		"STOCKS_RETRY_BACKOFF", "STOCKS_RATE_POLL_INTERVAL", "STOCKS_PROGRESS", "STOCKS_OVERRIDE",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stocks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))

	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.Equal(t, "./data/stocks", cfg.Output)
	require.Equal(t, "2000-01-01", cfg.StartDate)
	require.Equal(t, 300, cfg.RateLimit.PerMinute)
	require.Equal(t, 1, cfg.Threads)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)

	// Arrange
	path := writeConfig(t, `
api_key: from-file
output: s3://prices/daily
format: parquet
threads: 8
progress: true
rate_limit:
  per_minute: 750
  strategy: bucket
  burst: 5
request_timeout: 15s
retry:
  attempts: 2
  backoff: 250ms
ledger: runs.db
schedule: "0 30 22 * * 1-5"
log:
  level: debug
  format: json
`)

	// Act
	cfg, err := Load(path)

	// Assert
	require.NoError(t, err)
	require.Equal(t, "from-file", cfg.APIKey)
	require.Equal(t, "s3://prices/daily", cfg.Output)
	require.Equal(t, "parquet", cfg.Format)
	require.Equal(t, 8, cfg.Threads)
	require.True(t, cfg.Progress)
	require.Equal(t, RateLimit{PerMinute: 750, Strategy: "bucket", Burst: 5, PollInterval: 100 * time.Millisecond}, cfg.RateLimit)
	require.Equal(t, 15*time.Second, cfg.RequestTimeout)
	require.Equal(t, Retry{Attempts: 2, Backoff: 250 * time.Millisecond}, cfg.Retry)
	require.Equal(t, "runs.db", cfg.Ledger)
	require.Equal(t, "0 30 22 * * 1-5", cfg.Schedule)
	require.Equal(t, Log{Level: "debug", Format: "json"}, cfg.Log)
	// untouched keys keep defaults
	require.Equal(t, "2000-01-01", cfg.StartDate)
	require.NoError(t, cfg.Validate())
}

func TestLoad_ParseError(t *testing.T) {
	clearEnv(t)

	_, err := Load(writeConfig(t, "threads: [1, 2"))

	require.ErrorContains(t, err, "parse config")
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "api_key: from-file\nthreads: 2\n")
	t.Setenv("API_KEY", "generic")
	t.Setenv("FMP_API_KEY", "fmp")
	t.Setenv("STOCKS_THREADS", "16")
	t.Setenv("STOCKS_OVERRIDE", "yes")
	t.Setenv("STOCKS_REQUEST_TIMEOUT", "5s")
	t.Setenv("STOCKS_FORMAT", "feather")

	cfg, err := Load(path)

	require.NoError(t, err)
	require.Equal(t, "fmp", cfg.APIKey)
	require.Equal(t, 16, cfg.Threads)
	require.True(t, cfg.Override)
	require.Equal(t, 5*time.Second, cfg.RequestTimeout)
	require.Equal(t, "feather", cfg.Format)
}

func TestLoad_APIKeyFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_KEY", "generic")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))

	require.NoError(t, err)
	require.Equal(t, "generic", cfg.APIKey)
}

func TestLoad_BadEnvNumber(t *testing.T) {
	clearEnv(t)
	t.Setenv("STOCKS_THREADS", "many")

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))

	require.ErrorContains(t, err, "STOCKS_THREADS")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := Default()
	valid.APIKey = "k"
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing api key", func(c *Config) { c.APIKey = " " }, "api_key is required"},
		{"threads", func(c *Config) { c.Threads = 0 }, "threads must be at least 1"},
		{"rate limit", func(c *Config) { c.RateLimit.PerMinute = 0 }, "per_minute must be positive"},
		{"strategy", func(c *Config) { c.RateLimit.Strategy = "leaky" }, "unknown rate limit strategy"},
		{"format", func(c *Config) { c.Format = "xlsx" }, "unknown format"},
		{"start date", func(c *Config) { c.StartDate = "01/02/2000" }, "start_date"},
		{"retries", func(c *Config) { c.Retry.Attempts = -1 }, "retry.attempts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid
			tt.mutate(&cfg)

			require.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
