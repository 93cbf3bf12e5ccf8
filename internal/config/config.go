package config

import (
    "errors"
    "fmt"
    "os"
    "strconv"
    "strings"
    "time"

    "gopkg.in/yaml.v3"

    "stockdownloader/internal/codec"
    "stockdownloader/internal/fetcher"
    "stockdownloader/internal/ratelimit"
    "stockdownloader/internal/series"
    "stockdownloader/internal/writer"
)

// DefaultPath is read when Load gets no path and the file exists.
const DefaultPath = "stocks.yaml"

type RateLimit struct {
    PerMinute    int           `yaml:"per_minute"`
    Strategy     string        `yaml:"strategy"`
    Burst        int           `yaml:"burst"`
    PollInterval time.Duration `yaml:"poll_interval"`
}

type Retry struct {
    Attempts int           `yaml:"attempts"`
    Backoff  time.Duration `yaml:"backoff"`
}

type Log struct {
    Level  string `yaml:"level"`
    Format string `yaml:"format"`
}

type Config struct {
    APIKey         string        `yaml:"api_key"`
    BaseURL        string        `yaml:"base_url"`
    StartDate      string        `yaml:"start_date"`
    Output         string        `yaml:"output"`
    Format         string        `yaml:"format"`
    Threads        int           `yaml:"threads"`
    Progress       bool          `yaml:"progress"`
    Override       bool          `yaml:"override"`
    RateLimit      RateLimit     `yaml:"rate_limit"`
    RequestTimeout time.Duration `yaml:"request_timeout"`
    Retry          Retry         `yaml:"retry"`
    // Ledger is the SQLite file recording runs; empty disables it.
    Ledger string `yaml:"ledger"`
    // Schedule is a cron spec with seconds; empty runs once.
    Schedule string `yaml:"schedule"`
    Log      Log    `yaml:"log"`
}

func Default() Config {
    return Config{
        BaseURL:   fetcher.DefaultBaseURL,
        StartDate: fetcher.DefaultStartDate,
        Output:    writer.DefaultDir,
        Format:    string(codec.CSV),
        Threads:   1,
        RateLimit: RateLimit{
            PerMinute:    300,
            Strategy:     ratelimit.StrategyWindow,
            Burst:        1,
            PollInterval: ratelimit.DefaultPollInterval,
        },
        RequestTimeout: 30 * time.Second,
        Retry:          Retry{Attempts: 0, Backoff: 500 * time.Millisecond},
        Log:            Log{Level: "info", Format: "console"},
    }
}

// Load reads YAML config from path. If path is empty it tries DefaultPath;
// a missing file yields defaults. Environment variables override the file.
func Load(path string) (Config, error) {
    cfg := Default()
    if path == "" {
        if _, err := os.Stat(DefaultPath); err == nil {
            path = DefaultPath
        }
    }
    if path != "" {
        b, err := os.ReadFile(path)
        if err != nil && !errors.Is(err, os.ErrNotExist) {
            return cfg, fmt.Errorf("read config: %w", err)
        }
        if err == nil {
            if err := yaml.Unmarshal(b, &cfg); err != nil {
                return cfg, fmt.Errorf("parse config: %w", err)
            }
        }
    }
    if err := applyEnv(&cfg); err != nil {
        return cfg, err
    }
    return cfg, nil
}

// applyEnv overrides cfg from the environment. FMP_API_KEY wins over API_KEY.
func applyEnv(cfg *Config) error {
    if v := os.Getenv("API_KEY"); v != "" { cfg.APIKey = v }
    if v := os.Getenv("FMP_API_KEY"); v != "" { cfg.APIKey = v }
    if v := os.Getenv("STOCKS_BASE_URL"); v != "" { cfg.BaseURL = v }
    if v := os.Getenv("STOCKS_START_DATE"); v != "" { cfg.StartDate = v }
    if v := os.Getenv("STOCKS_OUTPUT"); v != "" { cfg.Output = v }
    if v := os.Getenv("STOCKS_FORMAT"); v != "" { cfg.Format = v }
    if v := os.Getenv("STOCKS_LEDGER"); v != "" { cfg.Ledger = v }
    if v := os.Getenv("STOCKS_SCHEDULE"); v != "" { cfg.Schedule = v }
    if v := os.Getenv("STOCKS_RATE_STRATEGY"); v != "" { cfg.RateLimit.Strategy = v }
    if v := os.Getenv("STOCKS_LOG_LEVEL"); v != "" { cfg.Log.Level = v }
    if v := os.Getenv("STOCKS_LOG_FORMAT"); v != "" { cfg.Log.Format = v }

    ints := []struct {
        key string
        dst *int
    }{
        {"STOCKS_THREADS", &cfg.Threads},
        {"STOCKS_RATE_LIMIT", &cfg.RateLimit.PerMinute},
        {"STOCKS_RATE_BURST", &cfg.RateLimit.Burst},
        {"STOCKS_RETRY_ATTEMPTS", &cfg.Retry.Attempts},
    }
    for _, e := range ints {
        v := os.Getenv(e.key)
        if v == "" { continue }
        x, err := strconv.Atoi(strings.TrimSpace(v))
        if err != nil {
            return fmt.Errorf("env %s: %w", e.key, err)
        }
        *e.dst = x
    }

    durations := []struct {
        key string
        dst *time.Duration
    }{
        {"STOCKS_REQUEST_TIMEOUT", &cfg.RequestTimeout},
        {"STOCKS_RETRY_BACKOFF", &cfg.Retry.Backoff},
        {"STOCKS_RATE_POLL_INTERVAL", &cfg.RateLimit.PollInterval},
    }
    for _, e := range durations {
        v := os.Getenv(e.key)
        if v == "" { continue }
        d, err := time.ParseDuration(strings.TrimSpace(v))
        if err != nil {
            return fmt.Errorf("env %s: %w", e.key, err)
        }
        *e.dst = d
    }

    bools := []struct {
        key string
        dst *bool
    }{
        {"STOCKS_PROGRESS", &cfg.Progress},
        {"STOCKS_OVERRIDE", &cfg.Override},
    }
    for _, e := range bools {
        switch strings.ToLower(os.Getenv(e.key)) {
        case "1", "true", "yes", "y": *e.dst = true
        case "0", "false", "no", "n": *e.dst = false
        }
    }
    return nil
}

// Validate checks the fields a run cannot do without.
func (c Config) Validate() error {
    if strings.TrimSpace(c.APIKey) == "" {
        return fmt.Errorf("api_key is required (set FMP_API_KEY)")
    }
    if c.Threads < 1 {
        return fmt.Errorf("threads must be at least 1, got %d", c.Threads)
    }
    if c.RateLimit.PerMinute <= 0 {
        return fmt.Errorf("rate_limit.per_minute must be positive, got %d", c.RateLimit.PerMinute)
    }
    switch c.RateLimit.Strategy {
    case "", ratelimit.StrategyWindow, ratelimit.StrategyBucket, ratelimit.StrategyInterval:
    default:
        return fmt.Errorf("rate_limit.strategy: %w: %q", ratelimit.ErrUnknownStrategy, c.RateLimit.Strategy)
    }
    if _, err := codec.ParseFormat(c.Format); err != nil {
        return fmt.Errorf("format: %w", err)
    }
    if c.StartDate != "" {
        if _, err := time.Parse(series.DateLayout, c.StartDate); err != nil {
            return fmt.Errorf("start_date must be YYYY-MM-DD: %w", err)
        }
    }
    if c.Retry.Attempts < 0 {
        return fmt.Errorf("retry.attempts must not be negative, got %d", c.Retry.Attempts)
    }
    return nil
}
