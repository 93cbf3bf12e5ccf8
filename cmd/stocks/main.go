package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"

	"stockdownloader/internal/config"
	"stockdownloader/internal/downloader"
	"stockdownloader/internal/ledger"
	"stockdownloader/internal/ratelimit"
	"stockdownloader/internal/scheduler"
	"stockdownloader/internal/writer"
)

// Exit codes
const (
	ExitSuccess       = 0
	ExitTickersFailed = 1
	ExitInvalidArgs   = 2
	ExitStorageError  = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("stocks", flag.ContinueOnError)
	flags.SetOutput(stderr)

	configPath := flags.String("config", getenv("STOCKS_CONFIG", ""), "path to a YAML config file (default ./stocks.yaml when present)")
	envFile := flags.String("env", ".env", "dotenv file loaded before reading the environment")
	tickers := flags.String("tickers", "", "tickers separated by commas or spaces")
	tickerFile := flags.String("file", "", "file with tickers, comma or whitespace separated, # comments")
	retryFailed := flags.Bool("retry-failed", false, "download only the tickers that failed in the last recorded run (needs -ledger)")
	format := flags.String("format", "", "output format: csv, json, parquet, feather, pickle")
	out := flags.String("out", "", "output directory or bucket URL (file://, s3://, gs://)")
	threads := flags.Int("threads", 0, "number of concurrent workers")
	showProgress := flags.Bool("progress", false, "print a progress line per ticker")
	override := flags.Bool("override", false, "replace existing files")
	rateLimit := flags.Int("rate-limit", 0, "max API calls per minute")
	rateStrategy := flags.String("rate-strategy", "", "rate limiter: window, bucket or interval")
	startDate := flags.String("start-date", "", "first date requested, YYYY-MM-DD")
	baseURL := flags.String("base-url", "", "historical price endpoint")
	timeout := flags.Duration("timeout", 0, "per-request timeout")
	retries := flags.Int("retries", 0, "extra attempts for 429, 5xx and network failures")
	retryBackoff := flags.Duration("retry-backoff", 0, "initial backoff between attempts")
	ledgerPath := flags.String("ledger", "", "SQLite file recording runs and per-ticker outcomes")
	schedule := flags.String("schedule", "", `repeat on a cron spec with seconds, e.g. "0 0 22 * * 1-5"`)
	logLevel := flags.String("log-level", "", "debug, info, warn or error")
	logFormat := flags.String("log-format", "", "console or json")

	flags.Usage = func() {
		fmt.Fprintln(stderr, `Usage: stocks [options] [TICKER...]

Download daily price history for every ticker and store one file per ticker.
The API key is read from FMP_API_KEY (or API_KEY), the config file or .env.

Options:`)
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitSuccess
		}
		return ExitInvalidArgs
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(stderr, "Error loading %s: %v\n", *envFile, err)
		return ExitInvalidArgs
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}

	// Explicit flags win over file and environment.
	flags.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "format":
			cfg.Format = *format
		case "out":
			cfg.Output = *out
		case "threads":
			cfg.Threads = *threads
		case "progress":
			cfg.Progress = *showProgress
		case "override":
			cfg.Override = *override
		case "rate-limit":
			cfg.RateLimit.PerMinute = *rateLimit
		case "rate-strategy":
			cfg.RateLimit.Strategy = *rateStrategy
		case "start-date":
			cfg.StartDate = *startDate
		case "base-url":
			cfg.BaseURL = *baseURL
		case "timeout":
			cfg.RequestTimeout = *timeout
		case "retries":
			cfg.Retry.Attempts = *retries
		case "retry-backoff":
			cfg.Retry.Backoff = *retryBackoff
		case "ledger":
			cfg.Ledger = *ledgerPath
		case "schedule":
			cfg.Schedule = *schedule
		case "log-level":
			cfg.Log.Level = *logLevel
		case "log-format":
			cfg.Log.Format = *logFormat
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}
	defer func() { _ = logger.Sync() }()

	limiter, err := ratelimit.New(cfg.RateLimit.Strategy, cfg.RateLimit.PerMinute, time.Minute, cfg.RateLimit.Burst)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}
	if w, ok := limiter.(*ratelimit.SlidingWindow); ok && cfg.RateLimit.PollInterval > 0 {
		w.SetPollInterval(cfg.RateLimit.PollInterval)
	}

	var rec ledger.Recorder = ledger.NewNoop()
	if cfg.Ledger != "" {
		sqlite, err := ledger.OpenSQLite(ctx, cfg.Ledger, logger)
		if err != nil {
			fmt.Fprintf(stderr, "Error opening ledger: %v\n", err)
			return ExitStorageError
		}
		defer sqlite.Close()
		rec = sqlite
	} else if *retryFailed {
		fmt.Fprintln(stderr, "Error: -retry-failed needs -ledger")
		return ExitInvalidArgs
	}

	var list []string
	switch {
	case *retryFailed:
		list, err = rec.LastFailures(ctx)
		if err != nil {
			fmt.Fprintf(stderr, "Error reading ledger: %v\n", err)
			return ExitStorageError
		}
		if len(list) == 0 {
			fmt.Fprintln(stdout, "Nothing to retry: the last run had no failures.")
			return ExitSuccess
		}
	default:
		list = append(list, flags.Args()...)
		if *tickers != "" {
			list = append(list, *tickers)
		}
		if *tickerFile != "" {
			fromFile, err := downloader.ReadTickersFile(*tickerFile)
			if err != nil {
				fmt.Fprintf(stderr, "Error: %v\n", err)
				return ExitInvalidArgs
			}
			list = append(list, fromFile...)
		}
	}
	if _, err := downloader.ParseTickers(list...); err != nil {
		fmt.Fprintln(stderr, "Error: no tickers given (use -tickers, -file or positional arguments)")
		flags.Usage()
		return ExitInvalidArgs
	}

	bucket, err := writer.Open(ctx, cfg.Output)
	if err != nil {
		fmt.Fprintf(stderr, "Error opening output: %v\n", err)
		return ExitStorageError
	}
	defer bucket.Close()

	d, err := downloader.New(downloader.Options{
		Threads:            cfg.Threads,
		ShowProgress:       cfg.Progress,
		Progress:           stderr,
		OutputDir:          cfg.Output,
		Override:           cfg.Override,
		RateLimitPerMinute: cfg.RateLimit.PerMinute,
		APIKey:             cfg.APIKey,
		StartDate:          cfg.StartDate,
		BaseURL:            cfg.BaseURL,
		RequestTimeout:     cfg.RequestTimeout,
		Retries:            cfg.Retry.Attempts,
		RetryBackoff:       cfg.Retry.Backoff,
		Writer:             writer.New(bucket, writer.WithOverride(cfg.Override), writer.WithLogger(logger)),
		Limiter:            limiter,
		Recorder:           rec,
		Logger:             logger,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}
	defer d.Close()

	if cfg.Schedule != "" {
		return runScheduled(ctx, cfg, d, list, logger, stdout, stderr)
	}
	return runOnce(ctx, cfg, d, list, stdout, stderr)
}

func runOnce(ctx context.Context, cfg config.Config, d *downloader.Downloader, tickers []string, stdout, stderr io.Writer) int {
	summary, err := d.Get(ctx, tickers, cfg.Format)
	if downloader.IsConfigError(err) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}
	fmt.Fprintln(stdout, summary.Report())
	if err != nil {
		fmt.Fprintf(stderr, "Interrupted: %v\n", err)
		return ExitTickersFailed
	}
	if summary.Failed() > 0 {
		return ExitTickersFailed
	}
	return ExitSuccess
}

func runScheduled(ctx context.Context, cfg config.Config, d *downloader.Downloader, tickers []string, logger *zap.Logger, stdout, stderr io.Writer) int {
	s := scheduler.New(logger)
	err := s.Register(ctx, "download", cfg.Schedule, func(ctx context.Context) {
		d.Reset()
		summary, err := d.Get(ctx, tickers, cfg.Format)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("scheduled run", zap.Error(err))
		}
		fmt.Fprintln(stdout, summary.Report())
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}
	s.Run(ctx)
	return ExitSuccess
}

func newLogger(cfg config.Log) (*zap.Logger, error) {
	var zc zap.Config
	switch cfg.Format {
	case "", "console":
		zc = zap.NewDevelopmentConfig()
	case "json":
		zc = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	if cfg.Level != "" {
		lvl, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		zc.Level = lvl
	}
	return zc.Build()
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
