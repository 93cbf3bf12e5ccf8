// Package downloader fetches price series for many tickers concurrently and
// stores them, under a shared rate limit.
//
// A run enumerates all tickers up front and returns once every ticker has
// either been stored, skipped because its file already exists, or failed.
// Per-ticker failures never abort sibling work; only configuration errors do.
package downloader

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gocloud.dev/blob"
	"golang.org/x/sync/errgroup"

	"stockdownloader/internal/codec"
	"stockdownloader/internal/fetcher"
	"stockdownloader/internal/httpx"
	"stockdownloader/internal/ledger"
	"stockdownloader/internal/progress"
	"stockdownloader/internal/ratelimit"
	"stockdownloader/internal/series"
	"stockdownloader/internal/writer"
)

const (
	DefaultThreads            = 1
	DefaultRateLimitPerMinute = 300
	DefaultRequestTimeout     = 30 * time.Second
	DefaultRetryBackoff       = 500 * time.Millisecond
)

// Fetcher retrieves the series of one ticker with exactly one request.
type Fetcher interface {
	Fetch(ctx context.Context, ticker string) (series.Series, error)
}

// Writer stores a series.
type Writer interface {
	Write(ctx context.Context, s series.Series, ticker string, format codec.Format) (writer.Result, error)
}

// Options configures a Downloader. Only APIKey is required.
type Options struct {
	// Threads is the worker pool size. Default 1.
	Threads int
	// ShowProgress prints a line per finished ticker to Progress (default os.Stderr).
	ShowProgress bool
	Progress     io.Writer
	// OutputDir is a local directory or bucket URL. Default ./data/stocks.
	OutputDir string
	Override  bool
	// RateLimitPerMinute caps outbound requests. Default 300.
	RateLimitPerMinute int
	APIKey             string
	StartDate          string
	BaseURL            string
	RequestTimeout     time.Duration
	// Retries is how many extra attempts a retryable fetch failure gets.
	// Every attempt waits on the limiter.
	Retries      int
	RetryBackoff time.Duration

	// Injected collaborators. Nil means build the default from the fields above.
	HTTPClient fetcher.HTTPClient
	Fetcher    Fetcher
	Writer     Writer
	Limiter    ratelimit.Limiter
	Recorder   ledger.Recorder
	Logger     *zap.Logger
}

// Downloader runs downloads. Get calls are serialized.
type Downloader struct {
	opts     Options
	fetcher  Fetcher
	writer   Writer
	limiter  ratelimit.Limiter
	recorder ledger.Recorder
	log      *zap.Logger
	bucket   *blob.Bucket // owned, nil when Writer was injected

	run sync.Mutex

	mu       sync.Mutex
	tickers  []string
	failures []Failure
}

// New validates opts and builds the default collaborators it lacks.
func New(opts Options) (*Downloader, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, &ConfigError{Field: "api key", Err: ErrMissingAPIKey}
	}
	if opts.Threads == 0 {
		opts.Threads = DefaultThreads
	}
	if opts.Threads < 1 {
		return nil, &ConfigError{Field: "threads", Err: fmt.Errorf("%w, got %d", ErrInvalidThreads, opts.Threads)}
	}
	if opts.RateLimitPerMinute == 0 {
		opts.RateLimitPerMinute = DefaultRateLimitPerMinute
	}
	if opts.RateLimitPerMinute < 0 {
		return nil, &ConfigError{Field: "rate limit", Err: fmt.Errorf("%w, got %d", ErrInvalidRateLimit, opts.RateLimitPerMinute)}
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = DefaultRetryBackoff
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.OutputDir == "" {
		opts.OutputDir = writer.DefaultDir
	}
	if opts.Progress == nil {
		opts.Progress = os.Stderr
	}

	d := &Downloader{
		opts:     opts,
		fetcher:  opts.Fetcher,
		writer:   opts.Writer,
		limiter:  opts.Limiter,
		recorder: opts.Recorder,
		log:      opts.Logger,
	}
	if d.log == nil {
		d.log = zap.NewNop()
	}
	if d.recorder == nil {
		d.recorder = ledger.NewNoop()
	}
	if d.limiter == nil {
		d.limiter = ratelimit.PerMinute(opts.RateLimitPerMinute)
	}
	if d.fetcher == nil {
		httpClient := opts.HTTPClient
		if httpClient == nil {
			httpClient = httpx.New(opts.RequestTimeout)
		}
		clientOpts := []fetcher.Option{
			fetcher.WithHTTPClient(httpClient),
			fetcher.WithStartDate(opts.StartDate),
			fetcher.WithTimeout(opts.RequestTimeout),
		}
		if opts.BaseURL != "" {
			clientOpts = append(clientOpts, fetcher.WithBaseURL(opts.BaseURL))
		}
		c, err := fetcher.NewClient(opts.APIKey, clientOpts...)
		if err != nil {
			return nil, &ConfigError{Field: "api key", Err: err}
		}
		d.fetcher = c
	}
	if d.writer == nil {
		bucket, err := writer.Open(context.Background(), opts.OutputDir)
		if err != nil {
			return nil, err
		}
		d.bucket = bucket
		d.writer = writer.New(bucket, writer.WithOverride(opts.Override), writer.WithLogger(d.log))
	}
	return d, nil
}

// result is what a worker reports for one ticker.
type result struct {
	index  int
	ticker string
	res    writer.Result
	stage  Stage
	err    error
}

// Get downloads every ticker in tickers (each entry may itself hold several
// tickers separated by commas or whitespace) and stores them in format
// ("" means csv). Only configuration problems return an error before work
// starts; per-ticker failures are reported in the Summary. If ctx is canceled
// the partial Summary is returned together with ctx.Err().
func (d *Downloader) Get(ctx context.Context, tickers []string, format string) (Summary, error) {
	if format == "" {
		format = string(codec.CSV)
	}
	f, err := codec.ParseFormat(format)
	if err != nil {
		return Summary{}, &ConfigError{Field: "format", Err: err}
	}
	list, err := ParseTickers(tickers...)
	if err != nil {
		return Summary{}, err
	}

	d.run.Lock()
	defer d.run.Unlock()

	d.mu.Lock()
	d.tickers = list
	d.failures = nil
	d.mu.Unlock()

	// Ledger writes outlive cancellation so partial runs are still recorded.
	lctx := context.WithoutCancel(ctx)
	runID, err := d.recorder.BeginRun(lctx, string(f), len(list))
	if err != nil {
		d.log.Warn("ledger: begin run", zap.Error(err))
	}

	var rep *progress.Reporter
	if d.opts.ShowProgress {
		rep = progress.NewReporter(progress.Options{Total: len(list), Workers: d.opts.Threads, Output: d.opts.Progress})
		rep.Start()
	}

	results := make(chan result, len(list))
	go func() {
		var g errgroup.Group
		g.SetLimit(d.opts.Threads)
		for i, ticker := range list {
			g.Go(func() error {
				if rep != nil {
					rep.TickerStarted()
				}
				results <- d.process(ctx, i, ticker, f)
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()

	summary := Summary{Total: len(list)}
	var failures []result
	for r := range results {
		outcome := ledger.Outcome{Ticker: r.ticker, Key: r.res.Key}
		switch {
		case r.err != nil:
			failures = append(failures, r)
			outcome.Status = ledger.StatusFailed
			outcome.Err = r.err.Error()
			d.log.Warn(string(r.stage)+" failed", zap.String("ticker", r.ticker), zap.Error(r.err))
		case r.res.Outcome == writer.Skipped:
			summary.Skipped++
			outcome.Status = ledger.StatusSkipped
		default:
			summary.Written++
			outcome.Status = ledger.StatusWritten
			d.log.Debug("stored", zap.String("ticker", r.ticker), zap.String("key", r.res.Key))
		}
		if rep != nil {
			rep.TickerDone(r.ticker, r.err == nil)
		}
		if err := d.recorder.RecordOutcome(lctx, runID, outcome); err != nil {
			d.log.Warn("ledger: record outcome", zap.String("ticker", r.ticker), zap.Error(err))
		}
	}
	if rep != nil {
		rep.Finish()
	}

	sort.Slice(failures, func(i, j int) bool { return failures[i].index < failures[j].index })
	for _, r := range failures {
		summary.Failures = append(summary.Failures, Failure{Ticker: r.ticker, Stage: r.stage, Err: r.err})
	}
	summary.Succeeded = summary.Total - len(summary.Failures)

	d.mu.Lock()
	d.failures = summary.Failures
	d.mu.Unlock()

	stats := ledger.Stats{Total: summary.Total, Succeeded: summary.Succeeded, Skipped: summary.Skipped, Failed: summary.Failed()}
	if err := d.recorder.FinishRun(lctx, runID, stats); err != nil {
		d.log.Warn("ledger: finish run", zap.Error(err))
	}

	d.log.Info(summary.String(),
		zap.Int("total", summary.Total),
		zap.Int("written", summary.Written),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed()),
		zap.Strings("failures", summary.FailedTickers()))

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// GetString is Get for a single comma or whitespace separated ticker string.
func (d *Downloader) GetString(ctx context.Context, tickers, format string) (Summary, error) {
	return d.Get(ctx, []string{tickers}, format)
}

// FromFile reads tickers from path and downloads them.
func (d *Downloader) FromFile(ctx context.Context, path, format string) (Summary, error) {
	tickers, err := ReadTickersFile(path)
	if err != nil {
		return Summary{}, err
	}
	return d.Get(ctx, tickers, format)
}

func (d *Downloader) process(ctx context.Context, index int, ticker string, format codec.Format) result {
	r := result{index: index, ticker: ticker}

	s, err := d.fetch(ctx, ticker)
	if err != nil {
		r.stage, r.err = StageFetch, err
		return r
	}

	res, err := d.writer.Write(ctx, s, ticker, format)
	r.res = res
	if err != nil {
		r.stage, r.err = StageWrite, err
	}
	return r
}

// fetch performs one rate limited request, plus up to Retries more for retryable failures.
func (d *Downloader) fetch(ctx context.Context, ticker string) (series.Series, error) {
	for attempt := 0; ; attempt++ {
		if err := d.limiter.Wait(ctx); err != nil {
			return series.Series{}, err
		}
		d.limiter.RecordCall()

		s, err := d.fetcher.Fetch(ctx, ticker)
		if err == nil || attempt >= d.opts.Retries || !fetcher.IsRetryable(err) {
			return s, err
		}

		back := d.opts.RetryBackoff << attempt
		d.log.Debug("retrying fetch",
			zap.String("ticker", ticker),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", back),
			zap.Error(err))

		t := time.NewTimer(back)
		select {
		case <-ctx.Done():
			t.Stop()
			return series.Series{}, err
		case <-t.C:
		}
	}
}

// Tickers returns the normalized tickers of the last run.
func (d *Downloader) Tickers() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.tickers...)
}

// Failures returns the failures of the last run, in input order.
func (d *Downloader) Failures() []Failure {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Failure(nil), d.failures...)
}

// Reset clears the rate limiter history and the last run's state.
func (d *Downloader) Reset() {
	d.limiter.Reset()
	d.mu.Lock()
	d.tickers = nil
	d.failures = nil
	d.mu.Unlock()
}

// Close releases the bucket the Downloader opened itself.
func (d *Downloader) Close() error {
	if d.bucket == nil {
		return nil
	}
	return d.bucket.Close()
}

func (d *Downloader) String() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	failed := make([]string, len(d.failures))
	for i, f := range d.failures {
		failed[i] = f.Ticker
	}
	return fmt.Sprintf("Downloader(threads=%d, progress=%t, output=%s, override=%t, rate_limit=%d/min, tickers=%v, failures=%v)",
		d.opts.Threads, d.opts.ShowProgress, d.opts.OutputDir, d.opts.Override, d.opts.RateLimitPerMinute, d.tickers, failed)
}
