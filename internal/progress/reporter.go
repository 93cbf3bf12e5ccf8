// Package progress prints per-ticker progress of a download run.
//
// Output format:
//
//	[stocks] Downloading 5 tickers | Workers: 4
//	[stocks] Progress: 3/5 (60.0%) | failed: 1 | last: MSFT | elapsed: 2s
//	[stocks] Done: 5/5 | failed: 2 | took: 4s
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Options configures the reporter.
type Options struct {
	// Total is the number of tickers in the run.
	Total int

	// Workers is the size of the worker pool (for display).
	Workers int

	// Output is where progress goes.
	// Default: os.Stderr
	Output io.Writer
}

// Reporter counts finished tickers and prints a progress line per completion.
type Reporter struct {
	opts Options

	mu         sync.Mutex
	completed  atomic.Int32
	failed     atomic.Int32
	inProgress atomic.Int32
	startTime  time.Time
}

// NewReporter creates a new progress reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	return &Reporter{opts: opts}
}

// Start prints the header.
func (r *Reporter) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.startTime = time.Now()
	fmt.Fprintf(r.opts.Output, "[stocks] Downloading %d tickers | Workers: %d\n", r.opts.Total, r.opts.Workers)
}

// TickerStarted marks a ticker as in progress.
func (r *Reporter) TickerStarted() {
	r.inProgress.Add(1)
}

// TickerDone marks a ticker as finished, successfully or not, and prints progress.
func (r *Reporter) TickerDone(ticker string, ok bool) {
	n := r.completed.Add(1)
	if !ok {
		r.failed.Add(1)
	}
	if r.inProgress.Load() > 0 {
		r.inProgress.Add(-1)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var percent float64
	if r.opts.Total > 0 {
		percent = float64(n) / float64(r.opts.Total) * 100
	}
	fmt.Fprintf(r.opts.Output, "[stocks] Progress: %d/%d (%.1f%%) | failed: %d | last: %s | elapsed: %s\n",
		n, r.opts.Total, percent, r.failed.Load(), ticker, formatDuration(time.Since(r.startTime)))
}

// Finish prints the closing line.
func (r *Reporter) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.opts.Output, "[stocks] Done: %d/%d | failed: %d | took: %s\n",
		r.completed.Load(), r.opts.Total, r.failed.Load(), formatDuration(time.Since(r.startTime)))
}

// Completed returns how many tickers finished.
func (r *Reporter) Completed() int { return int(r.completed.Load()) }

// Failed returns how many finished tickers failed.
func (r *Reporter) Failed() int { return int(r.failed.Load()) }

// InProgress returns how many tickers are being worked on.
func (r *Reporter) InProgress() int { return int(r.inProgress.Load()) }

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}
