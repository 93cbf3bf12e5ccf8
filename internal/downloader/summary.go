package downloader

import (
	"fmt"
	"strings"
)

// Stage tells where a ticker failed.
type Stage string

const (
	StageFetch Stage = "fetch"
	StageWrite Stage = "write"
)

// Failure is one ticker that did not make it to storage.
type Failure struct {
	Ticker string
	Stage  Stage
	Err    error
}

func (f Failure) String() string {
	return fmt.Sprintf("%s (%s): %v", f.Ticker, f.Stage, f.Err)
}

// Summary is the outcome of one Get call.
type Summary struct {
	Total int
	// Succeeded counts written and skipped tickers.
	Succeeded int
	Written   int
	Skipped   int
	// Failures are in input order.
	Failures []Failure
}

// Failed returns the number of failed tickers.
func (s Summary) Failed() int { return len(s.Failures) }

// FailedTickers lists the failed tickers in input order.
func (s Summary) FailedTickers() []string {
	out := make([]string, len(s.Failures))
	for i, f := range s.Failures {
		out[i] = f.Ticker
	}
	return out
}

// String is the one line summary.
func (s Summary) String() string {
	return fmt.Sprintf("Downloaded %d out of %d tickers.", s.Succeeded, s.Total)
}

// Report is the summary line followed by the failed tickers, if any.
func (s Summary) Report() string {
	if len(s.Failures) == 0 {
		return s.String()
	}
	var b strings.Builder
	b.WriteString(s.String())
	b.WriteString("\nFailed tickers:")
	for _, f := range s.Failures {
		b.WriteString("\n  ")
		b.WriteString(f.String())
	}
	return b.String()
}
