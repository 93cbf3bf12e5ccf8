// Package ledger keeps a history of download runs and their per-ticker outcomes.
package ledger

import (
	"context"
	"time"
)

// Status of one ticker within a run.
type Status string

const (
	StatusWritten Status = "written"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Outcome is what happened to one ticker.
type Outcome struct {
	Ticker string
	Status Status
	Key    string
	Err    string
}

// Stats closes a run.
type Stats struct {
	Total     int
	Succeeded int
	Skipped   int
	Failed    int
}

// Run is a recorded run.
type Run struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time
	Format     string
	Stats      Stats
}

// Recorder persists runs.
type Recorder interface {
	BeginRun(ctx context.Context, format string, total int) (int64, error)
	RecordOutcome(ctx context.Context, runID int64, o Outcome) error
	FinishRun(ctx context.Context, runID int64, s Stats) error
	// LastFailures returns the tickers that failed in the most recent run.
	LastFailures(ctx context.Context) ([]string, error)
	Close() error
}
