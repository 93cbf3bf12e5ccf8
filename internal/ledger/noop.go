package ledger

import "context"

// Noop is used when no ledger is configured.
type Noop struct{}

func NewNoop() *Noop { return &Noop{} }

func (Noop) BeginRun(context.Context, string, int) (int64, error) { return 0, nil }
func (Noop) RecordOutcome(context.Context, int64, Outcome) error  { return nil }
func (Noop) FinishRun(context.Context, int64, Stats) error        { return nil }
func (Noop) LastFailures(context.Context) ([]string, error)       { return nil, nil }
func (Noop) Close() error                                         { return nil }
