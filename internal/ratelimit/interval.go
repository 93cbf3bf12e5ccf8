package ratelimit

import (
    "context"
    "sync"
    "time"
)

// Interval spaces calls at least Every apart, a leaky bucket of size one.
// Wait books the next free slot before sleeping, so concurrent callers queue
// behind each other instead of waking up together.
type Interval struct {
    Every time.Duration

    mu   sync.Mutex
    next time.Time
}

// NewInterval spreads maxCalls evenly over per.
func NewInterval(maxCalls int, per time.Duration) *Interval {
    if maxCalls <= 0 { maxCalls = 1 }
    return &Interval{Every: per / time.Duration(maxCalls)}
}

func (m *Interval) Wait(ctx context.Context) error {
    if err := ctx.Err(); err != nil {
        return err
    }
    if m.Every <= 0 {
        return nil
    }
    m.mu.Lock()
    now := time.Now()
    slot := m.next
    if slot.Before(now) {
        slot = now
    }
    m.next = slot.Add(m.Every)
    m.mu.Unlock()

    wait := time.Until(slot)
    if wait <= 0 {
        return nil
    }
    t := time.NewTimer(wait)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return ctx.Err()
    case <-t.C:
        return nil
    }
}

// RecordCall is a no-op: the slot was booked in Wait.
func (m *Interval) RecordCall() {}

func (m *Interval) Reset() {
    m.mu.Lock()
    m.next = time.Time{}
    m.mu.Unlock()
}
