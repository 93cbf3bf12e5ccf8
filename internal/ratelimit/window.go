package ratelimit

import (
    "context"
    "sync"
    "time"
)

// SlidingWindow keeps the timestamps of recent calls and admits a caller only
// while fewer than max of them fall inside the trailing window.
//
// Wait reserves the slot it grants under the lock, so concurrent callers can
// never both take the last free one. RecordCall turns the reservation into a
// timestamp.
type SlidingWindow struct {
    max    int
    window time.Duration
    poll   time.Duration

    mu       sync.Mutex
    calls    []time.Time
    reserved int
}

func NewSlidingWindow(maxCalls int, per time.Duration) *SlidingWindow {
    if maxCalls <= 0 { maxCalls = 1 }
    if per <= 0 { per = time.Second }
    return &SlidingWindow{max: maxCalls, window: per, poll: DefaultPollInterval}
}

// SetPollInterval caps the sleep between two admission checks.
func (w *SlidingWindow) SetPollInterval(d time.Duration) {
    w.mu.Lock()
    defer w.mu.Unlock()
    if d > 0 { w.poll = d }
}

// Wait blocks until a slot is free or ctx is done.
func (w *SlidingWindow) Wait(ctx context.Context) error {
    for {
        if err := ctx.Err(); err != nil {
            return err
        }
        w.mu.Lock()
        now := time.Now()
        w.evict(now)
        if len(w.calls)+w.reserved < w.max {
            w.reserved++
            w.mu.Unlock()
            return nil
        }
        // Sleep until the oldest call leaves the window, but no longer than poll.
        sleep := w.poll
        if len(w.calls) > 0 {
            if d := w.calls[0].Add(w.window).Sub(now); d < sleep {
                sleep = d
            }
        }
        w.mu.Unlock()
        if sleep <= 0 { sleep = time.Millisecond }
        timer := time.NewTimer(sleep)
        select {
        case <-ctx.Done():
            timer.Stop()
            return ctx.Err()
        case <-timer.C:
        }
    }
}

// RecordCall stamps a call as issued now.
func (w *SlidingWindow) RecordCall() {
    w.mu.Lock()
    defer w.mu.Unlock()
    if w.reserved > 0 { w.reserved-- }
    w.calls = append(w.calls, time.Now())
}

// Reset forgets all history and outstanding reservations.
func (w *SlidingWindow) Reset() {
    w.mu.Lock()
    defer w.mu.Unlock()
    w.calls = nil
    w.reserved = 0
}

// InFlight reports the calls and reservations currently counted against the window.
func (w *SlidingWindow) InFlight() int {
    w.mu.Lock()
    defer w.mu.Unlock()
    w.evict(time.Now())
    return len(w.calls) + w.reserved
}

// evict drops timestamps that have left the window. Caller holds mu.
func (w *SlidingWindow) evict(now time.Time) {
    i := 0
    for i < len(w.calls) && now.Sub(w.calls[i]) >= w.window {
        i++
    }
    if i > 0 {
        w.calls = append(w.calls[:0], w.calls[i:]...)
    }
}
