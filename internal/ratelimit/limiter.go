// Package ratelimit gates outbound API calls to a calls-per-window budget.
package ratelimit

import (
    "context"
    "errors"
    "fmt"
    "time"
)

// Limiter admits callers under a rate budget.
// A successful Wait must be followed by RecordCall right before the request it admitted.
type Limiter interface {
    Wait(ctx context.Context) error
    RecordCall()
    Reset()
}

const (
    StrategyWindow   = "window"
    StrategyBucket   = "bucket"
    StrategyInterval = "interval"
)

// DefaultPollInterval bounds how long a sliding window sleeps between checks.
const DefaultPollInterval = 100 * time.Millisecond

var ErrUnknownStrategy = errors.New("unknown rate limit strategy")

// New builds a limiter admitting maxCalls per window using the named strategy.
// burst only applies to the token bucket.
func New(strategy string, maxCalls int, per time.Duration, burst int) (Limiter, error) {
    if maxCalls <= 0 {
        return nil, fmt.Errorf("max calls must be positive, got %d", maxCalls)
    }
    if per <= 0 {
        return nil, fmt.Errorf("window must be positive, got %s", per)
    }
    switch strategy {
    case "", StrategyWindow:
        return NewSlidingWindow(maxCalls, per), nil
    case StrategyBucket:
        return NewTokenBucket(float64(maxCalls)/per.Seconds(), burst), nil
    case StrategyInterval:
        return NewInterval(maxCalls, per), nil
    default:
        return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
    }
}

// PerMinute is the common case: a sliding window of n calls per minute.
func PerMinute(n int) *SlidingWindow { return NewSlidingWindow(n, time.Minute) }
