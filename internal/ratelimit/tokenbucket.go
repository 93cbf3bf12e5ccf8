package ratelimit

import (
    "context"
    "sync"
    "time"
)

// TokenBucket admits calls at a steady rate with a bounded burst.
// - rate: tokens per second
// - capacity: maximum tokens the bucket can hold (burst)
type TokenBucket struct {
    rate     float64
    capacity float64

    mu     sync.Mutex
    tokens float64
    last   time.Time
}

func NewTokenBucket(tokensPerSecond float64, burst int) *TokenBucket {
    if tokensPerSecond <= 0 { tokensPerSecond = 0.0000001 }
    if burst <= 0 { burst = 1 }
    return &TokenBucket{
        rate:     tokensPerSecond,
        capacity: float64(burst),
        tokens:   float64(burst),
        last:     time.Now(),
    }
}

// Wait blocks until one token is taken or ctx is done.
func (tb *TokenBucket) Wait(ctx context.Context) error {
    for {
        if err := ctx.Err(); err != nil {
            return err
        }
        tb.mu.Lock()
        tb.refill(time.Now())
        if tb.tokens >= 1 {
            tb.tokens -= 1
            tb.mu.Unlock()
            return nil
        }
        deficit := 1 - tb.tokens
        tb.mu.Unlock()
        // time needed to accumulate one token
        waitDur := time.Duration(deficit/tb.rate*1e9) * time.Nanosecond
        if waitDur <= 0 { waitDur = time.Millisecond }
        timer := time.NewTimer(waitDur)
        select {
        case <-ctx.Done():
            timer.Stop()
            return ctx.Err()
        case <-timer.C:
        }
    }
}

// RecordCall is a no-op: the token was already spent in Wait.
func (tb *TokenBucket) RecordCall() {}

// Reset refills the bucket.
func (tb *TokenBucket) Reset() {
    tb.mu.Lock()
    defer tb.mu.Unlock()
    tb.tokens = tb.capacity
    tb.last = time.Now()
}

// Tokens reports the tokens currently available.
func (tb *TokenBucket) Tokens() float64 {
    tb.mu.Lock()
    defer tb.mu.Unlock()
    tb.refill(time.Now())
    return tb.tokens
}

func (tb *TokenBucket) refill(now time.Time) {
    elapsed := now.Sub(tb.last).Seconds()
    if elapsed > 0 {
        tb.tokens += elapsed * tb.rate
        if tb.tokens > tb.capacity {
            tb.tokens = tb.capacity
        }
        tb.last = now
    }
}
