package fetcher

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNotFound          = errors.New("ticker not found")
	ErrRateLimited       = errors.New("rate limited")
	ErrUnexpectedStatus  = errors.New("unexpected status code")
	ErrEmptyHistorical   = errors.New("empty historical payload")
	ErrMalformedResponse = errors.New("malformed response")
	ErrAPI               = errors.New("api error")
)

// FetchError is returned for every failed fetch.
type FetchError struct {
	Ticker string
	// StatusCode is zero when no response was received.
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: http %d: %v", e.Ticker, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Ticker, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Retryable reports whether another attempt could succeed: transport errors,
// per-request timeouts, 429 and 5xx.
func (e *FetchError) Retryable() bool {
	switch {
	case e.StatusCode == 429, e.StatusCode >= 500:
		return true
	case e.StatusCode != 0:
		return false
	case errors.Is(e.Err, ErrInvalidRequest), errors.Is(e.Err, context.Canceled):
		return false
	default:
		return true
	}
}

// IsRetryable reports whether err is a FetchError worth another attempt.
func IsRetryable(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Retryable()
}
