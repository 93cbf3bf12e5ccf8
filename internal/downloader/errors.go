package downloader

import (
	"errors"
	"fmt"
)

var (
	ErrMissingAPIKey    = errors.New("api key is required")
	ErrNoTickers        = errors.New("no tickers given")
	ErrInvalidThreads   = errors.New("threads must be at least 1")
	ErrInvalidRateLimit = errors.New("rate limit must be positive")
)

// ConfigError aborts a run before any work starts.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// IsConfigError reports whether err (or anything it wraps) is a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
