// Package retry runs an operation a bounded number of times.
//
// There is no delay between attempts: callers use it for best-effort writes
// where the worst-case added latency must stay small.
package retry

import (
	"context"
	"os"
	"strconv"
)

// DefaultMaxAttempts is the total number of attempts (first try included).
const DefaultMaxAttempts = 2

// Config holds retry configuration
type Config struct {
	MaxAttempts int
}

// LoadConfig loads retry configuration from environment
func LoadConfig() Config {
	n, _ := strconv.Atoi(os.Getenv("REPLICA_WRITE_ATTEMPTS"))
	return Config{MaxAttempts: n}.normalized()
}

func (c Config) normalized() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	return c
}

// Do calls fn until it succeeds, retryable reports false, ctx is done, or the
// attempt budget is spent. It returns the number of attempts made and the last error.
// A nil retryable treats every error as retryable.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error, retryable func(error) bool) (int, error) {
	cfg = cfg.normalized()

	var lastErr error
	attempts := 0
	for attempts < cfg.MaxAttempts {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			return attempts, lastErr
		}

		attempts++
		err := fn(ctx)
		if err == nil {
			return attempts, nil
		}
		lastErr = err

		if retryable != nil && !retryable(err) {
			return attempts, err
		}
	}
	return attempts, lastErr
}
