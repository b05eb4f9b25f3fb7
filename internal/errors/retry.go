package errors

import (
	"context"
	stderrors "errors"
	"math"
	"math/rand"
	"net"
	"strings"
	"time"
)

// RetryConfig controls how storage connections are retried.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	Jitter         bool
	// Retryable decides whether an attempt's error is worth another try.
	// Nil means the default connection-error classifier.
	Retryable func(error) bool
	// OnRetry, when set, is called before each wait with the failed attempt
	// number (starting at 1) and the delay that follows.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// ConnectRetryConfig is used while establishing storage connections at startup.
// Request handling never retries.
func ConnectRetryConfig(maxRetries int) *RetryConfig {
	return &RetryConfig{
		MaxRetries:     maxRetries,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		BackoffFactor:  2.0,
		Jitter:         true,
	}
}

// RetryWithResult runs fn, typically a dial, until it succeeds, fails
// permanently or runs out of attempts.
func RetryWithResult[T any](ctx context.Context, cfg *RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	if cfg == nil {
		cfg = ConnectRetryConfig(3)
	}
	retryable := cfg.Retryable
	if retryable == nil {
		retryable = isTransientConnectError
	}

	var zero T
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		lastErr = err

		if !retryable(err) {
			return zero, err
		}

		// Don't wait after the last attempt
		if attempt == cfg.MaxRetries {
			break
		}

		backoff := calculateRetryBackoff(attempt, cfg)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, err, backoff)
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return zero, lastErr
}

// calculateRetryBackoff grows the delay geometrically up to MaxBackoff, with
// +/-25% jitter when enabled.
func calculateRetryBackoff(attempt int, cfg *RetryConfig) time.Duration {
	backoff := float64(cfg.InitialBackoff) * math.Pow(cfg.BackoffFactor, float64(attempt))

	if time.Duration(backoff) > cfg.MaxBackoff {
		backoff = float64(cfg.MaxBackoff)
	}

	if cfg.Jitter {
		jitter := backoff * 0.25 * (rand.Float64()*2 - 1)
		backoff = backoff + jitter
	}

	return time.Duration(backoff)
}

// Substrings of errors reported by lib/pq, the mongo driver and go-redis while
// the server is unreachable or still starting.
var transientPatterns = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"the database system is starting up",
	"no reachable servers",
	"server selection",
	"loading the dataset in memory",
}

// isTransientConnectError reports dial failures that a database or cache
// coming up would resolve.
func isTransientConnectError(err error) bool {
	if err == nil {
		return false
	}

	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}

	return false
}
