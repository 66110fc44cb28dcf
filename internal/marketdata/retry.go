package marketdata

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/amirphl/simple-backtester/internal/utils"
)

const (
	backoffFactor = 2.0
	jitterRange   = 0.1 // ±10% jitter
)

// RetryConfig bounds the retry loop around one remote call.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseDelay: 2 * time.Second, MaxDelay: 15 * time.Second}
}

func (r RetryConfig) withDefaults() RetryConfig {
	d := DefaultRetryConfig()
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = d.MaxAttempts
	}
	if r.BaseDelay <= 0 {
		r.BaseDelay = d.BaseDelay
	}
	if r.MaxDelay < r.BaseDelay {
		r.MaxDelay = r.BaseDelay
	}
	return r
}

// permanentError stops the retry loop.
type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

func permanent(err error) error { return &permanentError{err: err} }

// withRetry calls fn until it succeeds, returns a permanent error, the attempts
// run out or ctx is done. op prefixes the log lines.
func withRetry(ctx context.Context, op string, rc RetryConfig, fn func() error) error {
	rc = rc.withDefaults()

	var lastErr error
	for attempt := 0; attempt < rc.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		utils.GetLogger().Warnf("%s | attempt %d/%d failed: %v", op, attempt+1, rc.MaxAttempts, err)

		if attempt == rc.MaxAttempts-1 {
			break
		}
		delay := calculateRetryDelay(attempt, rc.BaseDelay, rc.MaxDelay, backoffFactor, jitterRange)
		utils.GetLogger().Debugf("%s | Retrying in %v...", op, delay)

		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("failed after %d attempts, last error: %w", rc.MaxAttempts, lastErr)
}

// calculateRetryDelay calculates the delay for the next retry attempt with exponential backoff and jitter
func calculateRetryDelay(attempt int, baseDelay, maxDelay time.Duration, backoffFactor, jitterRange float64) time.Duration {
	delay := float64(baseDelay) * math.Pow(backoffFactor, float64(attempt))
	if delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}

	jitter := delay * jitterRange * (2*rand.Float64() - 1)
	delay += jitter

	if delay < 0 {
		delay = float64(baseDelay)
	}
	return time.Duration(delay)
}

// isRetryableHTTPStatus determines if an HTTP status code indicates a retryable error
func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
