package transport

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy decides whether a failed attempt is retried and how long to
// wait between attempts.
type RetryPolicy interface {
	// Retryable reports whether the outcome of an attempt warrants another
	// try. Exactly one of resp and err is meaningful.
	Retryable(resp *Response, err error) bool

	// NewBackOff returns a fresh backoff schedule for one send.
	NewBackOff() backoff.BackOff
}

// RetryConfig is the default retry policy: exponential backoff for
// transport failures and throttling/server statuses.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts beyond the first
	// (default: 3).
	MaxRetries int

	// InitialBackoff is the initial backoff duration (default: 200ms).
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration (default: 5s).
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff
	// (default: 2).
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    200 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Retryable retries transport-level failures (other than cancellation) and
// HTTP 429/5xx statuses.
func (c RetryConfig) Retryable(resp *Response, err error) bool {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		return true
	}
	if resp == nil {
		return false
	}
	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
}

// NewBackOff builds the exponential schedule for one send.
func (c RetryConfig) NewBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialBackoff
	b.MaxInterval = c.MaxBackoff
	b.Multiplier = c.BackoffMultiplier
	b.MaxElapsedTime = 0
	return backoff.WithMaxRetries(b, uint64(c.MaxRetries))
}

// NoRetry is a policy that never retries.
type NoRetry struct{}

func (NoRetry) Retryable(*Response, error) bool { return false }

func (NoRetry) NewBackOff() backoff.BackOff { return &backoff.StopBackOff{} }
