package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/araddon/dateparse"
	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"
)

// DefaultRequestTimeout bounds a single HTTP exchange when no custom client
// is supplied.
const DefaultRequestTimeout = 30 * time.Second

// skewLogThreshold is how far the server clock may drift from ours before
// we log about it.
const skewLogThreshold = time.Minute

// requestIDHeaders are checked in order for a service-assigned request ID.
var requestIDHeaders = []string{
	"X-Amzn-Requestid",
	"X-Amzn-Request-Id",
	"X-Amz-Request-Id",
	"X-Request-Id",
}

// HTTPConfig configures the HTTP transport.
type HTTPConfig struct {
	// Client is the underlying HTTP client. Defaults to one with
	// DefaultRequestTimeout.
	Client *http.Client

	// Retry is the retry policy. Defaults to DefaultRetryConfig. Use
	// NoRetry to disable retries.
	Retry RetryPolicy

	// OnRetry, when set, is called before each retry attempt.
	OnRetry func(operation string, nextAttempt int)

	Logger hclog.Logger
}

// HTTP sends requests over HTTP with retries. Pre-send hooks run before
// every attempt, so retried requests are re-signed. The server Date header
// of each response is tracked so signers can compensate for clock skew.
type HTTP struct {
	client  *http.Client
	retry   RetryPolicy
	onRetry func(string, int)
	log     hclog.Logger

	skewNanos atomic.Int64
}

// NewHTTP creates an HTTP transport.
func NewHTTP(cfg HTTPConfig) *HTTP {
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: DefaultRequestTimeout}
	}
	if cfg.Retry == nil {
		cfg.Retry = DefaultRetryConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}
	return &HTTP{
		client:  cfg.Client,
		retry:   cfg.Retry,
		onRetry: cfg.OnRetry,
		log:     cfg.Logger.Named("transport"),
	}
}

// Send transmits the request, retrying per the configured policy. A
// response is returned for every HTTP status; errors mean no response could
// be obtained. Hook failures abort immediately and are never retried.
func (t *HTTP) Send(ctx context.Context, req *Request) (*Response, error) {
	if req.URL == nil {
		return nil, fmt.Errorf("request has no URL")
	}

	bo := t.retry.NewBackOff()
	for attempt := 1; ; attempt++ {
		if err := req.RunHooks(ctx); err != nil {
			return nil, fmt.Errorf("pre-send hook failed: %w", err)
		}

		resp, err := t.roundTrip(ctx, req)
		if resp != nil {
			resp.Attempts = attempt
		}
		if !t.retry.Retryable(resp, err) {
			return resp, err
		}

		delay := bo.NextBackOff()
		if delay == backoff.Stop {
			return resp, err
		}

		t.log.Debug("retrying request",
			"operation", req.Operation,
			"attempt", attempt,
			"delay", delay,
			"cause", retryCause(resp, err),
		)
		if t.onRetry != nil {
			t.onRetry(req.Operation, attempt+1)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("request canceled while waiting to retry: %w", ctx.Err())
		case <-time.After(delay):
		}
	}
}

func (t *HTTP) roundTrip(ctx context.Context, req *Request) (*Response, error) {
	hreq, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP request: %w", err)
	}
	if req.Header != nil {
		hreq.Header = req.Header.Clone()
	}

	res, err := t.client.Do(hreq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	t.observeSkew(res.Header)

	return &Response{
		StatusCode: res.StatusCode,
		Status:     res.Status,
		Header:     res.Header,
		Body:       body,
		RequestID:  requestIDFrom(res.Header),
	}, nil
}

// observeSkew records the difference between the server Date header and the
// local clock.
func (t *HTTP) observeSkew(h http.Header) {
	date := h.Get("Date")
	if date == "" {
		return
	}
	serverTime, err := dateparse.ParseAny(date)
	if err != nil {
		t.log.Trace("unparseable server Date header", "date", date, "error", err)
		return
	}
	skew := time.Until(serverTime)
	t.skewNanos.Store(int64(skew))
	if skew > skewLogThreshold || skew < -skewLogThreshold {
		t.log.Debug("server clock skew detected", "skew", skew)
	}
}

// SkewOffset returns the most recently observed server clock offset. Adding
// it to the local clock approximates the server clock.
func (t *HTTP) SkewOffset() time.Duration {
	return time.Duration(t.skewNanos.Load())
}

func requestIDFrom(h http.Header) string {
	for _, name := range requestIDHeaders {
		if id := h.Get(name); id != "" {
			return id
		}
	}
	return ""
}

func retryCause(resp *Response, err error) string {
	if err != nil {
		return err.Error()
	}
	if resp != nil {
		return resp.Status
	}
	return "unknown"
}
