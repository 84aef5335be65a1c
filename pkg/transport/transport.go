// Package transport defines the wire-level request and response types and
// the Transport interface that moves them. Requests carry an ordered list of
// pre-send hooks; transports must run the hooks immediately before every
// transmission attempt so request signing always sees current credentials.
package transport

import (
	"context"
	"net/http"
	"net/url"
)

// Hook runs against a request immediately before a transmission attempt.
// Hooks may mutate headers and body. A hook error aborts the send without
// retry.
type Hook func(ctx context.Context, req *Request) error

// Request is one fully buffered wire request.
type Request struct {
	// Operation is the logical operation name, for logging and metrics.
	Operation string

	// InvocationID identifies the call across retry attempts.
	InvocationID string

	Method string
	URL    *url.URL
	Header http.Header
	Body   []byte

	// SigningName and Region feed signature computation.
	SigningName string
	Region      string

	onSend []Hook
}

// OnSend appends a pre-send hook. Hooks run in registration order.
func (r *Request) OnSend(h Hook) {
	r.onSend = append(r.onSend, h)
}

// RunHooks invokes the pre-send hooks in order, stopping at the first
// error. Transports call this once per transmission attempt.
func (r *Request) RunHooks(ctx context.Context) error {
	for _, h := range r.onSend {
		if err := h(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// SetHeader sets a header, allocating the map on first use.
func (r *Request) SetHeader(key, value string) {
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	r.Header.Set(key, value)
}

// Response is one fully buffered wire response.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte

	// RequestID is the service-assigned request identifier, when the
	// response carried one.
	RequestID string

	// Attempts is how many transmission attempts produced this response.
	Attempts int
}

// Transport sends a request and returns the service's response. A non-nil
// response with any status code is a successful transmission; errors are
// reserved for failures to obtain a response at all. Implementations must
// honor ctx cancellation for in-flight work.
type Transport interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}
