package client

import (
	"errors"
	"fmt"
)

// Sentinel causes carried by precondition errors, so callers can branch
// with errors.Is without string matching.
var (
	ErrOperationNotFound      = errors.New("operation not found")
	ErrPaginationNotSupported = errors.New("pagination not supported")
	ErrWaiterNotFound         = errors.New("waiter not found")

	// ErrNoMorePages is returned by NextPage after a sequence is exhausted.
	ErrNoMorePages = errors.New("no more pages")
)

// Kind classifies where in the pipeline a failure originated.
type Kind int

const (
	// KindService is a completed call the service answered with an error.
	KindService Kind = iota

	// KindTransport is a failure to obtain any response.
	KindTransport

	// KindPrecondition is a caller or configuration error raised before
	// any network activity.
	KindPrecondition

	// KindInternal is any other failure inside the pipeline, wrapped so it
	// is never silently dropped.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindService:
		return "service"
	case KindTransport:
		return "transport"
	case KindPrecondition:
		return "precondition"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Fault records which side of the wire is responsible.
type Fault int

const (
	FaultUnknown Fault = iota
	FaultClient
	FaultServer
	FaultTransport
	FaultInternal
)

func (f Fault) String() string {
	switch f {
	case FaultClient:
		return "client"
	case FaultServer:
		return "server"
	case FaultTransport:
		return "transport"
	case FaultInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// OperationError is the one typed error every failed execution resolves
// to, whatever the failure origin. The translator never wraps one inside
// another.
type OperationError struct {
	// Operation is the name the caller requested.
	Operation string

	// Target identifies the remote service, usually the endpoint host.
	Target string

	// Code, ErrorType and Message are the normalized fields the error
	// parser extracted, when the service sent a structured error.
	Code      string
	ErrorType string
	Message   string

	Kind  Kind
	Fault Fault

	// StatusCode, RequestID and URL locate the failed exchange, when one
	// happened.
	StatusCode int
	RequestID  string
	URL        string

	// Transaction is the full per-call record, for introspection.
	Transaction *Transaction

	cause error
}

func (e *OperationError) Error() string {
	verb := "error executing"
	if e.Kind == KindInternal {
		verb = "unexpected error executing"
	}
	return fmt.Sprintf("%s %s on %s: %s", verb, e.Operation, e.Target, e.detail())
}

func (e *OperationError) detail() string {
	switch {
	case e.Code != "" && e.Message != "":
		return e.Code + ": " + e.Message
	case e.Code != "":
		return e.Code
	case e.Message != "":
		return e.Message
	case e.cause != nil:
		return e.cause.Error()
	case e.StatusCode != 0:
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	default:
		return "unknown error"
	}
}

func (e *OperationError) Unwrap() error {
	return e.cause
}

// faultForStatus classifies an HTTP error status.
func faultForStatus(status int) Fault {
	switch {
	case status >= 500:
		return FaultServer
	case status >= 400:
		return FaultClient
	default:
		return FaultServer
	}
}
