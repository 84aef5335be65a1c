package client

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hashicorp-forge/courier/pkg/service"
	"github.com/hashicorp-forge/courier/pkg/transport"
)

// Transaction states reported by State.
const (
	StatePending  = "pending"
	StateSent     = "sent"
	StateResolved = "resolved"
)

// Transaction is the mutable per-call record binding one Command to its
// request, response and outcome. Each call owns its own Transaction; it is
// never reused.
type Transaction struct {
	// ID is the invocation ID, carried on the wire across retry attempts.
	ID string

	Client    *Client
	Command   *Command
	Operation service.Operation

	// Request and Response fill in as the pipeline progresses; either may
	// be nil after a failure.
	Request  *transport.Request
	Response *transport.Response

	// Result and Err are the outcome; exactly one is meaningful once the
	// transaction resolves.
	Result Result
	Err    error

	StartedAt time.Time
	Duration  time.Duration

	resolved bool

	mu   sync.Mutex
	meta map[string]any
}

func (c *Client) newTransaction(name string, params Params, opts []CallOption) *Transaction {
	return &Transaction{
		ID:      uuid.NewString(),
		Client:  c,
		Command: newCommand(name, params, opts),
	}
}

// Resolved reports whether the transaction reached its terminal state.
func (t *Transaction) Resolved() bool {
	return t.resolved
}

// State reports where in its life the transaction is.
func (t *Transaction) State() string {
	switch {
	case t.resolved:
		return StateResolved
	case t.Request != nil:
		return StateSent
	default:
		return StatePending
	}
}

// SetMeta stores call-scoped scratch data, for interceptors that need to
// pass state from BeforeSend to AfterResolve.
func (t *Transaction) SetMeta(key string, value any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.meta == nil {
		t.meta = make(map[string]any)
	}
	t.meta[key] = value
}

// Meta retrieves call-scoped scratch data.
func (t *Transaction) Meta(key string) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	value, ok := t.meta[key]
	return value, ok
}
