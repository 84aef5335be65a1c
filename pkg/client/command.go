package client

import (
	"time"

	"github.com/hashicorp-forge/courier/pkg/transport"
)

// Params are the caller-supplied operation parameters.
type Params map[string]any

// Command is the immutable intent of one call: the operation name, its
// parameters, and any call-scoped extensions. A Command is built fresh per
// call and never shared.
type Command struct {
	Name   string
	Params Params

	interceptors []Interceptor
	hooks        []transport.Hook
	timeout      time.Duration
}

// CallOption attaches call-scoped behavior to a single execution.
type CallOption func(*Command)

// WithInterceptor appends an interceptor that runs for this call only,
// after the client-scoped ones.
func WithInterceptor(i Interceptor) CallOption {
	return func(cmd *Command) {
		cmd.interceptors = append(cmd.interceptors, i)
	}
}

// WithHook appends a pre-send hook to this call's request. Hooks run after
// signing, once per transmission attempt.
func WithHook(h transport.Hook) CallOption {
	return func(cmd *Command) {
		cmd.hooks = append(cmd.hooks, h)
	}
}

// WithCallTimeout bounds this call, covering every transmission attempt.
func WithCallTimeout(d time.Duration) CallOption {
	return func(cmd *Command) {
		cmd.timeout = d
	}
}

func newCommand(name string, params Params, opts []CallOption) *Command {
	cmd := &Command{Name: name, Params: params}
	for _, opt := range opts {
		opt(cmd)
	}
	return cmd
}

func cloneParams(params Params) Params {
	cloned := make(Params, len(params))
	for k, v := range params {
		cloned[k] = v
	}
	return cloned
}

// mergeParams overlays call parameters on client defaults. Explicit call
// parameters always win; maps are not merged recursively.
func mergeParams(defaults, params Params) Params {
	merged := make(Params, len(defaults)+len(params))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range params {
		merged[k] = v
	}
	return merged
}
