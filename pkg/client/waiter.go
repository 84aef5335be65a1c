package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp-forge/courier/pkg/service"
)

// WaitReason classifies how a wait ended without success.
type WaitReason int

const (
	// WaitFailureState means an acceptor with state "failure" matched.
	WaitFailureState WaitReason = iota

	// WaitTimeout means the attempt budget ran out before any terminal
	// acceptor matched.
	WaitTimeout

	// WaitAborted means the wait stopped for a reason outside the
	// template: caller cancellation or an error no acceptor claimed.
	WaitAborted
)

func (r WaitReason) String() string {
	switch r {
	case WaitFailureState:
		return "failure_state"
	case WaitTimeout:
		return "timeout"
	case WaitAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// WaitError reports a wait that ended without reaching the success state.
// Reason distinguishes a matched failure acceptor from an exhausted
// attempt budget from an abort.
type WaitError struct {
	Waiter    string
	Operation string
	Reason    WaitReason
	Attempts  int

	// Matched is the acceptor that decided the outcome, when one did.
	Matched *service.Acceptor

	// LastErr is the final attempt's error, or the cancellation cause.
	LastErr error
}

func (e *WaitError) Error() string {
	switch e.Reason {
	case WaitFailureState:
		msg := fmt.Sprintf("waiter %s reached failure state after %d attempts", e.Waiter, e.Attempts)
		if e.Matched != nil {
			msg += fmt.Sprintf(" (matched %s acceptor %q)", e.Matched.Matcher, e.Matched.Expected)
		}
		if e.LastErr != nil {
			msg += ": " + e.LastErr.Error()
		}
		return msg
	case WaitTimeout:
		return fmt.Sprintf("waiter %s gave up after %d attempts without reaching a terminal state", e.Waiter, e.Attempts)
	default:
		return fmt.Sprintf("waiter %s aborted after %d attempts: %v", e.Waiter, e.Attempts, e.LastErr)
	}
}

func (e *WaitError) Unwrap() error {
	return e.LastErr
}

// WaitUntil polls the waiter's operation until an acceptor decides the
// outcome or the attempt budget runs out. On success it returns the final
// attempt's result; every other ending is a *WaitError.
func (c *Client) WaitUntil(ctx context.Context, name string, params Params, opts ...CallOption) (Result, error) {
	w, ok := c.desc.WaiterFor(name)
	if !ok {
		return nil, &OperationError{
			Operation: name,
			Target:    c.target,
			Message:   fmt.Sprintf("no waiter %q for service %q", name, c.desc.ServiceID),
			Kind:      KindPrecondition,
			Fault:     FaultClient,
			cause:     ErrWaiterNotFound,
		}
	}
	if w.Name == "" {
		w.Name = name
	}
	acceptors, err := compileAcceptors(w)
	if err != nil {
		return nil, &OperationError{
			Operation: w.Operation,
			Target:    c.target,
			Message:   fmt.Sprintf("invalid waiter %q: %v", w.Name, err),
			Kind:      KindPrecondition,
			Fault:     FaultClient,
			cause:     err,
		}
	}
	return c.wait(ctx, w, acceptors, params, opts)
}

// WaitUntilAsync runs WaitUntil in its own goroutine. The Future resolves
// to the same outcome the synchronous wait would produce, and Cancel
// aborts between attempts or mid-call.
func (c *Client) WaitUntilAsync(ctx context.Context, name string, params Params, opts ...CallOption) *Future {
	waitCtx, cancel := context.WithCancel(ctx)
	f := newFuture(cancel)
	go func() {
		defer f.settle()
		defer cancel()
		f.result, f.err = c.WaitUntil(waitCtx, name, params, opts...)
	}()
	return f
}

func (c *Client) wait(ctx context.Context, w service.Waiter, acceptors []compiledAcceptor, params Params, opts []CallOption) (Result, error) {
	log := c.log.With("waiter", w.Name, "operation", w.Operation)
	interval := w.Interval
	if interval <= 0 {
		interval = service.DefaultWaiterInterval
	}
	maxAttempts := w.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = service.DefaultWaiterMaxAttempts
	}
	tags := []string{"service:" + c.desc.ServiceID, "waiter:" + w.Name}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			timer := time.NewTimer(interval)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, &WaitError{
					Waiter:    w.Name,
					Operation: w.Operation,
					Reason:    WaitAborted,
					Attempts:  attempt - 1,
					LastErr:   ctx.Err(),
				}
			}
		}

		tx := c.newTransaction(w.Operation, params, opts)
		c.execute(ctx, tx)
		c.metrics.Count("wait.attempts", 1, tags)
		lastErr = tx.Err

		status := 0
		if tx.Response != nil {
			status = tx.Response.StatusCode
		}

		matched := matchAcceptor(log, acceptors, tx.Result, status, tx.Err)
		if matched == nil {
			if tx.Err != nil {
				return nil, &WaitError{
					Waiter:    w.Name,
					Operation: w.Operation,
					Reason:    WaitAborted,
					Attempts:  attempt,
					LastErr:   tx.Err,
				}
			}
			log.Debug("no acceptor matched, retrying", "attempt", attempt)
			continue
		}

		switch matched.State {
		case service.StateSuccess:
			log.Debug("waiter reached success state", "attempt", attempt)
			return tx.Result, nil
		case service.StateFailure:
			acc := matched.Acceptor
			return nil, &WaitError{
				Waiter:    w.Name,
				Operation: w.Operation,
				Reason:    WaitFailureState,
				Attempts:  attempt,
				Matched:   &acc,
				LastErr:   tx.Err,
			}
		default:
			log.Debug("acceptor elected retry",
				"attempt", attempt,
				"matcher", matched.Matcher,
				"expected", matched.Expected,
			)
		}
	}

	return nil, &WaitError{
		Waiter:    w.Name,
		Operation: w.Operation,
		Reason:    WaitTimeout,
		Attempts:  maxAttempts,
		LastErr:   lastErr,
	}
}

// compiledAcceptor pairs a template acceptor with whatever its matcher
// needs precomputed: a CEL program for path matchers, a parsed status
// code for status matchers.
type compiledAcceptor struct {
	service.Acceptor
	program cel.Program
	status  int
}

func compileAcceptors(w service.Waiter) ([]compiledAcceptor, error) {
	env, err := cel.NewEnv(
		cel.Variable("result", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("statusCode", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build expression environment: %w", err)
	}

	out := make([]compiledAcceptor, 0, len(w.Acceptors))
	for i, a := range w.Acceptors {
		ca := compiledAcceptor{Acceptor: a}
		switch a.Matcher {
		case service.MatcherPath:
			ast, iss := env.Compile(a.Expected)
			if iss != nil && iss.Err() != nil {
				return nil, fmt.Errorf("acceptor %d: invalid expression %q: %w", i, a.Expected, iss.Err())
			}
			prg, err := env.Program(ast)
			if err != nil {
				return nil, fmt.Errorf("acceptor %d: %w", i, err)
			}
			ca.program = prg
		case service.MatcherStatus:
			code, err := a.ExpectedStatus()
			if err != nil {
				return nil, fmt.Errorf("acceptor %d: %w", i, err)
			}
			ca.status = code
		case service.MatcherError:
		default:
			return nil, fmt.Errorf("acceptor %d: unknown matcher %q", i, a.Matcher)
		}
		out = append(out, ca)
	}
	return out, nil
}

// matchAcceptor returns the first acceptor matching the attempt's
// outcome, honoring declared order.
func matchAcceptor(log hclog.Logger, acceptors []compiledAcceptor, result Result, status int, callErr error) *compiledAcceptor {
	for i := range acceptors {
		if acceptors[i].matches(log, result, status, callErr) {
			return &acceptors[i]
		}
	}
	return nil
}

func (ca *compiledAcceptor) matches(log hclog.Logger, result Result, status int, callErr error) bool {
	switch ca.Matcher {
	case service.MatcherStatus:
		return status != 0 && status == ca.status
	case service.MatcherError:
		var oe *OperationError
		if !errors.As(callErr, &oe) || oe.Kind != KindService {
			return false
		}
		return ca.Expected == "" || oe.Code == ca.Expected
	case service.MatcherPath:
		if callErr != nil || result == nil {
			return false
		}
		out, _, err := ca.program.Eval(map[string]any{
			"result":     map[string]any(result),
			"statusCode": status,
		})
		if err != nil {
			log.Debug("acceptor expression evaluation failed",
				"expression", ca.Expected,
				"error", err,
			)
			return false
		}
		b, ok := out.Value().(bool)
		if !ok {
			log.Debug("acceptor expression did not produce a boolean", "expression", ca.Expected)
			return false
		}
		return b
	default:
		return false
	}
}
