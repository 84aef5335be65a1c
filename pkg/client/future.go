package client

import "context"

// Future is the handle for one asynchronous call. It resolves exactly
// once, to what the synchronous path would have returned for the same
// command.
type Future struct {
	result Result
	err    error
	done   chan struct{}
	cancel context.CancelFunc
}

func newFuture(cancel context.CancelFunc) *Future {
	return &Future{
		done:   make(chan struct{}),
		cancel: cancel,
	}
}

// settle publishes the outcome. Runs exactly once, after result and err
// are in place.
func (f *Future) settle() {
	close(f.done)
}

// Wait blocks until the call resolves or ctx is done. A ctx error returns
// early but leaves the call running; Wait may be called again.
func (f *Future) Wait(ctx context.Context) (Result, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done returns a channel closed when the call resolves. Useful in select
// loops alongside other work.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Cancel asks the in-flight call to stop. The call still resolves, with
// a cancellation error; canceling a resolved future does nothing.
func (f *Future) Cancel() {
	f.cancel()
}
