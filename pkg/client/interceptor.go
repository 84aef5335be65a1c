package client

import "context"

// Interceptor observes and extends transactions at two fixed points. Each
// call gets its own ordered interceptor list, built fresh from the
// client-scoped interceptors followed by any call-scoped ones; there is no
// shared mutable hook registry.
type Interceptor interface {
	// BeforeSend runs after serialization and arming, before the request
	// reaches the transport. It may mutate the request; an error aborts
	// the call.
	BeforeSend(ctx context.Context, tx *Transaction) error

	// AfterResolve runs exactly once, after the transaction settled into a
	// result or error. It must not change the outcome.
	AfterResolve(ctx context.Context, tx *Transaction)
}

// InterceptorFuncs adapts bare functions to the Interceptor interface.
// Either field may be nil.
type InterceptorFuncs struct {
	OnBeforeSend   func(ctx context.Context, tx *Transaction) error
	OnAfterResolve func(ctx context.Context, tx *Transaction)
}

func (f InterceptorFuncs) BeforeSend(ctx context.Context, tx *Transaction) error {
	if f.OnBeforeSend == nil {
		return nil
	}
	return f.OnBeforeSend(ctx, tx)
}

func (f InterceptorFuncs) AfterResolve(ctx context.Context, tx *Transaction) {
	if f.OnAfterResolve != nil {
		f.OnAfterResolve(ctx, tx)
	}
}
