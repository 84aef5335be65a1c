package client

import (
	"context"
	"fmt"

	"github.com/hashicorp-forge/courier/pkg/service"
)

// Paginator walks a multi-page operation lazily: each NextPage issues one
// call, feeding the previous page's output tokens into the next call's
// input parameters. A paginator is finite and one-way; it cannot be
// restarted or shared between goroutines.
type Paginator struct {
	client   *Client
	op       string
	template service.Pagination
	params   Params
	opts     []CallOption

	next    map[string]any
	started bool
	done    bool
	err     error
}

// Paginator builds a page iterator for an operation. It fails before any
// request is sent when the operation is unknown, has no pagination
// template, or the template declares no result key.
func (c *Client) Paginator(name string, params Params, opts ...CallOption) (*Paginator, error) {
	opName, ok := c.desc.ResolveOperationName(name)
	if !ok {
		return nil, &OperationError{
			Operation: name,
			Target:    c.target,
			Message:   fmt.Sprintf("operation %q not found for service %q", name, c.desc.ServiceID),
			Kind:      KindPrecondition,
			Fault:     FaultClient,
			cause:     ErrOperationNotFound,
		}
	}
	template, ok := c.desc.Pagination[opName]
	if !ok {
		return nil, &OperationError{
			Operation: opName,
			Target:    c.target,
			Message:   fmt.Sprintf("operation %q declares no pagination template", opName),
			Kind:      KindPrecondition,
			Fault:     FaultClient,
			cause:     ErrPaginationNotSupported,
		}
	}
	if !template.Pageable() {
		return nil, &OperationError{
			Operation: opName,
			Target:    c.target,
			Message:   fmt.Sprintf("pagination template for %q declares no result key", opName),
			Kind:      KindPrecondition,
			Fault:     FaultClient,
			cause:     ErrPaginationNotSupported,
		}
	}
	return &Paginator{
		client:   c,
		op:       opName,
		template: template,
		params:   cloneParams(params),
		opts:     opts,
	}, nil
}

// HasMorePages reports whether NextPage would issue another call. True
// before the first page.
func (p *Paginator) HasMorePages() bool {
	return !p.done && p.err == nil
}

// Err returns the error that stopped iteration, if any. Exhausting all
// pages normally leaves Err nil.
func (p *Paginator) Err() error {
	return p.err
}

// NextPage issues the next call and returns its result document. After
// the last page it returns ErrNoMorePages; after a failure it returns
// the same error on every subsequent call.
func (p *Paginator) NextPage(ctx context.Context) (Result, error) {
	if p.err != nil {
		return nil, p.err
	}
	if p.done {
		return nil, ErrNoMorePages
	}

	params := cloneParams(p.params)
	if p.started {
		for _, in := range p.template.InputTokens {
			delete(params, in)
		}
		for k, v := range p.next {
			params[k] = v
		}
	}

	result, err := p.client.Execute(ctx, p.op, params, p.opts...)
	if err != nil {
		p.err = err
		p.done = true
		return nil, err
	}
	p.started = true
	p.advance(result)
	return result, nil
}

// NextPageItems issues the next call and returns the items under the
// template's result keys, concatenated in declared order.
func (p *Paginator) NextPageItems(ctx context.Context) ([]any, error) {
	page, err := p.NextPage(ctx)
	if err != nil {
		return nil, err
	}
	return itemsAt(page, p.template.ResultKeys), nil
}

// advance captures the page's output tokens as the next call's input
// parameters. The sequence is exhausted when every output token is
// absent or empty.
func (p *Paginator) advance(page Result) {
	next := make(map[string]any, len(p.template.InputTokens))
	for i, out := range p.template.OutputTokens {
		if v, ok := lookupPath(page, out); tokenPresent(v, ok) {
			next[p.template.InputTokens[i]] = v
		}
	}
	p.next = next
	p.done = len(next) == 0
}
