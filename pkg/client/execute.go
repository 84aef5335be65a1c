package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp-forge/courier/pkg/service"
	"github.com/hashicorp-forge/courier/pkg/transport"
)

// execute runs the full pipeline for one transaction and resolves it. The
// outcome lives in tx.Result and tx.Err; execute itself never fails.
// Every access pattern, from a plain Execute to a waiter attempt, comes
// through here.
func (c *Client) execute(ctx context.Context, tx *Transaction) {
	tx.StartedAt = time.Now()
	if tx.Command.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, tx.Command.timeout)
		defer cancel()
	}

	result, err := c.run(ctx, tx)
	if err != nil {
		tx.Err = c.translate(tx, err)
	} else {
		tx.Result = result
	}
	c.resolve(ctx, tx)
}

// run resolves the operation, merges parameters, serializes, arms the
// signing hook, sends, and parses. Service and transport failures come
// back already typed; anything else is a raw error for translate to wrap.
func (c *Client) run(ctx context.Context, tx *Transaction) (Result, error) {
	opName, ok := c.desc.ResolveOperationName(tx.Command.Name)
	if !ok {
		return nil, &OperationError{
			Operation:   tx.Command.Name,
			Target:      c.target,
			Message:     fmt.Sprintf("operation %q not found for service %q", tx.Command.Name, c.desc.ServiceID),
			Kind:        KindPrecondition,
			Fault:       FaultClient,
			Transaction: tx,
			cause:       ErrOperationNotFound,
		}
	}
	op := c.desc.Operations[opName]
	op.Name = opName
	tx.Operation = op

	params := mergeParams(c.defaults, tx.Command.Params)
	if missing := missingParams(op, params); len(missing) > 0 {
		return nil, &OperationError{
			Operation:   opName,
			Target:      c.target,
			Message:     fmt.Sprintf("missing required parameters: %s", strings.Join(missing, ", ")),
			Kind:        KindPrecondition,
			Fault:       FaultClient,
			Transaction: tx,
		}
	}

	req, err := c.serializer.BuildRequest(op, c.endpoint, params)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", opName, err)
	}
	req.InvocationID = tx.ID
	req.SetHeader("User-Agent", c.userAgent)
	req.SetHeader(InvocationIDHeader, tx.ID)
	req.OnSend(c.signRequest)
	for _, h := range tx.Command.hooks {
		req.OnSend(h)
	}
	tx.Request = req

	for _, i := range c.interceptors {
		if err := i.BeforeSend(ctx, tx); err != nil {
			return nil, fmt.Errorf("interceptor rejected %s: %w", opName, err)
		}
	}
	for _, i := range tx.Command.interceptors {
		if err := i.BeforeSend(ctx, tx); err != nil {
			return nil, fmt.Errorf("interceptor rejected %s: %w", opName, err)
		}
	}

	resp, err := c.transport.Send(ctx, req)
	tx.Response = resp
	if err != nil {
		return nil, c.transportError(tx, err)
	}
	if resp.StatusCode >= 300 {
		return nil, c.serviceError(tx, resp)
	}

	doc, err := c.results.ParseResult(op, resp)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s response: %w", opName, err)
	}
	return Result(doc), nil
}

// signRequest is the pre-send hook: resolve credentials, then sign. The
// transport runs it once per transmission attempt, so retried requests
// carry fresh signatures.
func (c *Client) signRequest(ctx context.Context, req *transport.Request) error {
	creds, err := c.creds.Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve credentials: %w", err)
	}
	if err := c.signer.Sign(ctx, req, creds); err != nil {
		return fmt.Errorf("failed to sign request: %w", err)
	}
	return nil
}

// translate turns a pipeline failure into exactly one typed error. It is
// idempotent: an error that is already typed passes through unchanged,
// never double-wrapped. Raw errors become internal ones with the
// distinguishing "unexpected error executing" message.
func (c *Client) translate(tx *Transaction, err error) error {
	var oe *OperationError
	if errors.As(err, &oe) {
		return err
	}
	wrapped := &OperationError{
		Operation:   c.operationName(tx),
		Target:      c.target,
		Message:     err.Error(),
		Kind:        KindInternal,
		Fault:       FaultInternal,
		URL:         requestURL(tx),
		Transaction: tx,
		cause:       err,
	}
	if tx.Response != nil {
		wrapped.StatusCode = tx.Response.StatusCode
		wrapped.RequestID = tx.Response.RequestID
	}
	return wrapped
}

// serviceError builds the typed error for a response with an error status.
// Code, type and message come from the error parser when the body yields
// them; the status line stands in when it does not.
func (c *Client) serviceError(tx *Transaction, resp *transport.Response) *OperationError {
	oe := &OperationError{
		Operation:   tx.Operation.Name,
		Target:      c.target,
		Kind:        KindService,
		Fault:       faultForStatus(resp.StatusCode),
		StatusCode:  resp.StatusCode,
		RequestID:   resp.RequestID,
		URL:         requestURL(tx),
		Transaction: tx,
	}
	if details := c.errors.ParseError(resp); details != nil {
		oe.Code = details.Code
		oe.ErrorType = details.Type
		oe.Message = details.Message
	}
	return oe
}

// transportError builds the typed error for a failure to transmit at all:
// connection refused, DNS, TLS, context cancellation mid-send.
func (c *Client) transportError(tx *Transaction, err error) *OperationError {
	return &OperationError{
		Operation:   tx.Operation.Name,
		Target:      c.target,
		Message:     err.Error(),
		Kind:        KindTransport,
		Fault:       FaultTransport,
		URL:         requestURL(tx),
		Transaction: tx,
		cause:       err,
	}
}

// resolve stamps the transaction, runs AfterResolve interceptors, and
// emits the per-call telemetry. Runs exactly once per transaction.
func (c *Client) resolve(ctx context.Context, tx *Transaction) {
	tx.Duration = time.Since(tx.StartedAt)
	tx.resolved = true

	for _, i := range c.interceptors {
		i.AfterResolve(ctx, tx)
	}
	for _, i := range tx.Command.interceptors {
		i.AfterResolve(ctx, tx)
	}

	opName := c.operationName(tx)
	outcome := "success"
	if tx.Err != nil {
		outcome = "error"
	}
	tags := []string{
		"service:" + c.desc.ServiceID,
		"operation:" + opName,
		"outcome:" + outcome,
	}
	var oe *OperationError
	if errors.As(tx.Err, &oe) && oe.Code != "" {
		tags = append(tags, "code:"+oe.Code)
	}
	c.metrics.Count("call", 1, tags)
	c.metrics.Timing("call.duration", tx.Duration, tags)

	if tx.Err != nil {
		c.log.Warn("call failed",
			"operation", opName,
			"transaction_id", tx.ID,
			"duration", tx.Duration,
			"error", tx.Err,
		)
		return
	}
	status := 0
	if tx.Response != nil {
		status = tx.Response.StatusCode
	}
	c.log.Debug("call resolved",
		"operation", opName,
		"transaction_id", tx.ID,
		"status", status,
		"duration", tx.Duration,
		"attempts", responseAttempts(tx),
	)
}

func (c *Client) operationName(tx *Transaction) string {
	if tx.Operation.Name != "" {
		return tx.Operation.Name
	}
	return tx.Command.Name
}

func missingParams(op service.Operation, params Params) []string {
	var missing []string
	for _, name := range op.RequiredParams {
		if v, ok := params[name]; !ok || v == nil {
			missing = append(missing, name)
		}
	}
	return missing
}

func requestURL(tx *Transaction) string {
	if tx.Request == nil || tx.Request.URL == nil {
		return ""
	}
	return tx.Request.URL.String()
}

func responseAttempts(tx *Transaction) int {
	if tx.Response == nil {
		return 0
	}
	return tx.Response.Attempts
}
