package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp-forge/courier/pkg/transport"
)

func TestExecuteSuccess(t *testing.T) {
	c, tr, sink := newTestClient(t)
	tr.reply(http.StatusOK, `{"Item":{"id":{"S":"42"}}}`)

	result, err := c.Execute(context.Background(), "GetItem", Params{
		"TableName": "users",
		"Key":       map[string]any{"id": map[string]any{"S": "42"}},
	})
	require.NoError(t, err)
	require.Contains(t, result, "Item")

	req := tr.lastRequest()
	require.NotNil(t, req)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "DynamoDB_20120810.GetItem", req.Header.Get("X-Amz-Target"))
	assert.Equal(t, defaultUserAgent, req.Header.Get("User-Agent"))
	assert.NotEmpty(t, req.Header.Get(InvocationIDHeader))
	assert.Equal(t, req.InvocationID, req.Header.Get(InvocationIDHeader))

	var body map[string]any
	require.NoError(t, json.Unmarshal(req.Body, &body))
	assert.Equal(t, "users", body["TableName"])

	assert.Equal(t, int64(1), sink.count("call"))
	assert.Contains(t, sink.lastTags("call"), "outcome:success")
	assert.Contains(t, sink.lastTags("call"), "operation:GetItem")
}

func TestExecuteServiceError(t *testing.T) {
	c, tr, sink := newTestClient(t)
	tr.replyWithRequestID(http.StatusBadRequest,
		`{"__type":"com.amazonaws.dynamodb.v20120810#ResourceNotFoundException","message":"Requested resource not found: Table: prod-users not found"}`,
		"C6AKL2M9V0",
	)

	result, err := c.Execute(context.Background(), "DescribeTable", Params{"TableName": "prod-users"})
	assert.Nil(t, result)
	require.Error(t, err)

	var oe *OperationError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, "DescribeTable", oe.Operation)
	assert.Equal(t, KindService, oe.Kind)
	assert.Equal(t, FaultClient, oe.Fault)
	assert.Equal(t, "ResourceNotFoundException", oe.Code)
	assert.Equal(t, "com.amazonaws.dynamodb.v20120810#ResourceNotFoundException", oe.ErrorType)
	assert.Equal(t, http.StatusBadRequest, oe.StatusCode)
	assert.Equal(t, "C6AKL2M9V0", oe.RequestID)
	assert.Contains(t, oe.URL, "dynamodb.us-east-1.amazonaws.com")
	assert.NotNil(t, oe.Transaction)
	assert.Contains(t, oe.Error(), "error executing DescribeTable on dynamodb.us-east-1.amazonaws.com")
	assert.Contains(t, oe.Error(), "ResourceNotFoundException: Requested resource not found")

	assert.Contains(t, sink.lastTags("call"), "outcome:error")
}

func TestExecuteServiceErrorServerFault(t *testing.T) {
	c, tr, _ := newTestClient(t)
	tr.reply(http.StatusServiceUnavailable, `{"__type":"ServiceUnavailable"}`)

	_, err := c.Execute(context.Background(), "ListTables", nil)
	var oe *OperationError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, FaultServer, oe.Fault)
	assert.Equal(t, "ServiceUnavailable", oe.Code)
}

func TestExecuteServiceErrorStatusFallback(t *testing.T) {
	c, tr, _ := newTestClient(t)
	tr.reply(http.StatusInternalServerError, "")

	_, err := c.Execute(context.Background(), "ListTables", nil)
	var oe *OperationError
	require.ErrorAs(t, err, &oe)
	assert.Empty(t, oe.Code)
	assert.Contains(t, oe.Error(), "HTTP 500")
}

func TestExecuteTransportError(t *testing.T) {
	c, tr, _ := newTestClient(t)
	cause := errors.New("dial tcp: connection refused")
	tr.fail(cause)

	result, err := c.Execute(context.Background(), "ListTables", nil)
	assert.Nil(t, result)

	var oe *OperationError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, KindTransport, oe.Kind)
	assert.Equal(t, FaultTransport, oe.Fault)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, oe.Error(), "connection refused")
}

func TestExecuteOperationNotFound(t *testing.T) {
	c, tr, _ := newTestClient(t)

	_, err := c.Execute(context.Background(), "DropAllTables", nil)
	require.ErrorIs(t, err, ErrOperationNotFound)

	var oe *OperationError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, KindPrecondition, oe.Kind)
	assert.Contains(t, oe.Message, `operation "DropAllTables" not found for service "dynamodb"`)
	assert.Zero(t, tr.sentCount())
}

func TestExecuteOperationNameFallback(t *testing.T) {
	c, tr, _ := newTestClient(t)
	tr.reply(http.StatusOK, `{"TableNames":[]}`)

	_, err := c.Execute(context.Background(), "list_tables", nil)
	require.NoError(t, err)
	assert.Equal(t, "DynamoDB_20120810.ListTables", tr.lastRequest().Header.Get("X-Amz-Target"))
}

func TestExecuteMissingRequiredParams(t *testing.T) {
	c, tr, _ := newTestClient(t)

	_, err := c.Execute(context.Background(), "GetItem", Params{"TableName": "users"})
	var oe *OperationError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, KindPrecondition, oe.Kind)
	assert.Contains(t, oe.Message, "Key")
	assert.Zero(t, tr.sentCount())
}

func TestExecuteDefaultParamsMergeUnderCallParams(t *testing.T) {
	c, tr, _ := newTestClient(t, func(cfg *Config) {
		cfg.DefaultParams = Params{"TableName": "default-table", "ConsistentRead": true}
	})
	tr.reply(http.StatusOK, `{}`)

	_, err := c.Execute(context.Background(), "DescribeTable", Params{"TableName": "override"})
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(tr.lastRequest().Body, &body))
	assert.Equal(t, "override", body["TableName"])
	assert.Equal(t, true, body["ConsistentRead"])
}

func TestExecuteInterceptorOrderAndResolution(t *testing.T) {
	var order []string
	clientScoped := InterceptorFuncs{
		OnBeforeSend: func(ctx context.Context, tx *Transaction) error {
			order = append(order, "client-before")
			return nil
		},
		OnAfterResolve: func(ctx context.Context, tx *Transaction) {
			order = append(order, "client-after")
			assert.True(t, tx.Resolved())
		},
	}
	callScoped := InterceptorFuncs{
		OnBeforeSend: func(ctx context.Context, tx *Transaction) error {
			order = append(order, "call-before")
			return nil
		},
		OnAfterResolve: func(ctx context.Context, tx *Transaction) {
			order = append(order, "call-after")
		},
	}

	c, tr, _ := newTestClient(t, func(cfg *Config) {
		cfg.Interceptors = []Interceptor{clientScoped}
	})
	tr.reply(http.StatusOK, `{}`)

	_, err := c.Execute(context.Background(), "ListTables", nil, WithInterceptor(callScoped))
	require.NoError(t, err)
	assert.Equal(t, []string{"client-before", "call-before", "client-after", "call-after"}, order)
}

func TestExecuteInterceptorAbort(t *testing.T) {
	reject := InterceptorFuncs{
		OnBeforeSend: func(context.Context, *Transaction) error {
			return errors.New("request denied by policy")
		},
	}
	c, tr, _ := newTestClient(t)

	_, err := c.Execute(context.Background(), "ListTables", nil, WithInterceptor(reject))
	var oe *OperationError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, KindInternal, oe.Kind)
	assert.Contains(t, oe.Error(), "unexpected error executing")
	assert.Contains(t, oe.Error(), "request denied by policy")
	assert.Zero(t, tr.sentCount())
}

func TestExecuteParseFailureIsInternal(t *testing.T) {
	c, tr, _ := newTestClient(t)
	tr.reply(http.StatusOK, `{"TableNames": [truncated`)

	_, err := c.Execute(context.Background(), "ListTables", nil)
	var oe *OperationError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, KindInternal, oe.Kind)
	assert.Contains(t, oe.Error(), "unexpected error executing")
	assert.Contains(t, oe.Error(), "failed to parse")
}

func TestTranslateIdempotent(t *testing.T) {
	c, tr, _ := newTestClient(t)
	tr.reply(http.StatusBadRequest, `{"__type":"ValidationException","message":"nope"}`)

	_, err := c.Execute(context.Background(), "ListTables", nil)
	require.Error(t, err)

	var oe *OperationError
	require.ErrorAs(t, err, &oe)
	again := c.translate(oe.Transaction, err)
	assert.Same(t, err, again)
}

func TestExecuteCallHookMutatesRequest(t *testing.T) {
	c, tr, _ := newTestClient(t)
	tr.reply(http.StatusOK, `{}`)

	stamp := func(ctx context.Context, req *transport.Request) error {
		req.SetHeader("X-Trace-Id", "trace-123")
		return nil
	}
	_, err := c.Execute(context.Background(), "ListTables", nil, WithHook(stamp))
	require.NoError(t, err)
	assert.Equal(t, "trace-123", tr.lastRequest().Header.Get("X-Trace-Id"))
}

// slowTransport blocks until its delay elapses or the context ends.
type slowTransport struct {
	delay time.Duration
}

func (s *slowTransport) Send(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	select {
	case <-time.After(s.delay):
		return &transport.Response{StatusCode: http.StatusOK, Body: []byte("{}"), Header: http.Header{}, Attempts: 1}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestExecuteCallTimeout(t *testing.T) {
	c, _, _ := newTestClient(t, func(cfg *Config) {
		cfg.Transport = &slowTransport{delay: time.Second}
	})

	start := time.Now()
	_, err := c.Execute(context.Background(), "ListTables", nil, WithCallTimeout(10*time.Millisecond))
	require.Error(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	var oe *OperationError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, KindTransport, oe.Kind)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
