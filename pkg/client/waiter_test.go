package client

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp-forge/courier/pkg/service"
)

func TestWaitUntilSuccessAfterRetries(t *testing.T) {
	c, tr, sink := newTestClient(t)
	tr.reply(http.StatusBadRequest, `{"__type":"ResourceNotFoundException","message":"not found"}`)
	tr.reply(http.StatusOK, `{"Table":{"TableStatus":"CREATING"}}`)
	tr.reply(http.StatusOK, `{"Table":{"TableStatus":"ACTIVE"}}`)

	result, err := c.WaitUntil(context.Background(), "TableExists", Params{"TableName": "users"})
	require.NoError(t, err)
	require.Contains(t, result, "Table")

	// Attempt one matched the retry acceptor, attempt two matched nothing
	// on a success outcome (default retry), attempt three matched success.
	assert.Equal(t, 3, tr.sentCount())
	assert.Equal(t, int64(3), sink.count("wait.attempts"))
}

func TestWaitUntilFailureStateIsDistinct(t *testing.T) {
	c, tr, _ := newTestClient(t)
	tr.reply(http.StatusOK, `{"Table":{"TableStatus":"DELETING"}}`)

	_, err := c.WaitUntil(context.Background(), "TableExists", Params{"TableName": "users"})
	require.Error(t, err)

	var we *WaitError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, WaitFailureState, we.Reason)
	assert.Equal(t, "TableExists", we.Waiter)
	assert.Equal(t, "DescribeTable", we.Operation)
	assert.Equal(t, 1, we.Attempts)
	require.NotNil(t, we.Matched)
	assert.Equal(t, service.StateFailure, we.Matched.State)
	assert.Contains(t, we.Error(), "reached failure state")
}

func TestWaitUntilTimeoutIsDistinct(t *testing.T) {
	c, tr, _ := newTestClient(t)
	tr.reply(http.StatusBadRequest, `{"__type":"ResourceNotFoundException","message":"not found"}`)

	_, err := c.WaitUntil(context.Background(), "TableExists", Params{"TableName": "users"})
	require.Error(t, err)

	var we *WaitError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, WaitTimeout, we.Reason)
	assert.Equal(t, 5, we.Attempts)
	assert.Contains(t, we.Error(), "gave up after 5 attempts")
	assert.Equal(t, 5, tr.sentCount())

	// The last attempt's error stays reachable through the chain.
	var oe *OperationError
	assert.ErrorAs(t, err, &oe)
	assert.Equal(t, "ResourceNotFoundException", oe.Code)
}

func TestWaitUntilAbortsOnUnmatchedError(t *testing.T) {
	c, tr, _ := newTestClient(t)
	tr.reply(http.StatusInternalServerError, `{"__type":"InternalServerError","message":"boom"}`)

	_, err := c.WaitUntil(context.Background(), "TableExists", Params{"TableName": "users"})
	require.Error(t, err)

	var we *WaitError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, WaitAborted, we.Reason)
	assert.Equal(t, 1, we.Attempts)
	assert.Equal(t, 1, tr.sentCount())

	var oe *OperationError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, "InternalServerError", oe.Code)
}

func TestWaitUntilUnknownWaiter(t *testing.T) {
	c, tr, _ := newTestClient(t)

	_, err := c.WaitUntil(context.Background(), "VolcanoErupts", nil)
	require.ErrorIs(t, err, ErrWaiterNotFound)
	assert.Zero(t, tr.sentCount())
}

func TestWaitUntilResolvesByOperationName(t *testing.T) {
	c, tr, _ := newTestClient(t)
	tr.reply(http.StatusOK, `{"Table":{"TableStatus":"ACTIVE"}}`)

	result, err := c.WaitUntil(context.Background(), "DescribeTable", Params{"TableName": "users"})
	require.NoError(t, err)
	assert.Contains(t, result, "Table")
}

func TestWaitUntilContextCancelDuringSleep(t *testing.T) {
	desc := testDescription()
	w := desc.Waiters["TableExists"]
	w.Interval = 10 * time.Second
	desc.Waiters["TableExists"] = w

	c, tr, _ := newTestClient(t, func(cfg *Config) {
		cfg.Description = desc
	})
	tr.reply(http.StatusBadRequest, `{"__type":"ResourceNotFoundException","message":"not found"}`)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	_, err := c.WaitUntil(ctx, "TableExists", Params{"TableName": "users"})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	var we *WaitError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, WaitAborted, we.Reason)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, tr.sentCount())
}

func TestWaitUntilStatusMatcher(t *testing.T) {
	desc := testDescription()
	desc.Waiters["TableGone"] = service.Waiter{
		Name:        "TableGone",
		Operation:   "DescribeTable",
		Interval:    time.Millisecond,
		MaxAttempts: 3,
		Acceptors: []service.Acceptor{
			{State: service.StateSuccess, Matcher: service.MatcherStatus, Expected: "404"},
			{State: service.StateRetry, Matcher: service.MatcherStatus, Expected: "200"},
		},
	}
	c, tr, _ := newTestClient(t, func(cfg *Config) {
		cfg.Description = desc
	})
	tr.reply(http.StatusOK, `{"Table":{"TableStatus":"ACTIVE"}}`)
	tr.reply(http.StatusNotFound, `{"__type":"ResourceNotFoundException"}`)

	// Status acceptors fire on error outcomes too: the 404 resolves the
	// wait successfully even though the call itself failed.
	_, err := c.WaitUntil(context.Background(), "TableGone", Params{"TableName": "users"})
	require.NoError(t, err)
	assert.Equal(t, 2, tr.sentCount())
}

func TestWaitUntilEmptyErrorCodeMatchesAnyServiceError(t *testing.T) {
	desc := testDescription()
	desc.Waiters["NeverErrors"] = service.Waiter{
		Name:        "NeverErrors",
		Operation:   "ListTables",
		Interval:    time.Millisecond,
		MaxAttempts: 3,
		Acceptors: []service.Acceptor{
			{State: service.StateSuccess, Matcher: service.MatcherStatus, Expected: "200"},
			{State: service.StateFailure, Matcher: service.MatcherError, Expected: ""},
		},
	}
	c, tr, _ := newTestClient(t, func(cfg *Config) {
		cfg.Description = desc
	})
	tr.reply(http.StatusForbidden, `{"__type":"AccessDeniedException","message":"no"}`)

	_, err := c.WaitUntil(context.Background(), "NeverErrors", nil)
	var we *WaitError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, WaitFailureState, we.Reason)
	require.NotNil(t, we.Matched)
	assert.Equal(t, service.MatcherError, we.Matched.Matcher)
}

func TestWaitUntilInvalidExpression(t *testing.T) {
	desc := testDescription()
	desc.Waiters["Broken"] = service.Waiter{
		Name:        "Broken",
		Operation:   "ListTables",
		Interval:    time.Millisecond,
		MaxAttempts: 3,
		Acceptors: []service.Acceptor{
			{State: service.StateSuccess, Matcher: service.MatcherPath, Expected: `result.Table ==`},
		},
	}
	c, tr, _ := newTestClient(t, func(cfg *Config) {
		cfg.Description = desc
	})

	_, err := c.WaitUntil(context.Background(), "Broken", nil)
	require.Error(t, err)

	var oe *OperationError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, KindPrecondition, oe.Kind)
	assert.Contains(t, oe.Message, "invalid waiter")
	assert.Zero(t, tr.sentCount())
}

func TestWaitUntilEvaluationErrorIsNonMatch(t *testing.T) {
	desc := testDescription()
	desc.Waiters["TwoShots"] = service.Waiter{
		Name:        "TwoShots",
		Operation:   "ListTables",
		Interval:    time.Millisecond,
		MaxAttempts: 2,
		Acceptors: []service.Acceptor{
			{State: service.StateSuccess, Matcher: service.MatcherPath, Expected: `result.Table.TableStatus == "ACTIVE"`},
		},
	}
	c, tr, _ := newTestClient(t, func(cfg *Config) {
		cfg.Description = desc
	})
	tr.reply(http.StatusOK, `{}`)

	// The expression dereferences a key the result never has; evaluation
	// fails each attempt, counting as a non-match until the budget runs out.
	_, err := c.WaitUntil(context.Background(), "TwoShots", nil)
	var we *WaitError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, WaitTimeout, we.Reason)
	assert.Equal(t, 2, we.Attempts)
}

func TestWaitUntilAsync(t *testing.T) {
	c, tr, _ := newTestClient(t)
	tr.reply(http.StatusOK, `{"Table":{"TableStatus":"ACTIVE"}}`)

	f := c.WaitUntilAsync(context.Background(), "TableExists", Params{"TableName": "users"})
	result, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Contains(t, result, "Table")
}

func TestWaitUntilAsyncCancel(t *testing.T) {
	desc := testDescription()
	w := desc.Waiters["TableExists"]
	w.Interval = 10 * time.Second
	desc.Waiters["TableExists"] = w

	c, tr, _ := newTestClient(t, func(cfg *Config) {
		cfg.Description = desc
	})
	tr.reply(http.StatusBadRequest, `{"__type":"ResourceNotFoundException","message":"not found"}`)

	f := c.WaitUntilAsync(context.Background(), "TableExists", Params{"TableName": "users"})
	time.Sleep(20 * time.Millisecond)
	f.Cancel()

	_, err := f.Wait(context.Background())
	require.Error(t, err)

	var we *WaitError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, WaitAborted, we.Reason)
	assert.ErrorIs(t, err, context.Canceled)
}
