package client

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp-forge/courier/pkg/service"
	"github.com/hashicorp-forge/courier/pkg/transport"
)

// testDescription models a DynamoDB-flavored service with enough surface
// for every access pattern: plain calls, pagination and waiters.
func testDescription() *service.Description {
	return &service.Description{
		Service:      "Amazon DynamoDB",
		ServiceID:    "dynamodb",
		APIVersion:   "2012-08-10",
		Endpoint:     "https://dynamodb.us-east-1.amazonaws.com",
		Protocol:     service.ProtocolAWSJSON,
		TargetPrefix: "DynamoDB_20120810",
		Operations: map[string]service.Operation{
			"ListTables":    {},
			"DescribeTable": {RequiredParams: []string{"TableName"}},
			"GetItem":       {RequiredParams: []string{"TableName", "Key"}},
			"Scan":          {},
			"Query":         {},
		},
		Pagination: map[string]service.Pagination{
			"ListTables": {
				InputTokens:  []string{"ExclusiveStartTableName"},
				OutputTokens: []string{"LastEvaluatedTableName"},
				LimitParam:   "Limit",
				ResultKeys:   []string{"TableNames"},
			},
			"Scan": {
				InputTokens:  []string{"ExclusiveStartKey"},
				OutputTokens: []string{"LastEvaluatedKey"},
				ResultKeys:   []string{"Items"},
			},
			// Query's template carries tokens but no result key, so it is
			// not pageable.
			"Query": {
				InputTokens:  []string{"ExclusiveStartKey"},
				OutputTokens: []string{"LastEvaluatedKey"},
			},
		},
		Waiters: map[string]service.Waiter{
			"TableExists": {
				Name:        "TableExists",
				Operation:   "DescribeTable",
				Interval:    time.Millisecond,
				MaxAttempts: 5,
				Acceptors: []service.Acceptor{
					{State: service.StateSuccess, Matcher: service.MatcherPath, Expected: `result.Table.TableStatus == "ACTIVE"`},
					{State: service.StateRetry, Matcher: service.MatcherError, Expected: "ResourceNotFoundException"},
					{State: service.StateFailure, Matcher: service.MatcherPath, Expected: `result.Table.TableStatus == "DELETING"`},
				},
			},
		},
	}
}

type stubReply struct {
	resp *transport.Response
	err  error
}

// stubTransport returns scripted replies in order, holding the last one
// for any further sends. It honors the transport contract of running
// pre-send hooks on every attempt.
type stubTransport struct {
	mu      sync.Mutex
	replies []stubReply
	sent    []*transport.Request
	bodies  [][]byte
}

func (s *stubTransport) reply(status int, body string) *stubTransport {
	s.replies = append(s.replies, stubReply{resp: &transport.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     http.Header{},
		Body:       []byte(body),
		Attempts:   1,
	}})
	return s
}

func (s *stubTransport) replyWithRequestID(status int, body, requestID string) *stubTransport {
	s.reply(status, body)
	s.replies[len(s.replies)-1].resp.RequestID = requestID
	return s
}

func (s *stubTransport) fail(err error) *stubTransport {
	s.replies = append(s.replies, stubReply{err: err})
	return s
}

func (s *stubTransport) Send(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	if err := req.RunHooks(ctx); err != nil {
		return nil, fmt.Errorf("pre-send hook failed: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, req)
	s.bodies = append(s.bodies, req.Body)
	if len(s.replies) == 0 {
		return &transport.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{},
			Body:       []byte("{}"),
			Attempts:   1,
		}, nil
	}
	r := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return r.resp, r.err
}

func (s *stubTransport) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func (s *stubTransport) lastRequest() *transport.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return nil
	}
	return s.sent[len(s.sent)-1]
}

// captureSink records emitted metrics for assertions.
type captureSink struct {
	mu      sync.Mutex
	counts  map[string]int64
	tags    map[string][]string
	timings map[string]int
}

func newCaptureSink() *captureSink {
	return &captureSink{
		counts:  map[string]int64{},
		tags:    map[string][]string{},
		timings: map[string]int{},
	}
}

func (s *captureSink) Count(name string, value int64, tags []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[name] += value
	s.tags[name] = tags
}

func (s *captureSink) Gauge(string, float64, []string) {}

func (s *captureSink) Timing(name string, _ time.Duration, tags []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timings[name]++
	s.tags[name] = tags
}

func (s *captureSink) count(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[name]
}

func (s *captureSink) lastTags(name string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tags[name]
}

func newTestClient(t *testing.T, mods ...func(*Config)) (*Client, *stubTransport, *captureSink) {
	t.Helper()
	tr := &stubTransport{}
	sink := newCaptureSink()
	cfg := Config{
		Description: testDescription(),
		Transport:   tr,
		Metrics:     sink,
		Logger:      hclog.NewNullLogger(),
	}
	for _, m := range mods {
		m(&cfg)
	}
	c, err := New(cfg)
	require.NoError(t, err)
	return c, tr, sink
}

func TestNewValidatesConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "missing description",
			cfg:     Config{},
			wantErr: "service description is required",
		},
		{
			name: "relative endpoint",
			cfg: Config{
				Description: testDescription(),
				Endpoint:    "dynamodb.local",
			},
			wantErr: "absolute URL",
		},
		{
			name: "no endpoint anywhere",
			cfg: func() Config {
				desc := testDescription()
				desc.Endpoint = ""
				return Config{Description: desc}
			}(),
			wantErr: "no endpoint",
		},
		{
			name: "unknown signature scheme",
			cfg: Config{
				Description:     testDescription(),
				SignatureScheme: "hmac-sha3",
			},
			wantErr: "unknown signing scheme",
		},
		{
			name: "unknown protocol",
			cfg: func() Config {
				desc := testDescription()
				desc.Protocol = "soap"
				return Config{Description: desc}
			}(),
			wantErr: "no codec for protocol",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewAggregatesConfigErrors(t *testing.T) {
	desc := testDescription()
	desc.Endpoint = ""
	desc.Protocol = "soap"

	_, err := New(Config{Description: desc, SignatureScheme: "hmac-sha3"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no endpoint")
	assert.Contains(t, err.Error(), "no codec for protocol")
	assert.Contains(t, err.Error(), "unknown signing scheme")
}

func TestNewDefaults(t *testing.T) {
	c, _, _ := newTestClient(t)

	assert.Equal(t, "dynamodb", c.Description().ServiceID)
	assert.Equal(t, "dynamodb.us-east-1.amazonaws.com", c.target)
	assert.Equal(t, defaultUserAgent, c.userAgent)
	assert.NotNil(t, c.serializer)
	assert.NotNil(t, c.results)
	assert.NotNil(t, c.errors)
	assert.Equal(t, "anonymous", c.signer.Name())
}

func TestNewEndpointOverride(t *testing.T) {
	c, _, _ := newTestClient(t, func(cfg *Config) {
		cfg.Endpoint = "http://localhost:8000"
	})
	assert.Equal(t, "http://localhost:8000", c.endpoint.String())
	assert.Equal(t, "localhost:8000", c.target)
}
