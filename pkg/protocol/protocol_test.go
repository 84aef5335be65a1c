package protocol

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp-forge/courier/pkg/service"
	"github.com/hashicorp-forge/courier/pkg/transport"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestForDescription(t *testing.T) {
	awsjson, err := ForDescription(&service.Description{Protocol: service.ProtocolAWSJSON})
	require.NoError(t, err)
	assert.IsType(t, &AWSJSON{}, awsjson)

	restjson, err := ForDescription(&service.Description{Protocol: service.ProtocolRESTJSON})
	require.NoError(t, err)
	assert.IsType(t, &RESTJSON{}, restjson)

	_, err = ForDescription(&service.Description{Protocol: "xml"})
	require.Error(t, err)
}

func TestAWSJSONBuildRequest(t *testing.T) {
	codec := NewAWSJSON(&service.Description{ServiceID: "dynamodb", TargetPrefix: "DynamoDB_20120810"})
	endpoint := mustURL(t, "https://dynamodb.us-east-1.amazonaws.com")

	req, err := codec.BuildRequest(service.Operation{Name: "ListTables"}, endpoint, nil)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "https://dynamodb.us-east-1.amazonaws.com", req.URL.String())
	assert.Equal(t, "DynamoDB_20120810.ListTables", req.Header.Get(TargetHeader))
	assert.Equal(t, "application/x-amz-json-1.1", req.Header.Get("Content-Type"))
	assert.Equal(t, "{}", string(req.Body), "nil params serialize as an empty object")

	req, err = codec.BuildRequest(service.Operation{Name: "DescribeTable"}, endpoint, map[string]any{"TableName": "users"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"TableName":"users"}`, string(req.Body))
}

func TestAWSJSONParseResult(t *testing.T) {
	codec := NewAWSJSON(&service.Description{ServiceID: "dynamodb"})
	op := service.Operation{Name: "ListTables"}

	doc, err := codec.ParseResult(op, &transport.Response{Body: nil})
	require.NoError(t, err)
	assert.Empty(t, doc)

	doc, err = codec.ParseResult(op, &transport.Response{Body: []byte(`{"TableNames":["a","b"]}`)})
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, doc["TableNames"])

	_, err = codec.ParseResult(op, &transport.Response{Body: []byte(`<html>`)})
	require.Error(t, err)
}

func TestAWSJSONParseError(t *testing.T) {
	codec := NewAWSJSON(&service.Description{ServiceID: "dynamodb"})

	tests := []struct {
		name string
		resp *transport.Response
		want *ErrorDetails
	}{
		{
			name: "namespaced type",
			resp: &transport.Response{
				StatusCode: 400,
				Body:       []byte(`{"__type":"com.amazonaws.dynamodb.v20120810#ResourceNotFoundException","message":"Table not found"}`),
			},
			want: &ErrorDetails{
				Code:    "ResourceNotFoundException",
				Type:    "com.amazonaws.dynamodb.v20120810#ResourceNotFoundException",
				Message: "Table not found",
			},
		},
		{
			name: "bare type with capitalized message",
			resp: &transport.Response{
				StatusCode: 400,
				Body:       []byte(`{"__type":"ValidationException","Message":"Invalid key"}`),
			},
			want: &ErrorDetails{Code: "ValidationException", Type: "ValidationException", Message: "Invalid key"},
		},
		{
			name: "code field only",
			resp: &transport.Response{
				StatusCode: 400,
				Body:       []byte(`{"code":"ThrottlingException","message":"slow down"}`),
			},
			want: &ErrorDetails{Code: "ThrottlingException", Message: "slow down"},
		},
		{
			name: "error type header",
			resp: &transport.Response{
				StatusCode: 404,
				Header:     http.Header{ErrorTypeHeader: []string{"ResourceNotFoundException:http://internal.amazon.com/coral/"}},
				Body:       nil,
			},
			want: &ErrorDetails{
				Code: "ResourceNotFoundException",
				Type: "ResourceNotFoundException:http://internal.amazon.com/coral/",
			},
		},
		{
			name: "nothing usable",
			resp: &transport.Response{StatusCode: 500, Body: []byte(`<html>oops</html>`)},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, codec.ParseError(tt.resp))
		})
	}
}

func TestRESTJSONBuildRequestBody(t *testing.T) {
	codec := NewRESTJSON()
	endpoint := mustURL(t, "https://api.widgets.example.com/v2")

	op := service.Operation{Name: "CreateWidget", HTTPMethod: "POST", HTTPPath: "/widgets"}
	req, err := codec.BuildRequest(op, endpoint, map[string]any{"name": "gear", "size": 3})
	require.NoError(t, err)
	assert.Equal(t, "https://api.widgets.example.com/v2/widgets", req.URL.String())
	assert.JSONEq(t, `{"name":"gear","size":3}`, string(req.Body))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
}

func TestRESTJSONBuildRequestPathAndQuery(t *testing.T) {
	codec := NewRESTJSON()
	endpoint := mustURL(t, "https://api.widgets.example.com")

	op := service.Operation{Name: "ListWidgetParts", HTTPMethod: "GET", HTTPPath: "/widgets/{WidgetId}/parts"}
	req, err := codec.BuildRequest(op, endpoint, map[string]any{
		"WidgetId": "w 1",
		"limit":    10,
		"tag":      []any{"a", "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, "/widgets/w%201/parts", req.URL.EscapedPath())
	assert.Equal(t, "limit=10&tag=a&tag=b", req.URL.RawQuery)
	assert.Nil(t, req.Body)
}

func TestRESTJSONBuildRequestMissingPathParam(t *testing.T) {
	codec := NewRESTJSON()
	endpoint := mustURL(t, "https://api.widgets.example.com")

	op := service.Operation{Name: "GetWidget", HTTPMethod: "GET", HTTPPath: "/widgets/{WidgetId}"}
	_, err := codec.BuildRequest(op, endpoint, map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing parameters: WidgetId")
}

func TestRESTJSONParseError(t *testing.T) {
	codec := NewRESTJSON()

	tests := []struct {
		name string
		body string
		want *ErrorDetails
	}{
		{
			name: "flat",
			body: `{"code":"not_found","type":"invalid_request_error","message":"no such widget"}`,
			want: &ErrorDetails{Code: "not_found", Type: "invalid_request_error", Message: "no such widget"},
		},
		{
			name: "nested envelope",
			body: `{"error":{"message":"rate limited","type":"rate_limit_error","code":"429"}}`,
			want: &ErrorDetails{Code: "429", Type: "rate_limit_error", Message: "rate limited"},
		},
		{
			name: "type only",
			body: `{"type":"server_error","message":"boom"}`,
			want: &ErrorDetails{Code: "server_error", Type: "server_error", Message: "boom"},
		},
		{
			name: "unusable",
			body: `plain text`,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := codec.ParseError(&transport.Response{StatusCode: 400, Body: []byte(tt.body)})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitizeErrorCode(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"com.amazonaws.dynamodb.v20120810#ResourceNotFoundException", "ResourceNotFoundException"},
		{"ResourceNotFoundException:http://internal/", "ResourceNotFoundException"},
		{"ValidationException", "ValidationException"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeErrorCode(tt.raw))
	}
}
