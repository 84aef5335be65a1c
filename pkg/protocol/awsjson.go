package protocol

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/hashicorp-forge/courier/pkg/service"
	"github.com/hashicorp-forge/courier/pkg/transport"
)

// Header names used by the awsjson protocol.
const (
	TargetHeader       = "X-Amz-Target"
	ErrorTypeHeader    = "X-Amzn-Errortype"
	awsJSONContentType = "application/x-amz-json-1.1"
)

// AWSJSON is the target-header JSON RPC codec: every operation POSTs a JSON
// body to the endpoint root and names itself in the target header.
type AWSJSON struct {
	targetPrefix string
}

// NewAWSJSON builds the codec for a description.
func NewAWSJSON(d *service.Description) *AWSJSON {
	return &AWSJSON{targetPrefix: d.ResolvedTargetPrefix()}
}

func (c *AWSJSON) BuildRequest(op service.Operation, endpoint *url.URL, params map[string]any) (*transport.Request, error) {
	body, err := marshalParams(params)
	if err != nil {
		return nil, err
	}

	u := *endpoint
	target := op.Name
	if c.targetPrefix != "" {
		target = c.targetPrefix + "." + op.Name
	}

	req := &transport.Request{
		Operation: op.Name,
		Method:    http.MethodPost,
		URL:       &u,
		Body:      body,
	}
	req.SetHeader("Content-Type", awsJSONContentType)
	req.SetHeader(TargetHeader, target)
	return req, nil
}

func (c *AWSJSON) ParseResult(_ service.Operation, resp *transport.Response) (map[string]any, error) {
	return parseJSONBody(resp.Body)
}

// ParseError extracts the error code, raw type and message from an awsjson
// failure body such as
//
//	{"__type":"com.amazonaws.dynamodb.v20120810#ResourceNotFoundException",
//	 "message":"Table not found"}
//
// falling back to the error-type header. Returns nil when the response
// carries nothing usable.
func (c *AWSJSON) ParseError(resp *transport.Response) *ErrorDetails {
	var envelope struct {
		Type    string `json:"__type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if len(resp.Body) > 0 {
		// Unparseable bodies still fall through to the header.
		_ = json.Unmarshal(resp.Body, &envelope)
	}

	raw := envelope.Type
	if raw == "" && resp.Header != nil {
		raw = resp.Header.Get(ErrorTypeHeader)
	}
	code := sanitizeErrorCode(raw)
	if code == "" {
		code = envelope.Code
	}

	if code == "" && envelope.Message == "" {
		return nil
	}
	return &ErrorDetails{
		Code:    code,
		Type:    raw,
		Message: envelope.Message,
	}
}
