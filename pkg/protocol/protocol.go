// Package protocol implements the wire codecs that turn operation
// parameters into requests and response bodies into result documents or
// error details. Two protocols are supported: awsjson (target-header JSON
// RPC, the DynamoDB family) and restjson (method and path per operation).
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/hashicorp-forge/courier/pkg/service"
	"github.com/hashicorp-forge/courier/pkg/transport"
)

// ErrorDetails is what an error parser extracts from a failure response.
// Fields are empty when the response carried nothing usable.
type ErrorDetails struct {
	// Code is the sanitized service error code, e.g.
	// "ResourceNotFoundException".
	Code string

	// Type is the raw type string from the wire, before sanitizing.
	Type string

	Message string
}

// Codec serializes requests and parses result and failure responses for
// one protocol.
type Codec interface {
	BuildRequest(op service.Operation, endpoint *url.URL, params map[string]any) (*transport.Request, error)
	ParseResult(op service.Operation, resp *transport.Response) (map[string]any, error)
	ParseError(resp *transport.Response) *ErrorDetails
}

// ForDescription returns the codec for a description's declared protocol.
func ForDescription(d *service.Description) (Codec, error) {
	switch d.Protocol {
	case service.ProtocolAWSJSON, "":
		return NewAWSJSON(d), nil
	case service.ProtocolRESTJSON:
		return NewRESTJSON(), nil
	default:
		return nil, fmt.Errorf("no codec for protocol %q", d.Protocol)
	}
}

// parseJSONBody decodes a response body into a result document. An empty
// body is an empty document.
func parseJSONBody(body []byte) (map[string]any, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return map[string]any{}, nil
	}
	var doc map[string]any
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode response body as JSON object: %w", err)
	}
	return doc, nil
}

// marshalParams encodes a parameter map as a JSON body. Nil and empty maps
// become an empty object, never "null".
func marshalParams(params map[string]any) ([]byte, error) {
	if len(params) == 0 {
		return []byte("{}"), nil
	}
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode parameters: %w", err)
	}
	return body, nil
}

// sanitizeErrorCode reduces a raw error type to its bare code. AWS services
// namespace types as "com.amazonaws...#Code" in bodies and sometimes as
// "Code:http://..." in the error-type header.
func sanitizeErrorCode(raw string) string {
	code := raw
	if i := strings.LastIndex(code, "#"); i >= 0 {
		code = code[i+1:]
	}
	if i := strings.Index(code, ":"); i >= 0 {
		code = code[:i]
	}
	return strings.TrimSpace(code)
}
