package protocol

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/hashicorp-forge/courier/pkg/service"
	"github.com/hashicorp-forge/courier/pkg/transport"
)

var pathPlaceholder = regexp.MustCompile(`\{([^{}]+)\}`)

// RESTJSON serializes operations onto their declared method and path.
// Parameters fill {placeholders} first; what remains becomes the query
// string for bodyless methods and the JSON body otherwise.
type RESTJSON struct{}

// NewRESTJSON builds the restjson codec.
func NewRESTJSON() *RESTJSON {
	return &RESTJSON{}
}

func (c *RESTJSON) BuildRequest(op service.Operation, endpoint *url.URL, params map[string]any) (*transport.Request, error) {
	method := op.HTTPMethod
	if method == "" {
		method = http.MethodPost
	}

	path, remaining, err := expandPath(op, params)
	if err != nil {
		return nil, err
	}

	u := *endpoint
	escaped := strings.TrimSuffix(u.EscapedPath(), "/") + path
	unescaped, err := url.PathUnescape(escaped)
	if err != nil {
		return nil, fmt.Errorf("operation %s produced an invalid path %q: %w", op.Name, escaped, err)
	}
	u.Path = unescaped
	if escaped != unescaped {
		u.RawPath = escaped
	}

	req := &transport.Request{
		Operation: op.Name,
		Method:    method,
		URL:       &u,
	}

	switch method {
	case http.MethodGet, http.MethodDelete, http.MethodHead:
		query := u.Query()
		for key, value := range remaining {
			appendQuery(query, key, value)
		}
		u.RawQuery = query.Encode()
	default:
		body, err := marshalParams(remaining)
		if err != nil {
			return nil, err
		}
		req.Body = body
		req.SetHeader("Content-Type", "application/json")
	}

	return req, nil
}

// expandPath fills path placeholders from the parameters and returns the
// expanded path plus the parameters that were not consumed by it.
func expandPath(op service.Operation, params map[string]any) (string, map[string]any, error) {
	path := op.HTTPPath
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	remaining := make(map[string]any, len(params))
	for k, v := range params {
		remaining[k] = v
	}

	var missing []string
	expanded := pathPlaceholder.ReplaceAllStringFunc(path, func(m string) string {
		name := m[1 : len(m)-1]
		value, ok := remaining[name]
		if !ok {
			missing = append(missing, name)
			return m
		}
		delete(remaining, name)
		return url.PathEscape(fmt.Sprintf("%v", value))
	})
	if len(missing) > 0 {
		return "", nil, fmt.Errorf("operation %s path %q is missing parameters: %s",
			op.Name, op.HTTPPath, strings.Join(missing, ", "))
	}
	return expanded, remaining, nil
}

func appendQuery(query url.Values, key string, value any) {
	if items, ok := value.([]any); ok {
		for _, item := range items {
			query.Add(key, fmt.Sprintf("%v", item))
		}
		return
	}
	query.Add(key, fmt.Sprintf("%v", value))
}

func (c *RESTJSON) ParseResult(_ service.Operation, resp *transport.Response) (map[string]any, error) {
	return parseJSONBody(resp.Body)
}

// ParseError understands both flat {"code","type","message"} failure bodies
// and the nested {"error": {...}} envelope.
func (c *RESTJSON) ParseError(resp *transport.Response) *ErrorDetails {
	var envelope struct {
		Code    string `json:"code"`
		Type    string `json:"type"`
		Message string `json:"message"`
		Error   *struct {
			Code    string `json:"code"`
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if len(resp.Body) > 0 {
		_ = json.Unmarshal(resp.Body, &envelope)
	}

	code, typ, message := envelope.Code, envelope.Type, envelope.Message
	if envelope.Error != nil {
		code, typ, message = envelope.Error.Code, envelope.Error.Type, envelope.Error.Message
	}
	if code == "" {
		code = sanitizeErrorCode(typ)
	}

	if code == "" && message == "" {
		return nil
	}
	return &ErrorDetails{Code: code, Type: typ, Message: message}
}
