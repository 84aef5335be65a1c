// Package service models the static description of a remote service: its
// operations, pagination templates and waiter templates. A description is
// loaded once, validated, and shared read-only by every call a client makes.
package service

import (
	"fmt"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/iancoleman/strcase"
)

// Wire protocols a description can declare.
const (
	ProtocolAWSJSON  = "awsjson"
	ProtocolRESTJSON = "restjson"
)

// Defaults applied to waiter templates that omit the fields.
const (
	DefaultWaiterInterval    = 5 * time.Second
	DefaultWaiterMaxAttempts = 20
)

// Acceptor states.
const (
	StateSuccess = "success"
	StateFailure = "failure"
	StateRetry   = "retry"
)

// Acceptor matchers.
const (
	MatcherPath   = "path"
	MatcherStatus = "status"
	MatcherError  = "error"
)

// Description is the static model of one service.
type Description struct {
	// Service is the human-readable service name.
	Service string `mapstructure:"service"`

	// ServiceID is the stable identifier, e.g. "dynamodb".
	ServiceID string `mapstructure:"service_id"`

	APIVersion string `mapstructure:"api_version"`

	// Endpoint is the default endpoint URL; client configuration may
	// override it.
	Endpoint string `mapstructure:"endpoint"`

	// Protocol selects the wire codec. Defaults to awsjson.
	Protocol string `mapstructure:"protocol"`

	// TargetPrefix prefixes operation names in the awsjson target header,
	// e.g. "DynamoDB_20120810". Defaults to ServiceID.
	TargetPrefix string `mapstructure:"target_prefix"`

	// SigningName is the name requests are signed under. Defaults to
	// ServiceID, then Service.
	SigningName string `mapstructure:"signing_name"`

	// SignatureScheme names the signing scheme, e.g. "v4". Empty means
	// anonymous.
	SignatureScheme string `mapstructure:"signature_scheme"`

	Operations map[string]Operation  `mapstructure:"operations"`
	Pagination map[string]Pagination `mapstructure:"pagination"`
	Waiters    map[string]Waiter     `mapstructure:"waiters"`
}

// Operation describes one callable operation.
type Operation struct {
	Name string `mapstructure:"-"`

	// HTTPMethod and HTTPPath drive restjson serialization; awsjson
	// operations always POST to the endpoint root.
	HTTPMethod string `mapstructure:"method"`
	HTTPPath   string `mapstructure:"path"`

	// RequiredParams must be present in the call parameters.
	RequiredParams []string `mapstructure:"required"`
}

// Pagination is one operation's cursor template. InputTokens and
// OutputTokens are parallel: the value found at OutputTokens[i] in a page
// feeds the parameter named by InputTokens[i] on the next call.
type Pagination struct {
	InputTokens  []string `mapstructure:"input_token"`
	OutputTokens []string `mapstructure:"output_token"`
	LimitParam   string   `mapstructure:"limit_param"`
	ResultKeys   []string `mapstructure:"result_key"`
}

// Pageable reports whether the template supports pagination at all. A
// template without result keys is descriptive only.
func (p Pagination) Pageable() bool {
	return len(p.InputTokens) > 0 && len(p.InputTokens) == len(p.OutputTokens) && len(p.ResultKeys) > 0
}

// Waiter is a condition-polling template over one operation.
type Waiter struct {
	Name        string        `mapstructure:"-"`
	Operation   string        `mapstructure:"operation"`
	Interval    time.Duration `mapstructure:"interval"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Acceptors   []Acceptor    `mapstructure:"acceptors"`
}

// Acceptor is one ordered waiter rule. The first acceptor that matches an
// attempt's outcome decides the waiter's next move.
type Acceptor struct {
	// State is what a match means: success, failure or retry.
	State string `mapstructure:"state"`

	// Matcher selects how Expected is compared: "path" evaluates Expected
	// as a boolean expression over the result document, "status" compares
	// the HTTP status code, "error" compares the service error code.
	Matcher string `mapstructure:"matcher"`

	Expected string `mapstructure:"expected"`
}

// ExpectedStatus parses Expected as an HTTP status code.
func (a Acceptor) ExpectedStatus() (int, error) {
	code, err := strconv.Atoi(a.Expected)
	if err != nil {
		return 0, fmt.Errorf("status acceptor expects a numeric code, got %q", a.Expected)
	}
	return code, nil
}

// ResolveOperationName resolves a requested name to a declared operation
// name: an exact match first, then a single case-normalized fallback
// ("listTables" finds "ListTables"). No other fuzziness.
func (d *Description) ResolveOperationName(name string) (string, bool) {
	if _, ok := d.Operations[name]; ok {
		return name, true
	}
	if camel := strcase.ToCamel(name); camel != name {
		if _, ok := d.Operations[camel]; ok {
			return camel, true
		}
	}
	return "", false
}

// HasOperation reports whether the operation exists under lookup rules.
func (d *Description) HasOperation(name string) bool {
	_, ok := d.ResolveOperationName(name)
	return ok
}

// Operation returns the operation for a requested name.
func (d *Description) Operation(name string) (Operation, bool) {
	resolved, ok := d.ResolveOperationName(name)
	if !ok {
		return Operation{}, false
	}
	return d.Operations[resolved], true
}

// PaginationFor returns the pagination template for an operation name.
func (d *Description) PaginationFor(name string) (Pagination, bool) {
	resolved, ok := d.ResolveOperationName(name)
	if !ok {
		return Pagination{}, false
	}
	p, ok := d.Pagination[resolved]
	return p, ok
}

// WaiterFor resolves a waiter by its name (exact, then case-normalized),
// then by operation name, so callers may wait on either "TableExists" or
// "DescribeTable".
func (d *Description) WaiterFor(name string) (Waiter, bool) {
	if w, ok := d.Waiters[name]; ok {
		return w, true
	}
	if camel := strcase.ToCamel(name); camel != name {
		if w, ok := d.Waiters[camel]; ok {
			return w, true
		}
	}
	if opName, ok := d.ResolveOperationName(name); ok {
		for _, w := range d.Waiters {
			if w.Operation == opName {
				return w, true
			}
		}
	}
	return Waiter{}, false
}

// ResolvedSigningName returns the name requests are signed under.
func (d *Description) ResolvedSigningName() string {
	if d.SigningName != "" {
		return d.SigningName
	}
	if d.ServiceID != "" {
		return d.ServiceID
	}
	return d.Service
}

// ResolvedTargetPrefix returns the awsjson target header prefix.
func (d *Description) ResolvedTargetPrefix() string {
	if d.TargetPrefix != "" {
		return d.TargetPrefix
	}
	return d.ServiceID
}

// Validate checks internal consistency. All problems are reported, not
// just the first.
func (d *Description) Validate() error {
	var result *multierror.Error

	if d.ServiceID == "" && d.Service == "" {
		result = multierror.Append(result, fmt.Errorf("one of service_id or service is required"))
	}
	switch d.Protocol {
	case ProtocolAWSJSON, ProtocolRESTJSON:
	default:
		result = multierror.Append(result, fmt.Errorf("unknown protocol %q", d.Protocol))
	}
	if len(d.Operations) == 0 {
		result = multierror.Append(result, fmt.Errorf("description declares no operations"))
	}

	for name, p := range d.Pagination {
		if _, ok := d.Operations[name]; !ok {
			result = multierror.Append(result, fmt.Errorf("pagination template %q references an unknown operation", name))
		}
		if len(p.InputTokens) == 0 || len(p.OutputTokens) == 0 {
			result = multierror.Append(result, fmt.Errorf("pagination template %q requires input_token and output_token", name))
		} else if len(p.InputTokens) != len(p.OutputTokens) {
			result = multierror.Append(result, fmt.Errorf("pagination template %q has %d input tokens but %d output tokens", name, len(p.InputTokens), len(p.OutputTokens)))
		}
	}

	for name, w := range d.Waiters {
		if w.Operation == "" {
			result = multierror.Append(result, fmt.Errorf("waiter %q has no operation", name))
		} else if _, ok := d.Operations[w.Operation]; !ok {
			result = multierror.Append(result, fmt.Errorf("waiter %q references unknown operation %q", name, w.Operation))
		}
		if w.Interval < 0 {
			result = multierror.Append(result, fmt.Errorf("waiter %q has a negative interval", name))
		}
		if w.MaxAttempts < 1 {
			result = multierror.Append(result, fmt.Errorf("waiter %q must allow at least one attempt", name))
		}
		if len(w.Acceptors) == 0 {
			result = multierror.Append(result, fmt.Errorf("waiter %q has no acceptors", name))
		}
		for i, a := range w.Acceptors {
			switch a.State {
			case StateSuccess, StateFailure, StateRetry:
			default:
				result = multierror.Append(result, fmt.Errorf("waiter %q acceptor %d has unknown state %q", name, i, a.State))
			}
			switch a.Matcher {
			case MatcherPath:
				if a.Expected == "" {
					result = multierror.Append(result, fmt.Errorf("waiter %q acceptor %d needs an expression", name, i))
				}
			case MatcherStatus:
				if _, err := a.ExpectedStatus(); err != nil {
					result = multierror.Append(result, fmt.Errorf("waiter %q acceptor %d: %w", name, i, err))
				}
			case MatcherError:
				// An empty expected code matches any service error.
			default:
				result = multierror.Append(result, fmt.Errorf("waiter %q acceptor %d has unknown matcher %q", name, i, a.Matcher))
			}
		}
	}

	return result.ErrorOrNil()
}
