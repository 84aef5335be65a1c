// Package client executes named operations against a described remote
// service. One Client resolves its configuration, codec and signer at
// construction, then serves synchronous calls, futures, paginators and
// waiters, all funneling through a single request pipeline.
package client

import (
	"context"
	"fmt"
	"net/url"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/hashicorp-forge/courier/pkg/credentials"
	"github.com/hashicorp-forge/courier/pkg/metrics"
	"github.com/hashicorp-forge/courier/pkg/protocol"
	"github.com/hashicorp-forge/courier/pkg/service"
	"github.com/hashicorp-forge/courier/pkg/signing"
	"github.com/hashicorp-forge/courier/pkg/transport"
)

const defaultUserAgent = "courier-go"

// InvocationIDHeader carries the transaction ID on the wire, stable across
// retry attempts.
const InvocationIDHeader = "X-Courier-Invocation-Id"

// Serializer turns a resolved operation and its merged parameters into a
// wire request. Serialization never signs.
type Serializer interface {
	BuildRequest(op service.Operation, endpoint *url.URL, params map[string]any) (*transport.Request, error)
}

// ResultParser turns a success response into a result document.
type ResultParser interface {
	ParseResult(op service.Operation, resp *transport.Response) (map[string]any, error)
}

// ErrorParser extracts normalized error fields from a failure response,
// or nil when the body carries nothing structured.
type ErrorParser interface {
	ParseError(resp *transport.Response) *protocol.ErrorDetails
}

// Config assembles a Client. Description is required; everything else
// defaults from it or to the package defaults.
type Config struct {
	// Description is the static service model. Required.
	Description *service.Description

	// Endpoint overrides the description's endpoint.
	Endpoint string

	// Region feeds signature computation for regional schemes.
	Region string

	// Transport defaults to an HTTP transport with standard retries.
	Transport transport.Transport

	// Serializer, Results and Errors default to the codec for the
	// description's protocol.
	Serializer Serializer
	Results    ResultParser
	Errors     ErrorParser

	// Credentials defaults to the anonymous provider.
	Credentials credentials.Provider

	// SignatureScheme overrides the description's scheme.
	SignatureScheme string

	// Signers defaults to a resolver with the built-in schemes, fed the
	// transport's clock-skew observations.
	Signers *signing.Resolver

	// DefaultParams merge under every call's explicit parameters.
	DefaultParams Params

	// Interceptors run for every call, in order, before any call-scoped
	// ones.
	Interceptors []Interceptor

	Metrics   metrics.Sink
	Logger    hclog.Logger
	UserAgent string
}

// Validate checks the configuration fields that must be right before any
// component is constructed.
func (cfg Config) Validate() error {
	return validation.ValidateStruct(&cfg,
		validation.Field(&cfg.Description, validation.Required.Error("service description is required")),
		validation.Field(&cfg.Endpoint, validation.By(validateEndpointURL)),
	)
}

func validateEndpointURL(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("not a valid URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("must be an absolute URL")
	}
	return nil
}

// Client executes operations against one described service. Construction
// resolves everything once; a Client is immutable and safe for concurrent
// use, with each in-flight call owning its own Transaction.
type Client struct {
	desc       *service.Description
	endpoint   *url.URL
	region     string
	target     string
	userAgent  string
	transport  transport.Transport
	serializer Serializer
	results    ResultParser
	errors     ErrorParser
	creds      credentials.Provider
	signer     signing.Signer

	interceptors []Interceptor
	defaults     Params

	metrics metrics.Sink
	log     hclog.Logger
}

// New builds a Client, failing fast with every configuration problem it
// can find before any network-capable component exists.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client configuration: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	desc := cfg.Description

	var errs *multierror.Error

	endpointRaw := cfg.Endpoint
	if endpointRaw == "" {
		endpointRaw = desc.Endpoint
	}
	var endpoint *url.URL
	if endpointRaw == "" {
		errs = multierror.Append(errs, fmt.Errorf("no endpoint: set Config.Endpoint or the description's endpoint"))
	} else {
		u, err := url.Parse(endpointRaw)
		switch {
		case err != nil:
			errs = multierror.Append(errs, fmt.Errorf("invalid endpoint %q: %w", endpointRaw, err))
		case u.Scheme == "" || u.Host == "":
			errs = multierror.Append(errs, fmt.Errorf("endpoint %q must be an absolute URL", endpointRaw))
		default:
			endpoint = u
		}
	}

	serializer, results, errorParser := cfg.Serializer, cfg.Results, cfg.Errors
	if serializer == nil || results == nil || errorParser == nil {
		codec, err := protocol.ForDescription(desc)
		if err != nil {
			errs = multierror.Append(errs, err)
		} else {
			if serializer == nil {
				serializer = codec
			}
			if results == nil {
				results = codec
			}
			if errorParser == nil {
				errorParser = codec
			}
		}
	}

	sink := cfg.Metrics
	if sink == nil {
		sink = metrics.Nop()
	}

	tr := cfg.Transport
	var skew func() time.Duration
	if tr == nil {
		h := transport.NewHTTP(transport.HTTPConfig{
			Logger: logger,
			OnRetry: func(operation string, _ int) {
				sink.Count("retry.attempts", 1, []string{
					"service:" + desc.ServiceID,
					"operation:" + operation,
				})
			},
		})
		tr = h
		skew = h.SkewOffset
	} else if h, ok := tr.(*transport.HTTP); ok {
		skew = h.SkewOffset
	}

	resolver := cfg.Signers
	if resolver == nil {
		ropts := []signing.ResolverOption{signing.WithLogger(logger)}
		if skew != nil {
			ropts = append(ropts, signing.WithClockOffset(skew))
		}
		resolver = signing.NewResolver(ropts...)
	}

	scheme := cfg.SignatureScheme
	if scheme == "" {
		scheme = desc.SignatureScheme
	}
	var signer signing.Signer
	if s, err := resolver.Resolve(scheme, desc.ResolvedSigningName(), cfg.Region); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("failed to resolve signer: %w", err))
	} else {
		signer = s
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("invalid client configuration: %w", err)
	}

	provider := cfg.Credentials
	if provider == nil {
		provider = credentials.AnonymousProvider{}
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	target := endpoint.Host
	if target == "" {
		target = desc.ServiceID
	}

	c := &Client{
		desc:         desc,
		endpoint:     endpoint,
		region:       cfg.Region,
		target:       target,
		userAgent:    userAgent,
		transport:    tr,
		serializer:   serializer,
		results:      results,
		errors:       errorParser,
		creds:        provider,
		signer:       signer,
		interceptors: append([]Interceptor(nil), cfg.Interceptors...),
		defaults:     cloneParams(cfg.DefaultParams),
		metrics:      sink,
		log:          logger.Named("client").With("service", desc.ServiceID),
	}

	c.log.Debug("client constructed",
		"endpoint", endpoint.String(),
		"scheme", signer.Name(),
		"region", cfg.Region,
	)
	return c, nil
}

// Description returns the service model the client was built from.
func (c *Client) Description() *service.Description {
	return c.desc
}

// Execute runs one operation synchronously, blocking until the transaction
// resolves to a result or one typed error.
func (c *Client) Execute(ctx context.Context, operation string, params Params, opts ...CallOption) (Result, error) {
	tx := c.newTransaction(operation, params, opts)
	c.execute(ctx, tx)
	return tx.Result, tx.Err
}

// ExecuteAsync starts one operation and returns immediately. The Future
// resolves to exactly what the synchronous path would have returned.
func (c *Client) ExecuteAsync(ctx context.Context, operation string, params Params, opts ...CallOption) *Future {
	tx := c.newTransaction(operation, params, opts)
	callCtx, cancel := context.WithCancel(ctx)
	f := newFuture(cancel)
	go func() {
		defer f.settle()
		defer cancel()
		c.execute(callCtx, tx)
		f.result, f.err = tx.Result, tx.Err
	}()
	return f
}
