// Package signing attaches authentication material to outgoing requests.
// Schemes are registered in a Resolver; a client resolves its signer once,
// keyed by scheme, signing name and region, and reuses it for every call.
package signing

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp-forge/courier/pkg/credentials"
	"github.com/hashicorp-forge/courier/pkg/transport"
)

// Built-in scheme names.
const (
	SchemeAnonymous = "anonymous"
	SchemeV4        = "v4"
	SchemeJWT       = "jwt"
	SchemeBearer    = "bearer"
)

// Signer signs one request with one credentials snapshot. Sign runs as a
// pre-send hook, immediately before each transmission attempt, never during
// serialization.
type Signer interface {
	Name() string
	Sign(ctx context.Context, req *transport.Request, creds credentials.Credentials) error
}

// SchemeConfig is what a scheme factory gets to build a signer from.
type SchemeConfig struct {
	SigningName string
	Region      string

	// Issuer, Audience and TTL configure token-issuing schemes.
	Issuer   string
	Audience string
	TTL      time.Duration

	// ClockOffset reports the current server clock offset, so signatures
	// carry timestamps the service will accept.
	ClockOffset func() time.Duration

	Logger hclog.Logger
}

// Factory builds a signer for one resolved scheme configuration.
type Factory func(cfg SchemeConfig) (Signer, error)

type cacheKey struct {
	scheme      string
	signingName string
	region      string
}

// Resolver maps scheme names to factories and caches resolved signers.
type Resolver struct {
	mu        sync.Mutex
	factories map[string]Factory
	cache     map[cacheKey]Signer

	issuer      string
	audience    string
	ttl         time.Duration
	clockOffset func() time.Duration
	log         hclog.Logger
}

// ResolverOption adjusts a Resolver.
type ResolverOption func(*Resolver)

// WithLogger sets the logger handed to scheme factories.
func WithLogger(logger hclog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.log = logger
	}
}

// WithClockOffset supplies a server clock offset source, typically the HTTP
// transport's SkewOffset.
func WithClockOffset(offset func() time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.clockOffset = offset
	}
}

// WithTokenClaims configures issuer, audience and lifetime for the jwt
// scheme.
func WithTokenClaims(issuer, audience string, ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.issuer = issuer
		r.audience = audience
		r.ttl = ttl
	}
}

// NewResolver creates a Resolver with the built-in schemes registered.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		factories:   make(map[string]Factory),
		cache:       make(map[cacheKey]Signer),
		clockOffset: func() time.Duration { return 0 },
		log:         hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.Register(SchemeAnonymous, func(SchemeConfig) (Signer, error) {
		return Anonymous{}, nil
	})
	r.Register(SchemeV4, NewV4)
	r.Register(SchemeJWT, NewJWT)
	r.Register(SchemeBearer, NewBearer)
	return r
}

// Register adds or replaces a scheme factory.
func (r *Resolver) Register(scheme string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[scheme] = f
}

// Resolve returns the signer for a scheme, signing name and region,
// building it on first use. An empty scheme resolves to anonymous.
func (r *Resolver) Resolve(scheme, signingName, region string) (Signer, error) {
	if scheme == "" {
		scheme = SchemeAnonymous
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := cacheKey{scheme: scheme, signingName: signingName, region: region}
	if s, ok := r.cache[key]; ok {
		return s, nil
	}

	f, ok := r.factories[scheme]
	if !ok {
		return nil, fmt.Errorf("unknown signing scheme %q (registered: %s)", scheme, strings.Join(r.schemes(), ", "))
	}

	s, err := f(SchemeConfig{
		SigningName: signingName,
		Region:      region,
		Issuer:      r.issuer,
		Audience:    r.audience,
		TTL:         r.ttl,
		ClockOffset: r.clockOffset,
		Logger:      r.log.Named("signing"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build %q signer: %w", scheme, err)
	}

	r.cache[key] = s
	r.log.Debug("resolved signer", "scheme", scheme, "signing_name", signingName, "region", region)
	return s, nil
}

// schemes lists registered scheme names. Caller holds the lock.
func (r *Resolver) schemes() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Anonymous leaves requests unsigned.
type Anonymous struct{}

func (Anonymous) Name() string { return SchemeAnonymous }

func (Anonymous) Sign(context.Context, *transport.Request, credentials.Credentials) error {
	return nil
}
