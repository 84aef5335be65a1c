// Package credentials defines the credential values and providers used to
// sign outgoing requests. Providers are resolved at send time so rotating
// credentials are always read as a current snapshot.
package credentials

import (
	"context"
	"fmt"
	"os"
	"time"
)

// Credentials is one snapshot of signing material.
type Credentials struct {
	// KeyID identifies the key, e.g. an AWS access key ID or a token issuer
	// subject.
	KeyID string

	// Secret is the private key material: an AWS secret key, an HMAC
	// signing key, or an access token depending on the signing scheme.
	Secret string

	// SessionToken is an optional pre-issued token attached alongside or
	// instead of derived signatures.
	SessionToken string

	// Source names the provider that produced this snapshot.
	Source string

	CanExpire bool
	Expires   time.Time
}

// HasKeys reports whether key material is present.
func (c Credentials) HasKeys() bool {
	return c.KeyID != "" || c.Secret != "" || c.SessionToken != ""
}

// Expired reports whether the snapshot is past its expiry.
func (c Credentials) Expired() bool {
	return c.CanExpire && !c.Expires.After(time.Now())
}

// Provider retrieves credentials. Implementations must be safe for
// concurrent use.
type Provider interface {
	Retrieve(ctx context.Context) (Credentials, error)
}

// AnonymousProvider returns empty credentials and never fails. It backs the
// anonymous signing scheme.
type AnonymousProvider struct{}

func (AnonymousProvider) Retrieve(context.Context) (Credentials, error) {
	return Credentials{Source: "anonymous"}, nil
}

// StaticProvider returns a fixed set of credentials.
type StaticProvider struct {
	creds Credentials
}

// NewStaticProvider builds a provider around fixed key material.
func NewStaticProvider(keyID, secret, sessionToken string) StaticProvider {
	return StaticProvider{creds: Credentials{
		KeyID:        keyID,
		Secret:       secret,
		SessionToken: sessionToken,
		Source:       "static",
	}}
}

func (p StaticProvider) Retrieve(context.Context) (Credentials, error) {
	if !p.creds.HasKeys() {
		return Credentials{}, fmt.Errorf("static credentials are empty")
	}
	return p.creds, nil
}

// DefaultEnvPrefix is the environment variable prefix used when none is
// configured.
const DefaultEnvPrefix = "COURIER"

// EnvProvider reads credentials from the environment on every Retrieve:
// <PREFIX>_KEY_ID, <PREFIX>_SECRET_KEY and optional <PREFIX>_SESSION_TOKEN.
type EnvProvider struct {
	prefix string
}

func NewEnvProvider(prefix string) EnvProvider {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	return EnvProvider{prefix: prefix}
}

func (p EnvProvider) Retrieve(context.Context) (Credentials, error) {
	creds := Credentials{
		KeyID:        os.Getenv(p.prefix + "_KEY_ID"),
		Secret:       os.Getenv(p.prefix + "_SECRET_KEY"),
		SessionToken: os.Getenv(p.prefix + "_SESSION_TOKEN"),
		Source:       "environment",
	}
	if !creds.HasKeys() {
		return Credentials{}, fmt.Errorf("no credentials found in environment under prefix %q", p.prefix)
	}
	return creds, nil
}
