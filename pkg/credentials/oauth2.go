package credentials

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// TokenSourceProvider adapts an oauth2.TokenSource. The access token is
// carried as the session token so the bearer scheme can attach it verbatim.
type TokenSourceProvider struct {
	ts oauth2.TokenSource
}

// FromTokenSource wraps an OAuth2 token source as a Provider. Pass a
// caching source (e.g. oauth2.ReuseTokenSource) when the underlying source
// hits the network.
func FromTokenSource(ts oauth2.TokenSource) *TokenSourceProvider {
	return &TokenSourceProvider{ts: ts}
}

func (p *TokenSourceProvider) Retrieve(context.Context) (Credentials, error) {
	tok, err := p.ts.Token()
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to retrieve oauth2 token: %w", err)
	}
	creds := Credentials{
		SessionToken: tok.AccessToken,
		Source:       "oauth2",
	}
	if !tok.Expiry.IsZero() {
		creds.CanExpire = true
		creds.Expires = tok.Expiry
	}
	return creds, nil
}
