package signing

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hashicorp-forge/courier/pkg/credentials"
	"github.com/hashicorp-forge/courier/pkg/transport"
)

// DefaultTokenTTL is the jwt scheme's token lifetime when none is
// configured.
const DefaultTokenTTL = 5 * time.Minute

// JWT mints a short-lived HS256 token per request, keyed by the credential
// secret, and attaches it as a bearer token.
type JWT struct {
	issuer      string
	audience    string
	ttl         time.Duration
	clockOffset func() time.Duration
}

// NewJWT builds the jwt scheme signer.
func NewJWT(cfg SchemeConfig) (Signer, error) {
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = cfg.SigningName
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultTokenTTL
	}
	offset := cfg.ClockOffset
	if offset == nil {
		offset = func() time.Duration { return 0 }
	}
	return &JWT{
		issuer:      issuer,
		audience:    cfg.Audience,
		ttl:         ttl,
		clockOffset: offset,
	}, nil
}

func (s *JWT) Name() string { return SchemeJWT }

func (s *JWT) Sign(ctx context.Context, req *transport.Request, creds credentials.Credentials) error {
	if creds.Secret == "" {
		return fmt.Errorf("jwt signing requires a secret")
	}

	now := time.Now().Add(s.clockOffset())
	claims := jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   creds.KeyID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(creds.Secret))
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}

	req.SetHeader("Authorization", "Bearer "+token)
	return nil
}

// Bearer attaches a provider-issued token verbatim, e.g. an OAuth2 access
// token.
type Bearer struct{}

// NewBearer builds the bearer scheme signer.
func NewBearer(SchemeConfig) (Signer, error) {
	return Bearer{}, nil
}

func (Bearer) Name() string { return SchemeBearer }

func (Bearer) Sign(ctx context.Context, req *transport.Request, creds credentials.Credentials) error {
	token := creds.SessionToken
	if token == "" {
		token = creds.Secret
	}
	if token == "" {
		return fmt.Errorf("bearer signing requires a token")
	}
	req.SetHeader("Authorization", "Bearer "+token)
	return nil
}
