package signing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"

	"github.com/hashicorp-forge/courier/pkg/credentials"
	"github.com/hashicorp-forge/courier/pkg/transport"
)

// V4 signs requests with AWS Signature Version 4, delegating the canonical
// request and signature computation to the AWS SDK.
type V4 struct {
	signer      *v4.Signer
	signingName string
	region      string
	clockOffset func() time.Duration
}

// NewV4 builds the v4 scheme signer.
func NewV4(cfg SchemeConfig) (Signer, error) {
	if cfg.SigningName == "" {
		return nil, fmt.Errorf("v4 scheme requires a signing name")
	}
	offset := cfg.ClockOffset
	if offset == nil {
		offset = func() time.Duration { return 0 }
	}
	return &V4{
		signer:      v4.NewSigner(),
		signingName: cfg.SigningName,
		region:      cfg.Region,
		clockOffset: offset,
	}, nil
}

func (s *V4) Name() string { return SchemeV4 }

func (s *V4) Sign(ctx context.Context, req *transport.Request, creds credentials.Credentials) error {
	if creds.KeyID == "" || creds.Secret == "" {
		return fmt.Errorf("v4 signing requires an access key and secret")
	}
	region := req.Region
	if region == "" {
		region = s.region
	}
	if region == "" {
		return fmt.Errorf("v4 signing requires a region")
	}

	hreq, err := http.NewRequest(req.Method, req.URL.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to shape request for signing: %w", err)
	}
	if req.Header != nil {
		hreq.Header = req.Header.Clone()
	}

	sum := sha256.Sum256(req.Body)
	payloadHash := hex.EncodeToString(sum[:])
	signingTime := time.Now().Add(s.clockOffset())

	if err := s.signer.SignHTTP(ctx, credentials.ToAWS(creds), hreq, payloadHash, s.signingName, region, signingTime); err != nil {
		return fmt.Errorf("v4 signature failed: %w", err)
	}

	req.Header = hreq.Header
	return nil
}
