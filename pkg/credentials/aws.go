package credentials

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

// AWSProvider adapts any aws.CredentialsProvider, including the static and
// assume-role providers from the AWS SDK.
type AWSProvider struct {
	inner aws.CredentialsProvider
}

// FromAWS wraps an AWS SDK credentials provider.
func FromAWS(p aws.CredentialsProvider) *AWSProvider {
	return &AWSProvider{inner: p}
}

// NewAWSDefaultChain resolves credentials through the AWS default chain
// (environment, shared config, IMDS and so on).
func NewAWSDefaultChain(ctx context.Context, region string) (*AWSProvider, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &AWSProvider{inner: awsCfg.Credentials}, nil
}

func (p *AWSProvider) Retrieve(ctx context.Context) (Credentials, error) {
	c, err := p.inner.Retrieve(ctx)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to retrieve AWS credentials: %w", err)
	}
	return Credentials{
		KeyID:        c.AccessKeyID,
		Secret:       c.SecretAccessKey,
		SessionToken: c.SessionToken,
		Source:       c.Source,
		CanExpire:    c.CanExpire,
		Expires:      c.Expires,
	}, nil
}

// ToAWS converts a snapshot into the AWS SDK's credential value, for signers
// that delegate to the SDK.
func ToAWS(c Credentials) aws.Credentials {
	return aws.Credentials{
		AccessKeyID:     c.KeyID,
		SecretAccessKey: c.Secret,
		SessionToken:    c.SessionToken,
		Source:          c.Source,
		CanExpire:       c.CanExpire,
		Expires:         c.Expires,
	}
}
