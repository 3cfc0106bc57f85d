// Package signer authenticates requests to the RGW admin API with AWS
// Signature Version 4, the scheme RGW accepts for admin operations.
package signer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

const (
	// Service is the signing scope RGW expects for admin operations.
	Service = "s3"
	// DefaultRegion is used when no region is configured.
	DefaultRegion = "us-east-1"

	contentSHA256Header = "X-Amz-Content-Sha256"
)

var (
	// ErrMissingCredentials is returned when the access key or secret key is empty.
	ErrMissingCredentials = errors.New("access key and secret key are required")

	// emptyPayloadHash is the hex sha256 of an empty body. Admin reads never carry a payload.
	emptyPayloadHash = func() string {
		sum := sha256.Sum256(nil)
		return hex.EncodeToString(sum[:])
	}()
)

type Config struct {
	AccessKey string
	SecretKey string
	Region    string
}

// Signer signs outgoing admin API requests.
type Signer struct {
	credentials aws.CredentialsProvider
	region      string
	signer      *v4.Signer
	now         func() time.Time
}

// New validates the credentials and returns a Signer. Empty keys are rejected so
// that a misconfigured process never sends unauthenticated requests.
func New(cfg Config) (*Signer, error) {
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, ErrMissingCredentials
	}
	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}
	return &Signer{
		credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		region:      region,
		signer:      v4.NewSigner(),
		now:         time.Now,
	}, nil
}

func (s *Signer) Region() string {
	return s.region
}

// Sign adds the SigV4 Authorization, X-Amz-Date and X-Amz-Content-Sha256 headers to req.
// The request must not carry a body.
func (s *Signer) Sign(ctx context.Context, req *http.Request) error {
	creds, err := s.credentials.Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("retrieving credentials: %w", err)
	}
	if !creds.HasKeys() {
		return ErrMissingCredentials
	}

	req.Header.Set(contentSHA256Header, emptyPayloadHash)
	if err := s.signer.SignHTTP(ctx, creds, req, emptyPayloadHash, Service, s.region, s.now().UTC()); err != nil {
		return fmt.Errorf("signing request: %w", err)
	}
	return nil
}
