package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
)

//go:generate mockgen -source=client.go -destination mocks/client.go

// Fetcher lists per-bucket usage from the admin API.
type Fetcher interface {
	ListBucketStats(ctx context.Context) ([]UsageRecord, error)
	Metrics() []prometheus.Collector
}

// RequestSigner authenticates an outgoing request in place.
type RequestSigner interface {
	Sign(ctx context.Context, req *http.Request) error
}

// UsageRecord is the part of one bucket stats entry the exporter publishes.
type UsageRecord struct {
	Bucket         string
	Tenant         string
	SizeKBUtilized float64
}

// ErrMissingField marks a bucket stats entry lacking a required field.
var ErrMissingField = errors.New("missing field")

// FetchError reports why a fetch produced no records. Op names the failing step.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching bucket stats: %s: %s", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
