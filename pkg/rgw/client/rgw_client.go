package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// DefaultTimeout bounds a single admin API call.
	DefaultTimeout = 30 * time.Second

	bucketStatsPath  = "/bucket"
	bucketStatsQuery = "stats=true&format=json"

	maxBodyBytes  = 64 << 20
	maxErrorBytes = 512
)

type Config struct {
	AdminURL string
	// VerifySSL enables certificate verification of the admin endpoint.
	VerifySSL bool
	// SetHostHeader sends the admin URL hostname, without port, as the Host header.
	SetHostHeader bool
	Timeout       time.Duration
	Signer        RequestSigner
	Logger        *slog.Logger

	// HTTPClient overrides the client built from VerifySSL and Timeout.
	HTTPClient *http.Client
}

// RGWClient talks to the RGW admin API.
type RGWClient struct {
	endpoint   *url.URL
	host       string
	httpClient *http.Client
	signer     RequestSigner
	metrics    *Metrics
	logger     *slog.Logger
}

func New(cfg *Config) (*RGWClient, error) {
	if cfg.Signer == nil {
		return nil, errors.New("a request signer is required")
	}
	endpoint, err := bucketStatsURL(cfg.AdminURL)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: !cfg.VerifySSL, //nolint:gosec
		}
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: transport,
		}
	}

	c := &RGWClient{
		endpoint:   endpoint,
		httpClient: httpClient,
		signer:     cfg.Signer,
		metrics:    NewMetrics(),
		logger:     logger.With("logger", "rgw_client"),
	}
	if cfg.SetHostHeader {
		c.host = endpoint.Hostname()
	}
	return c, nil
}

// bucketStatsURL appends the bucket stats path to the admin base URL, keeping any
// path prefix such as /admin.
func bucketStatsURL(adminURL string) (*url.URL, error) {
	u, err := url.Parse(adminURL)
	if err != nil {
		return nil, fmt.Errorf("parsing admin url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("admin url %q must use http or https", adminURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("admin url %q has no host", adminURL)
	}
	u.Path = strings.TrimRight(u.Path, "/") + bucketStatsPath
	u.RawPath = ""
	u.RawQuery = bucketStatsQuery
	u.Fragment = ""
	return u, nil
}

func (c *RGWClient) Metrics() []prometheus.Collector {
	return c.metrics.Collectors()
}

// ListBucketStats issues one signed request and returns every well-formed record.
// It never retries; a failure is reported as a *FetchError.
func (c *RGWClient) ListBucketStats(ctx context.Context) ([]UsageRecord, error) {
	start := time.Now()
	c.metrics.RequestCount.Inc()
	defer func() {
		c.metrics.RequestDuration.Observe(time.Since(start).Seconds())
	}()

	records, err := c.listBucketStats(ctx)
	if err != nil {
		c.metrics.RequestErrorsCount.Inc()
		c.logger.LogAttrs(ctx, slog.LevelError, "failed to fetch bucket stats",
			slog.String("url", c.endpoint.String()),
			slog.String("message", err.Error()),
		)
		return nil, err
	}
	return records, nil
}

func (c *RGWClient) listBucketStats(ctx context.Context) ([]UsageRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint.String(), nil)
	if err != nil {
		return nil, &FetchError{Op: "building request", Err: err}
	}
	if c.host != "" {
		req.Host = c.host
	}
	req.Header.Set("Accept", "application/json")

	if err := c.signer.Sign(ctx, req); err != nil {
		return nil, &FetchError{Op: "signing request", Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Op: "sending request", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
		return nil, &FetchError{
			Op:  "unexpected status",
			Err: fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(msg))),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, &FetchError{Op: "reading body", Err: err}
	}
	if len(body) > maxBodyBytes {
		return nil, &FetchError{Op: "reading body", Err: fmt.Errorf("body exceeds %d bytes", maxBodyBytes)}
	}

	result, err := ParseBucketStats(body)
	if err != nil {
		return nil, &FetchError{Op: "decoding body", Err: err}
	}

	for _, dropped := range result.Dropped {
		c.metrics.RecordsDroppedCount.Inc()
		c.logger.LogAttrs(ctx, slog.LevelWarn, "missing expected data in bucket stats, skipping record",
			slog.Int("index", dropped.Index),
			slog.String("bucket", dropped.Bucket),
			slog.String("message", dropped.Err.Error()),
		)
	}
	c.logger.LogAttrs(ctx, slog.LevelInfo, "fetched bucket stats",
		slog.String("url", c.endpoint.String()),
		slog.Int("records", len(result.Records)),
		slog.Int("dropped", len(result.Dropped)),
	)
	return result.Records, nil
}
