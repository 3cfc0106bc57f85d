package collector

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/grafana/rgw-exporter/pkg/registry"
	"github.com/grafana/rgw-exporter/pkg/rgw/client"
	mock_client "github.com/grafana/rgw-exporter/pkg/rgw/client/mocks"
	"github.com/grafana/rgw-exporter/pkg/usage"
	"github.com/grafana/rgw-exporter/pkg/utils"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

func newCollector(t *testing.T, unit usage.Unit, round bool) (*Collector, *mock_client.MockFetcher, *registry.Registry) {
	t.Helper()
	ctrl := gomock.NewController(t)
	fetcher := mock_client.NewMockFetcher(ctrl)
	reg := registry.New(unit)
	c := New(&Config{
		Fetcher:     fetcher,
		Transformer: usage.NewTransformer(unit, round),
		Registry:    reg,
		Logger:      logger,
	})
	return c, fetcher, reg
}

func collectResults(c prometheus.Collector) map[string]*utils.MetricResult {
	ch := make(chan prometheus.Metric)
	go func() {
		c.Collect(ch)
		close(ch)
	}()
	results := map[string]*utils.MetricResult{}
	for m := range ch {
		r := utils.ReadMetrics(m)
		results[r.FqName] = r
	}
	return results
}

func TestCollector_CollectMetrics(t *testing.T) {
	tests := map[string]struct {
		unit               usage.Unit
		round              bool
		records            []client.UsageRecord
		expectedExposition string
	}{
		"rounded gigabytes": {
			unit:    usage.Gigabytes,
			round:   true,
			records: []client.UsageRecord{{Bucket: "b1", Tenant: "t1", SizeKBUtilized: 976562}},
			expectedExposition: `
# HELP rgw_bucket_size_gb RGW Bucket Size
# TYPE rgw_bucket_size_gb gauge
rgw_bucket_size_gb{bucket="b1",tenant="t1"} 1
`,
		},
		"unrounded gigabytes": {
			unit:    usage.Gigabytes,
			round:   false,
			records: []client.UsageRecord{{Bucket: "b1", Tenant: "t1", SizeKBUtilized: 1953125}},
			expectedExposition: `
# HELP rgw_bucket_size_gb RGW Bucket Size
# TYPE rgw_bucket_size_gb gauge
rgw_bucket_size_gb{bucket="b1",tenant="t1"} 2
`,
		},
		"kilobytes": {
			unit:  usage.Kilobytes,
			round: true,
			records: []client.UsageRecord{
				{Bucket: "b1", Tenant: "t1", SizeKBUtilized: 976562},
				{Bucket: "b2", Tenant: "", SizeKBUtilized: 0},
			},
			expectedExposition: `
# HELP rgw_bucket_size_kb RGW Bucket Size
# TYPE rgw_bucket_size_kb gauge
rgw_bucket_size_kb{bucket="b1",tenant="t1"} 976562
rgw_bucket_size_kb{bucket="b2",tenant=""} 0
`,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			c, fetcher, reg := newCollector(t, tt.unit, tt.round)
			fetcher.EXPECT().ListBucketStats(gomock.Any()).Return(tt.records, nil).Times(1)

			require.NoError(t, c.CollectMetrics(context.Background()))

			err := testutil.GatherAndCompare(reg.Gatherer(), strings.NewReader(tt.expectedExposition), "rgw_bucket_size_"+string(tt.unit))
			assert.NoError(t, err)
		})
	}
}

func TestCollector_FailedFetchKeepsPreviousValues(t *testing.T) {
	c, fetcher, reg := newCollector(t, usage.Kilobytes, false)
	gomock.InOrder(
		fetcher.EXPECT().ListBucketStats(gomock.Any()).Return([]client.UsageRecord{{Bucket: "a", Tenant: "t1", SizeKBUtilized: 5}}, nil),
		fetcher.EXPECT().ListBucketStats(gomock.Any()).Return(nil, &client.FetchError{Op: "sending request", Err: errors.New("connection refused")}),
	)

	require.NoError(t, c.CollectMetrics(context.Background()))
	err := c.CollectMetrics(context.Background())
	var fetchErr *client.FetchError
	require.ErrorAs(t, err, &fetchErr)

	v, ok := reg.Get("a", "t1")
	require.True(t, ok)
	assert.Equal(t, 5.0, v)

	results := collectResults(c)
	assert.Equal(t, 1.0, results["rgw_exporter_collector_last_scrape_error"].Value)
	assert.Equal(t, 1.0, results["rgw_exporter_collector_buckets"].Value)
}

func TestCollector_SuccessiveCyclesOverwrite(t *testing.T) {
	c, fetcher, reg := newCollector(t, usage.Kilobytes, false)
	gomock.InOrder(
		fetcher.EXPECT().ListBucketStats(gomock.Any()).Return([]client.UsageRecord{{Bucket: "a", Tenant: "t1", SizeKBUtilized: 5}}, nil),
		fetcher.EXPECT().ListBucketStats(gomock.Any()).Return([]client.UsageRecord{{Bucket: "a", Tenant: "t1", SizeKBUtilized: 9}}, nil),
	)

	require.NoError(t, c.CollectMetrics(context.Background()))
	require.NoError(t, c.CollectMetrics(context.Background()))

	assert.Equal(t, 1, reg.Len())
	expected := `
# HELP rgw_bucket_size_kb RGW Bucket Size
# TYPE rgw_bucket_size_kb gauge
rgw_bucket_size_kb{bucket="a",tenant="t1"} 9
`
	assert.NoError(t, testutil.GatherAndCompare(reg.Gatherer(), strings.NewReader(expected), "rgw_bucket_size_kb"))
	assert.Equal(t, 0.0, collectResults(c)["rgw_exporter_collector_last_scrape_error"].Value)
}

func TestCollector_Register(t *testing.T) {
	c, fetcher, reg := newCollector(t, usage.Gigabytes, true)
	requests := prometheus.NewCounter(prometheus.CounterOpts{Name: "rgw_exporter_admin_api_requests_total", Help: "requests"})
	fetcher.EXPECT().Metrics().Return([]prometheus.Collector{requests}).Times(1)

	c.Register(reg)

	expected := `
# HELP rgw_exporter_admin_api_requests_total requests
# TYPE rgw_exporter_admin_api_requests_total counter
rgw_exporter_admin_api_requests_total 0
# HELP rgw_exporter_collector_buckets Number of bucket and tenant pairs currently published.
# TYPE rgw_exporter_collector_buckets gauge
rgw_exporter_collector_buckets{collector="RGW"} 0
`
	assert.NoError(t, testutil.GatherAndCompare(reg.Gatherer(), strings.NewReader(expected),
		"rgw_exporter_admin_api_requests_total",
		"rgw_exporter_collector_buckets",
		"rgw_exporter_collector_last_scrape_error",
	))
}

func TestCollector_OverlappingCyclesPublishOneCycle(t *testing.T) {
	c, fetcher, reg := newCollector(t, usage.Kilobytes, false)
	const (
		cycles  = 10
		buckets = 50
	)

	var calls atomic.Int32
	fetcher.EXPECT().ListBucketStats(gomock.Any()).DoAndReturn(func(ctx context.Context) ([]client.UsageRecord, error) {
		n := float64(calls.Add(1))
		records := make([]client.UsageRecord, 0, buckets)
		for i := 0; i < buckets; i++ {
			records = append(records, client.UsageRecord{Bucket: fmt.Sprintf("b%d", i), Tenant: "t1", SizeKBUtilized: n})
		}
		return records, nil
	}).Times(cycles)

	var wg sync.WaitGroup
	for i := 0; i < cycles; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.CollectMetrics(context.Background()))
		}()
	}
	wg.Wait()

	require.Equal(t, buckets, reg.Len())
	first, _ := reg.Get("b0", "t1")
	for i := 1; i < buckets; i++ {
		v, ok := reg.Get(fmt.Sprintf("b%d", i), "t1")
		require.True(t, ok)
		assert.Equal(t, first, v)
	}
}
