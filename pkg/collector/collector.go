// Package collector runs one fetch, transform and publish cycle of bucket usage.
package collector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"

	rgw_exporter "github.com/grafana/rgw-exporter"
	"github.com/grafana/rgw-exporter/pkg/registry"
	"github.com/grafana/rgw-exporter/pkg/rgw/client"
	"github.com/grafana/rgw-exporter/pkg/usage"
	"github.com/grafana/rgw-exporter/pkg/utils"
)

const (
	collectorName = "RGW"
	subsystem     = "collector"
)

var (
	collectorLastScrapeErrorDesc = utils.GenerateDesc(
		rgw_exporter.ExporterName,
		subsystem,
		"last_scrape_error",
		"Whether the last collection of bucket stats failed (1) or succeeded (0).",
		[]string{"collector"},
	)
	collectorDurationDesc = utils.GenerateDesc(
		rgw_exporter.ExporterName,
		subsystem,
		"last_scrape_duration_seconds",
		"Duration of the last collection of bucket stats in seconds.",
		[]string{"collector"},
	)
	collectorLastScrapeTime = utils.GenerateDesc(
		rgw_exporter.ExporterName,
		subsystem,
		"last_scrape_time",
		"Unix time of the last completed collection of bucket stats.",
		[]string{"collector"},
	)
	collectorBucketsDesc = utils.GenerateDesc(
		rgw_exporter.ExporterName,
		subsystem,
		"buckets",
		"Number of bucket and tenant pairs currently published.",
		[]string{"collector"},
	)
)

// Registry is where the collector exposes its own metrics.
type Registry interface {
	MustRegister(...prometheus.Collector)
}

type Config struct {
	Fetcher     client.Fetcher
	Transformer *usage.Transformer
	Registry    *registry.Registry
	Logger      *slog.Logger
}

// Collector runs collection cycles and exposes the outcome of the last one.
type Collector struct {
	fetcher     client.Fetcher
	transformer *usage.Transformer
	registry    *registry.Registry
	logger      *slog.Logger

	m            sync.Mutex
	completed    bool
	lastError    bool
	lastDuration time.Duration
	lastTime     time.Time
}

func New(cfg *Config) *Collector {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		fetcher:     cfg.Fetcher,
		transformer: cfg.Transformer,
		registry:    cfg.Registry,
		logger:      logger.With("logger", "collector"),
	}
}

func (c *Collector) Name() string {
	return collectorName
}

// Register exposes the collector and fetcher metrics.
func (c *Collector) Register(r Registry) {
	r.MustRegister(c)
	r.MustRegister(c.fetcher.Metrics()...)
}

// CollectMetrics runs one cycle. A failed fetch leaves every published value untouched.
func (c *Collector) CollectMetrics(ctx context.Context) error {
	start := time.Now()
	records, err := c.fetcher.ListBucketStats(ctx)
	if err != nil {
		c.finish(start, true)
		c.logger.LogAttrs(ctx, slog.LevelWarn, "no data to process, keeping previous values",
			slog.String("collector", c.Name()),
			slog.String("message", err.Error()),
		)
		return fmt.Errorf("collecting bucket stats: %w", err)
	}

	samples := make([]usage.Sample, 0, len(records))
	for _, record := range records {
		sample := c.transformer.Transform(record)
		samples = append(samples, sample)
		c.logger.LogAttrs(ctx, slog.LevelDebug, "transformed bucket size",
			slog.String("bucket", sample.Bucket),
			slog.String("tenant", sample.Tenant),
			slog.Float64("size_kb_utilized", record.SizeKBUtilized),
			slog.String("size", humanize.Bytes(uint64(record.SizeKBUtilized*utils.BytesPerKilobyte))),
			slog.Float64("value", sample.Value),
		)
	}
	c.registry.SetAll(samples)

	c.finish(start, false)
	c.logger.LogAttrs(ctx, slog.LevelInfo, "collected bucket stats",
		slog.String("collector", c.Name()),
		slog.Int("buckets", len(records)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (c *Collector) finish(start time.Time, failed bool) {
	now := time.Now()
	c.m.Lock()
	defer c.m.Unlock()
	c.completed = true
	c.lastError = failed
	c.lastDuration = now.Sub(start)
	c.lastTime = now
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- collectorLastScrapeErrorDesc
	ch <- collectorDurationDesc
	ch <- collectorLastScrapeTime
	ch <- collectorBucketsDesc
}

// Collect implements prometheus.Collector. Cycle metrics are only emitted once a
// cycle has completed.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(collectorBucketsDesc, prometheus.GaugeValue, float64(c.registry.Len()), c.Name())

	c.m.Lock()
	completed, failed, duration, last := c.completed, c.lastError, c.lastDuration, c.lastTime
	c.m.Unlock()
	if !completed {
		return
	}

	scrapeError := 0.0
	if failed {
		scrapeError = 1
	}
	ch <- prometheus.MustNewConstMetric(collectorLastScrapeErrorDesc, prometheus.GaugeValue, scrapeError, c.Name())
	ch <- prometheus.MustNewConstMetric(collectorDurationDesc, prometheus.GaugeValue, duration.Seconds(), c.Name())
	ch <- prometheus.MustNewConstMetric(collectorLastScrapeTime, prometheus.GaugeValue, float64(last.Unix()), c.Name())
}
