package client

import (
	rgw_exporter "github.com/grafana/rgw-exporter"
	"github.com/prometheus/client_golang/prometheus"
)

const subsystem = "admin_api"

type Metrics struct {
	// RequestCount is a counter that tracks the number of requests made to the RGW admin API
	RequestCount prometheus.Counter

	// RequestErrorsCount is a counter that tracks the number of failed requests to the RGW admin API
	RequestErrorsCount prometheus.Counter

	// RequestDuration observes how long a bucket stats request took, including decoding
	RequestDuration prometheus.Histogram

	// RecordsDroppedCount tracks bucket stats entries that were skipped because they were malformed
	RecordsDroppedCount prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		RequestCount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prometheus.BuildFQName(rgw_exporter.ExporterName, subsystem, "requests_total"),
			Help: "Total number of requests made to the RGW admin API",
		}),

		RequestErrorsCount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prometheus.BuildFQName(rgw_exporter.ExporterName, subsystem, "request_errors_total"),
			Help: "Total number of failed requests to the RGW admin API",
		}),

		RequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:                           prometheus.BuildFQName(rgw_exporter.ExporterName, subsystem, "request_duration_seconds"),
			Help:                           "Duration of RGW admin API bucket stats requests in seconds.",
			Buckets:                        prometheus.DefBuckets,
			NativeHistogramBucketFactor:    1.1,
			NativeHistogramMaxBucketNumber: 100,
		}),

		RecordsDroppedCount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prometheus.BuildFQName(rgw_exporter.ExporterName, subsystem, "records_dropped_total"),
			Help: "Total number of bucket stats records dropped because of missing or invalid fields",
		}),
	}
}

func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RequestCount,
		m.RequestErrorsCount,
		m.RequestDuration,
		m.RecordsDroppedCount,
	}
}
