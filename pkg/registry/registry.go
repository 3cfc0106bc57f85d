// Package registry holds the published bucket size gauges and renders them in the
// Prometheus exposition format.
package registry

import (
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"

	rgw_exporter "github.com/grafana/rgw-exporter"
	"github.com/grafana/rgw-exporter/pkg/usage"
	"github.com/grafana/rgw-exporter/pkg/utils"
)

var labels = []string{"bucket", "tenant"}

type labelKey struct {
	bucket string
	tenant string
}

// Registry is a process-wide overwrite map of bucket size gauges keyed by
// (bucket, tenant). Entries are never evicted: a bucket that disappears upstream
// keeps its last value until the process restarts.
type Registry struct {
	desc     *prometheus.Desc
	gatherer *prometheus.Registry

	m      sync.RWMutex
	values map[labelKey]float64
}

// New creates a Registry whose gauge name reflects unit, e.g. rgw_bucket_size_gb.
// The Registry registers itself in its own prometheus.Registry.
func New(unit usage.Unit) *Registry {
	r := &Registry{
		desc: utils.GenerateDesc(
			rgw_exporter.MetricPrefix,
			"",
			unit.MetricSuffix(),
			"RGW Bucket Size",
			labels,
		),
		gatherer: prometheus.NewRegistry(),
		values:   make(map[labelKey]float64),
	}
	r.gatherer.MustRegister(r)
	return r
}

// Set overwrites the value for (bucket, tenant), creating the entry on first use.
func (r *Registry) Set(bucket, tenant string, value float64) {
	r.m.Lock()
	r.values[labelKey{bucket: bucket, tenant: tenant}] = value
	r.m.Unlock()
}

// SetAll applies every sample of one cycle under a single write lock, so
// overlapping cycles never leave a mix of their values behind.
func (r *Registry) SetAll(samples []usage.Sample) {
	r.m.Lock()
	defer r.m.Unlock()
	for _, s := range samples {
		r.values[labelKey{bucket: s.Bucket, tenant: s.Tenant}] = s.Value
	}
}

func (r *Registry) Get(bucket, tenant string) (float64, bool) {
	r.m.RLock()
	defer r.m.RUnlock()
	v, ok := r.values[labelKey{bucket: bucket, tenant: tenant}]
	return v, ok
}

// Len returns the number of label pairs ever observed.
func (r *Registry) Len() int {
	r.m.RLock()
	defer r.m.RUnlock()
	return len(r.values)
}

// MustRegister adds collectors that are exposed next to the bucket gauges.
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	r.gatherer.MustRegister(cs...)
}

func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.gatherer
}

// Describe implements prometheus.Collector.
func (r *Registry) Describe(ch chan<- *prometheus.Desc) {
	ch <- r.desc
}

// Collect implements prometheus.Collector. It emits a consistent snapshot.
func (r *Registry) Collect(ch chan<- prometheus.Metric) {
	r.m.RLock()
	snapshot := make(map[labelKey]float64, len(r.values))
	for k, v := range r.values {
		snapshot[k] = v
	}
	r.m.RUnlock()

	for k, v := range snapshot {
		ch <- prometheus.MustNewConstMetric(r.desc, prometheus.GaugeValue, v, k.bucket, k.tenant)
	}
}

// Render writes every registered metric family in the text exposition format.
func (r *Registry) Render(w io.Writer) error {
	families, err := r.gatherer.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("writing %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// Handler serves the current snapshot.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
