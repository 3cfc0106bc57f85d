package utils

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

type LabelMap map[string]string

// MetricResult is a flattened view of a single collected metric, used by tests
// to assert on collector output.
type MetricResult struct {
	FqName     string
	Labels     LabelMap
	Value      float64
	MetricType prometheus.ValueType
}

func ReadMetrics(metric prometheus.Metric) *MetricResult {
	m := &dto.Metric{}
	err := metric.Write(m)
	if err != nil {
		return nil
	}
	labels := make(LabelMap, len(m.Label))
	for _, l := range m.Label {
		labels[l.GetName()] = l.GetValue()
	}
	result := &MetricResult{
		FqName: parseFqNameFromMetric(metric.Desc().String()),
		Labels: labels,
	}
	switch {
	case m.Gauge != nil:
		result.Value = m.GetGauge().GetValue()
		result.MetricType = prometheus.GaugeValue
	case m.Counter != nil:
		result.Value = m.GetCounter().GetValue()
		result.MetricType = prometheus.CounterValue
	case m.Untyped != nil:
		result.Value = m.GetUntyped().GetValue()
		result.MetricType = prometheus.UntypedValue
	default:
		return nil
	}
	return result
}

// parseFqNameFromMetric extracts the fqName from a prometheus.Desc string.
func parseFqNameFromMetric(desc string) string {
	const marker = `fqName: "`
	start := strings.Index(desc, marker)
	if start < 0 {
		return ""
	}
	rest := desc[start+len(marker):]
	end := strings.Index(rest, `"`)
	if end < 0 {
		return ""
	}
	return rest[:end]
}
