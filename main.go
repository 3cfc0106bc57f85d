package rgw_exporter

const (
	ExporterName = "rgw_exporter"
	MetricPrefix = "rgw"
)
