// Package utils contains shared helpers for metric construction and constants.
package utils

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// DefaultCollectionInterval is the period of the background collection loop.
	DefaultCollectionInterval = 60 * time.Second
	// BytesPerKilobyte is the RGW kilobyte, which is binary.
	BytesPerKilobyte = 1024
	// BytesPerGigabyte is a decimal gigabyte.
	BytesPerGigabyte = 1_000_000_000
)

// GenerateDesc creates a Prometheus metric descriptor with a standardized fqname.
func GenerateDesc(prefix, subsystem, suffix, description string, labels []string) *prometheus.Desc {
	return prometheus.NewDesc(
		prometheus.BuildFQName(prefix, subsystem, suffix),
		description,
		labels,
		nil,
	)
}
