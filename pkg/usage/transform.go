// Package usage converts raw bucket usage into the value published for a bucket.
package usage

import (
	"fmt"
	"math"
	"strings"

	"github.com/grafana/rgw-exporter/pkg/rgw/client"
	"github.com/grafana/rgw-exporter/pkg/utils"
)

// Unit selects the reporting unit of the bucket size gauge.
type Unit string

const (
	Gigabytes Unit = "gb"
	Kilobytes Unit = "kb"
)

// ParseUnit accepts the short and long spellings of a unit, case-insensitively.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gb", "gigabytes":
		return Gigabytes, nil
	case "kb", "kilobytes":
		return Kilobytes, nil
	default:
		return "", fmt.Errorf("unknown unit %q, expected gb or kb", s)
	}
}

// MetricSuffix is the last component of the gauge name for the unit.
func (u Unit) MetricSuffix() string {
	return "bucket_size_" + string(u)
}

// Sample is the value to publish for one bucket.
type Sample struct {
	Bucket string
	Tenant string
	Value  float64
}

type Transformer struct {
	Unit Unit
	// Round applies a ceiling to gigabyte values. Kilobyte values are never rounded.
	Round bool
}

func NewTransformer(unit Unit, round bool) *Transformer {
	return &Transformer{Unit: unit, Round: round}
}

// Transform converts record into a Sample. Gigabytes are decimal: kb * 1024 / 1e9.
func (t *Transformer) Transform(record client.UsageRecord) Sample {
	return Sample{
		Bucket: record.Bucket,
		Tenant: record.Tenant,
		Value:  t.Value(record.SizeKBUtilized),
	}
}

func (t *Transformer) Value(sizeKB float64) float64 {
	if t.Unit == Kilobytes {
		return sizeKB
	}
	gb := sizeKB * utils.BytesPerKilobyte / utils.BytesPerGigabyte
	if t.Round {
		return math.Ceil(gb)
	}
	return gb
}
