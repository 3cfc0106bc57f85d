package usage

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafana/rgw-exporter/pkg/rgw/client"
)

func TestParseUnit(t *testing.T) {
	tests := map[string]struct {
		in      string
		want    Unit
		wantErr bool
	}{
		"gb":         {in: "gb", want: Gigabytes},
		"upper GB":   {in: "GB", want: Gigabytes},
		"gigabytes":  {in: "gigabytes", want: Gigabytes},
		"kb":         {in: " kb ", want: Kilobytes},
		"kilobytes":  {in: "Kilobytes", want: Kilobytes},
		"empty":      {in: "", wantErr: true},
		"mebibytes":  {in: "mib", wantErr: true},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := ParseUnit(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnit_MetricSuffix(t *testing.T) {
	assert.Equal(t, "bucket_size_gb", Gigabytes.MetricSuffix())
	assert.Equal(t, "bucket_size_kb", Kilobytes.MetricSuffix())
}

func TestTransformer_Value(t *testing.T) {
	tests := map[string]struct {
		unit   Unit
		round  bool
		sizeKB float64
		want   float64
	}{
		"empty bucket rounded stays zero": {
			unit: Gigabytes, round: true, sizeKB: 0, want: 0,
		},
		"just under one gigabyte rounds up to one": {
			unit: Gigabytes, round: true, sizeKB: 976562, want: 1,
		},
		"just over one gigabyte rounds up to two": {
			unit: Gigabytes, round: true, sizeKB: 976563, want: 2,
		},
		"a single kilobyte rounds up to one": {
			unit: Gigabytes, round: true, sizeKB: 1, want: 1,
		},
		"unrounded gigabytes are the exact quotient": {
			unit: Gigabytes, round: false, sizeKB: 976562, want: 976562.0 * 1024 / 1e9,
		},
		"kilobytes are unchanged": {
			unit: Kilobytes, round: false, sizeKB: 976562, want: 976562,
		},
		"kilobytes are never rounded": {
			unit: Kilobytes, round: true, sizeKB: 1.5, want: 1.5,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			tr := NewTransformer(tt.unit, tt.round)
			assert.Equal(t, tt.want, tr.Value(tt.sizeKB))
		})
	}
}

func TestTransformer_ValueMatchesFormula(t *testing.T) {
	rounded := NewTransformer(Gigabytes, true)
	exact := NewTransformer(Gigabytes, false)
	raw := NewTransformer(Kilobytes, false)

	for _, kb := range []float64{0, 1, 512, 1023, 1024, 976561, 976562, 976563, 1e7, 123456789, 5e12} {
		assert.Equal(t, math.Ceil(kb*1024/1e9), rounded.Value(kb), "rounded %v", kb)
		assert.Equal(t, kb*1024/1e9, exact.Value(kb), "exact %v", kb)
		assert.Equal(t, kb, raw.Value(kb), "raw %v", kb)
		assert.GreaterOrEqual(t, rounded.Value(kb), exact.Value(kb))
	}
}

func TestTransformer_Transform(t *testing.T) {
	tr := NewTransformer(Gigabytes, true)
	got := tr.Transform(client.UsageRecord{Bucket: "b1", Tenant: "t1", SizeKBUtilized: 976562})
	assert.Equal(t, Sample{Bucket: "b1", Tenant: "t1", Value: 1}, got)
}
