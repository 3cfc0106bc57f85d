package client

import (
	"encoding/json"
	"fmt"
)

const (
	// mainCategory is the usage category holding regular object data.
	mainCategory = "rgw.main"
	// nestedGroup and nestedMain spell the same category as nested objects,
	// usage.rgw.main, which some payloads use instead of the dotted key.
	nestedGroup = "rgw"
	nestedMain  = "main"
)

// bucketStats mirrors one entry of `GET /bucket?stats=true`. Pointers distinguish
// absent fields from zero values.
type bucketStats struct {
	Bucket *string                    `json:"bucket"`
	Tenant *string                    `json:"tenant"`
	Usage  map[string]json.RawMessage `json:"usage"`
}

type usageCategory struct {
	SizeKBUtilized *float64 `json:"size_kb_utilized"`
}

// RecordError describes a single entry that could not be turned into a UsageRecord.
type RecordError struct {
	Index  int
	Bucket string
	Err    error
}

func (e RecordError) Error() string {
	if e.Bucket == "" {
		return fmt.Sprintf("record %d: %s", e.Index, e.Err)
	}
	return fmt.Sprintf("record %d (bucket %q): %s", e.Index, e.Bucket, e.Err)
}

func (e RecordError) Unwrap() error {
	return e.Err
}

// ParseResult holds the records that parsed and the ones that were dropped.
type ParseResult struct {
	Records []UsageRecord
	Dropped []RecordError
}

// ParseBucketStats decodes a bucket stats listing. Only a body that is not a JSON
// array fails as a whole; malformed entries are collected in Dropped and do not
// affect their siblings.
func ParseBucketStats(body []byte) (ParseResult, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return ParseResult{}, fmt.Errorf("decoding bucket list: %w", err)
	}

	result := ParseResult{Records: make([]UsageRecord, 0, len(raw))}
	for i, entry := range raw {
		record, err := parseRecord(entry)
		if err != nil {
			result.Dropped = append(result.Dropped, RecordError{Index: i, Bucket: record.Bucket, Err: err})
			continue
		}
		result.Records = append(result.Records, record)
	}
	return result, nil
}

// parseRecord returns whatever it could read alongside the error so callers can
// log the bucket name of a dropped entry.
func parseRecord(entry json.RawMessage) (UsageRecord, error) {
	var stats bucketStats
	if err := json.Unmarshal(entry, &stats); err != nil {
		return UsageRecord{}, fmt.Errorf("decoding record: %w", err)
	}

	var record UsageRecord
	if stats.Bucket == nil || *stats.Bucket == "" {
		return record, fmt.Errorf("%w: bucket", ErrMissingField)
	}
	record.Bucket = *stats.Bucket

	// An empty tenant is the default tenant and is valid.
	if stats.Tenant == nil {
		return record, fmt.Errorf("%w: tenant", ErrMissingField)
	}
	record.Tenant = *stats.Tenant

	raw, ok := mainUsage(stats.Usage)
	if !ok {
		return record, fmt.Errorf("%w: usage.%s.size_kb_utilized", ErrMissingField, mainCategory)
	}
	var category usageCategory
	if err := json.Unmarshal(raw, &category); err != nil {
		return record, fmt.Errorf("decoding usage.%s: %w", mainCategory, err)
	}
	if category.SizeKBUtilized == nil {
		return record, fmt.Errorf("%w: usage.%s.size_kb_utilized", ErrMissingField, mainCategory)
	}
	if *category.SizeKBUtilized < 0 {
		return record, fmt.Errorf("negative size_kb_utilized %v", *category.SizeKBUtilized)
	}
	record.SizeKBUtilized = *category.SizeKBUtilized

	return record, nil
}

// mainUsage returns the rgw.main category, preferring the dotted key RGW emits
// and falling back to usage.rgw.main.
func mainUsage(usage map[string]json.RawMessage) (json.RawMessage, bool) {
	if raw, ok := usage[mainCategory]; ok {
		return raw, true
	}
	raw, ok := usage[nestedGroup]
	if !ok {
		return nil, false
	}
	var group map[string]json.RawMessage
	if err := json.Unmarshal(raw, &group); err != nil {
		return nil, false
	}
	category, ok := group[nestedMain]
	return category, ok
}
