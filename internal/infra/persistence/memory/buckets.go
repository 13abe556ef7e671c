package memory

import (
	"encoding/json"
	"fmt"
)

// Buckets lists the snapshot buckets in the order durable stores write them.
var Buckets = []string{
	"entities",
	"properties",
	"lots",
	"leases",
	"tenant_groups",
	"tenants",
	"candidates",
	"documents",
}

func (s *Snapshot) bucketTarget(bucket string) (any, bool) {
	switch bucket {
	case "entities":
		return &s.Entities, true
	case "properties":
		return &s.Properties, true
	case "lots":
		return &s.Lots, true
	case "leases":
		return &s.Leases, true
	case "tenant_groups":
		return &s.TenantGroups, true
	case "tenants":
		return &s.Tenants, true
	case "candidates":
		return &s.Candidates, true
	case "documents":
		return &s.Documents, true
	}
	return nil, false
}

// EncodeBucket marshals a single bucket of the snapshot to JSON.
func (s Snapshot) EncodeBucket(bucket string) ([]byte, error) {
	target, ok := s.bucketTarget(bucket)
	if !ok {
		return nil, fmt.Errorf("unknown bucket %q", bucket)
	}
	return json.Marshal(target)
}

// DecodeBucket unmarshals payload into the named bucket. Unknown buckets are
// ignored so older databases with retired buckets still load.
func (s *Snapshot) DecodeBucket(bucket string, payload []byte) error {
	target, ok := s.bucketTarget(bucket)
	if !ok || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode %s: %w", bucket, err)
	}
	return nil
}
