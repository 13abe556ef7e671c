package memory

import (
	"testing"
)

func TestSnapshotBucketsRoundTrip(t *testing.T) {
	store := NewStore(nil)
	seedPortfolio(t, store)
	original := store.ExportState()

	var restored Snapshot
	for _, bucket := range Buckets {
		payload, err := original.EncodeBucket(bucket)
		if err != nil {
			t.Fatalf("encode %s: %v", bucket, err)
		}
		if err := restored.DecodeBucket(bucket, payload); err != nil {
			t.Fatalf("decode %s: %v", bucket, err)
		}
	}
	if len(restored.Documents) != len(original.Documents) || len(restored.Leases) != len(original.Leases) {
		t.Fatalf("bucket round trip lost records")
	}
}

func TestSnapshotBucketErrors(t *testing.T) {
	var s Snapshot
	if _, err := s.EncodeBucket("inspections"); err == nil {
		t.Fatalf("expected unknown bucket error")
	}
	if err := s.DecodeBucket("inspections", []byte(`{}`)); err != nil {
		t.Fatalf("unknown bucket should be ignored: %v", err)
	}
	if err := s.DecodeBucket("lots", []byte(`{`)); err == nil {
		t.Fatalf("expected decode error")
	}
}
