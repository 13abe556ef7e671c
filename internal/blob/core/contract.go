// Package core holds the object storage contract. Drivers under
// internal/infra/blob implement it; everything else reaches it through the
// blob package.
package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Driver names a storage backend.
type Driver string

const (
	DriverMemory Driver = "memory"
	DriverS3     Driver = "s3"
)

// Object describes a stored binary. Checksum is driver specific: a sha256
// hex digest in memory, the ETag on S3.
type Object struct {
	Key         string            `json:"key"`
	Size        int64             `json:"size_bytes"`
	ContentType string            `json:"content_type,omitempty"`
	Checksum    string            `json:"checksum,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ModifiedAt  time.Time         `json:"modified_at"`
}

// PutOptions carries what a driver stores alongside the bytes.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// Store is create-only object storage keyed by slash separated paths.
type Store interface {
	Driver() Driver
	// Put fails with ErrExists when key is already taken.
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Object, error)
	Get(ctx context.Context, key string) (Object, io.ReadCloser, error)
	Head(ctx context.Context, key string) (Object, error)
	// Delete reports false, nil when nothing was stored under key.
	Delete(ctx context.Context, key string) (bool, error)
	// List returns objects under prefix sorted by key.
	List(ctx context.Context, prefix string) ([]Object, error)
	// PresignGet returns a download link valid for ttl, or for
	// DefaultLinkTTL when ttl is not positive.
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// DefaultLinkTTL is the lifetime of a presigned link when none is given.
const DefaultLinkTTL = 15 * time.Minute

var (
	ErrNotFound    = errors.New("blob: not found")
	ErrExists      = errors.New("blob: already exists")
	ErrUnsupported = errors.New("blob: unsupported by driver")
)

// Missing wraps ErrNotFound with the key.
func Missing(key string) error { return fmt.Errorf("%w: %s", ErrNotFound, key) }

// Taken wraps ErrExists with the key.
func Taken(key string) error { return fmt.Errorf("%w: %s", ErrExists, key) }

// LinkTTL applies DefaultLinkTTL to non-positive durations.
func LinkTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultLinkTTL
	}
	return ttl
}
