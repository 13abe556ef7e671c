// Package blob stores document binaries and export artifacts. It selects a
// driver from configuration and lays out object keys; callers depend on the
// Store interface only.
package blob

import (
	"context"
	"fmt"
	"strings"

	"rentcore/internal/blob/core"
	memorystore "rentcore/internal/infra/blob/memory"
	s3store "rentcore/internal/infra/blob/s3"
)

type (
	Driver     = core.Driver
	Object     = core.Object
	PutOptions = core.PutOptions
	Store      = core.Store
	// S3Config configures the S3 driver.
	S3Config = s3store.Config
)

const (
	DriverMemory = core.DriverMemory
	DriverS3     = core.DriverS3
)

var (
	ErrNotFound    = core.ErrNotFound
	ErrExists      = core.ErrExists
	ErrUnsupported = core.ErrUnsupported
)

// Options selects a driver. An empty Driver means memory.
type Options struct {
	Driver string
	S3     S3Config
}

// Open builds the configured Store.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch Driver(strings.ToLower(strings.TrimSpace(opts.Driver))) {
	case "", DriverMemory:
		return NewMemory(), nil
	case DriverS3:
		store, err := s3store.New(ctx, opts.S3)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown blob driver %q", opts.Driver)
}

// NewMemory returns a process-local Store.
func NewMemory() Store { return memorystore.New() }

// NewFakeS3 returns the S3 driver wired to an in-process S3 endpoint, for
// tests in other packages.
func NewFakeS3() Store { return s3store.NewFake() }
