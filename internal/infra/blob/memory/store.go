// Package memory keeps blobs in process memory. It backs the default driver
// for tests and single-node runs without object storage.
package memory

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"maps"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"rentcore/internal/blob/core"
)

var _ core.Store = (*Store)(nil)

type entry struct {
	obj  core.Object
	data []byte
}

func (e entry) object() core.Object {
	obj := e.obj
	obj.Metadata = maps.Clone(e.obj.Metadata)
	return obj
}

// Store is a core.Store over a map.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		entries: map[string]entry{},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Driver() core.Driver { return core.DriverMemory }

func (s *Store) Put(ctx context.Context, key string, r io.Reader, opts core.PutOptions) (core.Object, error) {
	if err := ctx.Err(); err != nil {
		return core.Object{}, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return core.Object{}, err
	}
	sum := sha256.Sum256(data)
	e := entry{
		obj: core.Object{
			Key:         key,
			Size:        int64(len(data)),
			ContentType: opts.ContentType,
			Checksum:    hex.EncodeToString(sum[:]),
			Metadata:    maps.Clone(opts.Metadata),
			ModifiedAt:  s.now(),
		},
		data: data,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.entries[key]; taken {
		return core.Object{}, core.Taken(key)
	}
	s.entries[key] = e
	return e.object(), nil
}

func (s *Store) lookup(key string) (entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return entry{}, core.Missing(key)
	}
	return e, nil
}

// Get returns a reader over a copy of the stored bytes.
func (s *Store) Get(_ context.Context, key string) (core.Object, io.ReadCloser, error) {
	e, err := s.lookup(key)
	if err != nil {
		return core.Object{}, nil, err
	}
	return e.object(), io.NopCloser(bytes.NewReader(bytes.Clone(e.data))), nil
}

func (s *Store) Head(_ context.Context, key string) (core.Object, error) {
	e, err := s.lookup(key)
	if err != nil {
		return core.Object{}, err
	}
	return e.object(), nil
}

func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; !ok {
		return false, nil
	}
	delete(s.entries, key)
	return true, nil
}

func (s *Store) List(_ context.Context, prefix string) ([]core.Object, error) {
	s.mu.RLock()
	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	out := make([]core.Object, 0, len(keys))
	for _, key := range keys {
		out = append(out, s.entries[key].object())
	}
	s.mu.RUnlock()
	return out, nil
}

// PresignGet returns memory:///<key>?expires=<unix>. The link only means
// something inside this process; it lets the download path run without
// object storage.
func (s *Store) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	if _, err := s.lookup(key); err != nil {
		return "", err
	}
	link := url.URL{
		Scheme:   "memory",
		Path:     "/" + key,
		RawQuery: url.Values{"expires": {strconv.FormatInt(s.now().Add(core.LinkTTL(ttl)).Unix(), 10)}}.Encode(),
	}
	return link.String(), nil
}
