// Package cache provides a content-addressed cache for pipeline
// results. Entries are keyed by a namespace plus a hex digest, so a
// recomputed input with the same digest always hits the same entry.
//
// The package includes a BadgerDB-backed implementation for real runs
// and an in-memory implementation for testing.
package cache

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"sort"
	"sync"
)

// Sentinel errors.
var (
	// ErrNotFound is returned when no entry exists for a digest.
	ErrNotFound = errors.New("cache: not found")
)

// Namespaces used by the pipeline.
const (
	NSBundle = "bundle" // serialized evidence bundles
	NSDecode = "decode" // decoded state sequences and units
)

// Store is a byte-level digest-addressed cache.
type Store interface {
	// Get retrieves the payload for a digest. Returns ErrNotFound if
	// absent.
	Get(ctx context.Context, ns, digest string) ([]byte, error)

	// Put stores a payload under a digest. Overwrites any existing
	// entry.
	Put(ctx context.Context, ns, digest string, data []byte) error

	// Delete removes an entry. No error if absent.
	Delete(ctx context.Context, ns, digest string) error

	// Digests iterates the digests present in a namespace in
	// lexicographic order.
	Digests(ctx context.Context, ns string) iter.Seq2[string, error]

	// Close releases any resources held by the store.
	Close() error
}

const keySep = '/'

func encodeKey(ns, digest string) []byte {
	buf := make([]byte, 0, len(ns)+1+len(digest))
	buf = append(buf, ns...)
	buf = append(buf, keySep)
	buf = append(buf, digest...)
	return buf
}

func nsPrefix(ns string) []byte {
	return append([]byte(ns), keySep)
}

// Memory is an in-memory Store, safe for concurrent use. Intended for
// tests and single-shot runs where persistence is not wanted.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, ns, digest string) ([]byte, error) {
	k := string(encodeKey(ns, digest))
	m.mu.RLock()
	v, ok := m.data[k]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, nil
}

func (m *Memory) Put(_ context.Context, ns, digest string, data []byte) error {
	k := string(encodeKey(ns, digest))
	cp := make([]byte, len(data))
	copy(cp, data)
	m.mu.Lock()
	m.data[k] = cp
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, ns, digest string) error {
	k := string(encodeKey(ns, digest))
	m.mu.Lock()
	delete(m.data, k)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Digests(_ context.Context, ns string) iter.Seq2[string, error] {
	prefix := nsPrefix(ns)

	m.mu.RLock()
	var digests []string
	for k := range m.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			digests = append(digests, k[len(prefix):])
		}
	}
	m.mu.RUnlock()
	sort.Strings(digests)

	return func(yield func(string, error) bool) {
		for _, d := range digests {
			if !yield(d, nil) {
				return
			}
		}
	}
}

func (m *Memory) Close() error { return nil }
