// Package artifact persists run outputs: TextGrids, unit lists and run
// manifests. Artifacts are small named blobs addressed by
// slash-separated keys, so one Store interface covers local disk and
// S3-compatible object stores.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrKey marks a malformed artifact key.
var ErrKey = errors.New("artifact: invalid key")

// Store holds named artifact blobs. Implementations must be safe for
// concurrent use.
type Store interface {
	// Put stores data under the key, replacing any existing blob.
	Put(ctx context.Context, key string, data []byte) error

	// Get returns the blob stored under the key. A missing key yields
	// an error wrapping os.ErrNotExist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the blob. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether the key holds a blob.
	Exists(ctx context.Context, key string) (bool, error)

	// List returns every key under the prefix in lexical order. A
	// prefix with no keys yields an empty slice.
	List(ctx context.Context, prefix string) ([]string, error)
}

// cleanKey normalizes a key and rejects empty keys and keys escaping
// the store root.
func cleanKey(key string) (string, error) {
	clean := path.Clean(key)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") || strings.HasPrefix(clean, "/") {
		return "", fmt.Errorf("%w: %q", ErrKey, key)
	}
	return clean, nil
}
