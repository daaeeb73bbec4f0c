// Package metadata persists the client's session values as opaque key/value
// pairs. Several backends are provided; all of them return (nil, nil) from
// Get when a key is absent.
package metadata

import (
	"context"
)

type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Apply writes every pair in set and removes every key in remove as one
	// unit where the backend allows it.
	Apply(ctx context.Context, set map[string][]byte, remove []string) error
}
