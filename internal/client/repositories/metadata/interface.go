// Package metadata persists the key/value sync state of the local store:
// the sync cursor and the cached remote folder ids.
package metadata

import (
	"context"
)

// Repository is a plain key/value table. Get returns (nil, nil) for a
// missing key.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) (map[string][]byte, error)
}
