// Package storage is the client's local key-value store: the Go stand-in
// for the browser storage the wallet stack reads on the next load.
package storage

import "context"

// Repository stores opaque values by key. Get returns (nil, nil) for a
// missing key.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// List returns every entry whose key starts with prefix ("" for all).
	List(ctx context.Context, prefix string) (map[string][]byte, error)
	Clear(ctx context.Context) error
}
