package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by [Store.Get] when the key has no value.
var ErrNotFound = errors.New("storage: key not found")

// Store is the persistence port for client-side auth state. Implementations
// must be safe for concurrent use.
//
// Get returns [ErrNotFound] for missing keys. Delete of a missing key is not
// an error.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
