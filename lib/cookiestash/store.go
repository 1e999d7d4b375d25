package cookiestash

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Store.Get when no cookie string is saved for the key.
var ErrNotFound = errors.New("cookie not found")

// Store is a string-keyed persistence for cookie strings.
// Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key, value string) error
}
