// Package store provides durable cookie storage backends for cookiestash.
// All backends implement cookiestash.Store and are safe for concurrent use.
package store

import (
	"context"
	"time"

	"github.com/umputun/cookiestash/lib/cookiestash"
)

// ErrNotFound is returned when a key is not found in the store.
var ErrNotFound = cookiestash.ErrNotFound

// Entry is a stored cookie string with its key.
type Entry struct {
	Key       string    `db:"key" json:"key"`
	Value     string    `db:"value" json:"value"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Backend is a cookie store owning resources that must be released with Close.
type Backend interface {
	cookiestash.Store
	Close() error
}

// Lister is implemented by backends able to enumerate and remove entries.
type Lister interface {
	List(ctx context.Context) ([]Entry, error)
	Delete(ctx context.Context, key string) error
}
