package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// DefaultKeyringService is the keyring service name used when none is given.
const DefaultKeyringService = "cookiestash"

// Keyring keeps cookie strings in the OS keyring (Keychain, Secret Service, Credential Manager).
// Keys are stored as keyring users of a single service. Listing is not supported by keyrings.
type Keyring struct {
	service string
}

// NewKeyring creates a keyring store for the service name.
func NewKeyring(service string) *Keyring {
	if service == "" {
		service = DefaultKeyringService
	}
	return &Keyring{service: service}
}

// Get returns the cookie string for the key or ErrNotFound.
func (k *Keyring) Get(_ context.Context, key string) (string, error) {
	value, err := keyring.Get(k.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get key %q from keyring: %w", key, err)
	}
	return value, nil
}

// Put stores the cookie string for the key.
func (k *Keyring) Put(_ context.Context, key, value string) error {
	if err := keyring.Set(k.service, key, value); err != nil {
		return fmt.Errorf("failed to set key %q in keyring: %w", key, err)
	}
	return nil
}

// Close is a no-op.
func (k *Keyring) Close() error { return nil }
