package store

import (
	"context"
	"errors"
	"strings"
)

// Open makes a backend for the store location:
//   - postgres://... or postgresql://... -> PostgreSQL
//   - redis://... or rediss://... -> redis
//   - bolt://path -> bbolt file
//   - keyring:// or keyring://service -> OS keyring
//   - mem:// -> in-memory, not durable
//   - anything else -> SQLite file
func Open(ctx context.Context, location string) (Backend, error) {
	if location == "" {
		return nil, errors.New("store location is required")
	}
	lower := strings.ToLower(location)
	switch {
	case strings.HasPrefix(lower, "redis://"), strings.HasPrefix(lower, "rediss://"):
		return NewRedis(ctx, location)
	case strings.HasPrefix(lower, "bolt://"):
		path := location[len("bolt://"):]
		if path == "" {
			return nil, errors.New("bolt store path is required")
		}
		return NewBolt(path)
	case strings.HasPrefix(lower, "keyring://"):
		return NewKeyring(location[len("keyring://"):]), nil
	case lower == "mem://":
		return NewMemory(), nil
	default:
		return NewSQL(location)
	}
}
