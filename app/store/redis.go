package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/redis/go-redis/v9"
)

const (
	redisPrefix   = "cookiestash:"
	redisScanSize = 100
)

// Redis is a cookie store backed by redis hashes, one hash per key.
type Redis struct {
	client redis.UniversalClient
	prefix string
}

// NewRedis connects to redis at the given URL, e.g. redis://:password@localhost:6379/0.
func NewRedis(ctx context.Context, redisURL string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	log.Printf("[DEBUG] initialized redis cookie store %s", opts.Addr)
	return &Redis{client: client, prefix: redisPrefix}, nil
}

// Get returns the cookie string for the key or ErrNotFound.
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.HGet(ctx, r.prefix+key, "value").Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get key %q: %w", key, err)
	}
	return value, nil
}

// Put stores the cookie string for the key.
func (r *Redis) Put(ctx context.Context, key, value string) error {
	updated := time.Now().UTC().Format(time.RFC3339Nano)
	if err := r.client.HSet(ctx, r.prefix+key, "value", value, "updated_at", updated).Err(); err != nil {
		return fmt.Errorf("failed to set key %q: %w", key, err)
	}
	return nil
}

// Delete removes the key or returns ErrNotFound.
func (r *Redis) Delete(ctx context.Context, key string) error {
	n, err := r.client.Del(ctx, r.prefix+key).Result()
	if err != nil {
		return fmt.Errorf("failed to delete key %q: %w", key, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all entries, most recently updated first. Uses SCAN to avoid blocking redis.
func (r *Redis) List(ctx context.Context) ([]Entry, error) {
	var res []Entry
	iter := r.client.Scan(ctx, 0, r.prefix+"*", redisScanSize).Iterator()
	for iter.Next(ctx) {
		rkey := iter.Val()
		fields, err := r.client.HGetAll(ctx, rkey).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read %q: %w", rkey, err)
		}
		if len(fields) == 0 {
			continue // removed between scan and read
		}
		updated, _ := time.Parse(time.RFC3339Nano, fields["updated_at"])
		res = append(res, Entry{Key: rkey[len(r.prefix):], Value: fields["value"], UpdatedAt: updated})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan keys: %w", err)
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].UpdatedAt.After(res[j].UpdatedAt) })
	return res, nil
}

// Close closes the redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}
