package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	log "github.com/go-pkgz/lgr"
	bolt "go.etcd.io/bbolt"
)

const boltBucket = "cookies"

// Bolt is a cookie store backed by a bbolt file.
type Bolt struct {
	db *bolt.DB
}

// boltRecord is the JSON value kept under each key.
type boltRecord struct {
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewBolt opens or creates the bbolt database at path.
func NewBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists([]byte(boltBucket))
		return e
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}
	log.Printf("[DEBUG] initialized bolt cookie store %s", path)
	return &Bolt{db: db}, nil
}

// Get returns the cookie string for the key or ErrNotFound.
func (b *Bolt) Get(_ context.Context, key string) (string, error) {
	var rec boltRecord
	err := b.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(boltBucket)).Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return "", err
	}
	return rec.Value, nil
}

// Put stores the cookie string for the key.
func (b *Bolt) Put(_ context.Context, key, value string) error {
	data, err := json.Marshal(boltRecord{Value: value, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal %q: %w", key, err)
	}
	err = b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(boltBucket)).Put([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("failed to set key %q: %w", key, err)
	}
	return nil
}

// Delete removes the key or returns ErrNotFound.
func (b *Bolt) Delete(_ context.Context, key string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(boltBucket))
		if bkt.Get([]byte(key)) == nil {
			return ErrNotFound
		}
		return bkt.Delete([]byte(key))
	})
}

// List returns all entries, most recently updated first.
func (b *Bolt) List(_ context.Context) ([]Entry, error) {
	var res []Entry
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(boltBucket)).ForEach(func(k, v []byte) error {
			var rec boltRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("failed to unmarshal %q: %w", k, err)
			}
			res = append(res, Entry{Key: string(k), Value: rec.Value, UpdatedAt: rec.UpdatedAt})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].UpdatedAt.After(res[j].UpdatedAt) })
	return res, nil
}

// Close closes the bolt database.
func (b *Bolt) Close() error {
	return b.db.Close()
}
