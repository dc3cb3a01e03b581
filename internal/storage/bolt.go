// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// boltBucket holds every key of the local store.
var boltBucket = []byte("localStorage")

// BoltBackend stores values in a bbolt file. The database is opened for each
// operation and closed afterwards, so the file lock is only held briefly and
// other convo processes can read and write the same file.
type BoltBackend struct {
	path        string
	lockTimeout time.Duration
}

// NewBoltBackend prepares a bolt backend at path, creating the file and
// bucket if needed.
func NewBoltBackend(path string) (*BoltBackend, error) {
	if path == "" {
		return nil, fmt.Errorf("bolt backend: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	b := &BoltBackend{path: path, lockTimeout: time.Second}
	err := b.update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (b *BoltBackend) open() (*bolt.DB, error) {
	db, err := bolt.Open(b.path, 0o600, &bolt.Options{Timeout: b.lockTimeout})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", b.path, err)
	}
	return db, nil
}

func (b *BoltBackend) view(fn func(tx *bolt.Tx) error) error {
	db, err := b.open()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return db.View(fn)
}

func (b *BoltBackend) update(fn func(tx *bolt.Tx) error) error {
	db, err := b.open()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return db.Update(fn)
}

// Get implements KV.
func (b *BoltBackend) Get(key string) ([]byte, bool, error) {
	var out []byte
	var found bool
	err := b.view(func(tx *bolt.Tx) error {
		bk := tx.Bucket(boltBucket)
		if bk == nil {
			return nil
		}
		if v := bk.Get([]byte(key)); v != nil {
			// v is only valid inside the transaction
			out = append([]byte(nil), v...)
			found = true
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, found, nil
}

// Set implements KV.
func (b *BoltBackend) Set(key string, value []byte) error {
	return b.update(func(tx *bolt.Tx) error {
		bk, err := tx.CreateBucketIfNotExists(boltBucket)
		if err != nil {
			return err
		}
		return bk.Put([]byte(key), value)
	})
}

// Remove implements Backend.
func (b *BoltBackend) Remove(key string) error {
	return b.update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(boltBucket)
		if bk == nil {
			return nil
		}
		return bk.Delete([]byte(key))
	})
}

// Keys implements Backend. bbolt iterates in byte order.
func (b *BoltBackend) Keys() ([]string, error) {
	var keys []string
	err := b.view(func(tx *bolt.Tx) error {
		bk := tx.Bucket(boltBucket)
		if bk == nil {
			return nil
		}
		return bk.ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}

// Path implements Backend.
func (b *BoltBackend) Path() string { return b.path }

// Close implements Backend. Nothing is held open between operations.
func (b *BoltBackend) Close() error { return nil }
