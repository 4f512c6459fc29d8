// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// CacheStore is a key/value store with per-entry TTL, backed by BadgerDB's
// native entry expiry. It satisfies cache.Backend.
type CacheStore struct {
	backend *Backend
}

// NewCacheStore creates a CacheStore on backend. The store owns the backend.
func NewCacheStore(backend *Backend) *CacheStore {
	return &CacheStore{backend: backend}
}

// OpenCacheStore opens a dedicated BadgerDB at dir for caching.
func OpenCacheStore(dir string) (*CacheStore, error) {
	backend, err := OpenBackend(dir, false)
	if err != nil {
		return nil, err
	}
	return NewCacheStore(backend), nil
}

// Get returns the value stored under key. Expired entries are never returned.
func (c *CacheStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeCacheKey(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	}, false)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set stores value under key for ttl.
func (c *CacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.backend.WithTx(func(tx *badger.Txn) error {
		entry := badger.NewEntry(makeCacheKey(key), value).WithTTL(ttl)
		if err := tx.SetEntry(entry); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Delete removes key. Deleting a missing key is not an error.
func (c *CacheStore) Delete(ctx context.Context, key string) error {
	return c.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeCacheKey(key)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Close closes the underlying backend.
func (c *CacheStore) Close() error {
	return c.backend.Close()
}
