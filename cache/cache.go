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

package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/lore/core"
)

// DefaultTTL is the lifetime of chat and article entries.
const DefaultTTL = 24 * time.Hour

// DefaultConnectTimeout bounds the persistent backend probe in Open.
const DefaultConnectTimeout = 5 * time.Second

// Backend is a key/value store with per-entry expiry.
// A Get after expiry must report a miss.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Mode reports which backend a Cache settled on.
type Mode string

const (
	ModePersistent Mode = "persistent"
	ModeMemory     Mode = "memory"
)

// Cache wraps a Backend chosen once at start. Backend failures are logged and
// reported to callers as misses or no-ops; they never fail the caller.
type Cache struct {
	backend Backend
	mode    Mode
	ttl     time.Duration
	logger  *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache) error

// WithLogger sets the cache logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		c.logger = logger.With("component", "cache")
		return nil
	}
}

// WithTTL sets the default entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) error {
		if ttl <= 0 {
			return fmt.Errorf("ttl must be positive, got %s", ttl)
		}
		c.ttl = ttl
		return nil
	}
}

// New wraps backend in a Cache reporting the given mode.
func New(backend Backend, mode Mode, opts ...Option) (*Cache, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	c := &Cache{
		backend: backend,
		mode:    mode,
		ttl:     DefaultTTL,
		logger:  slog.Default().With("component", "cache"),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Opener connects to a persistent backend.
type Opener func(ctx context.Context) (Backend, error)

// Open tries the persistent backend once, bounded by timeout. On success the
// cache uses it for its lifetime; on failure it falls back to an in-process
// backend for its lifetime. No reconnection is attempted.
func Open(ctx context.Context, open Opener, timeout time.Duration, opts ...Option) (*Cache, error) {
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	backend, err := probe(ctx, open, timeout)
	if err == nil {
		return New(backend, ModePersistent, opts...)
	}

	c, cerr := New(NewMemoryBackend(), ModeMemory, opts...)
	if cerr != nil {
		return nil, cerr
	}
	c.logger.Warn("persistent cache unavailable, using in-process cache", "err", err)
	return c, nil
}

func probe(ctx context.Context, open Opener, timeout time.Duration) (Backend, error) {
	if open == nil {
		return nil, errors.New("no persistent backend configured")
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		backend Backend
		err     error
	}
	done := make(chan result, 1)
	go func() {
		b, err := open(ctx)
		done <- result{b, err}
	}()

	select {
	case r := <-done:
		if r.err == nil && r.backend == nil {
			return nil, errors.New("opener returned no backend")
		}
		return r.backend, r.err
	case <-ctx.Done():
		// A late success must not leak the backend.
		go func() {
			if r := <-done; r.backend != nil {
				r.backend.Close()
			}
		}()
		return nil, fmt.Errorf("connecting to persistent cache: %w", ctx.Err())
	}
}

// Mode returns the backend the cache settled on.
func (c *Cache) Mode() Mode {
	return c.mode
}

// TTL returns the default entry lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns the value under key. Any backend failure is a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	value, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache get failed", "key", key, "err", fmt.Errorf("%w: %w", core.ErrCache, err))
		return nil, false
	}
	return value, ok
}

// Set stores value under key. A non-positive ttl uses the default.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	if err := c.backend.Set(ctx, key, value, ttl); err != nil {
		c.logger.Warn("cache set failed", "key", key, "err", fmt.Errorf("%w: %w", core.ErrCache, err))
	}
}

// Delete removes key.
func (c *Cache) Delete(ctx context.Context, key string) {
	if err := c.backend.Delete(ctx, key); err != nil {
		c.logger.Warn("cache delete failed", "key", key, "err", fmt.Errorf("%w: %w", core.ErrCache, err))
	}
}

// Close releases the backend.
func (c *Cache) Close() error {
	return c.backend.Close()
}

// Codec converts a value to and from bytes. The mus serializers in core satisfy it.
type Codec[T any] interface {
	Size(v T) int
	Marshal(v T, bs []byte) int
	Unmarshal(bs []byte) (T, int, error)
}

// GetValue decodes the value under key with codec. Decode failures are misses.
func GetValue[T any](ctx context.Context, c *Cache, codec Codec[T], key string) (T, bool) {
	var zero T
	raw, ok := c.Get(ctx, key)
	if !ok {
		return zero, false
	}
	v, _, err := codec.Unmarshal(raw)
	if err != nil {
		c.logger.Warn("cache entry undecodable", "key", key, "err", fmt.Errorf("%w: %w", core.ErrCache, err))
		c.Delete(ctx, key)
		return zero, false
	}
	return v, true
}

// SetValue encodes v with codec and stores it under key.
func SetValue[T any](ctx context.Context, c *Cache, codec Codec[T], key string, v T, ttl time.Duration) {
	buf := make([]byte, codec.Size(v))
	codec.Marshal(v, buf)
	c.Set(ctx, key, buf, ttl)
}
