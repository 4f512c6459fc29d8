package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value  []byte
	expiry time.Time
}

// sweepEvery is the number of writes between sweeps of expired entries.
const sweepEvery = 256

// MemoryBackend is an in-process Backend. Entries expire lazily: a Get on an
// expired entry deletes it and reports a miss. Every sweepEvery writes, Set
// also drops all expired entries, so unread keys cannot accumulate past one TTL.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	writes  int
	now     func() time.Time
}

// NewMemoryBackend creates an empty in-process backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// WithClock replaces the backend's time source.
func (m *MemoryBackend) WithClock(now func() time.Time) *MemoryBackend {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	return m
}

func (m *MemoryBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if m.now().After(e.expiry) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (m *MemoryBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.writes++
	if m.writes >= sweepEvery {
		m.writes = 0
		for k, e := range m.entries {
			if now.After(e.expiry) {
				delete(m.entries, k)
			}
		}
	}
	m.entries[key] = memoryEntry{
		value:  append([]byte(nil), value...),
		expiry: now.Add(ttl),
	}
	return nil
}

func (m *MemoryBackend) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Len returns the number of stored entries, expired or not.
func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]memoryEntry)
	return nil
}
