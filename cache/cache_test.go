package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/lore/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingBackend struct{}

var errBackend = errors.New("connection refused")

func (failingBackend) Get(context.Context, string) ([]byte, bool, error) { return nil, false, errBackend }
func (failingBackend) Set(context.Context, string, []byte, time.Duration) error {
	return errBackend
}
func (failingBackend) Delete(context.Context, string) error { return errBackend }
func (failingBackend) Close() error                         { return nil }

func TestMemoryBackend_TTL(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mb := NewMemoryBackend().WithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, mb.Set(ctx, "chat:1", []byte("v"), time.Minute))

	v, ok, err := mb.Get(ctx, "chat:1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	now = now.Add(time.Minute)
	_, ok, _ = mb.Get(ctx, "chat:1")
	assert.True(t, ok, "entry is readable until now exceeds expiry")

	now = now.Add(time.Nanosecond)
	_, ok, _ = mb.Get(ctx, "chat:1")
	assert.False(t, ok)
	assert.Equal(t, 0, mb.Len(), "expired entry is deleted on read")
}

func TestMemoryBackend_SweepsExpiredOnWrite(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mb := NewMemoryBackend().WithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, mb.Set(ctx, "keep", []byte("v"), time.Hour))
	for i := 0; i < sweepEvery-2; i++ {
		require.NoError(t, mb.Set(ctx, fmt.Sprintf("chat:%d", i), []byte("v"), time.Minute))
	}
	assert.Equal(t, sweepEvery-1, mb.Len())

	now = now.Add(2 * time.Minute)
	require.NoError(t, mb.Set(ctx, "fresh", []byte("v"), time.Minute))
	assert.Equal(t, 2, mb.Len(), "expired entries are dropped without being read")

	_, ok, _ := mb.Get(ctx, "keep")
	assert.True(t, ok)
	_, ok, _ = mb.Get(ctx, "fresh")
	assert.True(t, ok)
}

func TestMemoryBackend_Concurrent(t *testing.T) {
	mb := NewMemoryBackend()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := ChatKey("q", string(rune('a'+i)))
			for j := 0; j < 100; j++ {
				_ = mb.Set(ctx, key, []byte{byte(j)}, time.Hour)
				_, _, _ = mb.Get(ctx, key)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 16, mb.Len())
}

func TestCache_SwallowsBackendErrors(t *testing.T) {
	c, err := New(failingBackend{}, ModePersistent)
	require.NoError(t, err)
	ctx := context.Background()

	assert.NotPanics(t, func() {
		c.Set(ctx, "chat:x", []byte("v"), 0)
		c.Delete(ctx, "chat:x")
	})
	_, ok := c.Get(ctx, "chat:x")
	assert.False(t, ok)
}

func TestCache_Options(t *testing.T) {
	_, err := New(nil, ModeMemory)
	assert.Error(t, err)

	_, err = New(NewMemoryBackend(), ModeMemory, WithTTL(0))
	assert.Error(t, err)

	_, err = New(NewMemoryBackend(), ModeMemory, WithLogger(nil))
	assert.Error(t, err)

	c, err := New(NewMemoryBackend(), ModeMemory, WithTTL(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, time.Hour, c.TTL())
	assert.Equal(t, ModeMemory, c.Mode())
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("persistent on success", func(t *testing.T) {
		persistent := NewMemoryBackend()
		c, err := Open(ctx, func(context.Context) (Backend, error) { return persistent, nil }, time.Second)
		require.NoError(t, err)
		assert.Equal(t, ModePersistent, c.Mode())

		c.Set(ctx, "chat:a", []byte("1"), 0)
		assert.Equal(t, 1, persistent.Len())
	})

	t.Run("memory on failure", func(t *testing.T) {
		c, err := Open(ctx, func(context.Context) (Backend, error) { return nil, errBackend }, time.Second)
		require.NoError(t, err)
		assert.Equal(t, ModeMemory, c.Mode())

		c.Set(ctx, "chat:a", []byte("1"), 0)
		v, ok := c.Get(ctx, "chat:a")
		assert.True(t, ok)
		assert.Equal(t, []byte("1"), v)
	})

	t.Run("memory when no opener", func(t *testing.T) {
		c, err := Open(ctx, nil, time.Second)
		require.NoError(t, err)
		assert.Equal(t, ModeMemory, c.Mode())
	})

	t.Run("memory on timeout", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)
		slow := func(ctx context.Context) (Backend, error) {
			<-release
			return NewMemoryBackend(), nil
		}

		start := time.Now()
		c, err := Open(ctx, slow, 50*time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, ModeMemory, c.Mode())
		assert.Less(t, time.Since(start), time.Second)
	})
}

func TestTypedValues(t *testing.T) {
	c, err := New(NewMemoryBackend(), ModeMemory)
	require.NoError(t, err)
	ctx := context.Background()

	resp := core.ChatResponse{ID: "r1", Message: "answer", ConversationID: "c1", Model: "m", CreatedAt: time.Unix(100, 0).UTC()}
	SetValue[core.ChatResponse](ctx, c, core.ChatResponseMUS, "chat:r1", resp, 0)

	got, ok := GetValue[core.ChatResponse](ctx, c, core.ChatResponseMUS, "chat:r1")
	require.True(t, ok)
	assert.Equal(t, "answer", got.Message)
	assert.Equal(t, resp.CreatedAt, got.CreatedAt)

	c.Set(ctx, "chat:bad", []byte{0xff}, 0)
	_, ok = GetValue[core.ChatResponse](ctx, c, core.ChatResponseMUS, "chat:bad")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "chat:bad")
	assert.False(t, ok, "undecodable entries are dropped")
}
