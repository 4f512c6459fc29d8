package retrieval

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/poiesic/lore/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticInventory struct {
	docs  []core.DocumentInfo
	err   error
	calls int
}

func (s *staticInventory) Documents(ctx context.Context) ([]core.DocumentInfo, error) {
	s.calls++
	return s.docs, s.err
}

func TestHTTPInventory(t *testing.T) {
	t.Run("array body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[{"title":"One","url":"https://x.example/1","category":"crypto","chunks":3}]`))
		}))
		defer srv.Close()

		docs, err := NewHTTPInventory(srv.URL, nil).Documents(context.Background())
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "One", docs[0].Title)
		assert.Equal(t, 3, docs[0].Chunks)
	})

	t.Run("wrapped body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"articles":[{"title":"A"},{"title":"B"}]}`))
		}))
		defer srv.Close()

		docs, err := NewHTTPInventory(srv.URL, nil).Documents(context.Background())
		require.NoError(t, err)
		assert.Len(t, docs, 2)
	})

	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "down", http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := NewHTTPInventory(srv.URL, nil).Documents(context.Background())
		assert.Error(t, err)
	})
}

func TestSnapshotInventory_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap", "inventory.yaml")
	snap := NewSnapshotInventory(path)

	_, err := snap.Documents(context.Background())
	assert.Error(t, err, "missing file")

	docs := []core.DocumentInfo{{Title: "One", URL: "https://x.example/1", Category: "crypto", Chunks: 2}}
	require.NoError(t, snap.Save(docs))

	got, err := snap.Documents(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "One", got[0].Title)
	assert.Equal(t, 2, got[0].Chunks)
}

func TestChain(t *testing.T) {
	ctx := context.Background()
	one := []core.DocumentInfo{{Title: "One"}}

	t.Run("first success wins", func(t *testing.T) {
		live := &staticInventory{docs: one}
		snap := &staticInventory{docs: []core.DocumentInfo{{Title: "Stale"}}}
		docs, err := NewChain(nil, live, snap).Documents(ctx)
		require.NoError(t, err)
		assert.Equal(t, one, docs)
		assert.Equal(t, 0, snap.calls)
	})

	t.Run("falls back on failure", func(t *testing.T) {
		live := &staticInventory{err: errors.New("unreachable")}
		snap := &staticInventory{docs: one}
		docs, err := NewChain(nil, live, nil, snap).Documents(ctx)
		require.NoError(t, err)
		assert.Equal(t, one, docs)
	})

	t.Run("empty defers to next", func(t *testing.T) {
		docs, err := NewChain(nil, &staticInventory{}, &staticInventory{docs: one}).Documents(ctx)
		require.NoError(t, err)
		assert.Equal(t, one, docs)
	})

	t.Run("all empty is not an error", func(t *testing.T) {
		docs, err := NewChain(nil, &staticInventory{err: errors.New("x")}, &staticInventory{}).Documents(ctx)
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("total failure", func(t *testing.T) {
		_, err := NewChain(nil, &staticInventory{err: errors.New("a")}, &staticInventory{err: errors.New("b")}).Documents(ctx)
		assert.ErrorIs(t, err, ErrNoInventory)

		_, err = NewChain(nil).Documents(ctx)
		assert.ErrorIs(t, err, ErrNoInventory)
	})

	t.Run("index inventory without index", func(t *testing.T) {
		_, err := NewIndexInventory(nil).Documents(ctx)
		assert.ErrorIs(t, err, core.ErrServiceNotInitialized)
	})
}
