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
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/lore/ai"
	"github.com/poiesic/lore/core"
	"github.com/poiesic/lore/storage"
)

var errClosed = storage.ErrStorageClosed

// Index implements storage.Index on BadgerDB. Chunks are ranked by brute
// force cosine similarity over unit-length vectors.
type Index struct {
	backend  *Backend
	embedder ai.Embedder
	logger   *slog.Logger
	now      func() time.Time
}

var _ storage.Index = (*Index)(nil)

// IndexOption configures an Index.
type IndexOption func(*Index)

// WithIndexLogger sets the index logger.
func WithIndexLogger(logger *slog.Logger) IndexOption {
	return func(i *Index) {
		i.logger = logger.With("component", "index")
	}
}

// NewIndex creates an Index storing into backend and embedding with embedder.
func NewIndex(backend *Backend, embedder ai.Embedder, opts ...IndexOption) (*Index, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	if embedder == nil {
		return nil, storage.ErrEmbedderRequired
	}
	idx := &Index{
		backend:  backend,
		embedder: embedder,
		logger:   slog.Default().With("component", "index"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx, nil
}

// Close closes the underlying backend.
func (i *Index) Close() error {
	return i.backend.Close()
}

// AddDocument embeds chunks and stores them with the document record in one
// transaction. Chunks previously stored for the same source are removed.
func (i *Index) AddDocument(ctx context.Context, doc core.Document, chunks []string) ([]core.ID, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: document has no chunks", storage.ErrInvalidQuery)
	}
	if doc.SourceID == 0 {
		doc.SourceID = core.IDFromContent(doc.URL)
	}

	vectors, err := i.embedder.EmbedTexts(ctx, chunks)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(chunks) {
		return nil, storage.ErrEmbeddingMismatch
	}

	ids := make([]core.ID, len(chunks))
	err = i.backend.WithTx(func(tx *badger.Txn) error {
		if err := i.deleteChunks(tx, doc.SourceID); err != nil {
			return err
		}

		for pos, content := range chunks {
			rec := &core.ChunkRecord{
				Id:       core.IDFromContent(fmt.Sprintf("%d:%d:%s", doc.SourceID, pos, content)),
				SourceID: doc.SourceID,
				Position: pos,
				Content:  content,
				Vector:   normalize(vectors[pos]),
			}
			ids[pos] = rec.Id
			if err := tx.Set(makeChunkKey(doc.SourceID, pos), storage.MarshalChunk(rec)); err != nil {
				return err
			}
		}

		info := &core.DocumentInfo{
			SourceID:   doc.SourceID,
			Title:      doc.Title,
			URL:        doc.URL,
			Category:   doc.Category,
			Chunks:     len(chunks),
			IngestedAt: i.now().UTC(),
		}
		if err := tx.Set(makeDocumentKey(doc.SourceID), storage.MarshalDocument(info)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}

	i.logger.Debug("indexed document", "url", doc.URL, "chunks", len(chunks))
	return ids, nil
}

func (i *Index) deleteChunks(tx *badger.Txn, sourceID core.ID) error {
	var stale [][]byte
	err := i.backend.scanPrefix(tx, makePartialChunkKey(sourceID), func(key, _ []byte) error {
		stale = append(stale, key)
		return nil
	})
	if err != nil {
		return err
	}
	for _, key := range stale {
		if err := tx.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// Search embeds query and returns the k closest chunks.
func (i *Index) Search(ctx context.Context, query string, k int) ([]storage.Match, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive", storage.ErrInvalidQuery)
	}

	vector, err := i.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, err
	}
	vector = normalize(vector)

	type scored struct {
		rec *core.ChunkRecord
		sim float32
	}
	var hits []scored
	docs := make(map[core.ID]*core.DocumentInfo)

	err = i.backend.WithTx(func(tx *badger.Txn) error {
		err := i.backend.scanPrefix(tx, []byte(chunkPrefix), func(_, val []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec, err := storage.UnmarshalChunk(val)
			if err != nil {
				return err
			}
			if len(rec.Vector) == 0 {
				return nil
			}
			hits = append(hits, scored{rec: rec, sim: dotProduct(vector, rec.Vector)})
			return nil
		})
		if err != nil {
			return err
		}

		slices.SortStableFunc(hits, func(a, b scored) int {
			switch {
			case a.sim > b.sim:
				return -1
			case a.sim < b.sim:
				return 1
			}
			return 0
		})
		if len(hits) > k {
			hits = hits[:k]
		}

		for _, h := range hits {
			if _, ok := docs[h.rec.SourceID]; ok {
				continue
			}
			info, err := readDocument(tx, h.rec.SourceID)
			if err != nil {
				return err
			}
			docs[h.rec.SourceID] = info
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	matches := make([]storage.Match, 0, len(hits))
	for _, h := range hits {
		chunk := core.RetrievedChunk{
			SourceID: h.rec.SourceID,
			Content:  h.rec.Content,
			Position: h.rec.Position,
		}
		if info := docs[h.rec.SourceID]; info != nil {
			chunk.Title = info.Title
			chunk.URL = info.URL
			chunk.Category = info.Category
		}
		matches = append(matches, storage.Match{Chunk: chunk, Distance: 1 - float64(h.sim)})
	}
	return matches, nil
}

func readDocument(tx *badger.Txn, id core.ID) (*core.DocumentInfo, error) {
	item, err := tx.Get(makeDocumentKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var info *core.DocumentInfo
	err = item.Value(func(val []byte) error {
		var err error
		info, err = storage.UnmarshalDocument(val)
		return err
	})
	return info, err
}

// Documents lists stored documents, most recently ingested first.
func (i *Index) Documents(ctx context.Context) ([]core.DocumentInfo, error) {
	var docs []core.DocumentInfo
	err := i.backend.WithTx(func(tx *badger.Txn) error {
		return i.backend.scanPrefix(tx, []byte(documentPrefix), func(_, val []byte) error {
			info, err := storage.UnmarshalDocument(val)
			if err != nil {
				return err
			}
			docs = append(docs, *info)
			return nil
		})
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(docs, func(a, b core.DocumentInfo) int {
		return b.IngestedAt.Compare(a.IngestedAt)
	})
	return docs, nil
}

// Stats counts documents and chunks, grouped by category and source host.
func (i *Index) Stats(ctx context.Context) (core.CorpusStats, error) {
	stats := core.CorpusStats{
		Categories: make(map[string]int),
		Sources:    make(map[string]int),
	}

	docs, err := i.Documents(ctx)
	if err != nil {
		return stats, err
	}
	for _, d := range docs {
		stats.Documents++
		stats.Chunks += d.Chunks
		if d.Category != "" {
			stats.Categories[d.Category]++
		}
		if u, err := url.Parse(d.URL); err == nil && u.Host != "" {
			stats.Sources[u.Host]++
		}
	}
	return stats, nil
}

// normalize scales v to unit length. Zero vectors are returned unchanged.
func normalize(v []float32) []float32 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return v
	}
	norm := float32(1 / math.Sqrt(sumSquares))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x * norm
	}
	return out
}
