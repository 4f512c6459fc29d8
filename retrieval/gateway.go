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

// Package retrieval is the call boundary to the similarity index and to the
// corpus inventory sources.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/poiesic/lore/core"
	"github.com/poiesic/lore/storage"
)

// DefaultTopK is the number of passages retrieved per query.
const DefaultTopK = 4

// Searcher is the subset of storage.Index the gateway needs.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]storage.Match, error)
}

// Gateway turns index matches into scored passages.
type Gateway struct {
	index  Searcher
	topK   int
	logger *slog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithTopK sets the default number of passages.
func WithTopK(k int) Option {
	return func(g *Gateway) {
		if k > 0 {
			g.topK = k
		}
	}
}

// WithLogger sets the gateway logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger.With("component", "retrieval")
	}
}

// NewGateway creates a gateway over index. A nil index yields a gateway whose
// searches fail with core.ErrServiceNotInitialized.
func NewGateway(index Searcher, opts ...Option) *Gateway {
	g := &Gateway{
		index:  index,
		topK:   DefaultTopK,
		logger: slog.Default().With("component", "retrieval"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// TopK returns the default passage count.
func (g *Gateway) TopK() int {
	return g.topK
}

// Search returns up to k passages sorted by descending relevance, where
// relevance = round((1 - distance) * 100) / 100. A non-positive k uses the default.
func (g *Gateway) Search(ctx context.Context, query string, k int) ([]core.RetrievedChunk, error) {
	if g.index == nil {
		return nil, fmt.Errorf("%w: similarity index", core.ErrServiceNotInitialized)
	}
	if k <= 0 {
		k = g.topK
	}

	matches, err := g.index.Search(ctx, query, k)
	if err != nil {
		g.logger.Error("similarity search failed", "err", err)
		return nil, wrapSearchError(err)
	}

	chunks := make([]core.RetrievedChunk, 0, len(matches))
	for _, m := range matches {
		c := m.Chunk
		c.Relevance = Relevance(m.Distance)
		chunks = append(chunks, c)
	}
	slices.SortStableFunc(chunks, func(a, b core.RetrievedChunk) int {
		switch {
		case a.Relevance > b.Relevance:
			return -1
		case a.Relevance < b.Relevance:
			return 1
		}
		return 0
	})
	if len(chunks) > k {
		chunks = chunks[:k]
	}

	g.logger.Debug("retrieved passages", "count", len(chunks))
	return chunks, nil
}

// Relevance converts a distance into a two-decimal score in [0,1].
func Relevance(distance float64) float64 {
	r := math.Round((1-distance)*100) / 100
	return min(max(r, 0), 1)
}

func wrapSearchError(err error) error {
	switch {
	case errors.Is(err, core.ErrUpstream), errors.Is(err, core.ErrUpstreamTimeout),
		errors.Is(err, core.ErrServiceNotInitialized), errors.Is(err, core.ErrValidation):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", core.ErrUpstreamTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, storage.ErrStorageClosed):
		return fmt.Errorf("%w: %w", core.ErrServiceNotInitialized, err)
	default:
		return fmt.Errorf("%w: %w", core.ErrUpstream, err)
	}
}
