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

package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/lore/cache"
	"github.com/poiesic/lore/core"
	"github.com/poiesic/lore/storage"
	"github.com/tmc/langchaingo/textsplitter"
)

// Chunking and job defaults.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
	DefaultJobTimeout   = 60 * time.Second
)

// Indexer stores a document's chunks.
type Indexer interface {
	AddDocument(ctx context.Context, doc core.Document, chunks []string) ([]core.ID, error)
}

// Ingester fetches, chunks and indexes single articles.
type Ingester struct {
	fetcher    Fetcher
	index      Indexer
	cache      *cache.Cache
	splitter   textsplitter.TextSplitter
	jobTimeout time.Duration
	logger     *slog.Logger
}

// IngesterOption configures an Ingester.
type IngesterOption func(*Ingester) error

// WithDedupCache records ingested URLs in c and answers repeats from it.
func WithDedupCache(c *cache.Cache) IngesterOption {
	return func(i *Ingester) error {
		i.cache = c
		return nil
	}
}

// WithChunking sets the splitter chunk size and overlap, in characters.
func WithChunking(size, overlap int) IngesterOption {
	return func(i *Ingester) error {
		if size <= 0 || overlap < 0 || overlap >= size {
			return fmt.Errorf("%w: chunk size %d with overlap %d", core.ErrValidation, size, overlap)
		}
		i.splitter = newSplitter(size, overlap)
		return nil
	}
}

// WithJobTimeout bounds a single ingestion. Zero disables the bound.
func WithJobTimeout(d time.Duration) IngesterOption {
	return func(i *Ingester) error {
		i.jobTimeout = d
		return nil
	}
}

// WithIngesterLogger sets a custom logger.
func WithIngesterLogger(logger *slog.Logger) IngesterOption {
	return func(i *Ingester) error {
		if logger != nil {
			i.logger = logger.With("component", "ingester")
		}
		return nil
	}
}

func newSplitter(size, overlap int) textsplitter.TextSplitter {
	return textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
	)
}

// NewIngester creates an ingester over a fetcher and an index.
func NewIngester(fetcher Fetcher, index Indexer, opts ...IngesterOption) (*Ingester, error) {
	if fetcher == nil {
		return nil, ErrFetcherRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}
	i := &Ingester{
		fetcher:    fetcher,
		index:      index,
		splitter:   newSplitter(DefaultChunkSize, DefaultChunkOverlap),
		jobTimeout: DefaultJobTimeout,
		logger:     slog.Default().With("component", "ingester"),
	}
	for _, opt := range opts {
		if err := opt(i); err != nil {
			return nil, err
		}
	}
	return i, nil
}

// Ingest fetches url, splits its content and indexes the chunks. title, when
// not empty, overrides the page title. A URL already recorded in the dedup
// cache returns the recorded result without fetching.
func (i *Ingester) Ingest(ctx context.Context, url, title string) (*core.IngestResult, error) {
	url = strings.TrimSpace(url)
	if err := core.ValidateURL(url); err != nil {
		return nil, err
	}

	key := cache.ArticleKey(url)
	if i.cache != nil {
		if prev, ok := cache.GetValue[core.IngestResult](ctx, i.cache, core.IngestResultMUS, key); ok {
			i.logger.Debug("article already ingested", "url", url)
			return &prev, nil
		}
	}

	if i.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.jobTimeout)
		defer cancel()
	}

	page, err := i.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	if title = strings.TrimSpace(title); title == "" {
		title = page.Title
	}
	if title == "" {
		title = url
	}

	chunks, err := i.splitter.SplitText(page.Text)
	if err != nil {
		return nil, fmt.Errorf("%w: split %s: %w", core.ErrValidation, url, err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s produced no chunks", core.ErrValidation, url)
	}

	doc := core.Document{URL: url, Title: title, Category: page.Category, Content: page.Text}
	ids, err := i.index.AddDocument(ctx, doc, chunks)
	if err != nil {
		return nil, wrapIndexError(url, err)
	}

	result := core.IngestResult{
		URL:         url,
		Title:       title,
		Chunks:      len(ids),
		DocumentIDs: make([]string, len(ids)),
	}
	for n, id := range ids {
		result.DocumentIDs[n] = id.String()
	}

	if i.cache != nil {
		cache.SetValue[core.IngestResult](ctx, i.cache, core.IngestResultMUS, key, result, 0)
	}
	i.logger.Info("article ingested", "url", url, "title", title, "chunks", result.Chunks)
	return &result, nil
}

func wrapIndexError(url string, err error) error {
	switch {
	case errors.Is(err, storage.ErrStorageClosed):
		return fmt.Errorf("%w: indexing %s: %w", core.ErrServiceNotInitialized, url, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: indexing %s: %w", core.ErrUpstreamTimeout, url, err)
	default:
		return fmt.Errorf("indexing %s: %w", url, err)
	}
}
