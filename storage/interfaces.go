package storage

import (
	"context"

	"github.com/poiesic/lore/core"
)

// Match is one similarity search hit. Distance is 1 - cosine similarity,
// so 0 is identical and 2 is opposite. Chunk.Relevance is left for the caller.
type Match struct {
	Chunk    core.RetrievedChunk
	Distance float64
}

// Index stores chunked documents and ranks chunks by similarity to a query.
// Implementations must be thread-safe and support concurrent access.
type Index interface {
	// AddDocument embeds and stores the chunks of doc, replacing any chunks
	// previously stored for doc.SourceID. Returns the chunk IDs in order.
	AddDocument(ctx context.Context, doc core.Document, chunks []string) ([]core.ID, error)

	// Search returns up to k matches ordered by ascending distance.
	Search(ctx context.Context, query string, k int) ([]Match, error)

	// Stats summarizes the stored corpus.
	Stats(ctx context.Context) (core.CorpusStats, error)

	// Documents lists every stored document, most recently ingested first.
	Documents(ctx context.Context) ([]core.DocumentInfo, error)

	// Close releases resources held by the index.
	Close() error
}
