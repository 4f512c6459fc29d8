package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator composes answers from a prompt conversation.
// Implementations must be thread-safe for concurrent use.
type Generator interface {
	// Generate returns the whole answer once the model has finished.
	// Failures wrap core.ErrUpstream or core.ErrUpstreamTimeout.
	Generate(ctx context.Context, messages []Message) (*Generation, error)

	// GenerateStream starts a generation and returns its fragments in emission
	// order. The channel is closed after the last fragment. A failure is
	// delivered as a final Fragment with Err set. Cancelling ctx stops the
	// producer; the channel is still closed.
	GenerateStream(ctx context.Context, messages []Message) (<-chan Fragment, error)

	// Model is the identifier reported in responses.
	Model() string
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Generator returns the answer generation service.
	Generator() Generator

	// Close releases resources held by the provider and its services.
	Close() error
}
