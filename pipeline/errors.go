package pipeline

import "errors"

var (
	// ErrRetrieverRequired is returned when no retriever is supplied.
	ErrRetrieverRequired = errors.New("retriever is required")

	// ErrGeneratorRequired is returned when no generator is supplied.
	ErrGeneratorRequired = errors.New("generator is required")
)
