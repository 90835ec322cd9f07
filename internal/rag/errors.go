package rag

import "errors"

// Retrieval error taxonomy. Callers distinguish dependency failures from
// caller errors with errors.Is; an empty result set is never an error.
var (
	// ErrInvalidQuery is returned when the query is empty after trimming.
	// This is a caller error — do not retry.
	ErrInvalidQuery = errors.New("rag: query must not be empty")

	// ErrEmbeddingUnavailable is returned when the embedding provider fails.
	// Retry policy belongs to the caller, not this package.
	ErrEmbeddingUnavailable = errors.New("rag: embedding provider unavailable")

	// ErrEmbeddingTimeout is returned when the embedding call exceeds its
	// configured timeout.
	ErrEmbeddingTimeout = errors.New("rag: embedding call timed out")

	// ErrIndexUnavailable is returned when the vector index fails.
	ErrIndexUnavailable = errors.New("rag: vector index unavailable")

	// ErrIndexTimeout is returned when the vector search exceeds its
	// configured timeout.
	ErrIndexTimeout = errors.New("rag: vector search timed out")
)
