package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoResults indicates a query matched no chunks at all.
	// Callers report this as an explicit empty-result condition
	// rather than fabricating an answer.
	ErrNoResults = errors.New("no matching passages")

	// ErrUnknownStage indicates an unrecognised pipeline stage name.
	ErrUnknownStage = errors.New("unknown pipeline stage")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// Features requiring it (expansion, reranking, synthesis) are disabled.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not
	// configured. Ingestion and dense retrieval cannot run without it.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorStoreUnavailable indicates the vector store is not
	// configured. This is fatal for both ingestion and retrieval.
	ErrVectorStoreUnavailable = errors.New("vector store unavailable")

	// ErrSparseIndexUnavailable indicates the keyword index is not
	// configured.
	ErrSparseIndexUnavailable = errors.New("sparse index unavailable")

	// ErrRateLimited indicates an upstream API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")
)
