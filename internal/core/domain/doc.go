// Package domain defines the core business entities for Quaero.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: A normalised research document with metadata
//   - Chunk: A token-bounded searchable unit within a document
//   - PipelineState: Per-document ingestion stage completion
//   - Candidate: A query-scoped retrieval candidate with fused scores
//   - Passage: A citation-ready retrieval result
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
