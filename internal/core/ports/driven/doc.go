// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - DocumentSource: Enumerates and reads raw documents
//   - DocumentStore: Document and chunk persistence
//   - StateStore: Pipeline stage progress persistence
//   - ConfigStore: Application configuration
//   - EmbeddingService: Generates vector embeddings
//   - VectorStore: Vector storage and similarity search
//   - SparseIndex: Keyword relevance search. Always required alongside VectorStore.
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - LLMService: Language model operations. Without it, query expansion,
//     reranking, answer synthesis, and LLM metadata extraction are disabled.
//   - MetadataProvider: External bibliographic lookup (CrossRef). Without it,
//     metadata extraction falls back to heuristics alone.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
