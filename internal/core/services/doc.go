// Package services implements the core business logic for Quaero.
//
// Services implement the driving ports and depend only on domain types
// and driven port interfaces. They contain:
//
//   - IngestService: the staged, resumable ingestion pipeline
//   - RetrieverService: hybrid dense + sparse retrieval with score fusion
//   - AskService: query expansion, reranking, and answer synthesis
//
// # Import Rules
//
//   - Can Import: domain, ports/driven, ports/driving, logger, retry
//   - Cannot Import: Any adapter package
package services
