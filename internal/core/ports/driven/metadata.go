package driven

import (
	"context"

	"github.com/custodia-labs/quaero-cli/internal/core/domain"
)

// MetadataProvider looks up bibliographic metadata from an external
// registry. This is an optional service - when nil, metadata extraction
// relies on document heuristics and the LLM alone.
//
// Implementations may include:
//   - CrossRef (DOI and title lookup)
type MetadataProvider interface {
	// LookupDOI retrieves metadata for a known DOI.
	// Returns domain.ErrNotFound when the registry has no record.
	LookupDOI(ctx context.Context, doi string) (domain.Metadata, error)

	// SearchTitle retrieves metadata for the best title match.
	// Returns domain.ErrNotFound when nothing matches confidently.
	SearchTitle(ctx context.Context, title string) (domain.Metadata, error)
}
