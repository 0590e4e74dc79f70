package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Document represents a normalised research document ready for ingestion.
// Producing normalised text from arbitrary source formats (PDF extraction,
// HTML stripping) is the responsibility of the document source; the core
// only ever sees plain text.
type Document struct {
	// ID is the stable identifier, derived from the source filename
	// or from a content hash when no filename is available.
	ID string

	// Text is the full normalised text content before chunking.
	Text string

	// Metadata describes the paper. It may be enriched after chunking;
	// enrichment is re-propagated to every chunk derived from the document.
	Metadata Metadata

	// CreatedAt is when the document was first ingested.
	CreatedAt time.Time

	// UpdatedAt is when the document was last updated.
	UpdatedAt time.Time
}

// Metadata holds the searchable attributes of a document. All fields are
// optional. Fields the core does not know by name pass through Extra
// undisturbed.
type Metadata struct {
	// Title is the paper title.
	Title string

	// Authors in "Last, First" form.
	Authors []string

	// Year of publication, four digits.
	Year string

	// Venue is the journal or conference, unabbreviated.
	Venue string

	// DOI is the digital object identifier, without URL prefix.
	DOI string

	// Tags are free-form domain keywords (chemistries, topics).
	Tags []string

	// PaperType classifies the paper (experimental, review, ...).
	PaperType string

	// Extra carries source-specific attributes the core does not interpret.
	Extra map[string]any
}

// Merge overlays non-empty fields of other onto a copy of m.
// Extra entries from other win on key collision.
func (m Metadata) Merge(other Metadata) Metadata {
	out := m
	if other.Title != "" {
		out.Title = other.Title
	}
	if len(other.Authors) > 0 {
		out.Authors = other.Authors
	}
	if other.Year != "" {
		out.Year = other.Year
	}
	if other.Venue != "" {
		out.Venue = other.Venue
	}
	if other.DOI != "" {
		out.DOI = other.DOI
	}
	if len(other.Tags) > 0 {
		out.Tags = other.Tags
	}
	if other.PaperType != "" {
		out.PaperType = other.PaperType
	}
	if len(other.Extra) > 0 {
		if out.Extra == nil {
			out.Extra = make(map[string]any, len(other.Extra))
		} else {
			merged := make(map[string]any, len(out.Extra)+len(other.Extra))
			for k, v := range out.Extra {
				merged[k] = v
			}
			out.Extra = merged
		}
		for k, v := range other.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// HasTag reports whether the metadata carries the given tag,
// compared case-insensitively.
func (m Metadata) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Chunk is a token-bounded span of a document's text, the atomic unit of
// retrieval. Chunk identifiers are deterministic so that re-chunking the
// same text yields the same IDs on every run.
type Chunk struct {
	// ID is the deterministic identifier: "<documentID>:<ordinal>".
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// Ordinal is the zero-based position within the document.
	Ordinal int

	// Text is the raw text span of this chunk.
	Text string

	// TokenCount is the number of tokens in Text.
	TokenCount int

	// Metadata is a denormalised copy of the parent document's metadata,
	// so filters apply at the chunk level without a join.
	Metadata Metadata
}

// ChunkID builds the deterministic chunk identifier for a document ordinal.
func ChunkID(documentID string, ordinal int) string {
	return fmt.Sprintf("%s:%d", documentID, ordinal)
}

// DocumentIDFromPath derives a stable document identifier from a source
// file path: the filename without extension.
func DocumentIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// DocumentIDFromContent derives a stable identifier from raw content,
// for sources without a meaningful filename.
func DocumentIDFromContent(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:12])
}
