// Package bleve provides a sparse keyword index adapter backed by Bleve.
package bleve

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve"
	"github.com/blevesearch/bleve/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/mapping"

	"github.com/custodia-labs/quaero-cli/internal/core/domain"
	"github.com/custodia-labs/quaero-cli/internal/core/ports/driven"
)

// Ensure SparseIndex implements the interface.
var _ driven.SparseIndex = (*SparseIndex)(nil)

// SparseIndex scores chunks against keyword queries using Bleve's
// tf-idf relevance. Chunk text is analysed with the standard analyzer;
// metadata fields are indexed verbatim so filters match exactly.
type SparseIndex struct {
	index bleve.Index
}

// indexedChunk is the document shape stored in the index.
type indexedChunk struct {
	DocumentID string   `json:"document_id"`
	Text       string   `json:"text"`
	Title      string   `json:"title"`
	Tags       []string `json:"tags"`
	Venue      string   `json:"venue"`
	Year       string   `json:"year"`
	PaperType  string   `json:"paper_type"`
}

// buildMapping maps text for relevance scoring and metadata for exact
// filtering.
func buildMapping() *mapping.IndexMappingImpl {
	exact := bleve.NewTextFieldMapping()
	exact.Analyzer = keyword.Name

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("text", bleve.NewTextFieldMapping())
	doc.AddFieldMappingsAt("title", bleve.NewTextFieldMapping())
	doc.AddFieldMappingsAt("document_id", exact)
	doc.AddFieldMappingsAt("tags", exact)
	doc.AddFieldMappingsAt("venue", exact)
	doc.AddFieldMappingsAt("year", exact)
	doc.AddFieldMappingsAt("paper_type", exact)

	mapping := bleve.NewIndexMapping()
	mapping.DefaultMapping = doc
	return mapping
}

// New opens or creates a persistent sparse index at path.
func New(path string) (*SparseIndex, error) {
	index, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		index, err = bleve.New(path, buildMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("bleve: open index: %w", err)
	}
	return &SparseIndex{index: index}, nil
}

// NewMemOnly creates an in-memory sparse index. Useful for tests.
func NewMemOnly() (*SparseIndex, error) {
	index, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return nil, fmt.Errorf("bleve: create index: %w", err)
	}
	return &SparseIndex{index: index}, nil
}

func toIndexed(chunk domain.Chunk) indexedChunk {
	tags := make([]string, len(chunk.Metadata.Tags))
	for i, t := range chunk.Metadata.Tags {
		tags[i] = strings.ToLower(t)
	}
	return indexedChunk{
		DocumentID: chunk.DocumentID,
		Text:       chunk.Text,
		Title:      chunk.Metadata.Title,
		Tags:       tags,
		Venue:      chunk.Metadata.Venue,
		Year:       chunk.Metadata.Year,
		PaperType:  chunk.Metadata.PaperType,
	}
}

// Index adds or replaces a chunk in the keyword index.
func (s *SparseIndex) Index(_ context.Context, chunk domain.Chunk) error {
	if err := s.index.Index(chunk.ID, toIndexed(chunk)); err != nil {
		return fmt.Errorf("bleve: index chunk %s: %w", chunk.ID, err)
	}
	return nil
}

// IndexBatch adds or replaces multiple chunks in one batch write.
func (s *SparseIndex) IndexBatch(_ context.Context, chunks []domain.Chunk) error {
	batch := s.index.NewBatch()
	for _, chunk := range chunks {
		if err := batch.Index(chunk.ID, toIndexed(chunk)); err != nil {
			return fmt.Errorf("bleve: batch chunk %s: %w", chunk.ID, err)
		}
	}
	if err := s.index.Batch(batch); err != nil {
		return fmt.Errorf("bleve: apply batch: %w", err)
	}
	return nil
}

// Delete removes a chunk from the index.
func (s *SparseIndex) Delete(_ context.Context, chunkID string) error {
	if err := s.index.Delete(chunkID); err != nil {
		return fmt.Errorf("bleve: delete chunk %s: %w", chunkID, err)
	}
	return nil
}

// DeleteByDocument removes all chunks belonging to a document.
func (s *SparseIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	total, err := s.index.DocCount()
	if err != nil {
		return fmt.Errorf("bleve: doc count: %w", err)
	}
	if total == 0 {
		return nil
	}

	q := bleve.NewTermQuery(documentID)
	q.SetField("document_id")
	req := bleve.NewSearchRequestOptions(q, int(total), 0, false)

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return fmt.Errorf("bleve: find document chunks: %w", err)
	}

	batch := s.index.NewBatch()
	for _, hit := range res.Hits {
		batch.Delete(hit.ID)
	}
	if err := s.index.Batch(batch); err != nil {
		return fmt.Errorf("bleve: delete document %s: %w", documentID, err)
	}
	return nil
}

// Search returns the k most relevant chunks for the query text.
func (s *SparseIndex) Search(
	ctx context.Context, queryText string, k int, filter *domain.Filter,
) ([]driven.SparseHit, error) {
	match := bleve.NewMatchQuery(queryText)
	match.SetField("text")

	finalQuery := bleve.NewConjunctionQuery(match)
	if filter != nil {
		if filter.Tag != "" {
			q := bleve.NewTermQuery(strings.ToLower(filter.Tag))
			q.SetField("tags")
			finalQuery.AddQuery(q)
		}
		if filter.Venue != "" {
			q := bleve.NewTermQuery(filter.Venue)
			q.SetField("venue")
			finalQuery.AddQuery(q)
		}
		if filter.Year != "" {
			q := bleve.NewTermQuery(filter.Year)
			q.SetField("year")
			finalQuery.AddQuery(q)
		}
		if filter.PaperType != "" {
			q := bleve.NewTermQuery(filter.PaperType)
			q.SetField("paper_type")
			finalQuery.AddQuery(q)
		}
	}

	req := bleve.NewSearchRequestOptions(finalQuery, k, 0, false)
	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve: search: %w", err)
	}

	hits := make([]driven.SparseHit, len(res.Hits))
	for i, hit := range res.Hits {
		hits[i] = driven.SparseHit{
			ChunkID: hit.ID,
			Score:   hit.Score,
		}
	}
	return hits, nil
}

// Count returns the number of indexed chunks.
func (s *SparseIndex) Count(_ context.Context) (int, error) {
	n, err := s.index.DocCount()
	if err != nil {
		return 0, fmt.Errorf("bleve: doc count: %w", err)
	}
	return int(n), nil
}

// Close releases index resources.
func (s *SparseIndex) Close() error {
	return s.index.Close()
}
