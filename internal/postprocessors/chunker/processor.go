// Package chunker provides a token-window text chunking processor.
package chunker

import (
	"context"
	"strings"

	"github.com/custodia-labs/quaero-cli/internal/core/domain"
)

// DefaultChunkSize is the default number of tokens per chunk.
const DefaultChunkSize = 600

// DefaultChunkOverlap is the default number of overlapping tokens
// between consecutive chunks.
const DefaultChunkOverlap = 100

// Processor splits document text into overlapping token windows.
// Tokens are whitespace-delimited words. Chunking is deterministic:
// the same text always yields the same chunks with the same IDs.
// It implements the PostProcessor interface.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in tokens.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in tokens.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Overlap must leave forward progress on every step.
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Process splits the document text into chunks.
// Input chunks are ignored; this processor creates new chunks from document text.
func (p *Processor) Process(ctx context.Context, doc *domain.Document, _ []domain.Chunk) ([]domain.Chunk, error) {
	tokens := strings.Fields(doc.Text)
	if len(tokens) == 0 {
		// Empty or whitespace-only text produces no chunks.
		return nil, nil
	}

	step := p.chunkSize - p.overlap
	estimatedChunks := (len(tokens) / step) + 1
	chunks := make([]domain.Chunk, 0, estimatedChunks)

	ordinal := 0
	for start := 0; start < len(tokens); start += step {
		end := start + p.chunkSize
		if end > len(tokens) {
			end = len(tokens)
		}

		window := tokens[start:end]
		chunks = append(chunks, domain.Chunk{
			ID:         domain.ChunkID(doc.ID, ordinal),
			DocumentID: doc.ID,
			Ordinal:    ordinal,
			Text:       strings.Join(window, " "),
			TokenCount: len(window),
			Metadata:   doc.Metadata,
		})
		ordinal++

		// The final window reaches the end of the text; a shorter
		// trailing remainder would be fully covered by the overlap.
		if end == len(tokens) {
			break
		}
	}

	return chunks, nil
}
