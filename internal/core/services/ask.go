package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/quaero-cli/internal/core/domain"
	"github.com/custodia-labs/quaero-cli/internal/core/ports/driven"
	"github.com/custodia-labs/quaero-cli/internal/core/ports/driving"
	"github.com/custodia-labs/quaero-cli/internal/logger"
	"github.com/custodia-labs/quaero-cli/internal/retry"
)

// Ensure AskService implements the interface.
var _ driving.AskService = (*AskService)(nil)

// synthesisPrompt builds the cited answer from retrieved passages.
const synthesisPrompt = `You are a helpful AI assistant specializing in battery research.
Answer the following question based on the provided research paper excerpts.

Important instructions:
- Cite your sources by referring to the passage number (e.g., "According to Passage 1...")
- If the information isn't in the provided excerpts, say so clearly
- Be specific and technical when appropriate
- If multiple papers discuss the same topic, mention all relevant sources

Context from research papers:

%s

---

Question: %s

Please provide a detailed answer with citations:`

const synthesisMaxTokens = 2000

// Retriever produces ranked candidates for a query. Implemented by
// RetrieverService.
type Retriever interface {
	Retrieve(ctx context.Context, query string, opts domain.RetrievalOptions) ([]domain.Candidate, error)
}

// AskService orchestrates the query path: expansion, hybrid retrieval,
// reranking, and answer synthesis.
type AskService struct {
	retriever   Retriever
	llm         driven.LLMService
	retryPolicy retry.Policy
}

// NewAskService creates a new ask service.
// The llm parameter is optional (can be nil); without it, expansion and
// reranking are skipped and Ask returns domain.ErrLLMUnavailable.
func NewAskService(retriever Retriever, llm driven.LLMService) *AskService {
	return &AskService{
		retriever:   retriever,
		llm:         llm,
		retryPolicy: retry.DefaultPolicy(),
	}
}

// SetRetryPolicy overrides the backoff schedule for outbound calls.
func (s *AskService) SetRetryPolicy(p retry.Policy) {
	s.retryPolicy = p
}

// Retrieve runs the query path up to ranked passages, without synthesis.
// The returned list has at most top_k entries, each carrying provenance
// for citation.
func (s *AskService) Retrieve(
	ctx context.Context, question string, opts domain.RetrievalOptions,
) ([]domain.Passage, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("retrieve: %w: empty question", domain.ErrInvalidInput)
	}

	query := question
	if opts.ExpandQuery {
		// Expansion feeds retrieval only; reranking and synthesis always
		// see the original question.
		query = s.expandQuery(ctx, question).Query
	}

	candidates, err := s.retriever.Retrieve(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	topK := opts.EffectiveTopK()
	if opts.Rerank {
		candidates = s.rerank(ctx, question, candidates, topK)
	} else if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	passages := make([]domain.Passage, len(candidates))
	for i, c := range candidates {
		passages[i] = domain.Passage{
			DocumentID: c.Chunk.DocumentID,
			ChunkID:    c.Chunk.ID,
			Ordinal:    c.Chunk.Ordinal,
			Title:      c.Chunk.Metadata.Title,
			Text:       c.Chunk.Text,
			Score:      c.Fused,
		}
	}
	return passages, nil
}

// Ask retrieves passages and synthesises a cited answer.
// Returns domain.ErrNoResults when the corpus yields nothing, rather
// than fabricating an answer from thin air.
func (s *AskService) Ask(
	ctx context.Context, question string, opts domain.RetrievalOptions,
) (*domain.Answer, error) {
	if s.llm == nil {
		return nil, fmt.Errorf("ask: %w", domain.ErrLLMUnavailable)
	}

	passages, err := s.Retrieve(ctx, question, opts)
	if err != nil {
		return nil, err
	}
	if len(passages) == 0 {
		return nil, fmt.Errorf("ask: %w", domain.ErrNoResults)
	}

	logger.Section("Answer Synthesis")
	logger.Debug("Synthesising from %d passages", len(passages))

	prompt := sprintfPrompt(synthesisPrompt, passageContext(passages), question)
	text, err := retry.DoValue(ctx, s.retryPolicy, "synthesise answer", func() (string, error) {
		return s.llm.Complete(ctx, prompt, completeOpts(synthesisMaxTokens))
	})
	if err != nil {
		return nil, fmt.Errorf("synthesise answer: %w", err)
	}

	return &domain.Answer{
		Text:     strings.TrimSpace(text),
		Passages: passages,
	}, nil
}

// passageContext renders passages as numbered, separated blocks with
// their provenance, matching the citation scheme in the prompt.
func passageContext(passages []domain.Passage) string {
	parts := make([]string, len(passages))
	for i, p := range passages {
		title := p.Title
		if title == "" {
			title = p.DocumentID
		}
		parts[i] = fmt.Sprintf("[Passage %d: %s, chunk %d]\n%s", i+1, title, p.Ordinal, p.Text)
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// sprintfPrompt fills a prompt template.
func sprintfPrompt(template string, args ...any) string {
	return fmt.Sprintf(template, args...)
}

// completeOpts returns the deterministic completion settings used for
// every pipeline call.
func completeOpts(maxTokens int) driven.CompleteOptions {
	return driven.CompleteOptions{
		MaxTokens:   maxTokens,
		Temperature: 0,
	}
}
