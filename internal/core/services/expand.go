package services

import (
	"context"
	"strings"

	"github.com/custodia-labs/quaero-cli/internal/core/domain"
	"github.com/custodia-labs/quaero-cli/internal/logger"
	"github.com/custodia-labs/quaero-cli/internal/retry"
)

// expandPrompt instructs the model to widen a question with related
// technical vocabulary. The response is used verbatim as the retrieval
// query, so the instruction forbids commentary.
const expandPrompt = `You are a research librarian for battery science literature.
Rewrite the following question as a search query by adding related technical terms:
synonyms, standard abbreviations, and domain jargon that papers on this topic would use.
Keep every term from the original question. Return ONLY the expanded query text,
with no explanation and no quotation marks.

Question: %s

Expanded query:`

const expandMaxTokens = 300

// expandQuery asks the LLM to widen the question with related technical
// vocabulary. Expansion is a quality enhancement, never a hard
// dependency: any failure returns the original question unchanged.
func (s *AskService) expandQuery(ctx context.Context, question string) domain.ExpandedQuery {
	original := domain.ExpandedQuery{Query: question}
	if s.llm == nil {
		logger.Debug("LLM unavailable, skipping query expansion")
		return original
	}

	logger.Debug("Expanding query: %q", question)
	raw, err := retry.DoValue(ctx, s.retryPolicy, "expand query", func() (string, error) {
		return s.llm.Complete(ctx, sprintfPrompt(expandPrompt, question), completeOpts(expandMaxTokens))
	})
	if err != nil {
		logger.Warn("Query expansion failed, using original question: %v", err)
		return original
	}

	expanded := strings.TrimSpace(raw)
	if expanded == "" {
		logger.Warn("Query expansion returned empty text, using original question")
		return original
	}

	logger.Info("Expanded query: %q", expanded)
	return domain.ExpandedQuery{Query: expanded, Expanded: true}
}
