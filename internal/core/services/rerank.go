package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/custodia-labs/quaero-cli/internal/core/domain"
	"github.com/custodia-labs/quaero-cli/internal/logger"
	"github.com/custodia-labs/quaero-cli/internal/retry"
)

// rerankPrompt asks the model for a relevance ordering over candidate
// previews. The parser only needs the index list, so the instruction
// pins the output format hard.
const rerankPrompt = `You are ranking passages from battery research papers by relevance to a question.

Question: %s

Passages:
%s

Return the passage numbers in order of relevance to the question, most relevant first,
as a comma-separated list (for example: 3, 1, 7, 2). Return ONLY the list.`

const (
	rerankMaxTokens     = 200
	rerankExcerptTokens = 60
)

// rerank asks the LLM to reorder candidates by relevance to the original
// question and truncates to topK. On any failure (call error, empty or
// unparsable response) it falls back to the fused-score ordering, so
// reranking never blocks answer generation.
func (s *AskService) rerank(
	ctx context.Context, question string, candidates []domain.Candidate, topK int,
) []domain.Candidate {
	if topK > len(candidates) {
		topK = len(candidates)
	}
	if s.llm == nil || len(candidates) <= 1 {
		return candidates[:topK]
	}

	logger.Debug("Reranking %d candidates to top %d", len(candidates), topK)

	raw, err := retry.DoValue(ctx, s.retryPolicy, "rerank", func() (string, error) {
		prompt := sprintfPrompt(rerankPrompt, question, candidatePreviews(candidates))
		return s.llm.Complete(ctx, prompt, completeOpts(rerankMaxTokens))
	})
	if err != nil {
		logger.Warn("Rerank call failed, keeping fused-score order: %v", err)
		return candidates[:topK]
	}

	order, ok := parseIndexList(raw, len(candidates))
	if !ok {
		logger.Warn("Rerank response unparsable (%q), keeping fused-score order", raw)
		return candidates[:topK]
	}

	reordered := make([]domain.Candidate, 0, len(candidates))
	used := make(map[int]bool, len(order))
	for _, idx := range order {
		reordered = append(reordered, candidates[idx])
		used[idx] = true
	}
	// Indices the model omitted keep their fused order after the ranked ones.
	for i, c := range candidates {
		if !used[i] {
			reordered = append(reordered, c)
		}
	}

	logger.Info("Reranked: model ordered %d of %d candidates", len(order), len(candidates))
	return reordered[:topK]
}

// candidatePreviews builds the numbered passage list for the rerank
// prompt: title plus a short excerpt per candidate.
func candidatePreviews(candidates []domain.Candidate) string {
	var b strings.Builder
	for i, c := range candidates {
		title := c.Chunk.Metadata.Title
		if title == "" {
			title = c.Chunk.DocumentID
		}
		fmt.Fprintf(&b, "[%d] %s: %s\n", i+1, title, excerpt(c.Chunk.Text, rerankExcerptTokens))
	}
	return b.String()
}

// excerpt returns the first n whitespace tokens of text.
func excerpt(text string, n int) string {
	tokens := strings.Fields(text)
	if len(tokens) > n {
		tokens = tokens[:n]
	}
	return strings.Join(tokens, " ")
}

// parseIndexList extracts a 1-based index ordering from model output.
// Out-of-range and duplicate indices are dropped. Returns false when no
// valid index survives.
func parseIndexList(raw string, n int) ([]int, bool) {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r < '0' || r > '9'
	})

	order := make([]int, 0, n)
	seen := make(map[int]bool, n)
	for _, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil || v < 1 || v > n || seen[v] {
			continue
		}
		seen[v] = true
		order = append(order, v-1)
	}
	if len(order) == 0 {
		return nil, false
	}
	return order, true
}
