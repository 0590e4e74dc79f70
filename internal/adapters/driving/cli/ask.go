package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/quaero-cli/internal/core/domain"
)

var (
	askTopK         int
	askCandidates   int
	askAlpha        float64
	askNoExpand     bool
	askNoRerank     bool
	askRetrieveOnly bool
	askJSON         bool
	askTag          string
	askVenue        string
	askYear         string
	askPaperType    string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question over the indexed corpus",
	Long: `Retrieves the most relevant passages by hybrid search (vector
similarity fused with keyword relevance) and synthesises a cited answer.
Use --retrieve-only to inspect the passages without synthesis.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "passages to return (default 5)")
	askCmd.Flags().IntVar(&askCandidates, "candidates", 0, "candidate pool size before reranking (default 15)")
	askCmd.Flags().Float64Var(&askAlpha, "alpha", -1, "dense weight in score fusion, 0..1 (default 0.5)")
	askCmd.Flags().BoolVar(&askNoExpand, "no-expand", false, "skip LLM query expansion")
	askCmd.Flags().BoolVar(&askNoRerank, "no-rerank", false, "skip LLM reranking")
	askCmd.Flags().BoolVar(&askRetrieveOnly, "retrieve-only", false, "print passages without synthesising an answer")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output as JSON")
	askCmd.Flags().StringVar(&askTag, "tag", "", "restrict to chunks carrying this tag")
	askCmd.Flags().StringVar(&askVenue, "venue", "", "restrict to this publication venue")
	askCmd.Flags().StringVar(&askYear, "year", "", "restrict to this publication year")
	askCmd.Flags().StringVar(&askPaperType, "paper-type", "", "restrict to this paper type")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := args[0]

	if askSvc == nil {
		return errors.New("ask service not configured")
	}
	if askAlpha > 1 {
		return fmt.Errorf("%w: alpha must be in [0,1]", domain.ErrInvalidInput)
	}

	opts := domain.RetrievalOptions{
		TopK:        askTopK,
		NCandidates: askCandidates,
		ExpandQuery: !askNoExpand,
		Rerank:      !askNoRerank,
		Filter:      buildFilter(),
	}
	if askAlpha >= 0 {
		opts.Alpha = askAlpha
		opts.AlphaSet = true
	}

	ctx := context.Background()

	if askRetrieveOnly {
		passages, err := askSvc.Retrieve(ctx, question, opts)
		if err != nil {
			return fmt.Errorf("retrieve failed: %w", err)
		}
		return outputPassages(cmd, passages)
	}

	answer, err := askSvc.Ask(ctx, question, opts)
	if err != nil {
		if errors.Is(err, domain.ErrNoResults) {
			cmd.Println("No relevant passages found.")
			return nil
		}
		return fmt.Errorf("ask failed: %w", err)
	}
	return outputAnswer(cmd, answer)
}

// buildFilter assembles the metadata filter, or nil when no field is set.
func buildFilter() *domain.Filter {
	if askTag == "" && askVenue == "" && askYear == "" && askPaperType == "" {
		return nil
	}
	return &domain.Filter{
		Tag:       askTag,
		Venue:     askVenue,
		Year:      askYear,
		PaperType: askPaperType,
	}
}

func outputPassages(cmd *cobra.Command, passages []domain.Passage) error {
	if askJSON {
		data, err := json.MarshalIndent(passages, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal passages: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(passages) == 0 {
		cmd.Println("No relevant passages found.")
		return nil
	}

	for i, p := range passages {
		title := p.Title
		if title == "" {
			title = p.DocumentID
		}
		cmd.Printf("[%d] %s (chunk %d, score %.3f)\n", i+1, title, p.Ordinal, p.Score)
		cmd.Printf("    %s\n\n", p.Text)
	}
	return nil
}

func outputAnswer(cmd *cobra.Command, answer *domain.Answer) error {
	if askJSON {
		data, err := json.MarshalIndent(answer, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal answer: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Println(answer.Text)
	cmd.Println()
	cmd.Println("Sources:")
	for i, p := range answer.Passages {
		title := p.Title
		if title == "" {
			title = p.DocumentID
		}
		cmd.Printf("  [Passage %d] %s (chunk %d)\n", i+1, title, p.Ordinal)
	}
	return nil
}
