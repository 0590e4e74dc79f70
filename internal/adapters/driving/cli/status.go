package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pipeline progress per document",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if ingestSvc == nil {
		return errors.New("ingest service not configured")
	}

	states, err := ingestSvc.Status(context.Background())
	if err != nil {
		return fmt.Errorf("status failed: %w", err)
	}

	if statusJSON {
		data, err := json.MarshalIndent(states, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal states: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(states) == 0 {
		cmd.Println("No documents ingested yet.")
		return nil
	}

	cmd.Printf("%-40s %-8s %-8s %-10s %-8s\n", "DOCUMENT", "PARSED", "CHUNKED", "METADATA", "EMBEDDED")
	for _, s := range states {
		cmd.Printf("%-40s %-8s %-8s %-10s %-8s\n",
			s.DocumentID, mark(s.Parsed), mark(s.Chunked), mark(s.MetadataDone), mark(s.Embedded))
	}
	return nil
}

func mark(done bool) string {
	if done {
		return "yes"
	}
	return "-"
}
