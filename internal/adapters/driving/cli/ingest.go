package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/quaero-cli/internal/core/domain"
	"github.com/custodia-labs/quaero-cli/internal/core/ports/driving"
	"github.com/custodia-labs/quaero-cli/internal/logger"
)

var (
	ingestStage   string
	ingestForce   bool
	ingestWorkers int
	ingestWatch   bool
	ingestDir     string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [document-id]",
	Short: "Ingest papers into the local index",
	Long: `Runs the staged ingestion pipeline (parse, chunk, metadata, embed)
over the configured papers directory. Completed stages are skipped, so
an interrupted run picks up where it left off. With a document ID,
processes only that document.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestStage, "stage", "", "run only this stage (parse|chunk|metadata|embed)")
	ingestCmd.Flags().BoolVar(&ingestForce, "force", false, "discard recorded progress and re-run")
	ingestCmd.Flags().IntVar(&ingestWorkers, "workers", 0, "concurrent documents (0 = default)")
	ingestCmd.Flags().BoolVar(&ingestWatch, "watch", false, "keep running and ingest files as they appear")
	ingestCmd.Flags().StringVar(&ingestDir, "dir", "", "papers directory (overrides source.dir config)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestSvc == nil {
		return errors.New("ingest service not configured")
	}

	opts := driving.IngestOptions{
		OnlyStage: domain.Stage(ingestStage),
		Force:     ingestForce,
		Workers:   ingestWorkers,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if len(args) == 1 {
		if err := ingestSvc.IngestDocument(ctx, args[0], opts); err != nil {
			return fmt.Errorf("ingest %s: %w", args[0], err)
		}
		cmd.Printf("Ingested %s\n", args[0])
		return nil
	}

	report, err := ingestSvc.Ingest(ctx, opts)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	printReport(cmd, report)

	if ingestWatch {
		return watchAndIngest(ctx, cmd, opts)
	}
	return nil
}

// watchAndIngest re-runs the pipeline for each document the source
// reports changed, until interrupted.
func watchAndIngest(ctx context.Context, cmd *cobra.Command, opts driving.IngestOptions) error {
	events, err := docSource.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}

	cmd.Println("Watching for new papers. Press Ctrl-C to stop.")
	for {
		select {
		case <-ctx.Done():
			return nil
		case id, ok := <-events:
			if !ok {
				return nil
			}
			logger.Info("Change detected: %s", id)
			if err := ingestSvc.IngestDocument(ctx, id, opts); err != nil {
				cmd.PrintErrf("ingest %s: %v\n", id, err)
				continue
			}
			cmd.Printf("Ingested %s\n", id)
		}
	}
}

func printReport(cmd *cobra.Command, report *domain.IngestReport) {
	cmd.Printf("Run %s finished in %s\n", report.RunID,
		report.Finished.Sub(report.Started).Round(time.Millisecond))
	cmd.Printf("  succeeded: %d\n", report.Succeeded)
	cmd.Printf("  skipped:   %d\n", report.Skipped)
	cmd.Printf("  failed:    %d\n", report.Failed)

	if len(report.Failures) == 0 {
		return
	}
	ids := make([]string, 0, len(report.Failures))
	for id := range report.Failures {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		cmd.Printf("    %s (stage %s)\n", id, report.Failures[id])
	}
}
