// Package cli implements the quaero command-line interface.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/quaero-cli/internal/adapters/driven/ai"
	configfile "github.com/custodia-labs/quaero-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/quaero-cli/internal/adapters/driven/metadata/crossref"
	"github.com/custodia-labs/quaero-cli/internal/adapters/driven/source/filesystem"
	"github.com/custodia-labs/quaero-cli/internal/adapters/driven/sparse/bleve"
	"github.com/custodia-labs/quaero-cli/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/quaero-cli/internal/core/ports/driving"
	"github.com/custodia-labs/quaero-cli/internal/core/services"
	"github.com/custodia-labs/quaero-cli/internal/logger"
	"github.com/custodia-labs/quaero-cli/internal/postprocessors"
	"github.com/custodia-labs/quaero-cli/internal/postprocessors/chunker"
)

// version is set at build time via -ldflags.
var version = "dev"

var verbose bool

// Services wired by initServices and shared across commands.
var (
	configStore *configfile.ConfigStore
	store       *sqlite.Store
	sparseIndex *bleve.SparseIndex
	docSource   *filesystem.Source
	ingestSvc   driving.IngestService
	askSvc      driving.AskService

	// servicesReady guards against double initialisation.
	servicesReady bool
)

var rootCmd = &cobra.Command{
	Use:   "quaero",
	Short: "Retrieval-augmented search over a local research corpus",
	Long: `Quaero ingests plain-text research papers into a local hybrid index
(vector similarity plus keyword search) and answers questions over the
corpus with cited passages.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)

		// Environment files are optional.
		_ = godotenv.Load()

		var err error
		configStore, err = configfile.NewConfigStore(os.Getenv("QUAERO_CONFIG_DIR"))
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		if skipServiceInit(cmd) || servicesReady {
			return nil
		}
		return initServices()
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		if sparseIndex != nil {
			_ = sparseIndex.Close()
		}
		if store != nil {
			_ = store.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output to stderr")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// skipServiceInit reports whether a command runs without the full
// service stack. Config and version must work before anything is set up.
func skipServiceInit(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "config", "version", "help", "completion":
			return true
		}
	}
	return false
}

// initServices builds the full adapter and service stack from
// configuration. AI providers that fail validation degrade to nil; the
// affected operations then report their unavailability.
func initServices() error {
	dataDir := configStore.GetString("data.dir")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".quaero", "data")
	}

	var err error
	store, err = sqlite.NewStore(dataDir)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	sparseIndex, err = bleve.New(filepath.Join(dataDir, "index.bleve"))
	if err != nil {
		return fmt.Errorf("opening keyword index: %w", err)
	}

	embedding, err := ai.CreateAndValidateEmbeddingService(embeddingSettings())
	if err != nil {
		logger.Warn("embedding service unavailable: %v", err)
	}
	llm, err := ai.CreateAndValidateLLMService(llmSettings())
	if err != nil {
		logger.Warn("LLM service unavailable: %v", err)
	}

	registry := crossref.NewProvider(crossref.Config{
		MailTo: os.Getenv("CROSSREF_MAILTO"),
	})

	chunkOpts := []chunker.Option{}
	if size := configStore.GetInt("chunking.size"); size > 0 {
		chunkOpts = append(chunkOpts, chunker.WithChunkSize(size))
	}
	if overlap := configStore.GetInt("chunking.overlap"); overlap > 0 {
		chunkOpts = append(chunkOpts, chunker.WithOverlap(overlap))
	}
	pipeline := postprocessors.NewPipeline(chunker.New(chunkOpts...))

	docSource = filesystem.New(sourceDir())
	docStore := store.DocumentStore()
	vectorStore := store.VectorStore()

	ingestSvc = services.NewIngestService(
		docSource,
		docStore,
		store.StateStore(),
		pipeline,
		embedding,
		vectorStore,
		sparseIndex,
		registry,
		llm,
	)

	retriever := services.NewRetrieverService(docStore, vectorStore, sparseIndex, embedding)
	askSvc = services.NewAskService(retriever, llm)

	servicesReady = true
	return nil
}

// sourceDir resolves the papers directory: the --dir flag wins, then
// config, then ./papers.
func sourceDir() string {
	if ingestDir != "" {
		return ingestDir
	}
	if dir := configStore.GetString("source.dir"); dir != "" {
		return dir
	}
	return "papers"
}

// embeddingSettings builds embedding provider settings from config and
// environment. An unset provider is inferred from available API keys.
func embeddingSettings() *ai.EmbeddingSettings {
	provider := configStore.GetString("embedding.provider")
	if provider == "" {
		if os.Getenv("OPENAI_API_KEY") != "" {
			provider = ai.ProviderOpenAI
		} else {
			provider = ai.ProviderOllama
		}
	}
	return &ai.EmbeddingSettings{
		Provider: provider,
		APIKey:   os.Getenv("OPENAI_API_KEY"),
		BaseURL:  configStore.GetString("embedding.base_url"),
		Model:    configStore.GetString("embedding.model"),
	}
}

// llmSettings builds LLM provider settings from config and environment.
func llmSettings() *ai.LLMSettings {
	provider := configStore.GetString("llm.provider")
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if provider == "" {
		switch {
		case apiKey != "":
			provider = ai.ProviderAnthropic
		case os.Getenv("OPENAI_API_KEY") != "":
			provider = ai.ProviderOpenAI
		}
	}
	if provider == ai.ProviderOpenAI {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	return &ai.LLMSettings{
		Provider: provider,
		APIKey:   apiKey,
		BaseURL:  configStore.GetString("llm.base_url"),
		Model:    configStore.GetString("llm.model"),
	}
}
