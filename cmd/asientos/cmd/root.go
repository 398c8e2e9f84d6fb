package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/contaflux/asientos/internal/llm"
	"github.com/contaflux/asientos/internal/logger"
	"github.com/contaflux/asientos/internal/processor"
	"github.com/contaflux/asientos/internal/rules"
	"github.com/contaflux/asientos/internal/sheet"
)

var (
	version = "1.0.0"

	// Global flags
	verbose      bool
	outputFormat string

	rulesPath       string
	rulesSheetID    string
	sheetID         string
	credentialsFile string
	apiKey          string
	llmBaseURL      string
	llmModel        string
	llmVisionModel  string
)

var rootCmd = &cobra.Command{
	Use:   "asientos",
	Short: "Generate Spanish accounting entries from invoice documents",
	Long: `asientos turns free-form invoice documents into balanced double-entry
accounting records.

Each document is classified against a keyword rule table, its fields
are extracted by label patterns (with an optional LLM fallback for
scans and images), Spanish VAT and IRPF withholding are computed, and
a balanced asiento is generated. Entries can be appended to a Google
Sheet or exported in Contasol import format.

Examples:
  # Process a text invoice against a local rule table
  asientos process factura.txt --rules reglas.csv

  # Process a PDF with LLM fallback
  asientos process factura.pdf --rules reglas.csv --api-key <openrouter-key>

  # Start the HTTP API
  asientos serve --rules reglas.csv --address :8080

  # Watch an inbox directory and append entries to a sheet
  asientos watch ./inbox --rules reglas.csv --sheet-id <spreadsheet-id>`,
	Version: version,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "json", "Output format (json, table, csv)")
	rootCmd.PersistentFlags().StringVar(&rulesPath, "rules", "", "Rule table CSV file (env: RULES_PATH)")
	rootCmd.PersistentFlags().StringVar(&sheetID, "sheet-id", "", "Output spreadsheet ID (env: OUTPUT_SHEET_ID)")
	rootCmd.PersistentFlags().StringVar(&credentialsFile, "credentials", "", "Google service account credentials file (env: GOOGLE_APPLICATION_CREDENTIALS)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key for LLM provider (env: LLM_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&llmBaseURL, "llm-base-url", "", "LLM API base URL (env: LLM_BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&llmModel, "llm-model", "", "LLM model for text extraction (env: LLM_MODEL)")
	rootCmd.PersistentFlags().StringVar(&llmVisionModel, "llm-vision-model", "", "LLM model for vision/image extraction (env: LLM_VISION_MODEL)")

	rootCmd.AddCommand(versionCmd)

	// Load from environment variables if not set via flags
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	if rulesPath == "" {
		rulesPath = os.Getenv("RULES_PATH")
	}
	// The rule sheet has no flag of its own; a spreadsheet-backed rule
	// table is configured through the environment only.
	rulesSheetID = os.Getenv("RULES_SHEET_FILE_ID")
	if sheetID == "" {
		sheetID = os.Getenv("OUTPUT_SHEET_ID")
	}
	if credentialsFile == "" {
		credentialsFile = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	}
	if apiKey == "" {
		apiKey = os.Getenv("LLM_API_KEY")
	}
	if llmBaseURL == "" {
		llmBaseURL = os.Getenv("LLM_BASE_URL")
	}
	if llmModel == "" {
		llmModel = os.Getenv("LLM_MODEL")
	}
	if llmVisionModel == "" {
		llmVisionModel = os.Getenv("LLM_VISION_MODEL")
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("asientos %s\n", version)
	},
}

func printVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// newLogger builds the CLI logger. LOG_LEVEL picks the base level and
// --verbose forces debug.
func newLogger() zerolog.Logger {
	log := logger.New()
	if verbose {
		log = log.Level(zerolog.DebugLevel)
	}
	return log
}

// newRuleSource picks the configured rule source: a local CSV when
// --rules is set, otherwise a Google Sheet when RULES_SHEET_FILE_ID is.
func newRuleSource(ctx context.Context) (rules.Source, error) {
	if rulesPath != "" {
		return rules.NewCSVSource(rulesPath), nil
	}
	if rulesSheetID != "" {
		sheetsSvc, err := sheet.NewSheetsService(ctx, credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("creating sheets client: %w", err)
		}
		driveSvc, err := sheet.NewDriveService(ctx, credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("creating drive client: %w", err)
		}
		return rules.NewSheetsSource(sheetsSvc, driveSvc, rulesSheetID), nil
	}
	return nil, fmt.Errorf("no rule source configured (--rules or RULES_PATH, or RULES_SHEET_FILE_ID)")
}

// newRuleStore loads the configured rule source into a store. A load
// failure is returned up front rather than surfacing per document.
func newRuleStore(ctx context.Context, log zerolog.Logger) (*rules.Store, error) {
	source, err := newRuleSource(ctx)
	if err != nil {
		return nil, err
	}
	store := rules.NewStore(source, rules.WithLogger(log))
	if err := store.Refresh(ctx, true); err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}
	return store, nil
}

// pipelineOptions assembles the processing options shared by process
// and watch. The LLM extractor is attached only when an API key is
// configured.
func pipelineOptions(store *rules.Store, log zerolog.Logger) []processor.Option {
	opts := []processor.Option{processor.WithLogger(log)}
	if store != nil {
		opts = append(opts, processor.WithStore(store))
	}
	if apiKey != "" {
		var clientOpts []llm.ClientOption
		if llmBaseURL != "" {
			clientOpts = append(clientOpts, llm.WithBaseURL(llmBaseURL))
		}
		client := llm.NewClient(apiKey, clientOpts...)

		var extractorOpts []llm.ExtractorOption
		if llmModel != "" {
			extractorOpts = append(extractorOpts, llm.WithModel(llmModel))
		}
		if llmVisionModel != "" {
			extractorOpts = append(extractorOpts, llm.WithVisionModel(llmVisionModel))
		}
		opts = append(opts, processor.WithLLMExtractor(llm.NewExtractor(client, extractorOpts...)))
	}
	return opts
}
