package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/contaflux/asientos/internal/server"
	"github.com/contaflux/asientos/internal/sheet"
)

var (
	serverAddr   string
	serverDebug  bool
	readTimeout  time.Duration
	writeTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP API server for processing invoice documents.

The API provides endpoints for:
  - POST /api/v1/process/text   - Process plain invoice text
  - POST /api/v1/process/pdf    - Process a PDF invoice
  - POST /api/v1/process/image  - Process an invoice image
  - POST /api/v1/process/auto   - Auto-detect and process
  - POST /api/v1/classify       - Classify text against the rule table
  - GET  /api/v1/rules          - Current rule snapshot
  - POST /api/v1/rules/reload   - Force a rule reload
  - POST /api/v1/export         - Render entries as a Contasol file
  - GET  /health                - Health check

When --sheet-id is set, every generated entry is also appended to the
output spreadsheet.

Examples:
  # Start server with a local rule table
  asientos serve --rules reglas.csv

  # Custom port with LLM fallback enabled
  asientos serve --rules reglas.csv --address :8080 --api-key <key>

  # Debug mode
  asientos serve --rules reglas.csv --debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverAddr, "address", ":8080", "Server listen address")
	serveCmd.Flags().BoolVar(&serverDebug, "debug", false, "Enable debug mode")
	serveCmd.Flags().DurationVar(&readTimeout, "read-timeout", 30*time.Second, "HTTP read timeout")
	serveCmd.Flags().DurationVar(&writeTimeout, "write-timeout", 5*time.Minute, "HTTP write timeout")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := newLogger()

	config := &server.Config{
		Address:        serverAddr,
		RulesPath:      rulesPath,
		SheetID:        sheetID,
		APIKey:         apiKey,
		LLMBaseURL:     llmBaseURL,
		LLMModel:       llmModel,
		LLMVisionModel: llmVisionModel,
		ReadTimeout:    readTimeout,
		WriteTimeout:   writeTimeout,
		Debug:          serverDebug,
	}

	opts := []server.Option{server.WithLogger(log)}

	// The server builds its own CSV store and ADC-backed sink; a
	// spreadsheet rule source or an explicit credentials file are wired
	// here instead.
	if rulesPath == "" && rulesSheetID != "" {
		store, err := newRuleStore(context.Background(), log)
		if err != nil {
			return err
		}
		opts = append(opts, server.WithStore(store))
	}
	if sheetID != "" && credentialsFile != "" {
		svc, err := sheet.NewSheetsService(context.Background(), credentialsFile)
		if err != nil {
			return fmt.Errorf("creating sheets client: %w", err)
		}
		opts = append(opts, server.WithEntrySink(sheet.NewSheetsSink(svc, sheetID, sheet.WithSinkLogger(log))))
	}

	srv, err := server.NewServer(config, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Starting server on %s\n", serverAddr)
	if apiKey != "" {
		fmt.Println("LLM extraction enabled")
	} else {
		fmt.Println("LLM extraction disabled (no API key)")
	}

	return srv.Run(ctx)
}
