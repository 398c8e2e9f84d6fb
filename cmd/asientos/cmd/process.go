package cmd

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/contaflux/asientos/internal/decimal"
	"github.com/contaflux/asientos/internal/export/contasol"
	"github.com/contaflux/asientos/internal/model"
	"github.com/contaflux/asientos/internal/processor"
	"github.com/contaflux/asientos/internal/sheet"
)

var (
	outputFile     string
	processTimeout time.Duration
	exportPath     string
	appendSheet    bool
)

var processCmd = &cobra.Command{
	Use:   "process [files...]",
	Short: "Process invoice documents",
	Long: `Process one or more invoice documents and generate accounting entries.

Supported formats:
  - Plain text: .txt, .text, .md
  - PDF: .pdf (text layer first, LLM vision fallback for scans)
  - Images: .png, .jpg, .jpeg (requires an API key)

Each document is classified against the rule table, its fields are
extracted, taxes are computed and a balanced entry is generated.
Documents that fail a consistency check come back flagged for review
instead of failing.

Examples:
  asientos process factura.txt --rules reglas.csv
  asientos process facturas/ --rules reglas.csv -o table
  asientos process *.pdf --rules reglas.csv --export asientos.csv
  asientos process factura.pdf --rules reglas.csv --append-sheet --sheet-id <id>`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringVar(&outputFile, "out", "", "Write results to file (default: stdout)")
	processCmd.Flags().DurationVar(&processTimeout, "timeout", 2*time.Minute, "Processing timeout per document")
	processCmd.Flags().StringVar(&exportPath, "export", "", "Write generated entries to a Contasol CSV file")
	processCmd.Flags().BoolVar(&appendSheet, "append-sheet", false, "Append generated entries to the output sheet (requires --sheet-id)")
}

func runProcess(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files found to process")
	}
	if appendSheet && sheetID == "" {
		return fmt.Errorf("--append-sheet requires --sheet-id or OUTPUT_SHEET_ID")
	}

	printVerbose("Found %d files to process\n", len(files))

	log := newLogger()
	store, err := newRuleStore(context.Background(), log)
	if err != nil {
		return err
	}
	pipeline := processor.NewPipeline(pipelineOptions(store, log)...)

	results := make([]*ProcessResult, 0, len(files))
	failed := 0
	for _, file := range files {
		printVerbose("Processing: %s\n", file)

		result := processFile(pipeline, file)
		results = append(results, result)

		if result.Error != "" {
			failed++
			printVerbose("  Error: %s\n", result.Error)
		} else {
			printVerbose("  Method: %s, Confidence: %.2f\n", result.Method, result.Confidence)
		}
	}

	entries := collectEntries(results)
	if exportPath != "" {
		if err := contasol.NewWriter(log).WriteFile(exportPath, entries); err != nil {
			return fmt.Errorf("writing Contasol export: %w", err)
		}
		printVerbose("Wrote %d entries to %s\n", len(entries), exportPath)
	}
	if appendSheet && len(entries) > 0 {
		if err := appendToSheet(context.Background(), entries); err != nil {
			return fmt.Errorf("appending to sheet: %w", err)
		}
		printVerbose("Appended %d entries to sheet %s\n", len(entries), sheetID)
	}

	if err := outputResults(results); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("processing failed for %d of %d files", failed, len(files))
	}
	return nil
}

func collectFiles(args []string) ([]string, error) {
	var files []string

	for _, arg := range args {
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", arg, err)
		}

		if len(matches) == 0 {
			info, err := os.Stat(arg)
			if err != nil {
				return nil, fmt.Errorf("file not found: %s", arg)
			}

			if info.IsDir() {
				err := filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
					if err != nil {
						return err
					}
					if !info.IsDir() && isSupportedFile(path) {
						files = append(files, path)
					}
					return nil
				})
				if err != nil {
					return nil, err
				}
			} else {
				files = append(files, arg)
			}
		} else {
			for _, match := range matches {
				info, err := os.Stat(match)
				if err != nil {
					continue
				}
				if !info.IsDir() && isSupportedFile(match) {
					files = append(files, match)
				}
			}
		}
	}

	return files, nil
}

func isSupportedFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf", ".txt", ".text", ".md", ".png", ".jpg", ".jpeg":
		return true
	default:
		return false
	}
}

func processFile(pipeline *processor.Pipeline, filePath string) *ProcessResult {
	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	result := &ProcessResult{
		File: filePath,
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.Error = fmt.Sprintf("failed to read file: %v", err)
		return result
	}

	name := filepath.Base(filePath)
	pipelineResult := pipeline.ProcessFile(ctx, name, data)
	if pipelineResult.Error != nil {
		result.Error = pipelineResult.Error.Error()
		return result
	}

	if pipelineResult.Entry != nil {
		pipelineResult.Entry.DocumentID = name
	}
	result.Entry = pipelineResult.Entry
	result.Method = string(pipelineResult.Method)
	result.Confidence = pipelineResult.Confidence
	result.Warnings = pipelineResult.Warnings

	return result
}

// collectEntries gathers the generated entries in input order for the
// export and sheet side outputs.
func collectEntries(results []*ProcessResult) []*model.AccountingEntry {
	entries := make([]*model.AccountingEntry, 0, len(results))
	for _, r := range results {
		if r.Entry != nil {
			entries = append(entries, r.Entry)
		}
	}
	return entries
}

func appendToSheet(ctx context.Context, entries []*model.AccountingEntry) error {
	svc, err := sheet.NewSheetsService(ctx, credentialsFile)
	if err != nil {
		return err
	}
	sink := sheet.NewSheetsSink(svc, sheetID, sheet.WithSinkLogger(newLogger()))
	return sink.Append(ctx, entries...)
}

func outputResults(results []*ProcessResult) error {
	var writer = os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		writer = f
	}

	switch outputFormat {
	case "json":
		return outputJSON(writer, results)
	case "table":
		return outputTable(writer, results)
	case "csv":
		return outputCSV(writer, results)
	default:
		return fmt.Errorf("unsupported output format: %s", outputFormat)
	}
}

func outputJSON(w io.Writer, results []*ProcessResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(results)
}

func outputTable(w io.Writer, results []*ProcessResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tDATE\tACCOUNT\tTOTAL\tMETHOD\tCONFIDENCE\tREVIEW")
	fmt.Fprintln(tw, "----\t----\t-------\t-----\t------\t----------\t------")

	for _, r := range results {
		if r.Error != "" {
			fmt.Fprintf(tw, "%s\tERROR: %s\t\t\t\t\t\n", r.File, r.Error)
			continue
		}
		if r.Entry == nil {
			fmt.Fprintf(tw, "%s\t%s\t\t\t%s\t%.2f\t\n",
				r.File, strings.Join(r.Warnings, " "), r.Method, r.Confidence)
			continue
		}

		account := ""
		if len(r.Entry.Lines) > 0 {
			account = r.Entry.Lines[0].Account
		}
		review := "NO"
		if r.Entry.NeedsReview {
			review = "SI"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.2f\t%s\n",
			r.File,
			r.Entry.Date,
			account,
			decimal.FormatAmount(r.Entry.Tax.TotalAmount),
			r.Method,
			r.Confidence,
			review,
		)
	}

	return tw.Flush()
}

// outputCSV renders successful entries in the output sheet row format;
// failures go to stderr so the CSV stays loadable.
func outputCSV(w io.Writer, results []*ProcessResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(sheet.Header); err != nil {
		return err
	}
	for _, r := range results {
		if r.Error != "" {
			fmt.Fprintf(os.Stderr, "%s: %s\n", r.File, r.Error)
			continue
		}
		if r.Entry == nil {
			fmt.Fprintf(os.Stderr, "%s: %s\n", r.File, strings.Join(r.Warnings, " "))
			continue
		}
		for _, row := range sheet.Rows(r.Entry) {
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// ProcessResult holds the outcome of processing a single document
type ProcessResult struct {
	File       string                 `json:"file"`
	Entry      *model.AccountingEntry `json:"entry,omitempty"`
	Method     string                 `json:"method,omitempty"`
	Confidence float64                `json:"confidence,omitempty"`
	Warnings   []string               `json:"warnings,omitempty"`
	Error      string                 `json:"error,omitempty"`
}
