package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/contaflux/asientos/internal/decimal"
	"github.com/contaflux/asientos/internal/export/contasol"
	"github.com/contaflux/asientos/internal/model"
)

var (
	exportClient string
	exportPeriod string
)

var exportCmd = &cobra.Command{
	Use:   "export <entries.json> <out.csv>",
	Short: "Render saved entries as a Contasol import file",
	Long: `Render previously generated entries (the JSON produced by "process")
as a Contasol import file.

Every entry is re-checked for balance before anything is written; an
unbalanced entry aborts the export. When the output path is a
directory, the file name is derived from --client and --period.

Examples:
  asientos export asientos.json contasol.csv
  asientos export asientos.json ./exports/ --client "Asesoria Perez" --period 2023-11`,
	Args: cobra.ExactArgs(2),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportClient, "client", "", "Client name used when the output path is a directory")
	exportCmd.Flags().StringVar(&exportPeriod, "period", "", "Accounting period YYYY-MM used when the output path is a directory (default: current month)")
}

func runExport(cmd *cobra.Command, args []string) error {
	entriesPath, outPath := args[0], args[1]

	data, err := os.ReadFile(entriesPath)
	if err != nil {
		return fmt.Errorf("reading entries: %w", err)
	}
	entries, err := decodeEntries(data)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("no entries to export")
	}

	// The file may have been edited by hand since it was generated;
	// unbalanced entries must not reach the ledger.
	for i, e := range entries {
		if e == nil {
			return fmt.Errorf("entry %d is null", i+1)
		}
		if !e.IsBalanced() {
			return fmt.Errorf("entry %d (%s): debit %s and credit %s do not balance",
				i+1, e.Concept,
				decimal.FormatAmount(e.TotalDebit()),
				decimal.FormatAmount(e.TotalCredit()))
		}
	}

	if info, err := os.Stat(outPath); err == nil && info.IsDir() {
		period, err := resolvePeriod()
		if err != nil {
			return err
		}
		outPath = filepath.Join(outPath, contasol.ExportFilename(exportClient, period))
	}

	if err := contasol.NewWriter(newLogger()).WriteFile(outPath, entries); err != nil {
		return fmt.Errorf("writing Contasol file: %w", err)
	}
	fmt.Printf("Wrote %d entries to %s\n", len(entries), outPath)
	return nil
}

// decodeEntries accepts either a bare entry array or the result array
// "process" emits.
func decodeEntries(data []byte) ([]*model.AccountingEntry, error) {
	var entries []*model.AccountingEntry
	if err := json.Unmarshal(data, &entries); err == nil && anyEntryLines(entries) {
		return entries, nil
	}

	var results []*ProcessResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("parsing entries: expected a JSON array of entries or process results: %w", err)
	}
	entries = entries[:0]
	for _, r := range results {
		if r != nil && r.Entry != nil {
			entries = append(entries, r.Entry)
		}
	}
	return entries, nil
}

func anyEntryLines(entries []*model.AccountingEntry) bool {
	for _, e := range entries {
		if e != nil && len(e.Lines) > 0 {
			return true
		}
	}
	return false
}

func resolvePeriod() (time.Time, error) {
	if exportPeriod == "" {
		return time.Now(), nil
	}
	t, err := time.Parse("2006-01", exportPeriod)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --period %q, want YYYY-MM", exportPeriod)
	}
	return t, nil
}
