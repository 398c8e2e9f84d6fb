// Package contasol renders accounting entries in the semicolon CSV
// dialect the Contasol desktop ledger imports.
package contasol

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/contaflux/asientos/internal/decimal"
	"github.com/contaflux/asientos/internal/model"
)

// Header is the first row of every export file.
const Header = "fecha;diario;cuenta;concepto;debe;haber"

const (
	numFields  = 6
	dateLayout = "02012006"

	// Contasol truncates longer concepts on import; clip hard, no
	// ellipsis at this stage.
	maxConceptLen = 38
)

const (
	colDate = iota
	colJournal
	colAccount
	colConcept
	colDebit
	colCredit
)

// Writer flattens entries into Contasol import rows, dropping lines the
// program would reject.
type Writer struct {
	log zerolog.Logger
}

// NewWriter creates a Writer that logs skipped and suspicious rows.
func NewWriter(log zerolog.Logger) *Writer {
	return &Writer{log: log}
}

// Rows renders one CSV row per entry line. Rows without an importable
// date or an account are skipped with a warning; a row with zero on
// both sides is written but logged, Contasol tends to ignore those.
func (w *Writer) Rows(entries []*model.AccountingEntry) [][]string {
	var rows [][]string
	for _, e := range entries {
		if e == nil {
			continue
		}
		date, ok := formatDate(e.Date)
		if !ok {
			w.log.Warn().Str("date", e.Date).Str("concept", e.Concept).
				Msg("entry date not importable, lines skipped")
			continue
		}
		journal := e.Journal
		if journal == "" {
			journal = model.DefaultJournal
		}
		for _, line := range e.Lines {
			account := strings.TrimSpace(line.Account)
			if account == "" {
				w.log.Warn().Str("concept", line.Concept).
					Msg("line without account, skipped")
				continue
			}
			concept := line.Concept
			if concept == "" {
				concept = e.Concept
			}
			debe := decimal.FormatComma(line.Debit)
			haber := decimal.FormatComma(line.Credit)
			if debe == "0,00" && haber == "0,00" {
				w.log.Warn().Str("account", account).Str("concept", concept).
					Msg("line with zero debit and credit")
			}

			row := make([]string, numFields)
			row[colDate] = date
			row[colJournal] = journal
			row[colAccount] = account
			row[colConcept] = clipConcept(concept)
			row[colDebit] = debe
			row[colCredit] = haber
			rows = append(rows, row)
		}
	}
	return rows
}

// Write renders the header and all importable rows of entries to out.
// Entries that produce no rows still yield a header-only file.
func (w *Writer) Write(out io.Writer, entries []*model.AccountingEntry) error {
	cw := csv.NewWriter(out)
	cw.Comma = ';'
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ";")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, row := range w.Rows(entries) {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}

// WriteFile writes the export to path, creating parent directories.
func (w *Writer) WriteFile(path string, entries []*model.AccountingEntry) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating export directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}
	if err := w.Write(f, entries); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing export file: %w", err)
	}
	w.log.Info().Str("path", path).Msg("contasol export written")
	return nil
}

// ExportFilename builds the conventional "{client}_{YYYYMM}.csv" name
// with the client sanitized for the filesystem.
func ExportFilename(client string, period time.Time) string {
	var b strings.Builder
	for _, r := range client {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return fmt.Sprintf("%s_%s.csv", b.String(), period.Format("200601"))
}

// formatDate converts the entry's ISO date to Contasol's DDMMYYYY. The
// placeholder date of review entries does not parse and reports false.
func formatDate(iso string) (string, bool) {
	t, err := time.Parse("2006-01-02", iso)
	if err != nil {
		return "", false
	}
	return t.Format(dateLayout), true
}

func clipConcept(s string) string {
	runes := []rune(s)
	if len(runes) <= maxConceptLen {
		return s
	}
	return string(runes[:maxConceptLen])
}
