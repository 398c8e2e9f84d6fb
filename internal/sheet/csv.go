package sheet

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/contaflux/asientos/internal/model"
)

// CSVSink appends the same columns as the Sheets sink to a local file,
// for offline runs and tests. Safe for concurrent appends within one
// process.
type CSVSink struct {
	path string
	log  zerolog.Logger
	mu   sync.Mutex
}

// NewCSVSink creates a sink writing to path. The file and its directory
// are created on first append.
func NewCSVSink(path string, log zerolog.Logger) *CSVSink {
	return &CSVSink{path: path, log: log}
}

// Path returns the sink's file path.
func (s *CSVSink) Path() string {
	return s.path
}

// Append writes one row per entry line, creating the file with a header
// row when it does not exist yet.
func (s *CSVSink) Append(_ context.Context, entries ...*model.AccountingEntry) error {
	rows := Rows(entries...)
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating sink directory: %w", err)
		}
	}
	needHeader := true
	if info, err := os.Stat(s.path); err == nil && info.Size() > 0 {
		needHeader = false
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening sink file: %w", err)
	}

	cw := csv.NewWriter(f)
	if needHeader {
		if err := cw.Write(Header); err != nil {
			f.Close()
			return fmt.Errorf("writing header: %w", err)
		}
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			f.Close()
			return fmt.Errorf("writing row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flushing sink file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing sink file: %w", err)
	}

	s.log.Debug().Int("rows", len(rows)).Str("path", s.path).Msg("entry rows appended")
	return nil
}
