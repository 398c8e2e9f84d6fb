package rules

import (
	"context"
	"fmt"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/sheets/v4"

	"github.com/contaflux/asientos/internal/model"
)

// defaultReadRange covers the eight rule columns on the first sheet.
const defaultReadRange = "A:H"

// SheetsSource loads rules from a Google Sheets spreadsheet, the
// shared tabular source accountants edit directly. The Drive modified
// time of the spreadsheet serves as the change marker so unchanged
// sheets are not re-fetched on every refresh.
type SheetsSource struct {
	sheets        *sheets.Service
	drive         *drive.Service
	spreadsheetID string
	readRange     string
}

// SheetsOption configures a SheetsSource.
type SheetsOption func(*SheetsSource)

// WithReadRange overrides the default A:H range, e.g. to point at a
// named tab ("Reglas!A:H").
func WithReadRange(readRange string) SheetsOption {
	return func(s *SheetsSource) { s.readRange = readRange }
}

// NewSheetsSource creates a source reading the given spreadsheet. The
// Drive service is optional; without it every refresh re-fetches the
// sheet.
func NewSheetsSource(sheetsSvc *sheets.Service, driveSvc *drive.Service, spreadsheetID string, opts ...SheetsOption) *SheetsSource {
	s := &SheetsSource{
		sheets:        sheetsSvc,
		drive:         driveSvc,
		spreadsheetID: spreadsheetID,
		readRange:     defaultReadRange,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Describe names the source for logs and errors.
func (s *SheetsSource) Describe() string {
	return "spreadsheet " + s.spreadsheetID
}

// Load fetches and parses the rule sheet.
func (s *SheetsSource) Load(ctx context.Context) ([]model.Rule, string, error) {
	resp, err := s.sheets.Spreadsheets.Values.Get(s.spreadsheetID, s.readRange).Context(ctx).Do()
	if err != nil {
		return nil, "", model.NewParseError(s.Describe(), "cannot read rule sheet", err)
	}

	records := make([][]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprint(v)
		}
		records = append(records, cells)
	}

	parsed, err := parseTable(s.Describe(), records)
	if err != nil {
		return nil, "", err
	}

	version := ""
	if s.drive != nil {
		if meta, err := s.drive.Files.Get(s.spreadsheetID).Fields("modifiedTime").Context(ctx).Do(); err == nil {
			version = meta.ModifiedTime
		}
	}
	return parsed, version, nil
}

// Changed reports whether the spreadsheet was modified past the given
// version. Without a Drive service it always reports changed.
func (s *SheetsSource) Changed(ctx context.Context, version string) (bool, error) {
	if s.drive == nil || version == "" {
		return true, nil
	}
	meta, err := s.drive.Files.Get(s.spreadsheetID).Fields("modifiedTime").Context(ctx).Do()
	if err != nil {
		return false, err
	}
	return meta.ModifiedTime != version, nil
}
