package sheet

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/contaflux/asientos/internal/model"
)

// NewSheetsService builds a sheets/v4 service. An empty credentials
// path falls back to the default credential chain, which honors
// GOOGLE_APPLICATION_CREDENTIALS.
func NewSheetsService(ctx context.Context, credentialsFile string) (*sheets.Service, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}
	return svc, nil
}

// NewDriveService builds a drive/v3 service, same credential rules.
func NewDriveService(ctx context.Context, credentialsFile string) (*drive.Service, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating drive service: %w", err)
	}
	return svc, nil
}

// SheetsSink appends entry rows to one tab of a spreadsheet. The header
// row is verified before the first append and rewritten when absent or
// stale.
type SheetsSink struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetName     string
	log           zerolog.Logger

	mu       sync.Mutex
	headerOK bool
}

// SheetsSinkOption configures a SheetsSink.
type SheetsSinkOption func(*SheetsSink)

// WithSheetName overrides the default tab name.
func WithSheetName(name string) SheetsSinkOption {
	return func(s *SheetsSink) { s.sheetName = name }
}

// WithSinkLogger sets the sink logger.
func WithSinkLogger(log zerolog.Logger) SheetsSinkOption {
	return func(s *SheetsSink) { s.log = log }
}

// NewSheetsSink creates a sink appending to the given spreadsheet.
func NewSheetsSink(svc *sheets.Service, spreadsheetID string, opts ...SheetsSinkOption) *SheetsSink {
	s := &SheetsSink{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     DefaultSheetName,
		log:           zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append writes one row per entry line to the sheet.
func (s *SheetsSink) Append(ctx context.Context, entries ...*model.AccountingEntry) error {
	rows := Rows(entries...)
	if len(rows) == 0 {
		return nil
	}
	if err := s.ensureHeader(ctx); err != nil {
		return err
	}

	vr := &sheets.ValueRange{Values: rowValues(rows)}
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, s.sheetName, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("appending %d rows to %s: %w", len(rows), s.sheetName, err)
	}
	s.log.Info().Int("rows", len(rows)).Str("sheet", s.sheetName).Msg("entry rows appended")
	return nil
}

// ensureHeader checks row 1 once per sink and rewrites it when it does
// not match Header. A read failure on an empty tab is tolerated; the
// update is attempted regardless.
func (s *SheetsSink) ensureHeader(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.headerOK {
		return nil
	}

	var existing []string
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.sheetName+"!1:1").Context(ctx).Do()
	if err == nil && len(resp.Values) > 0 {
		for _, v := range resp.Values[0] {
			existing = append(existing, fmt.Sprint(v))
		}
	}
	if headerMatches(existing) {
		s.headerOK = true
		return nil
	}

	vr := &sheets.ValueRange{Values: rowValues([][]string{Header})}
	if _, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, s.sheetName+"!A1", vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do(); err != nil {
		return fmt.Errorf("writing header row to %s: %w", s.sheetName, err)
	}
	s.log.Info().Str("sheet", s.sheetName).Msg("header row written")
	s.headerOK = true
	return nil
}

func headerMatches(existing []string) bool {
	if len(existing) != len(Header) {
		return false
	}
	for i, col := range Header {
		if existing[i] != col {
			return false
		}
	}
	return true
}

func rowValues(rows [][]string) [][]interface{} {
	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, cell := range row {
			cells[j] = cell
		}
		values[i] = cells
	}
	return values
}
