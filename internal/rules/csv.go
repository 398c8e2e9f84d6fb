package rules

import (
	"context"
	"encoding/csv"
	"os"
	"strconv"
	"strings"

	"github.com/contaflux/asientos/internal/model"
)

// CSVSource loads rules from a delimited local file. The delimiter is
// sniffed from the header line: semicolon when present, comma
// otherwise, covering both export conventions of common sheet tools.
type CSVSource struct {
	path string
}

// NewCSVSource creates a source backed by the file at path.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

// Describe names the source for logs and errors.
func (s *CSVSource) Describe() string {
	return s.path
}

// Path returns the backing file so stores can watch it for edits.
func (s *CSVSource) Path() string {
	return s.path
}

// Load reads and parses the rule file. The version marker is the file
// modification time.
func (s *CSVSource) Load(ctx context.Context) ([]model.Rule, string, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, "", model.NewParseError(s.path, "rule file not accessible", err)
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, "", model.NewParseError(s.path, "cannot read rule file", err)
	}

	text := strings.TrimPrefix(string(data), "\ufeff")
	headerLine, _, _ := strings.Cut(text, "\n")
	comma := ','
	if strings.Contains(headerLine, ";") {
		comma = ';'
	}

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, "", model.NewParseError(s.path, "cannot parse rule file", err)
	}

	rules, err := parseTable(s.path, records)
	if err != nil {
		return nil, "", err
	}
	return rules, mtimeVersion(info.ModTime().UnixNano()), nil
}

// Changed reports whether the file moved past the given version.
func (s *CSVSource) Changed(ctx context.Context, version string) (bool, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return false, err
	}
	return mtimeVersion(info.ModTime().UnixNano()) != version, nil
}

func mtimeVersion(nanos int64) string {
	return strconv.FormatInt(nanos, 10)
}
