// Package rules loads classification rules from tabular sources and
// matches invoice text against them. A Store caches the active rule
// set and swaps it atomically on reload, so matching always runs
// against an immutable snapshot even while accountants edit the
// source sheet.
package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/contaflux/asientos/internal/model"
)

// expectedColumns is the header contract of every rule source, in the
// order accountants maintain them.
var expectedColumns = []string{
	"Keywords",
	"Priority",
	"Account",
	"Contrapartida",
	"TipoOperacion",
	"IVAType",
	"SpecialTreatment",
	"ConceptoPatron",
}

// parseTable converts a header row plus data rows into rules. The
// header must carry every expected column; extra columns are ignored.
// Blank rows are skipped. An empty Priority defaults to zero, any
// other non-integer value is a schema error that fails the whole
// load, leaving the previous snapshot in place.
func parseTable(source string, records [][]string) ([]model.Rule, error) {
	if len(records) == 0 {
		return nil, model.NewParseError(source, "rule table is empty", nil)
	}

	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	var missing []string
	for _, name := range expectedColumns {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, model.NewParseError(source,
			fmt.Sprintf("missing columns: %s", strings.Join(missing, ", ")), nil)
	}

	rules := make([]model.Rule, 0, len(records)-1)
	for i, row := range records[1:] {
		if isEmptyRow(row) {
			continue
		}
		rowNum := i + 2
		cell := func(name string) string {
			col := index[name]
			if col >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[col])
		}

		priority := 0
		if p := cell("Priority"); p != "" {
			v, err := strconv.Atoi(p)
			if err != nil {
				return nil, model.NewRuleError(source, rowNum, "Priority", "not an integer", err)
			}
			priority = v
		}

		rules = append(rules, model.Rule{
			Keywords:         splitKeywords(cell("Keywords")),
			Priority:         priority,
			Account:          cell("Account"),
			CounterAccount:   cell("Contrapartida"),
			OperationType:    model.OperationType(cell("TipoOperacion")),
			TaxType:          cell("IVAType"),
			SpecialTreatment: cell("SpecialTreatment"),
			ConceptTemplate:  cell("ConceptoPatron"),
		})
	}
	return rules, nil
}

// splitKeywords lowercases and trims the comma separated keyword cell.
// Rules may legitimately end up with no keywords; they then never
// match anything.
func splitKeywords(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	keywords := make([]string, 0, len(parts))
	for _, p := range parts {
		if kw := strings.ToLower(strings.TrimSpace(p)); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return keywords
}

func isEmptyRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
