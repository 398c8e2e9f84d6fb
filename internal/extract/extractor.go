// Package extract recovers structured invoice fields from free-form text
// using label-anchored patterns plus locale-aware date and amount
// normalization. Absent fields stay nil; extraction never fails on
// malformed input.
package extract

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/contaflux/asientos/internal/decimal"
	"github.com/contaflux/asientos/internal/model"
)

var (
	taxIDJunk  = regexp.MustCompile(`[\s-]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// Fields extracts invoice fields from text. Each pattern's first non-empty
// match is taken; values that fail normalization are left nil. A soft
// arithmetic consistency check over base, tax, withheld and total lands in
// Warnings for the entry generator's review logic.
func Fields(text string) *model.ExtractedFields {
	fields := &model.ExtractedFields{}
	if strings.TrimSpace(text) == "" {
		return fields
	}

	for _, p := range patterns {
		raw, ok := firstMatch(p.re, text)
		if !ok {
			continue
		}
		switch p.name {
		case fieldInvoiceDate:
			if v, ok := NormalizeDate(raw); ok {
				fields.InvoiceDate = &v
			}
		case fieldInvoiceNumber:
			v := raw
			fields.InvoiceNumber = &v
		case fieldIssuerTaxID:
			v := NormalizeTaxID(raw)
			fields.IssuerTaxID = &v
		case fieldCounterpartyTaxID:
			v := NormalizeTaxID(raw)
			fields.CounterpartyTaxID = &v
		case fieldIssuerName:
			if v, ok := cleanName(raw); ok {
				fields.IssuerName = &v
			}
		case fieldCounterpartyName:
			if v, ok := cleanName(raw); ok {
				fields.CounterpartyName = &v
			}
		case fieldTaxableBase:
			if v, ok := NormalizeAmount(raw); ok {
				fields.TaxableBase = &v
			}
		case fieldTaxRateHint:
			if v, ok := NormalizeAmount(raw); ok {
				fields.TaxRateHint = &v
			}
		case fieldTaxAmount:
			if v, ok := NormalizeAmount(raw); ok {
				fields.TaxAmount = &v
			}
		case fieldWithheldAmount:
			if v, ok := NormalizeAmount(raw); ok {
				fields.WithheldAmount = &v
			}
		case fieldTotalAmount:
			if v, ok := NormalizeAmount(raw); ok {
				fields.TotalAmount = &v
			}
		}
	}

	CheckConsistency(fields)
	return fields
}

// firstMatch returns the first non-empty capture of re in text
func firstMatch(re *regexp.Regexp, text string) (string, bool) {
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		if len(m) > 1 {
			if v := strings.TrimSpace(m[1]); v != "" {
				return v, true
			}
		}
	}
	return "", false
}

// NormalizeTaxID strips spaces and hyphens and uppercases
func NormalizeTaxID(raw string) string {
	return strings.ToUpper(taxIDJunk.ReplaceAllString(raw, ""))
}

// cleanName collapses whitespace and trims stray punctuation. Matches of a
// hundred characters or more are regex greed, not names, and are rejected.
func cleanName(raw string) (string, bool) {
	name := strings.Trim(whitespace.ReplaceAllString(raw, " "), ".,:")
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) >= 100 {
		return "", false
	}
	return name, true
}

// CheckConsistency verifies total against base + tax - withheld within the
// five-cent tolerance when all three are present. Deviations become
// warnings, never errors. Exported so the model-backed extractor can run
// the same check over its output.
func CheckConsistency(f *model.ExtractedFields) {
	if f.TaxableBase == nil || f.TaxAmount == nil || f.TotalAmount == nil {
		return
	}
	calculated := f.TaxableBase.Add(*f.TaxAmount).Round(2)
	withheld := decimal.Zero
	if f.WithheldAmount != nil {
		withheld = f.WithheldAmount.Round(2)
		calculated = calculated.Sub(withheld)
	}
	if !decimal.WithinTolerance(calculated, *f.TotalAmount) {
		f.Warnings = append(f.Warnings, fmt.Sprintf(
			"Inconsistencia aritmética: base %s + IVA %s - IRPF %s = %s no cuadra con el total extraído %s.",
			decimal.FormatAmount(*f.TaxableBase),
			decimal.FormatAmount(*f.TaxAmount),
			decimal.FormatAmount(withheld),
			decimal.FormatAmount(calculated),
			decimal.FormatAmount(*f.TotalAmount)))
	}
}
