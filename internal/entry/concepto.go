// Package entry turns classified transactions into balanced double-entry
// accounting records. Generation never fails on bad document data: any
// quantity that cannot be resolved or reconciled leaves the entry
// flagged for manual review instead.
package entry

import (
	"regexp"
	"strings"
	"time"

	dec "github.com/shopspring/decimal"

	"github.com/contaflux/asientos/internal/decimal"
	"github.com/contaflux/asientos/internal/model"
)

// maxConceptLength is the widest concept the target ledger accepts.
const maxConceptLength = 38

var placeholderPattern = regexp.MustCompile(`\{([^}]+)\}`)

// FormatConcept renders an entry concept from a rule template and the
// extracted fields. Placeholders use the rule source vocabulary
// ({proveedor_nombre}, {numero_factura}, {fecha_factura}, ...) plus
// short variants ({proveedor_nombre_short}, {fecha_factura_short}) for
// narrow ledger columns. Missing values render empty, placeholders
// outside the vocabulary render as "[n/d]", and the result is clipped
// to the ledger width. An empty template falls back to a generic
// concept built from whichever party name is available.
func FormatConcept(template string, fields *model.ExtractedFields) string {
	if fields == nil {
		fields = &model.ExtractedFields{}
	}
	data := conceptData(fields)

	if template == "" {
		switch {
		case fields.IssuerName != nil:
			template = "F/{proveedor_nombre_short} N.{numero_factura} F.{fecha_factura_short}"
		case fields.CounterpartyName != nil:
			template = "F/{cliente_nombre_short} N.{numero_factura} F.{fecha_factura_short}"
		default:
			template = "Op. s/doc N. {numero_factura} de {fecha_factura}"
		}
	}

	formatted := placeholderPattern.ReplaceAllStringFunc(template, func(ph string) string {
		key := ph[1 : len(ph)-1]
		if v, ok := data[key]; ok {
			return v
		}
		return "[n/d]"
	})

	if runes := []rune(formatted); len(runes) > maxConceptLength {
		formatted = string(runes[:maxConceptLength-3]) + "..."
	}
	return strings.TrimSpace(formatted)
}

// conceptData maps the placeholder vocabulary to rendered values. The
// short name variants are present only when the underlying field is,
// so a template asking for an absent party renders "[n/d]".
func conceptData(f *model.ExtractedFields) map[string]string {
	data := map[string]string{
		"fecha_factura":    strValue(f.InvoiceDate),
		"numero_factura":   strValue(f.InvoiceNumber),
		"proveedor_nombre": strValue(f.IssuerName),
		"proveedor_nif":    strValue(f.IssuerTaxID),
		"cliente_nombre":   strValue(f.CounterpartyName),
		"cliente_nif":      strValue(f.CounterpartyTaxID),
		"base_imponible":   decValue(f.TaxableBase),
		"cuota_iva":        decValue(f.TaxAmount),
		"retencion_irpf":   decValue(f.WithheldAmount),
		"total_factura":    decValue(f.TotalAmount),
		"iva_percentage":   rateValue(f.TaxRateHint),
	}
	if f.IssuerName != nil {
		data["proveedor_nombre_short"] = firstRunes(*f.IssuerName, 20)
	}
	if f.CounterpartyName != nil {
		data["cliente_nombre_short"] = firstRunes(*f.CounterpartyName, 20)
	}
	if f.InvoiceDate != nil {
		data["fecha_factura_short"] = shortDate(*f.InvoiceDate)
	}
	return data
}

// shortDate renders an ISO date as DD/MM/YY, falling back to the raw
// value when it does not parse.
func shortDate(iso string) string {
	t, err := time.Parse("2006-01-02", iso)
	if err != nil {
		return iso
	}
	return t.Format("02/01/06")
}

func firstRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func strValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func decValue(p *dec.Decimal) string {
	if p == nil {
		return ""
	}
	return decimal.FormatAmount(*p)
}

func rateValue(p *dec.Decimal) string {
	if p == nil {
		return ""
	}
	return p.String()
}
