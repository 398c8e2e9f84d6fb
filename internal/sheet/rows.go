// Package sheet renders generated entries as spreadsheet rows, one row
// per entry line, and appends them to a Google Sheets tab or a local
// CSV file. Sinks only read entries, never mutate them.
package sheet

import (
	"context"

	dec "github.com/shopspring/decimal"

	"github.com/contaflux/asientos/internal/decimal"
	"github.com/contaflux/asientos/internal/model"
)

// DefaultSheetName is the tab the generated entries land on.
const DefaultSheetName = "IAFiscal_Asientos_Generados"

// Header is the fixed column set. Entry-level values repeat on every
// line row; accountants filter by Documento_ID to regroup an entry.
var Header = []string{
	"Asiento_Fecha",
	"Asiento_Diario",
	"Asiento_Concepto",
	"Apunte_Cuenta",
	"Apunte_Concepto",
	"Apunte_Debe",
	"Apunte_Haber",
	"Documento_ID",
	"Enlace_Documento",
	"Proveedor_Nombre",
	"Proveedor_NIF",
	"Cliente_Nombre",
	"Cliente_NIF",
	"Base_Imponible",
	"IVA_Tipo",
	"IVA_Cuota_Calculada",
	"IRPF_Tipo",
	"IRPF_Cuota_Calculada",
	"Total_Factura",
	"Necesita_Revision",
	"Motivo_Revision",
}

const (
	reviewYes = "SI"
	reviewNo  = "NO"
)

// Sink receives generated entries for persistence.
type Sink interface {
	Append(ctx context.Context, entries ...*model.AccountingEntry) error
}

// Rows flattens entries into sheet rows, one per line. Entries without
// lines (date-less review placeholders) still produce a single row so
// the review flag is visible in the sheet.
func Rows(entries ...*model.AccountingEntry) [][]string {
	var rows [][]string
	for _, e := range entries {
		if e == nil {
			continue
		}
		if len(e.Lines) == 0 {
			rows = append(rows, buildRow(e, model.EntryLine{Concept: e.Concept}))
			continue
		}
		for _, line := range e.Lines {
			rows = append(rows, buildRow(e, line))
		}
	}
	return rows
}

func buildRow(e *model.AccountingEntry, line model.EntryLine) []string {
	review := reviewNo
	if e.NeedsReview {
		review = reviewYes
	}
	return []string{
		e.Date,
		e.Journal,
		e.Concept,
		line.Account,
		line.Concept,
		sideCell(line.Debit),
		sideCell(line.Credit),
		e.DocumentID,
		e.DocumentLink,
		e.Tax.IssuerName,
		e.Tax.IssuerTaxID,
		e.Tax.CounterpartyName,
		e.Tax.CounterpartyTaxID,
		decimal.FormatAmount(e.Tax.TaxableBase),
		e.Tax.VATType,
		decimal.FormatAmount(e.Tax.VATAmount),
		e.Tax.WithholdingType,
		decimal.FormatAmount(e.Tax.WithholdingAmount),
		decimal.FormatAmount(e.Tax.TotalAmount),
		review,
		e.ReviewReason(),
	}
}

// sideCell renders a posting side, blank when the side is unused so the
// sheet reads like a ledger.
func sideCell(d dec.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return decimal.FormatAmount(d)
}
