package entry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/contaflux/asientos/internal/decimal"
	"github.com/contaflux/asientos/internal/model"
	"github.com/contaflux/asientos/internal/tax"
)

// Review reasons accumulated on generated entries. Sinks surface them
// verbatim, so the wording is part of the output contract.
const (
	ReasonDateMissing   = "Fecha de factura no encontrada."
	ReasonZeroAmounts   = "Base imponible y total son cero. Verificar."
	ReasonZeroVAT       = "IVA 0% detectado. Confirmar si es Exento y tratamiento contable."
	ReasonTotalMismatch = "Discrepancia entre total calculado y extraído."
	ReasonUnbalanced    = "Asiento descuadrado."
)

// ErrInvalidTransaction reports a transaction that cannot drive entry
// generation because it lacks a rule with account details.
var ErrInvalidTransaction = errors.New("transaction is not valid for entry generation")

// Generator assembles accounting entries from classified transactions.
type Generator struct {
	log zerolog.Logger
}

// New creates a Generator that logs reconciliation findings to log.
func New(log zerolog.Logger) *Generator {
	return &Generator{log: log}
}

// Generate builds the accounting entry for a classified transaction.
//
// The invoice date anchors the entry; without one a placeholder entry
// is returned, flagged for review and carrying no lines. Otherwise the
// taxable base drives the VAT and withholding quantities, lines are
// booked per the rule's operation side, and the counterpart amount is
// reconciled against the extracted total. Every anomaly flags the
// entry instead of failing it; the only error is a transaction with no
// usable rule.
func (g *Generator) Generate(tx *model.ClassifiedTransaction) (*model.AccountingEntry, error) {
	if tx == nil || !tx.ValidForEntry() {
		return nil, ErrInvalidTransaction
	}
	rule := tx.Rule
	fields := tx.Fields
	if fields == nil {
		fields = &model.ExtractedFields{}
	}

	if strValue(fields.InvoiceDate) == "" {
		g.log.Warn().Msg("invoice date not found, emitting placeholder entry for review")
		e := model.NewEntry(model.PlaceholderDate)
		e.Concept = "Error: Fecha no encontrada"
		e.Flag(ReasonDateMissing)
		e.Tax = taxIdentity(fields)
		return e, nil
	}

	e := model.NewEntry(*fields.InvoiceDate)
	e.Concept = FormatConcept(rule.ConceptTemplate, fields)

	base := decimal.Zero
	if fields.TaxableBase != nil {
		base = *fields.TaxableBase
	}
	totalExtracted := fields.TotalAmount

	vat, vatErr := tax.ComputeVAT(base, rule.TaxType, fields.TaxAmount, rule.OperationType)
	if vatErr != nil {
		g.log.Warn().Err(vatErr).Str("tax_type", rule.TaxType).
			Msg("VAT treatment not resolved, quantity left unposted")
		vat = tax.VATDetail{}
	}

	totalForCheck := decimal.Zero
	if totalExtracted != nil {
		totalForCheck = *totalExtracted
	}
	if base.IsZero() && totalForCheck.IsZero() && !vat.ZeroRate {
		e.Flag(ReasonZeroAmounts)
	}

	if vatErr != nil {
		e.Flag(fmt.Sprintf("Tipo de IVA no reconocido: %s.", rule.TaxType))
	} else if vat.ZeroRate && !exemptConfirmed(rule.SpecialTreatment) {
		e.Flag(ReasonZeroVAT)
	}

	withholding, hasWithholding := tax.ComputeWithholding(base, rule.SpecialTreatment, fields.WithheldAmount)

	if vat.HasDelta && vat.Delta.Abs().GreaterThan(decimal.Tolerance) {
		g.log.Warn().
			Str("calculated", decimal.FormatAmount(vat.Amount)).
			Str("extracted", decimal.FormatAmount(*fields.TaxAmount)).
			Msg("calculated VAT differs from extracted quota, using calculated")
	}
	if hasWithholding && withholding.HasDelta && withholding.Delta.Abs().GreaterThan(decimal.Tolerance) {
		g.log.Warn().
			Str("calculated", decimal.FormatAmount(withholding.Amount)).
			Str("extracted", decimal.FormatAmount(*fields.WithheldAmount)).
			Msg("calculated withholding differs from extracted retention, using calculated")
	}

	// Counterpart amount: base plus VAT minus withholding. Reverse
	// charge VAT nets out and never reaches the counterpart.
	counter := base
	if !vat.ReverseCharge {
		counter = counter.Add(vat.Amount)
	}
	if hasWithholding {
		counter = counter.Sub(withholding.Amount)
	}
	counter = decimal.RoundHalfUp(counter)

	if totalExtracted != nil && !decimal.WithinTolerance(counter, *totalExtracted) {
		g.log.Warn().
			Str("calculated", decimal.FormatAmount(counter)).
			Str("extracted", decimal.FormatAmount(*totalExtracted)).
			Msg("calculated total differs from extracted total, using calculated for balancing")
		e.Flag(ReasonTotalMismatch)
	}

	concept := e.Concept
	op := rule.OperationType
	switch {
	case op.ExpenseLike():
		e.AddLine(rule.Account, concept, base, decimal.Zero)
		if vat.ReverseCharge && decimal.IsPositive(vat.Amount) && vat.Account != "" {
			e.AddLine(vat.Account, "IVA Soportado ISP - "+concept, vat.Amount, decimal.Zero)
			e.AddLine(vat.MirrorAccount, "IVA Repercutido ISP - "+concept, decimal.Zero, vat.Amount)
		} else if !vat.ReverseCharge && decimal.IsPositive(vat.Amount) && vat.Account != "" {
			e.AddLine(vat.Account, concept, vat.Amount, decimal.Zero)
		}
		if hasWithholding && decimal.IsPositive(withholding.Amount) {
			e.AddLine(withholding.Account, concept, decimal.Zero, withholding.Amount)
		}
		e.AddLine(rule.CounterAccount, concept, decimal.Zero, counter)

	case op.IncomeLike():
		e.AddLine(rule.Account, concept, decimal.Zero, base)
		if !vat.ReverseCharge && decimal.IsPositive(vat.Amount) && vat.Account != "" {
			e.AddLine(vat.Account, concept, decimal.Zero, vat.Amount)
		}
		if hasWithholding && decimal.IsPositive(withholding.Amount) {
			e.AddLine(withholding.ReceivableAccount, concept, withholding.Amount, decimal.Zero)
		}
		e.AddLine(rule.CounterAccount, concept, counter, decimal.Zero)

	default:
		g.log.Error().Str("operation_type", string(op)).
			Msg("operation type not implemented for entry generation")
		e.Flag(fmt.Sprintf("Tipo de operación no soportado: %s", op))
		e.AddLine(tax.AccountReview, "Error tipo operacion", base, decimal.Zero)
		e.AddLine(tax.AccountReview, "Error tipo operacion", decimal.Zero, base)
	}

	for _, w := range fields.Warnings {
		e.Flag(w)
	}

	if !e.IsBalanced() {
		g.log.Error().
			Str("debit", decimal.FormatAmount(e.TotalDebit())).
			Str("credit", decimal.FormatAmount(e.TotalCredit())).
			Msg("entry does not balance, flagged for review")
		e.Flag(ReasonUnbalanced)
	}

	e.Tax = taxIdentity(fields)
	e.Tax.TaxableBase = base
	e.Tax.VATType = rule.TaxType
	e.Tax.VATAmount = vat.Amount
	e.Tax.TotalAmount = counter
	if totalExtracted != nil {
		e.Tax.TotalAmount = *totalExtracted
	}
	if hasWithholding {
		e.Tax.WithholdingType = rule.SpecialTreatment
		e.Tax.WithholdingAmount = withholding.Amount
	}

	return e, nil
}

// taxIdentity carries the extracted party identity into the entry's
// tax summary.
func taxIdentity(f *model.ExtractedFields) model.TaxSummary {
	return model.TaxSummary{
		IssuerName:        strValue(f.IssuerName),
		IssuerTaxID:       strValue(f.IssuerTaxID),
		CounterpartyName:  strValue(f.CounterpartyName),
		CounterpartyTaxID: strValue(f.CounterpartyTaxID),
	}
}

// exemptConfirmed reports whether the rule's special treatment
// explicitly confirms a VAT exemption.
func exemptConfirmed(specialTreatment string) bool {
	return strings.Contains(strings.ToLower(specialTreatment), "exento")
}
