// Package asientolib is the public API for turning free-form invoice
// documents into balanced Spanish double-entry accounting records.
//
// It wraps the classification, extraction, tax and entry generation
// pipeline behind a small surface:
//
//	proc, err := asientolib.NewProcessor(asientolib.Options{RulesPath: "reglas.csv"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := proc.ProcessText(ctx, invoiceText)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Entry.Concept)
package asientolib

import (
	"github.com/contaflux/asientos/internal/model"
	"github.com/contaflux/asientos/internal/rules"
	"github.com/contaflux/asientos/internal/sheet"
)

// Re-export core types for the public API
type (
	AccountingEntry       = model.AccountingEntry
	EntryLine             = model.EntryLine
	TaxSummary            = model.TaxSummary
	Rule                  = model.Rule
	ExtractedFields       = model.ExtractedFields
	ClassifiedTransaction = model.ClassifiedTransaction
	OperationType         = model.OperationType
)

// Re-export operation types
const (
	OperationExpense       = model.OperationExpense
	OperationIncome        = model.OperationIncome
	OperationAssetPurchase = model.OperationAssetPurchase
)

// Re-export the VAT vocabulary of the rule sources
const (
	TaxGeneral       = model.TaxGeneral
	TaxReduced       = model.TaxReduced
	TaxSuperReduced  = model.TaxSuperReduced
	TaxExempt        = model.TaxExempt
	TaxNotSubject    = model.TaxNotSubject
	TaxReverseCharge = model.TaxReverseCharge
)

// Re-export error types
type (
	ParseError      = model.ParseError
	RuleError       = model.RuleError
	ExtractionError = model.ExtractionError
)

// RuleSource provides classification rules from a tabular backend.
// rules.NewCSVSource and rules.NewSheetsSource satisfy it.
type RuleSource = rules.Source

// EntrySink receives generated accounting entries.
type EntrySink = sheet.Sink
