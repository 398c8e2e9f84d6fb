// Package model defines the domain types shared across the pipeline:
// classification rules, extracted invoice fields, and the accounting
// entry aggregate handed to sinks and exporters.
package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// OperationType is the accounting treatment of a classified document.
// Values are carried verbatim from the rule source vocabulary.
type OperationType string

const (
	OperationExpense       OperationType = "Gasto"
	OperationIncome        OperationType = "Ingreso"
	OperationAssetPurchase OperationType = "Inversion"
)

// ExpenseLike reports whether the operation books on the purchase side.
// Rule sources qualify the vocabulary freely ("Gasto Alquiler"), so the
// match is by substring.
func (o OperationType) ExpenseLike() bool {
	t := strings.ToLower(string(o))
	return strings.Contains(t, "gasto") || strings.Contains(t, "compra") ||
		strings.Contains(t, "inversion") || strings.Contains(t, "inversión")
}

// IncomeLike reports whether the operation books on the sales side
func (o OperationType) IncomeLike() bool {
	t := strings.ToLower(string(o))
	return strings.Contains(t, "ingreso") || strings.Contains(t, "venta")
}

// Tax type vocabulary of the rule source. Free text outside this set is
// tolerated; the tax calculator resolves it by embedded percentage.
const (
	TaxGeneral       = "General (21%)"
	TaxReduced       = "Reducido (10%)"
	TaxSuperReduced  = "Superreducido (4%)"
	TaxExempt        = "Exento"
	TaxNotSubject    = "No Sujeto"
	TaxReverseCharge = "ISP"
)

// DefaultJournal is the journal code used when no other is configured
const DefaultJournal = "1"

// PlaceholderDate marks an entry whose invoice date could not be extracted
const PlaceholderDate = "YYYY-MM-DD"

// Rule is one classification rule. Rules are immutable once loaded; the
// store replaces its snapshot wholesale instead of mutating in place.
type Rule struct {
	Keywords         []string      `json:"keywords"`
	Priority         int           `json:"priority"`
	Account          string        `json:"account"`
	CounterAccount   string        `json:"counter_account"`
	OperationType    OperationType `json:"operation_type"`
	TaxType          string        `json:"tax_type"`
	SpecialTreatment string        `json:"special_treatment,omitempty"`
	ConceptTemplate  string        `json:"concept_template,omitempty"`
}

// Matches reports whether any keyword occurs in the lowercased text.
// Rules without keywords never match.
func (r *Rule) Matches(lowered string) bool {
	for _, kw := range r.Keywords {
		if kw != "" && strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

// ExtractedFields holds the structured fields recovered from invoice text.
// Every field is optional: nil means not found or not parseable, which is
// an ordinary outcome, not an error. Monetary fields are exact decimals.
type ExtractedFields struct {
	InvoiceDate       *string          `json:"invoice_date,omitempty"`
	InvoiceNumber     *string          `json:"invoice_number,omitempty"`
	IssuerName        *string          `json:"issuer_name,omitempty"`
	IssuerTaxID       *string          `json:"issuer_tax_id,omitempty"`
	CounterpartyName  *string          `json:"counterparty_name,omitempty"`
	CounterpartyTaxID *string          `json:"counterparty_tax_id,omitempty"`
	TaxableBase       *decimal.Decimal `json:"taxable_base,omitempty"`
	TaxRateHint       *decimal.Decimal `json:"tax_rate_hint,omitempty"`
	TaxAmount         *decimal.Decimal `json:"tax_amount,omitempty"`
	WithheldAmount    *decimal.Decimal `json:"withheld_amount,omitempty"`
	TotalAmount       *decimal.Decimal `json:"total_amount,omitempty"`

	// Warnings collects soft consistency findings, folded into the
	// entry's review reasons by the generator
	Warnings []string `json:"warnings,omitempty"`
}

// ClassifiedTransaction pairs a matched rule with the source text and the
// fields extracted from it
type ClassifiedTransaction struct {
	Rule       *Rule            `json:"rule"`
	SourceText string           `json:"source_text"`
	Fields     *ExtractedFields `json:"fields,omitempty"`
}

// ValidForEntry reports whether the transaction can drive entry
// generation: a rule with both an account and an operation type
func (t *ClassifiedTransaction) ValidForEntry() bool {
	return t.Rule != nil && t.Rule.Account != "" && t.Rule.OperationType != ""
}

// EntryLine is a single debit or credit posting
type EntryLine struct {
	Account string          `json:"account"`
	Concept string          `json:"concept"`
	Debit   decimal.Decimal `json:"debit"`
	Credit  decimal.Decimal `json:"credit"`
}

// TaxSummary carries party identity and the computed tax figures of an
// entry as a typed sub-record, one per entry
type TaxSummary struct {
	IssuerName        string          `json:"issuer_name,omitempty"`
	IssuerTaxID       string          `json:"issuer_tax_id,omitempty"`
	CounterpartyName  string          `json:"counterparty_name,omitempty"`
	CounterpartyTaxID string          `json:"counterparty_tax_id,omitempty"`
	TaxableBase       decimal.Decimal `json:"taxable_base"`
	VATType           string          `json:"vat_type,omitempty"`
	VATAmount         decimal.Decimal `json:"vat_amount"`
	WithholdingType   string          `json:"withholding_type,omitempty"`
	WithholdingAmount decimal.Decimal `json:"withholding_amount"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
}

// AccountingEntry is the aggregate produced per document. Once handed to
// a sink it is read-only by convention; sinks never mutate entries.
type AccountingEntry struct {
	Date          string      `json:"date"`
	Journal       string      `json:"journal"`
	Concept       string      `json:"concept"`
	Lines         []EntryLine `json:"lines"`
	DocumentID    string      `json:"document_id,omitempty"`
	DocumentLink  string      `json:"document_link,omitempty"`
	NeedsReview   bool        `json:"needs_manual_review"`
	ReviewReasons []string    `json:"review_reasons,omitempty"`
	Tax           TaxSummary  `json:"tax"`
}

// NewEntry creates an entry with the default journal code
func NewEntry(date string) *AccountingEntry {
	return &AccountingEntry{
		Date:    date,
		Journal: DefaultJournal,
	}
}

// AddLine appends a posting
func (e *AccountingEntry) AddLine(account, concept string, debit, credit decimal.Decimal) {
	e.Lines = append(e.Lines, EntryLine{
		Account: account,
		Concept: concept,
		Debit:   debit,
		Credit:  credit,
	})
}

// Flag marks the entry for manual review, accumulating the reason
func (e *AccountingEntry) Flag(reason string) {
	e.NeedsReview = true
	if reason != "" {
		e.ReviewReasons = append(e.ReviewReasons, reason)
	}
}

// ReviewReason renders the accumulated reasons as one string
func (e *AccountingEntry) ReviewReason() string {
	return strings.Join(e.ReviewReasons, " ")
}

// TotalDebit sums the debit side
func (e *AccountingEntry) TotalDebit() decimal.Decimal {
	total := decimal.Zero
	for _, l := range e.Lines {
		total = total.Add(l.Debit)
	}
	return total
}

// TotalCredit sums the credit side
func (e *AccountingEntry) TotalCredit() decimal.Decimal {
	total := decimal.Zero
	for _, l := range e.Lines {
		total = total.Add(l.Credit)
	}
	return total
}

// IsBalanced reports whether debits equal credits to the cent
func (e *AccountingEntry) IsBalanced() bool {
	return e.TotalDebit().Round(2).Equal(e.TotalCredit().Round(2))
}
