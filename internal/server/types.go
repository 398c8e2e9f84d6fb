package server

import (
	"time"

	"github.com/contaflux/asientos/internal/model"
)

// ProcessResponse is the response of the process endpoints. Entry is
// omitted when no classification rule matched the document.
type ProcessResponse struct {
	Entry      *model.AccountingEntry `json:"entry,omitempty"`
	Rule       *RuleSummary           `json:"rule,omitempty"`
	Fields     *model.ExtractedFields `json:"fields,omitempty"`
	Method     string                 `json:"method"`
	Confidence float64                `json:"confidence"`
	Warnings   []string               `json:"warnings,omitempty"`
}

// RuleSummary is the wire form of a classification rule
type RuleSummary struct {
	Keywords         []string `json:"keywords,omitempty"`
	Priority         int      `json:"priority"`
	Account          string   `json:"account"`
	CounterAccount   string   `json:"counter_account"`
	OperationType    string   `json:"operation_type"`
	TaxType          string   `json:"tax_type"`
	SpecialTreatment string   `json:"special_treatment,omitempty"`
	ConceptTemplate  string   `json:"concept_template,omitempty"`
}

// ClassifyResponse is the response of the classify endpoint
type ClassifyResponse struct {
	Matched bool         `json:"matched"`
	Rule    *RuleSummary `json:"rule,omitempty"`
}

// RulesResponse summarizes the active rule snapshot
type RulesResponse struct {
	Count    int           `json:"count"`
	Version  string        `json:"version"`
	LoadedAt time.Time     `json:"loaded_at"`
	Rules    []RuleSummary `json:"rules"`
}

// ErrorResponse is the standard error payload
type ErrorResponse struct {
	Error    string   `json:"error"`
	Warnings []string `json:"warnings,omitempty"`
}

func ruleSummary(r *model.Rule) *RuleSummary {
	if r == nil {
		return nil
	}
	return &RuleSummary{
		Keywords:         r.Keywords,
		Priority:         r.Priority,
		Account:          r.Account,
		CounterAccount:   r.CounterAccount,
		OperationType:    string(r.OperationType),
		TaxType:          r.TaxType,
		SpecialTreatment: r.SpecialTreatment,
		ConceptTemplate:  r.ConceptTemplate,
	}
}
