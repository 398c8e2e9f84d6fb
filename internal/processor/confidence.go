package processor

import (
	"github.com/contaflux/asientos/internal/decimal"
	"github.com/contaflux/asientos/internal/model"
)

// scoreConfidence grades a result between 0 and 1. The rule match and
// the monetary fields dominate; an entry flagged for review loses a
// quarter of the score.
func scoreConfidence(r *Result) float64 {
	score := 0.0
	if r.Rule != nil {
		score += 0.35
	}
	if f := r.Fields; f != nil {
		if f.InvoiceDate != nil {
			score += 0.15
		}
		if f.InvoiceNumber != nil {
			score += 0.10
		}
		if f.TaxableBase != nil {
			score += 0.10
		}
		if f.TotalAmount != nil {
			score += 0.10
		}
		if f.IssuerTaxID != nil {
			score += 0.05
		}
		if f.CounterpartyTaxID != nil {
			score += 0.05
		}
		if arithmeticallyConsistent(f) {
			score += 0.15
		}
	}
	if r.Entry != nil && r.Entry.NeedsReview {
		score -= 0.25
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// arithmeticallyConsistent reports whether base plus tax minus any
// withholding lands on the stated total.
func arithmeticallyConsistent(f *model.ExtractedFields) bool {
	if f.TaxableBase == nil || f.TaxAmount == nil || f.TotalAmount == nil {
		return false
	}
	expected := f.TaxableBase.Add(*f.TaxAmount)
	if f.WithheldAmount != nil {
		expected = expected.Sub(*f.WithheldAmount)
	}
	return decimal.WithinTolerance(decimal.RoundHalfUp(expected), *f.TotalAmount)
}
