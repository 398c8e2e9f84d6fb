package tax

import (
	"regexp"
	"strings"

	dec "github.com/shopspring/decimal"

	"github.com/contaflux/asientos/internal/decimal"
	"github.com/contaflux/asientos/internal/model"
)

var (
	rateGeneral      = dec.NewFromInt(21)
	rateReduced      = dec.NewFromInt(10)
	rateSuperReduced = dec.NewFromInt(4)

	// reverseChargeDefaultRate applies when an ISP tax type carries no
	// embedded percentage.
	reverseChargeDefaultRate = dec.NewFromInt(21)
)

// vatRates maps the canonical tax type vocabulary to its percentage.
var vatRates = map[string]dec.Decimal{
	model.TaxGeneral:      rateGeneral,
	model.TaxReduced:      rateReduced,
	model.TaxSuperReduced: rateSuperReduced,
	model.TaxExempt:       dec.Zero,
	model.TaxNotSubject:   dec.Zero,
}

var (
	// embeddedPercent finds a percentage anywhere in free text, e.g.
	// "ISP (21%)".
	embeddedPercent = regexp.MustCompile(`(\d{1,2}(?:[.,]\d{1,2})?)\s*%`)
	// leadingPercent matches a tax type given directly as a percentage,
	// e.g. "7,5%".
	leadingPercent = regexp.MustCompile(`^(\d{1,2}(?:[.,]\d{1,2})?)\s*%`)
)

// VATDetail is the resolved VAT treatment of one document.
type VATDetail struct {
	// Rate is the applied percentage, e.g. 21 for the general rate.
	Rate dec.Decimal

	// Amount is base * rate/100, rounded half up to cents.
	Amount dec.Decimal

	// Account is the VAT chart account for the operation side. Empty
	// when the rate maps to no standard bucket; the generator then
	// leaves the quantity unposted, which surfaces as an unbalanced
	// entry flagged for review.
	Account string

	// MirrorAccount is the output account completing a reverse charge
	// pair. Set only together with ReverseCharge.
	MirrorAccount string

	// ReverseCharge marks self-assessed VAT (inversión del sujeto
	// pasivo). The entry books both the input and output side.
	ReverseCharge bool

	// ZeroRate marks exempt, not-subject and explicit 0% treatments.
	ZeroRate bool

	// Delta is calculated minus extracted when an extracted quota was
	// available to compare against. The calculated amount always wins;
	// deltas beyond the tolerance are the caller's to log.
	Delta    dec.Decimal
	HasDelta bool
}

// ComputeVAT resolves rate, amount and account for a rule's tax type
// applied to a taxable base. The type is canonical vocabulary
// ("General (21%)"), a bare percentage ("7,5%"), an exemption wording,
// or an ISP marker with an optional embedded rate. An empty type means
// no VAT treatment and resolves to a zero detail. Unrecognised types
// return a CalculationError; callers decide whether that blocks the
// entry or just leaves the quantity unposted.
func ComputeVAT(base dec.Decimal, taxType string, extracted *dec.Decimal, op model.OperationType) (VATDetail, error) {
	var d VATDetail
	t := strings.TrimSpace(taxType)
	if t == "" {
		return d, nil
	}

	if strings.HasPrefix(strings.ToUpper(t), model.TaxReverseCharge) {
		d.ReverseCharge = true
		d.Rate = reverseChargeDefaultRate
		if m := embeddedPercent.FindStringSubmatch(t); m != nil {
			if rate, ok := parsePercent(m[1]); ok {
				d.Rate = rate
			}
		}
	} else if rate, ok := vatRates[t]; ok {
		d.Rate = rate
	} else if m := leadingPercent.FindStringSubmatch(t); m != nil {
		rate, ok := parsePercent(m[1])
		if !ok {
			return d, model.NewCalculationError("iva", taxType, "unparseable rate")
		}
		d.Rate = rate
	} else if lower := strings.ToLower(t); strings.Contains(lower, "exento") || strings.Contains(lower, "no sujeto") {
		d.Rate = dec.Zero
	} else {
		return d, model.NewCalculationError("iva", taxType, "unrecognised tax type")
	}

	d.ZeroRate = d.Rate.IsZero()
	d.Amount = decimal.ApplyRate(base, d.Rate)
	if !d.ZeroRate {
		if d.ReverseCharge || op.ExpenseLike() {
			d.Account = inputAccountForRate(d.Rate)
			if d.ReverseCharge {
				d.MirrorAccount = MirrorOutputAccount(d.Account)
			}
		} else {
			d.Account = outputAccountForRate(d.Rate)
		}
	}

	if extracted != nil {
		d.Delta = decimal.RoundHalfUp(d.Amount.Sub(*extracted))
		d.HasDelta = true
	}
	return d, nil
}

// inputAccountForRate returns the input VAT account of a standard rate
// bucket, or empty for non-standard rates.
func inputAccountForRate(rate dec.Decimal) string {
	switch {
	case rate.Equal(rateGeneral):
		return AccountInputVATGeneral
	case rate.Equal(rateReduced):
		return AccountInputVATReduced
	case rate.Equal(rateSuperReduced):
		return AccountInputVATSuperReduced
	}
	return ""
}

// outputAccountForRate returns the output VAT account of a standard
// rate bucket, or empty for non-standard rates.
func outputAccountForRate(rate dec.Decimal) string {
	switch {
	case rate.Equal(rateGeneral):
		return AccountOutputVATGeneral
	case rate.Equal(rateReduced):
		return AccountOutputVATReduced
	case rate.Equal(rateSuperReduced):
		return AccountOutputVATSuperReduced
	}
	return ""
}

// parsePercent converts a captured percentage with an optional comma
// decimal separator into a decimal rate.
func parsePercent(raw string) (dec.Decimal, bool) {
	normalized := strings.Replace(raw, ",", ".", 1)
	rate, err := dec.NewFromString(normalized)
	if err != nil {
		return dec.Zero, false
	}
	return rate, true
}
