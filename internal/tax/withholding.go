package tax

import (
	"strings"

	dec "github.com/shopspring/decimal"

	"github.com/contaflux/asientos/internal/decimal"
)

// WithholdingDetail is the resolved IRPF retention of one document.
type WithholdingDetail struct {
	// Rate is the retention percentage declared by the rule.
	Rate dec.Decimal

	// Amount is base * rate/100, rounded half up to cents.
	Amount dec.Decimal

	// Account is the retention payable account, credited on purchases.
	Account string

	// ReceivableAccount is the asset account debited when the
	// retention is suffered on own income.
	ReceivableAccount string

	// Delta is calculated minus extracted when an extracted retention
	// was available to compare against. The calculated amount wins.
	Delta    dec.Decimal
	HasDelta bool
}

// ComputeWithholding parses the retention percentage a rule declares in
// its special treatment ("IRPF (15%)", "Retencion Alquiler (19%)") and
// resolves the amount and accounts. Retention applies only when the
// rule declares it: the second return is false when the treatment is
// empty or carries no percentage. Treatments mentioning a rental
// ("alquiler", "rental") book to the rental accounts, everything else
// to the professional services accounts.
func ComputeWithholding(base dec.Decimal, specialTreatment string, extracted *dec.Decimal) (WithholdingDetail, bool) {
	var d WithholdingDetail
	t := strings.TrimSpace(specialTreatment)
	if t == "" {
		return d, false
	}
	m := embeddedPercent.FindStringSubmatch(t)
	if m == nil {
		return d, false
	}
	rate, ok := parsePercent(m[1])
	if !ok {
		return d, false
	}
	d.Rate = rate
	d.Amount = decimal.ApplyRate(base, rate)

	lower := strings.ToLower(t)
	if strings.Contains(lower, "alquiler") || strings.Contains(lower, "rental") {
		d.Account = AccountWithholdingRental
	} else {
		d.Account = AccountWithholdingProfessional
	}
	d.ReceivableAccount = ReceivableAccount(d.Account)

	if extracted != nil {
		d.Delta = decimal.RoundHalfUp(d.Amount.Sub(*extracted))
		d.HasDelta = true
	}
	return d, true
}
