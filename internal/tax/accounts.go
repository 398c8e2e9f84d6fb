// Package tax resolves Spanish VAT (IVA) and income withholding (IRPF)
// treatment for classified invoices: the applicable rate, the rounded
// amount and the chart account each quantity posts to. Amounts are
// computed from the taxable base and rounded half up once; extracted
// amounts are only compared against, never substituted.
package tax

// Chart accounts from the Spanish general accounting plan (PGC) used by
// generated entries. Main and counterpart accounts come from the matched
// rule; these cover the tax quantities the calculator resolves itself.
const (
	// Input VAT (IVA soportado) by rate bucket.
	AccountInputVATGeneral      = "472.21"
	AccountInputVATReduced      = "472.10"
	AccountInputVATSuperReduced = "472.04"

	// Output VAT (IVA repercutido) by rate bucket.
	AccountOutputVATGeneral      = "477.21"
	AccountOutputVATReduced      = "477.10"
	AccountOutputVATSuperReduced = "477.04"

	// IRPF retention payable, practiced on purchases.
	AccountWithholdingProfessional = "4751.01"
	AccountWithholdingRental       = "4751.02"

	// IRPF retention receivable, suffered on own income.
	AccountReceivableProfessional = "473.01"
	AccountReceivableRental       = "473.02"

	// Tax authority settlement balances.
	AccountTaxAuthorityDebtor   = "4700"
	AccountTaxAuthorityCreditor = "4750"

	// AccountReview marks postings that need a human decision before
	// they can reach the ledger.
	AccountReview = "000REVIEW"
)

// inputToOutput mirrors each input VAT account to the output account of
// the same rate bucket. The reverse charge self-assessment books both
// sides of the pair.
var inputToOutput = map[string]string{
	AccountInputVATGeneral:      AccountOutputVATGeneral,
	AccountInputVATReduced:      AccountOutputVATReduced,
	AccountInputVATSuperReduced: AccountOutputVATSuperReduced,
}

// payableToReceivable maps each retention payable account to the asset
// account used when the retention is suffered on own income.
var payableToReceivable = map[string]string{
	AccountWithholdingProfessional: AccountReceivableProfessional,
	AccountWithholdingRental:       AccountReceivableRental,
}

// MirrorOutputAccount returns the output VAT account paired with an
// input VAT account, or empty when the account has no mirror.
func MirrorOutputAccount(inputAccount string) string {
	return inputToOutput[inputAccount]
}

// ReceivableAccount returns the retention receivable account paired
// with a retention payable account, or empty when none applies.
func ReceivableAccount(payableAccount string) string {
	return payableToReceivable[payableAccount]
}

// StandardAccounts lists the chart accounts the calculator can post to,
// keyed by a stable descriptive name. Used by diagnostics output.
func StandardAccounts() map[string]string {
	return map[string]string{
		"iva_soportado_general":       AccountInputVATGeneral,
		"iva_soportado_reducido":      AccountInputVATReduced,
		"iva_soportado_superreducido": AccountInputVATSuperReduced,
		"iva_repercutido_general":     AccountOutputVATGeneral,
		"iva_repercutido_reducido":    AccountOutputVATReduced,
		"iva_repercutido_superred":    AccountOutputVATSuperReduced,
		"irpf_retencion_profesional":  AccountWithholdingProfessional,
		"irpf_retencion_alquiler":     AccountWithholdingRental,
		"irpf_soportado_profesional":  AccountReceivableProfessional,
		"irpf_soportado_alquiler":     AccountReceivableRental,
		"hacienda_deudora":            AccountTaxAuthorityDebtor,
		"hacienda_acreedora":          AccountTaxAuthorityCreditor,
		"revision_manual":             AccountReview,
	}
}
