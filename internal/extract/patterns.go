package extract

import "regexp"

// Field names assigned during extraction
const (
	fieldInvoiceDate       = "invoice_date"
	fieldInvoiceNumber     = "invoice_number"
	fieldIssuerTaxID       = "issuer_tax_id"
	fieldCounterpartyTaxID = "counterparty_tax_id"
	fieldIssuerName        = "issuer_name"
	fieldCounterpartyName  = "counterparty_name"
	fieldTaxableBase       = "taxable_base"
	fieldTaxRateHint       = "tax_rate_hint"
	fieldTaxAmount         = "tax_amount"
	fieldWithheldAmount    = "withheld_amount"
	fieldTotalAmount       = "total_amount"
)

// amountTail captures "1.234,56", "1,234.56" and "1234.56" style amounts
// after a label
const amountTail = `([-+]?\d{1,3}(?:[.,\s]\d{3})*[.,]\d{2}|-?\d+[.,]\d{2})`

// taxIDTail covers common Spanish NIF/CIF shapes and generic EU VAT ids
const taxIDTail = `([A-Z][\s-]?\d{7,8}[\s-]?[A-Z\d]|[A-Z]{2}[\s-]?\d{9}|[A-Z\d]{8,10}[A-Z])`

// nameTail matches a capitalized company or person name, optionally with a
// Spanish or English legal-form suffix
const nameTail = `([A-ZÁÉÍÓÚÑ][A-Za-zÁÉÍÓÚÑ\s.,&'-]+(?:S\.?L\.?U?\.?|S\.?A\.?U?\.?|S\.?C\.?P\.?|,?\sInc\.?|,?\sLtd\.?)?)`

type fieldPattern struct {
	name string
	re   *regexp.Regexp
}

// patterns in extraction order: identifiers first, names after the tax ids,
// amounts last with the total at the end. The first non-empty match wins.
var patterns = []fieldPattern{
	{fieldInvoiceDate, regexp.MustCompile(`(?i)(?:fecha factura|factura de fecha|date of invoice|invoice date)[:\s]*(\d{1,2}[-/.\s]\d{1,2}[-/.\s]\d{2,4}|\d{2,4}[-/.\s]\d{1,2}[-/.\s]\d{1,2})`)},
	{fieldInvoiceNumber, regexp.MustCompile(`(?i)(?:factura n[ºo.\s:]*|invoice no\.?|n[ºo.\s:]*factura|f[ra]\s?n[ºo.\s:]*)([A-Z0-9/\s-]+[A-Z0-9])`)},
	{fieldIssuerTaxID, regexp.MustCompile(`(?i)(?:NIF|CIF|VAT ID|VAT No)[:\s]*` + taxIDTail)},
	{fieldCounterpartyTaxID, regexp.MustCompile(`(?i)(?:NIF cliente|CIF cliente|VAT ID cliente|NIF\s\(destinatario\))[:\s]*` + taxIDTail)},
	{fieldIssuerName, regexp.MustCompile(`(?i)(?:proveedor|supplier|vendedor|de|emisor|issued by)[:\s\n]*` + nameTail)},
	{fieldCounterpartyName, regexp.MustCompile(`(?i)(?:cliente|customer|comprador|para|destinatario|billed to)[:\s\n]*` + nameTail)},
	{fieldTaxableBase, regexp.MustCompile(`(?i)(?:base imponible|subtotal|net amount|taxable amount|importe base|base gravable)[:\s€$£]*\s*` + amountTail)},
	{fieldTaxRateHint, regexp.MustCompile(`(?i)(?:IVA|VAT|Impuesto sobre el Valor A[ñn]adido)\s*\(?(\d{1,2}(?:[.,]\d{1,2})?)\s*%?\)?`)},
	{fieldTaxAmount, regexp.MustCompile(`(?i)(?:total iva|iva \([\d\s.,%]+\)|vat amount|cuota de iva|i\.v\.a\.|iva repercutido)[:\s€$£]*\s*` + amountTail)},
	{fieldWithheldAmount, regexp.MustCompile(`(?i)(?:retenci[oó]n IRPF|IRPF retenido|retenci[oó]n s/IRPF|withholding tax|ret\.irpf)[:\s€$£%]*\s*` + amountTail)},
	{fieldTotalAmount, regexp.MustCompile(`(?i)(?:total factura|total a pagar|importe total|total amount|invoice total|gran total)[:\s€$£]*\s*` + amountTail)},
}
