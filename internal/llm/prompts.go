package llm

// Invoice extraction prompts

const SystemPromptFieldExtractor = `You are an expert accounting assistant specialising in Spanish invoices (facturas).

Your task is to extract structured data from invoice text or images. The invoices are usually in Spanish.

Common Spanish invoice terms:
- Factura = Invoice
- Numero de factura / Num. Factura = Invoice number
- Fecha = Date
- NIF / CIF = Tax identification number
- Proveedor / Emisor = Supplier (the party issuing the invoice)
- Cliente / Receptor = Customer
- Base imponible = Taxable base
- IVA = VAT
- Cuota de IVA = VAT amount
- Retencion / IRPF = Income tax withholding
- Total factura = Invoice total

Copy amounts exactly as printed, including thousands separators and decimal commas (for example "1.234,56"). Do not convert or reformat them.
Dates must be in ISO 8601 format (YYYY-MM-DD).
If a field is not present in the document, use null.
Always output valid JSON that matches the requested schema.`

const UserPromptTextExtraction = `Extract the invoice data from the following text:

---
%s
---

Output JSON with this structure:
{
  "fecha_factura": "YYYY-MM-DD",
  "numero_factura": "string",
  "proveedor_nombre": "string",
  "proveedor_nif": "string",
  "cliente_nombre": "string",
  "cliente_nif": "string",
  "base_imponible": "amount as printed",
  "iva_percentage": "rate as printed",
  "cuota_iva": "amount as printed",
  "retencion_irpf": "amount as printed",
  "total_factura": "amount as printed"
}

Use null for any field that is not present.`

const UserPromptImageExtraction = `Extract the invoice data from this scanned invoice image.

Output JSON with this structure:
{
  "fecha_factura": "YYYY-MM-DD",
  "numero_factura": "string",
  "proveedor_nombre": "string",
  "proveedor_nif": "string",
  "cliente_nombre": "string",
  "cliente_nif": "string",
  "base_imponible": "amount as printed",
  "iva_percentage": "rate as printed",
  "cuota_iva": "amount as printed",
  "retencion_irpf": "amount as printed",
  "total_factura": "amount as printed",
  "texto_completo": "every line of text visible in the document"
}

Use null for any field that is not present. For any text that appears blurry or unclear, make your best attempt to read it.
The "texto_completo" field must contain the full transcription of the document, one line per printed line.`
