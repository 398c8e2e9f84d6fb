package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	dec "github.com/shopspring/decimal"

	"github.com/contaflux/asientos/internal/extract"
	"github.com/contaflux/asientos/internal/model"
)

// Extractor recovers invoice fields through the language model. It is
// the fallback for documents the regex extractor cannot read: free-form
// text without recognisable labels and scanned images.
type Extractor struct {
	client      *Client
	model       string
	visionModel string
}

// ExtractorOption configures the extractor
type ExtractorOption func(*Extractor)

// WithModel sets the model for text extraction
func WithModel(model string) ExtractorOption {
	return func(e *Extractor) {
		e.model = model
	}
}

// WithVisionModel sets the model for image extraction
func WithVisionModel(model string) ExtractorOption {
	return func(e *Extractor) {
		e.visionModel = model
	}
}

// NewExtractor creates an extractor on top of client
func NewExtractor(client *Client, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		client:      client,
		visionModel: ModelGPT4o,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FieldsResponse mirrors the JSON schema the prompts request. Every
// member is optional; amounts arrive as printed on the document and run
// through the same locale normalisation as the regex extractor. The
// vision prompt additionally asks for a full transcription so the
// classifier has text to match keywords against.
type FieldsResponse struct {
	InvoiceDate       *string `json:"fecha_factura"`
	InvoiceNumber     *string `json:"numero_factura"`
	IssuerName        *string `json:"proveedor_nombre"`
	IssuerTaxID       *string `json:"proveedor_nif"`
	CounterpartyName  *string `json:"cliente_nombre"`
	CounterpartyTaxID *string `json:"cliente_nif"`
	TaxableBase       *string `json:"base_imponible"`
	TaxRate           *string `json:"iva_percentage"`
	TaxAmount         *string `json:"cuota_iva"`
	WithheldAmount    *string `json:"retencion_irpf"`
	TotalAmount       *string `json:"total_factura"`
	FullText          *string `json:"texto_completo"`
}

// ExtractFromText asks the model for the fields of a plain text invoice.
func (e *Extractor) ExtractFromText(ctx context.Context, text string) (*model.ExtractedFields, error) {
	prompt := fmt.Sprintf(UserPromptTextExtraction, text)
	raw, err := e.client.ChatText(ctx, e.model, SystemPromptFieldExtractor, prompt)
	if err != nil {
		return nil, model.NewExtractionError("llm", "text extraction request", err)
	}
	fields, _, err := parseFieldsResponse(raw)
	return fields, err
}

// ExtractFromImage asks the vision model to read a scanned invoice. The
// returned transcript is the model's full reading of the document.
func (e *Extractor) ExtractFromImage(ctx context.Context, image []byte, mimeType string) (*model.ExtractedFields, string, error) {
	raw, err := e.client.ChatWithImage(ctx, e.visionModel, SystemPromptFieldExtractor, UserPromptImageExtraction, image, mimeType)
	if err != nil {
		return nil, "", model.NewExtractionError("llm-vision", "image extraction request", err)
	}
	return parseFieldsResponse(raw)
}

func parseFieldsResponse(raw string) (*model.ExtractedFields, string, error) {
	payload := ExtractJSON(raw)

	var resp FieldsResponse
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		return nil, "", model.NewExtractionError("llm", "decode model response", err)
	}
	transcript, _ := cleanString(resp.FullText)
	return resp.Fields(), transcript, nil
}

// Fields normalises the response into extracted fields. Values the
// model returns in shapes the normalisers cannot read are dropped, the
// same policy the regex extractor applies to its captures.
func (r *FieldsResponse) Fields() *model.ExtractedFields {
	f := &model.ExtractedFields{}

	if v, ok := cleanString(r.InvoiceDate); ok {
		if date, ok := extract.NormalizeDate(v); ok {
			f.InvoiceDate = &date
		}
	}
	if v, ok := cleanString(r.InvoiceNumber); ok {
		f.InvoiceNumber = &v
	}
	if v, ok := cleanString(r.IssuerName); ok {
		f.IssuerName = &v
	}
	if v, ok := cleanString(r.IssuerTaxID); ok {
		id := extract.NormalizeTaxID(v)
		f.IssuerTaxID = &id
	}
	if v, ok := cleanString(r.CounterpartyName); ok {
		f.CounterpartyName = &v
	}
	if v, ok := cleanString(r.CounterpartyTaxID); ok {
		id := extract.NormalizeTaxID(v)
		f.CounterpartyTaxID = &id
	}

	f.TaxableBase = responseAmount(r.TaxableBase)
	f.TaxRateHint = responseRate(r.TaxRate)
	f.TaxAmount = responseAmount(r.TaxAmount)
	f.WithheldAmount = responseAmount(r.WithheldAmount)
	f.TotalAmount = responseAmount(r.TotalAmount)

	extract.CheckConsistency(f)
	return f
}

// cleanString unwraps a response member, treating the usual "not found"
// spellings models produce as absent.
func cleanString(v *string) (string, bool) {
	if v == nil {
		return "", false
	}
	s := strings.TrimSpace(*v)
	switch strings.ToLower(s) {
	case "", "null", "n/a", "-", "no consta":
		return "", false
	}
	return s, true
}

func responseAmount(v *string) *dec.Decimal {
	s, ok := cleanString(v)
	if !ok {
		return nil
	}
	if d, ok := extract.NormalizeAmount(s); ok {
		return &d
	}
	return nil
}

// responseRate tolerates a trailing percent sign
func responseRate(v *string) *dec.Decimal {
	s, ok := cleanString(v)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	if d, ok := extract.NormalizeAmount(s); ok {
		return &d
	}
	return nil
}
