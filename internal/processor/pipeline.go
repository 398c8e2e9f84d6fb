// Package processor wires classification, field extraction, tax
// resolution and entry generation into one pipeline over raw documents.
package processor

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/contaflux/asientos/internal/entry"
	"github.com/contaflux/asientos/internal/extract"
	"github.com/contaflux/asientos/internal/model"
	"github.com/contaflux/asientos/internal/ocr"
	"github.com/contaflux/asientos/internal/rules"
)

// ExtractionMethod identifies how fields were recovered
type ExtractionMethod string

const (
	MethodRegex     ExtractionMethod = "regex"
	MethodLLMText   ExtractionMethod = "llm_text"
	MethodLLMVision ExtractionMethod = "llm_vision"
)

// Format is the sniffed payload format
type Format int

const (
	FormatUnknown Format = iota
	FormatPDF
	FormatImage
	FormatText
)

func (f Format) String() string {
	switch f {
	case FormatPDF:
		return "pdf"
	case FormatImage:
		return "image"
	case FormatText:
		return "text"
	default:
		return "unknown"
	}
}

// DetectFormat sniffs the payload format from magic bytes.
func DetectFormat(data []byte) Format {
	switch {
	case len(data) == 0:
		return FormatUnknown
	case bytes.HasPrefix(data, []byte("%PDF-")):
		return FormatPDF
	case bytes.HasPrefix(data, []byte{0x89, 'P', 'N', 'G'}):
		return FormatImage
	case bytes.HasPrefix(data, []byte{0xff, 0xd8, 0xff}):
		return FormatImage
	case bytes.HasPrefix(data, []byte("II*\x00")), bytes.HasPrefix(data, []byte("MM\x00*")):
		return FormatImage
	case looksLikeText(data):
		return FormatText
	default:
		return FormatUnknown
	}
}

func looksLikeText(data []byte) bool {
	probe := data
	if len(probe) > 512 {
		probe = probe[:512]
	}
	return bytes.IndexByte(probe, 0) < 0
}

// Operator facing warnings attached to results.
const (
	WarnNoRule         = "Sin regla de clasificación aplicable."
	WarnLLMUnavailable = "Extracción con modelo no disponible; solo campos por patrones."
)

// FieldExtractor is the model backed fallback for documents the regex
// extractor cannot read.
type FieldExtractor interface {
	ExtractFromText(ctx context.Context, text string) (*model.ExtractedFields, error)
	ExtractFromImage(ctx context.Context, image []byte, mimeType string) (*model.ExtractedFields, string, error)
}

// Result is the outcome of processing one document. A nil Rule with a
// nil Error means the document did not match any classification rule
// and needs manual handling; no entry is fabricated for it.
type Result struct {
	Entry      *model.AccountingEntry
	Rule       *model.Rule
	Fields     *model.ExtractedFields
	Method     ExtractionMethod
	Confidence float64
	Warnings   []string
	Error      error
}

// Pipeline processes raw documents into accounting entries
type Pipeline struct {
	store     *rules.Store
	registry  *ocr.Registry
	pdf       *ocr.PDFProvider
	extractor FieldExtractor
	generator *entry.Generator
	log       zerolog.Logger
}

// Option configures the pipeline
type Option func(*Pipeline)

// WithStore sets the classification rule store
func WithStore(store *rules.Store) Option {
	return func(p *Pipeline) {
		p.store = store
	}
}

// WithLLMExtractor sets the model backed field extractor
func WithLLMExtractor(e FieldExtractor) Option {
	return func(p *Pipeline) {
		p.extractor = e
	}
}

// WithRegistry overrides the document text providers
func WithRegistry(r *ocr.Registry) Option {
	return func(p *Pipeline) {
		p.registry = r
	}
}

// WithPDFProvider overrides the PDF provider, e.g. to tune the scan
// detection thresholds
func WithPDFProvider(provider *ocr.PDFProvider) Option {
	return func(p *Pipeline) {
		p.pdf = provider
	}
}

// WithLogger sets the pipeline logger
func WithLogger(log zerolog.Logger) Option {
	return func(p *Pipeline) {
		p.log = log
	}
}

// NewPipeline creates a pipeline. Without options it classifies nothing
// (no store) and cannot read scans (no LLM extractor), but still
// extracts fields from digital documents.
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{
		registry: ocr.NewRegistry(),
		pdf:      ocr.NewPDFProvider(),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.generator = entry.New(p.log)
	return p
}

// ProcessText runs the pipeline over plain invoice text.
func (p *Pipeline) ProcessText(ctx context.Context, text string) *Result {
	result := &Result{Method: MethodRegex}

	text = strings.TrimSpace(text)
	if text == "" {
		result.Error = model.NewExtractionError("pipeline", "empty document text", nil)
		return result
	}

	fields := extract.Fields(text)
	if p.extractor != nil && missingCriticalFields(fields) {
		llmFields, err := p.extractor.ExtractFromText(ctx, text)
		if err != nil {
			p.log.Warn().Err(err).Msg("model extraction failed, keeping pattern fields")
			result.Warnings = append(result.Warnings, WarnLLMUnavailable)
		} else {
			mergeFields(fields, llmFields)
			result.Method = MethodLLMText
		}
	}

	p.finish(result, text, fields)
	return result
}

// ProcessPDF extracts the text layer of a PDF and runs the pipeline
// over it. Documents that look scanned are routed through the vision
// extractor instead.
func (p *Pipeline) ProcessPDF(ctx context.Context, data []byte) *Result {
	doc, err := p.pdf.ExtractDocument(ctx, data)
	if err != nil {
		return &Result{Method: MethodRegex, Error: err}
	}

	if p.pdf.NeedsOCR(doc) {
		if p.extractor == nil {
			return &Result{
				Method: MethodRegex,
				Error:  model.NewExtractionError("pipeline", "document looks scanned and LLM extractor not configured", nil),
			}
		}
		return p.processScanned(ctx, data, doc)
	}

	return p.ProcessText(ctx, doc.Text)
}

// ProcessImage reads an invoice image through the vision extractor.
func (p *Pipeline) ProcessImage(ctx context.Context, image []byte, mimeType string) *Result {
	result := &Result{Method: MethodLLMVision}

	if p.extractor == nil {
		result.Error = model.NewExtractionError("pipeline", "LLM extractor not configured", nil)
		return result
	}

	fields, transcript, err := p.extractor.ExtractFromImage(ctx, image, mimeType)
	if err != nil {
		result.Error = err
		return result
	}
	mergeFields(fields, extract.Fields(transcript))

	p.finish(result, transcript, fields)
	return result
}

// ProcessFile routes a raw document by sniffed format.
func (p *Pipeline) ProcessFile(ctx context.Context, filename string, data []byte) *Result {
	switch DetectFormat(data) {
	case FormatPDF:
		return p.ProcessPDF(ctx, data)
	case FormatImage:
		return p.ProcessImage(ctx, data, sniffImageMime(data))
	case FormatText:
		text, _, err := p.registry.Extract(ctx, filename, data)
		if err != nil {
			return &Result{Method: MethodRegex, Error: err}
		}
		return p.ProcessText(ctx, text)
	default:
		return &Result{
			Method: MethodRegex,
			Error:  model.NewExtractionError("pipeline", fmt.Sprintf("unsupported document format: %s", filename), nil),
		}
	}
}

// Classify matches text against the rule snapshot without generating an
// entry.
func (p *Pipeline) Classify(text string) *model.Rule {
	if p.store == nil {
		return nil
	}
	snap := p.store.Snapshot()
	if snap == nil {
		return nil
	}
	return snap.Match(text)
}

func (p *Pipeline) processScanned(ctx context.Context, data []byte, doc ocr.Document) *Result {
	result := &Result{Method: MethodLLMVision}

	images, err := p.pdf.ExtractImages(ctx, data)
	if err != nil {
		result.Error = err
		return result
	}
	img := pickScanImage(images)
	if img == nil {
		result.Error = model.NewExtractionError("pdf", "scanned document has no readable embedded images", nil)
		return result
	}
	p.log.Debug().Int("page", img.Page).Str("mime", img.MimeType).Msg("reading scan through vision model")

	fields, transcript, err := p.extractor.ExtractFromImage(ctx, img.Data, img.MimeType)
	if err != nil {
		result.Error = err
		return result
	}

	// The transcript drives classification; keep whatever thin text
	// layer the document had as a fallback.
	text := transcript
	if strings.TrimSpace(text) == "" {
		text = doc.Text
	}
	mergeFields(fields, extract.Fields(text))

	p.finish(result, text, fields)
	return result
}

// finish classifies the text, generates the entry and scores the result.
func (p *Pipeline) finish(result *Result, text string, fields *model.ExtractedFields) {
	result.Fields = fields
	result.Rule = p.Classify(text)

	if result.Rule == nil {
		p.log.Info().Msg("no classification rule matched")
		result.Warnings = append(result.Warnings, WarnNoRule)
		result.Confidence = scoreConfidence(result)
		return
	}

	generated, err := p.generator.Generate(&model.ClassifiedTransaction{
		Rule:       result.Rule,
		SourceText: text,
		Fields:     fields,
	})
	if err != nil {
		result.Error = err
		result.Confidence = scoreConfidence(result)
		return
	}
	generated.DocumentID = uuid.NewString()
	result.Entry = generated
	result.Confidence = scoreConfidence(result)

	p.log.Info().
		Str("document_id", generated.DocumentID).
		Str("account", result.Rule.Account).
		Bool("needs_review", generated.NeedsReview).
		Float64("confidence", result.Confidence).
		Msg("entry generated")
}

// missingCriticalFields reports whether the pattern pass left gaps the
// model fallback should try to fill.
func missingCriticalFields(f *model.ExtractedFields) bool {
	return f.InvoiceDate == nil || f.TaxableBase == nil || f.TotalAmount == nil
}

// mergeFields fills the gaps in dst from src without overwriting
// anything dst already has, then re-checks arithmetic consistency over
// the merged set.
func mergeFields(dst, src *model.ExtractedFields) {
	if src == nil {
		return
	}
	if dst.InvoiceDate == nil {
		dst.InvoiceDate = src.InvoiceDate
	}
	if dst.InvoiceNumber == nil {
		dst.InvoiceNumber = src.InvoiceNumber
	}
	if dst.IssuerName == nil {
		dst.IssuerName = src.IssuerName
	}
	if dst.IssuerTaxID == nil {
		dst.IssuerTaxID = src.IssuerTaxID
	}
	if dst.CounterpartyName == nil {
		dst.CounterpartyName = src.CounterpartyName
	}
	if dst.CounterpartyTaxID == nil {
		dst.CounterpartyTaxID = src.CounterpartyTaxID
	}
	if dst.TaxableBase == nil {
		dst.TaxableBase = src.TaxableBase
	}
	if dst.TaxRateHint == nil {
		dst.TaxRateHint = src.TaxRateHint
	}
	if dst.TaxAmount == nil {
		dst.TaxAmount = src.TaxAmount
	}
	if dst.WithheldAmount == nil {
		dst.WithheldAmount = src.WithheldAmount
	}
	if dst.TotalAmount == nil {
		dst.TotalAmount = src.TotalAmount
	}
	dst.Warnings = nil
	extract.CheckConsistency(dst)
}

// pickScanImage returns the first embedded image with a mime type the
// vision models accept.
func pickScanImage(images []ocr.PageImage) *ocr.PageImage {
	for i := range images {
		switch images[i].MimeType {
		case "image/jpeg", "image/png", "image/webp":
			return &images[i]
		}
	}
	return nil
}

func sniffImageMime(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte("II*\x00")), bytes.HasPrefix(data, []byte("MM\x00*")):
		return "image/tiff"
	default:
		return http.DetectContentType(data)
	}
}
