package ocr

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfcpulib "github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/contaflux/asientos/internal/model"
)

// Extraction quality thresholds. A text layer thinner than both limits
// usually means the document is a scan that needs vision extraction.
const (
	DefaultMinCharsPerPage = 100
	DefaultMinTotalChars   = 500
)

// TJ kern offsets at or beyond this magnitude are rendered as a space.
const kernSpaceThreshold = 180

// Document is the outcome of a native text pass over a PDF.
type Document struct {
	Text  string
	Pages int
}

// PDFProvider reads the embedded text layer of digital PDFs by decoding
// page content streams. Font encodings are not resolved, so the result
// is best effort; scanned documents come back near empty and should be
// routed to vision extraction instead.
type PDFProvider struct {
	minPerPage int
	minTotal   int
}

type PDFOption func(*PDFProvider)

// WithScanThresholds overrides the text volume below which a document
// is treated as scanned.
func WithScanThresholds(perPage, total int) PDFOption {
	return func(p *PDFProvider) {
		p.minPerPage = perPage
		p.minTotal = total
	}
}

func NewPDFProvider(opts ...PDFOption) *PDFProvider {
	p := &PDFProvider{
		minPerPage: DefaultMinCharsPerPage,
		minTotal:   DefaultMinTotalChars,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *PDFProvider) Name() string { return "pdf" }

func (p *PDFProvider) CanHandle(filename string, data []byte) bool {
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		return true
	}
	return strings.EqualFold(filepath.Ext(filename), ".pdf")
}

// Extract implements Provider.
func (p *PDFProvider) Extract(ctx context.Context, data []byte) (string, error) {
	doc, err := p.ExtractDocument(ctx, data)
	if err != nil {
		return "", err
	}
	return doc.Text, nil
}

// ExtractDocument reads the text layer of every page.
func (p *PDFProvider) ExtractDocument(ctx context.Context, data []byte) (Document, error) {
	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed

	pdfCtx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return Document{}, model.NewExtractionError("pdf", "read document", err)
	}
	if err := api.ValidateContext(pdfCtx); err != nil {
		return Document{}, model.NewExtractionError("pdf", "validate document", err)
	}

	doc := Document{Pages: pdfCtx.PageCount}
	var b strings.Builder
	for page := 1; page <= pdfCtx.PageCount; page++ {
		if err := ctx.Err(); err != nil {
			return Document{}, err
		}
		r, err := pdfcpulib.ExtractPageContent(pdfCtx, page)
		if err != nil || r == nil {
			continue
		}
		content, err := io.ReadAll(r)
		if err != nil {
			continue
		}
		if text := decodeTextOperators(content); text != "" {
			b.WriteString(text)
			b.WriteString("\n")
		}
	}
	doc.Text = tidyText(b.String())
	return doc, nil
}

// NeedsOCR reports whether the text layer is too thin to trust.
func (p *PDFProvider) NeedsOCR(doc Document) bool {
	pages := doc.Pages
	if pages < 1 {
		pages = 1
	}
	chars := utf8.RuneCountInString(strings.TrimSpace(doc.Text))
	return chars < p.minPerPage*pages && chars < p.minTotal
}

// PageImage is one embedded image of a document.
type PageImage struct {
	Data     []byte
	MimeType string
	Page     int
}

// ExtractImages pulls the embedded images out of a PDF. In scanned
// documents these are the page scans themselves, which is what the
// vision extractor needs when the content streams carry no text.
func (p *PDFProvider) ExtractImages(ctx context.Context, data []byte) ([]PageImage, error) {
	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed

	var images []PageImage
	digest := func(img pdfmodel.Image, singleImgPerPage bool, maxPageDigits int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		raw, err := io.ReadAll(img)
		if err != nil {
			return err
		}
		images = append(images, PageImage{
			Data:     raw,
			MimeType: imageMimeType(img.FileType),
			Page:     img.PageNr,
		})
		return nil
	}
	if err := api.ExtractImages(bytes.NewReader(data), nil, digest, conf); err != nil {
		return nil, model.NewExtractionError("pdf", "extract images", err)
	}
	return images, nil
}

func imageMimeType(fileType string) string {
	switch strings.ToLower(fileType) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	case "tif", "tiff":
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}

// decodeTextOperators recovers the operands of the text showing
// operators (Tj, TJ, ' and ") from a decoded content stream. String
// operands are buffered until the next operator decides whether they
// were text to show or arguments to something else.
func decodeTextOperators(content []byte) string {
	var out strings.Builder
	var pending []string

	flush := func(sep byte) {
		if len(pending) == 0 {
			return
		}
		for _, s := range pending {
			out.WriteString(s)
		}
		pending = pending[:0]
		out.WriteByte(sep)
	}

	i, n := 0, len(content)
	for i < n {
		c := content[i]
		switch {
		case c == '%':
			for i < n && content[i] != '\n' && content[i] != '\r' {
				i++
			}
		case c == '(':
			s, next := parseLiteralString(content, i)
			pending = append(pending, s)
			i = next
		case c == '<':
			if i+1 < n && content[i+1] == '<' {
				i += 2
				continue
			}
			s, next := parseHexString(content, i)
			pending = append(pending, s)
			i = next
		case c == ')' || c == '>' || c == '[' || c == ']' || c == '{' || c == '}':
			i++
		case c == '/':
			i++
			for i < n && !isDelimiter(content[i]) && !isWhitespace(content[i]) {
				i++
			}
		case isWhitespace(c):
			i++
		default:
			start := i
			for i < n && !isDelimiter(content[i]) && !isWhitespace(content[i]) {
				i++
			}
			switch op := string(content[start:i]); op {
			case "Tj", "TJ":
				flush(' ')
			case "'", "\"":
				out.WriteByte('\n')
				flush(' ')
			case "Td", "TD", "T*", "ET":
				flush(' ')
				out.WriteByte('\n')
			default:
				if v, err := strconv.ParseFloat(op, 64); err == nil {
					// Operand, keep buffered strings. A large negative
					// kern inside a TJ array acts as a space.
					if v <= -kernSpaceThreshold && len(pending) > 0 {
						pending = append(pending, " ")
					}
					break
				}
				pending = pending[:0]
			}
		}
	}
	flush(' ')
	return out.String()
}

func parseLiteralString(content []byte, start int) (string, int) {
	var buf []byte
	depth := 1
	i := start + 1
	n := len(content)
	for i < n && depth > 0 {
		c := content[i]
		switch c {
		case '\\':
			i++
			if i >= n {
				break
			}
			switch e := content[i]; e {
			case 'n', 'r':
				buf = append(buf, '\n')
			case 'b', 'f':
			case 't':
				buf = append(buf, '\t')
			case '(', ')', '\\':
				buf = append(buf, e)
			case '\r':
				// Escaped line break continues the string.
				if i+1 < n && content[i+1] == '\n' {
					i++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for k := 0; k < 2 && i+1 < n && content[i+1] >= '0' && content[i+1] <= '7'; k++ {
						i++
						v = v*8 + int(content[i]-'0')
					}
					buf = append(buf, byte(v))
				} else {
					buf = append(buf, e)
				}
			}
			i++
		case '(':
			depth++
			buf = append(buf, c)
			i++
		case ')':
			depth--
			if depth > 0 {
				buf = append(buf, c)
			}
			i++
		default:
			buf = append(buf, c)
			i++
		}
	}
	return decodeTextBytes(buf), i
}

func parseHexString(content []byte, start int) (string, int) {
	i := start + 1
	n := len(content)
	var digits []byte
	for i < n && content[i] != '>' {
		if isHexDigit(content[i]) {
			digits = append(digits, content[i])
		}
		i++
	}
	if i < n {
		i++
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	raw := make([]byte, 0, len(digits)/2)
	for j := 0; j+1 < len(digits); j += 2 {
		raw = append(raw, hexVal(digits[j])<<4|hexVal(digits[j+1]))
	}
	return decodeTextBytes(raw), i
}

// decodeTextBytes turns raw string operand bytes into readable text.
// UTF-16BE payloads carry a byte order mark; anything else that is not
// already valid UTF-8 is read as a Latin single byte encoding.
func decodeTextBytes(raw []byte) string {
	if len(raw) >= 2 && raw[0] == 0xfe && raw[1] == 0xff {
		return sanitize(decodeUTF16BE(raw[2:]))
	}
	if utf8.Valid(raw) {
		return sanitize(string(raw))
	}
	var b strings.Builder
	for _, c := range raw {
		b.WriteRune(rune(c))
	}
	return sanitize(b.String())
}

func decodeUTF16BE(b []byte) string {
	u := make([]uint16, 0, len(b)/2)
	for j := 0; j+1 < len(b); j += 2 {
		u = append(u, uint16(b[j])<<8|uint16(b[j+1]))
	}
	return string(utf16.Decode(u))
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r < 0x20 || (r >= 0x7f && r <= 0x9f):
			return -1
		case r == utf8.RuneError:
			return -1
		}
		return r
	}, s)
}

// tidyText trims ragged line endings and collapses the blank runs left
// behind by positioning operators.
func tidyText(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			blank = true
			continue
		}
		if blank && len(out) > 0 {
			out = append(out, "")
		}
		blank = false
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func isWhitespace(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isHexDigit(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

func hexVal(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
