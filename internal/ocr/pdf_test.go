package ocr_test

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contaflux/asientos/internal/model"
	"github.com/contaflux/asientos/internal/ocr"
)

// buildPDF assembles a minimal single page PDF with an uncompressed
// content stream so extraction can run against real document structure.
func buildPDF(t *testing.T, contentStream string) []byte {
	t.Helper()

	var buf bytes.Buffer
	offsets := make([]int, 6)
	write := func(n int, s string) {
		offsets[n] = buf.Len()
		buf.WriteString(s)
	}

	buf.WriteString("%PDF-1.4\n")
	write(1, "1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	write(2, "2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	write(3, "3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>\nendobj\n")
	write(4, fmt.Sprintf("4 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", len(contentStream), contentStream))
	write(5, "5 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n")

	xref := buf.Len()
	buf.WriteString("xref\n0 6\n")
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= 5; i++ {
		buf.WriteString(fmt.Sprintf("%010d 00000 n \n", offsets[i]))
	}
	buf.WriteString(fmt.Sprintf("trailer\n<< /Size 6 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", xref))
	return buf.Bytes()
}

func TestNewPDFProvider(t *testing.T) {
	provider := ocr.NewPDFProvider()
	require.NotNil(t, provider)
}

func TestPDFProvider_CanHandle(t *testing.T) {
	provider := ocr.NewPDFProvider()

	assert.True(t, provider.CanHandle("", []byte("%PDF-1.4\n")))
	assert.True(t, provider.CanHandle("factura.pdf", []byte("whatever")))
	assert.True(t, provider.CanHandle("FACTURA.PDF", []byte("whatever")))
	assert.False(t, provider.CanHandle("factura.txt", []byte("FACTURA")))
}

func TestPDFProvider_Extract(t *testing.T) {
	content := "BT /F1 12 Tf 72 720 Td (FACTURA Num: 2023-001) Tj 0 -14 Td (Proveedor: ACME S.L.) Tj ET"
	data := buildPDF(t, content)

	provider := ocr.NewPDFProvider()
	doc, err := provider.ExtractDocument(context.Background(), data)
	require.NoError(t, err)

	assert.Equal(t, 1, doc.Pages)
	assert.Contains(t, doc.Text, "FACTURA Num: 2023-001")
	assert.Contains(t, doc.Text, "Proveedor: ACME S.L.")
}

func TestPDFProvider_ExtractArraysAndEscapes(t *testing.T) {
	content := `BT /F1 12 Tf 72 720 Td [(Total) -250 (: 121,00 EUR)] TJ 0 -14 Td (Linea \(neta\)) Tj ET`
	data := buildPDF(t, content)

	provider := ocr.NewPDFProvider()
	text, err := provider.Extract(context.Background(), data)
	require.NoError(t, err)

	assert.Contains(t, text, "Total : 121,00 EUR")
	assert.Contains(t, text, "Linea (neta)")
}

func TestPDFProvider_ExtractInvalidData(t *testing.T) {
	provider := ocr.NewPDFProvider()

	_, err := provider.Extract(context.Background(), []byte("this is not a pdf"))
	require.Error(t, err)

	var extErr *model.ExtractionError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, "pdf", extErr.Method)
}

func TestPDFProvider_NeedsOCR(t *testing.T) {
	provider := ocr.NewPDFProvider()

	tests := []struct {
		name string
		doc  ocr.Document
		want bool
	}{
		{
			name: "near empty scan",
			doc:  ocr.Document{Text: "P1", Pages: 1},
			want: true,
		},
		{
			name: "dense single page",
			doc:  ocr.Document{Text: strings.Repeat("factura ", 30), Pages: 1},
			want: false,
		},
		{
			name: "thin multi page",
			doc:  ocr.Document{Text: strings.Repeat("x", 200), Pages: 3},
			want: true,
		},
		{
			name: "long document with sparse pages",
			doc:  ocr.Document{Text: strings.Repeat("x", 600), Pages: 10},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, provider.NeedsOCR(tt.doc))
		})
	}
}

func TestPDFProvider_NeedsOCRCustomThresholds(t *testing.T) {
	provider := ocr.NewPDFProvider(ocr.WithScanThresholds(10, 20))

	assert.False(t, provider.NeedsOCR(ocr.Document{Text: strings.Repeat("x", 15), Pages: 1}))
	assert.True(t, provider.NeedsOCR(ocr.Document{Text: "x", Pages: 1}))
}
