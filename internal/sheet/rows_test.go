package sheet_test

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	dec "github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contaflux/asientos/internal/model"
	"github.com/contaflux/asientos/internal/sheet"
)

func sampleEntry() *model.AccountingEntry {
	e := model.NewEntry("2023-11-05")
	e.Concept = "F/INMOBILIARIA GARCIA N.ALQ-2023-11"
	e.DocumentID = "doc-001"
	e.DocumentLink = "https://drive.google.com/file/d/abc/view"
	e.AddLine("621", "Alquiler local noviembre", dec.NewFromInt(1000), dec.Zero)
	e.AddLine("410", "Alquiler local noviembre", dec.Zero, dec.RequireFromString("1020.00"))
	e.Tax = model.TaxSummary{
		IssuerName:        "INMOBILIARIA GARCIA S.L.",
		IssuerTaxID:       "B11223344",
		TaxableBase:       dec.NewFromInt(1000),
		VATType:           "General (21%)",
		VATAmount:         dec.RequireFromString("210.00"),
		WithholdingType:   "Retencion Alquiler (19%)",
		WithholdingAmount: dec.RequireFromString("190.00"),
		TotalAmount:       dec.RequireFromString("1020.00"),
	}
	return e
}

func TestHeader(t *testing.T) {
	require.Len(t, sheet.Header, 21)
	assert.Equal(t, "Asiento_Fecha", sheet.Header[0])
	assert.Equal(t, "Necesita_Revision", sheet.Header[19])
	assert.Equal(t, "Motivo_Revision", sheet.Header[20])
}

func TestRows_OneRowPerLine(t *testing.T) {
	rows := sheet.Rows(sampleEntry())
	require.Len(t, rows, 2)

	first := rows[0]
	require.Len(t, first, len(sheet.Header))
	assert.Equal(t, "2023-11-05", first[0])
	assert.Equal(t, "1", first[1])
	assert.Equal(t, "F/INMOBILIARIA GARCIA N.ALQ-2023-11", first[2])
	assert.Equal(t, "621", first[3])
	assert.Equal(t, "Alquiler local noviembre", first[4])
	assert.Equal(t, "1000.00", first[5])
	assert.Equal(t, "", first[6])
	assert.Equal(t, "doc-001", first[7])
	assert.Equal(t, "INMOBILIARIA GARCIA S.L.", first[9])
	assert.Equal(t, "B11223344", first[10])
	assert.Equal(t, "1000.00", first[13])
	assert.Equal(t, "General (21%)", first[14])
	assert.Equal(t, "210.00", first[15])
	assert.Equal(t, "190.00", first[17])
	assert.Equal(t, "1020.00", first[18])
	assert.Equal(t, "NO", first[19])
	assert.Equal(t, "", first[20])

	second := rows[1]
	assert.Equal(t, "410", second[3])
	assert.Equal(t, "", second[5])
	assert.Equal(t, "1020.00", second[6])
}

func TestRows_ReviewPlaceholderEntry(t *testing.T) {
	e := model.NewEntry(model.PlaceholderDate)
	e.Concept = "Error: Fecha no encontrada"
	e.Flag("Fecha de factura no encontrada.")

	rows := sheet.Rows(e)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, model.PlaceholderDate, row[0])
	assert.Equal(t, "", row[3])
	assert.Equal(t, "SI", row[19])
	assert.Contains(t, row[20], "Fecha de factura no encontrada")
}

func TestRows_NilAndEmpty(t *testing.T) {
	assert.Empty(t, sheet.Rows())
	assert.Empty(t, sheet.Rows(nil, nil))
}

func TestCSVSink_Append(t *testing.T) {
	path := filepath.Join(t.TempDir(), "salida", "asientos.csv")
	sink := sheet.NewCSVSink(path, zerolog.Nop())
	assert.Equal(t, path, sink.Path())

	require.NoError(t, sink.Append(context.Background(), sampleEntry()))
	require.NoError(t, sink.Append(context.Background(), sampleEntry()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	// One header plus two appends of two lines each.
	require.Len(t, records, 5)
	assert.Equal(t, sheet.Header, records[0])
	assert.Equal(t, "621", records[1][3])
	assert.Equal(t, "410", records[4][3])
}

func TestCSVSink_NothingToAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "asientos.csv")
	sink := sheet.NewCSVSink(path, zerolog.Nop())

	require.NoError(t, sink.Append(context.Background()))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestNewSheetsSink(t *testing.T) {
	sink := sheet.NewSheetsSink(nil, "spreadsheet-id",
		sheet.WithSheetName("OtraPestana"),
		sheet.WithSinkLogger(zerolog.Nop()),
	)
	require.NotNil(t, sink)
}

func TestDefaultSheetName(t *testing.T) {
	assert.True(t, strings.HasPrefix(sheet.DefaultSheetName, "IAFiscal"))
}
