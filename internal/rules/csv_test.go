package rules_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contaflux/asientos/internal/model"
	"github.com/contaflux/asientos/internal/rules"
)

const semicolonRules = `Keywords;Priority;Account;Contrapartida;TipoOperacion;IVAType;SpecialTreatment;ConceptoPatron
factura energia,luz,gas;10;628;410;Gasto;General (21%);;Factura luz {proveedor_nombre_short}
alquiler local;12;621;572;Gasto;General (21%);Retencion Alquiler (19%);Alquiler local {fecha_factura_short}
ingreso servicio web;10;705;430;Ingreso;General (21%);;Servicio web {cliente_nombre_short}
`

func writeRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reglas.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCSVSource_Load(t *testing.T) {
	src := rules.NewCSVSource(writeRules(t, semicolonRules))

	loaded, version, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, version)
	require.Len(t, loaded, 3)

	first := loaded[0]
	assert.Equal(t, []string{"factura energia", "luz", "gas"}, first.Keywords)
	assert.Equal(t, 10, first.Priority)
	assert.Equal(t, "628", first.Account)
	assert.Equal(t, "410", first.CounterAccount)
	assert.Equal(t, model.OperationExpense, first.OperationType)
	assert.Equal(t, "General (21%)", first.TaxType)
	assert.Empty(t, first.SpecialTreatment)

	second := loaded[1]
	assert.Equal(t, 12, second.Priority)
	assert.Equal(t, "Retencion Alquiler (19%)", second.SpecialTreatment)
	assert.Equal(t, "Alquiler local {fecha_factura_short}", second.ConceptTemplate)
}

func TestCSVSource_CommaDelimited(t *testing.T) {
	content := `Keywords,Priority,Account,Contrapartida,TipoOperacion,IVAType,SpecialTreatment,ConceptoPatron
"factura energia,luz,gas",10,628,410,Gasto,General (21%),,Factura luz
alquiler local,12,621,572,Gasto,General (21%),Retencion Alquiler (19%),Alquiler
`
	src := rules.NewCSVSource(writeRules(t, content))

	loaded, _, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, []string{"factura energia", "luz", "gas"}, loaded[0].Keywords)
	assert.Equal(t, []string{"alquiler local"}, loaded[1].Keywords)
}

func TestCSVSource_ByteOrderMarkTolerated(t *testing.T) {
	src := rules.NewCSVSource(writeRules(t, "\ufeff"+semicolonRules))

	loaded, _, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, loaded, 3)
}

func TestCSVSource_MissingColumn(t *testing.T) {
	content := `Keywords;Priority;Account;Contrapartida;TipoOperacion;IVAType;SpecialTreatment
luz;10;628;410;Gasto;General (21%);
`
	src := rules.NewCSVSource(writeRules(t, content))

	_, _, err := src.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing columns: ConceptoPatron")
}

func TestCSVSource_BadPriority(t *testing.T) {
	content := `Keywords;Priority;Account;Contrapartida;TipoOperacion;IVAType;SpecialTreatment;ConceptoPatron
luz;diez;628;410;Gasto;General (21%);;
`
	src := rules.NewCSVSource(writeRules(t, content))

	_, _, err := src.Load(context.Background())
	require.Error(t, err)

	var ruleErr *model.RuleError
	require.ErrorAs(t, err, &ruleErr)
	assert.Equal(t, "Priority", ruleErr.Field)
	assert.Equal(t, 2, ruleErr.Row)
}

func TestCSVSource_EmptyPriorityDefaultsToZero(t *testing.T) {
	content := `Keywords;Priority;Account;Contrapartida;TipoOperacion;IVAType;SpecialTreatment;ConceptoPatron
luz;;628;410;Gasto;General (21%);;
`
	src := rules.NewCSVSource(writeRules(t, content))

	loaded, _, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, 0, loaded[0].Priority)
}

func TestCSVSource_BlankRowsSkipped(t *testing.T) {
	content := `Keywords;Priority;Account;Contrapartida;TipoOperacion;IVAType;SpecialTreatment;ConceptoPatron
luz;10;628;410;Gasto;General (21%);;
;;;;;;;

gas;8;628;410;Gasto;General (21%);;
`
	src := rules.NewCSVSource(writeRules(t, content))

	loaded, _, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, loaded, 2)
}

func TestCSVSource_MissingFile(t *testing.T) {
	src := rules.NewCSVSource(filepath.Join(t.TempDir(), "no-such.csv"))

	_, _, err := src.Load(context.Background())
	require.Error(t, err)

	var parseErr *model.ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestCSVSource_ChangedTracksModTime(t *testing.T) {
	path := writeRules(t, semicolonRules)
	src := rules.NewCSVSource(path)
	ctx := context.Background()

	_, version, err := src.Load(ctx)
	require.NoError(t, err)

	changed, err := src.Changed(ctx, version)
	require.NoError(t, err)
	assert.False(t, changed)

	// Rewrite with a later modification time.
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(semicolonRules), 0o644))

	changed, err = src.Changed(ctx, version)
	require.NoError(t, err)
	assert.True(t, changed)
}
