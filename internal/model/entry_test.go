package model_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contaflux/asientos/internal/model"
)

func TestRule_Matches(t *testing.T) {
	rule := model.Rule{
		Keywords: []string{"alquiler", "arrendamiento"},
		Priority: 10,
		Account:  "621",
	}

	assert.True(t, rule.Matches("factura de alquiler local oficina"))
	assert.True(t, rule.Matches("contrato de arrendamiento"))
	assert.False(t, rule.Matches("suministro electricidad"))
}

func TestRule_Matches_NoKeywords(t *testing.T) {
	rule := model.Rule{Priority: 99, Account: "600"}

	// A rule without keywords never matches, it is not a catch-all
	assert.False(t, rule.Matches("factura de alquiler"))
	assert.False(t, rule.Matches(""))
}

func TestClassifiedTransaction_ValidForEntry(t *testing.T) {
	tx := model.ClassifiedTransaction{
		Rule: &model.Rule{
			Account:       "621",
			OperationType: model.OperationExpense,
		},
	}
	assert.True(t, tx.ValidForEntry())

	tx.Rule.Account = ""
	assert.False(t, tx.ValidForEntry())

	tx.Rule = nil
	assert.False(t, tx.ValidForEntry())
}

func TestEntry_AddLineAndTotals(t *testing.T) {
	e := model.NewEntry("2023-10-25")
	assert.Equal(t, model.DefaultJournal, e.Journal)

	e.AddLine("621", "Alquiler", decimal.RequireFromString("1000.00"), decimal.Zero)
	e.AddLine("472.21", "IVA", decimal.RequireFromString("210.00"), decimal.Zero)
	e.AddLine("4751.02", "IRPF", decimal.Zero, decimal.RequireFromString("190.00"))
	e.AddLine("400", "Proveedor", decimal.Zero, decimal.RequireFromString("1020.00"))

	assert.True(t, e.TotalDebit().Equal(decimal.RequireFromString("1210.00")),
		"debit total %s", e.TotalDebit())
	assert.True(t, e.TotalCredit().Equal(decimal.RequireFromString("1210.00")),
		"credit total %s", e.TotalCredit())
	assert.True(t, e.IsBalanced())
}

func TestEntry_IsBalanced_Unbalanced(t *testing.T) {
	e := model.NewEntry("2023-10-25")
	e.AddLine("600", "Compra", decimal.RequireFromString("100.00"), decimal.Zero)
	e.AddLine("400", "Proveedor", decimal.Zero, decimal.RequireFromString("99.00"))

	assert.False(t, e.IsBalanced())
}

func TestEntry_Flag(t *testing.T) {
	e := model.NewEntry("2023-10-25")
	require.False(t, e.NeedsReview)

	e.Flag("Fecha de factura no encontrada.")
	e.Flag("Asiento descuadrado.")

	assert.True(t, e.NeedsReview)
	assert.Equal(t, "Fecha de factura no encontrada. Asiento descuadrado.", e.ReviewReason())
}

func TestRuleError(t *testing.T) {
	err := model.NewRuleError("reglas.csv", 4, "Priority", "not an integer", nil)

	require.Contains(t, err.Error(), "reglas.csv")
	require.Contains(t, err.Error(), "row 4")
	require.Contains(t, err.Error(), "Priority")
}

func TestRuleError_WithCause(t *testing.T) {
	cause := assert.AnError
	err := model.NewRuleError("reglas.csv", 2, "Keywords", "read failed", cause)

	require.ErrorIs(t, err, cause)
}

func TestCalculationError(t *testing.T) {
	err := model.NewCalculationError("vat", "Tipo Desconocido", "no rate resolved")

	require.Contains(t, err.Error(), "vat")
	require.Contains(t, err.Error(), "Tipo Desconocido")
	require.Contains(t, err.Error(), "no rate resolved")
}

func TestExtractionError_WithCause(t *testing.T) {
	cause := assert.AnError
	err := model.NewExtractionError("pdf", "no text layer", cause)

	require.Contains(t, err.Error(), "pdf")
	require.ErrorIs(t, err, cause)
}
