package tax_test

import (
	"testing"

	dec "github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contaflux/asientos/internal/model"
	"github.com/contaflux/asientos/internal/tax"
)

func TestComputeVAT_StandardRates(t *testing.T) {
	tests := []struct {
		name        string
		base        string
		taxType     string
		op          model.OperationType
		wantRate    string
		wantAmount  string
		wantAccount string
	}{
		{"general rate expense", "100.00", model.TaxGeneral, model.OperationExpense, "21", "21.00", "472.21"},
		{"reduced rate rounds half up", "123.45", model.TaxReduced, model.OperationExpense, "10", "12.35", "472.10"},
		{"superreduced rate expense", "250.00", model.TaxSuperReduced, model.OperationExpense, "4", "10.00", "472.04"},
		{"general rate income uses output account", "100.00", model.TaxGeneral, model.OperationIncome, "21", "21.00", "477.21"},
		{"reduced rate income", "1000.00", model.TaxReduced, model.OperationIncome, "10", "100.00", "477.10"},
		{"asset purchase books input VAT", "5000.00", model.TaxGeneral, model.OperationAssetPurchase, "21", "1050.00", "472.21"},
		{"qualified operation type still expense side", "100.00", model.TaxGeneral, model.OperationType("Gasto Alquiler"), "21", "21.00", "472.21"},
		{"bare percentage type", "100.00", "21%", model.OperationExpense, "21", "21.00", "472.21"},
		{"comma decimal percentage", "100.00", "7,5%", model.OperationExpense, "7.5", "7.50", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := tax.ComputeVAT(dec.RequireFromString(tt.base), tt.taxType, nil, tt.op)
			require.NoError(t, err)
			assert.True(t, d.Rate.Equal(dec.RequireFromString(tt.wantRate)),
				"rate: got %s want %s", d.Rate.String(), tt.wantRate)
			assert.Equal(t, tt.wantAmount, d.Amount.StringFixed(2))
			assert.Equal(t, tt.wantAccount, d.Account)
			assert.False(t, d.ReverseCharge)
		})
	}
}

func TestComputeVAT_NonStandardRateHasNoAccount(t *testing.T) {
	// A parseable but non-standard rate computes the amount, yet there
	// is no chart account to post it to. The generator leaves the
	// quantity unposted and the resulting imbalance flags the entry.
	d, err := tax.ComputeVAT(dec.RequireFromString("100.00"), "15%", nil, model.OperationExpense)
	require.NoError(t, err)
	assert.Equal(t, "15.00", d.Amount.StringFixed(2))
	assert.Empty(t, d.Account)
	assert.False(t, d.ZeroRate)
}

func TestComputeVAT_ZeroRates(t *testing.T) {
	for _, taxType := range []string{model.TaxExempt, model.TaxNotSubject, "0%", "Operacion exenta art. 20"} {
		t.Run(taxType, func(t *testing.T) {
			d, err := tax.ComputeVAT(dec.RequireFromString("500.00"), taxType, nil, model.OperationExpense)
			require.NoError(t, err)
			assert.True(t, d.ZeroRate)
			assert.True(t, d.Amount.IsZero())
			assert.Empty(t, d.Account)
		})
	}
}

func TestComputeVAT_ReverseCharge(t *testing.T) {
	tests := []struct {
		name       string
		taxType    string
		wantRate   string
		wantAmount string
		wantInput  string
		wantOutput string
	}{
		{"bare marker defaults to general rate", "ISP", "21", "210.00", "472.21", "477.21"},
		{"embedded rate wins", "ISP (10%)", "10", "100.00", "472.10", "477.10"},
		{"case insensitive marker", "isp intracomunitario", "21", "210.00", "472.21", "477.21"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := tax.ComputeVAT(dec.RequireFromString("1000.00"), tt.taxType, nil, model.OperationExpense)
			require.NoError(t, err)
			assert.True(t, d.ReverseCharge)
			assert.True(t, d.Rate.Equal(dec.RequireFromString(tt.wantRate)))
			assert.Equal(t, tt.wantAmount, d.Amount.StringFixed(2))
			assert.Equal(t, tt.wantInput, d.Account)
			assert.Equal(t, tt.wantOutput, d.MirrorAccount)
		})
	}
}

func TestComputeVAT_EmptyType(t *testing.T) {
	d, err := tax.ComputeVAT(dec.RequireFromString("100.00"), "", nil, model.OperationExpense)
	require.NoError(t, err)
	assert.True(t, d.Amount.IsZero())
	assert.Empty(t, d.Account)
	assert.False(t, d.ZeroRate)
}

func TestComputeVAT_UnrecognisedType(t *testing.T) {
	_, err := tax.ComputeVAT(dec.RequireFromString("100.00"), "Tipo Inventado", nil, model.OperationExpense)
	require.Error(t, err)

	var calcErr *model.CalculationError
	require.ErrorAs(t, err, &calcErr)
	assert.Equal(t, "iva", calcErr.Kind)
	assert.Equal(t, "Tipo Inventado", calcErr.Input)
}

func TestComputeVAT_DeltaAgainstExtracted(t *testing.T) {
	extracted := dec.RequireFromString("20.00")
	d, err := tax.ComputeVAT(dec.RequireFromString("100.00"), model.TaxGeneral, &extracted, model.OperationExpense)
	require.NoError(t, err)
	assert.True(t, d.HasDelta)
	assert.Equal(t, "1.00", d.Delta.StringFixed(2))
	// Calculated amount wins regardless of the delta.
	assert.Equal(t, "21.00", d.Amount.StringFixed(2))

	exact := dec.RequireFromString("21.00")
	d, err = tax.ComputeVAT(dec.RequireFromString("100.00"), model.TaxGeneral, &exact, model.OperationExpense)
	require.NoError(t, err)
	assert.True(t, d.HasDelta)
	assert.True(t, d.Delta.IsZero())
}

func TestMirrorOutputAccount(t *testing.T) {
	assert.Equal(t, "477.21", tax.MirrorOutputAccount("472.21"))
	assert.Equal(t, "477.10", tax.MirrorOutputAccount("472.10"))
	assert.Equal(t, "477.04", tax.MirrorOutputAccount("472.04"))
	assert.Empty(t, tax.MirrorOutputAccount("600"))
}
