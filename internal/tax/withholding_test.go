package tax_test

import (
	"testing"

	dec "github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contaflux/asientos/internal/tax"
)

func TestComputeWithholding(t *testing.T) {
	tests := []struct {
		name           string
		base           string
		treatment      string
		wantRate       string
		wantAmount     string
		wantAccount    string
		wantReceivable string
	}{
		{"professional services", "1000.00", "IRPF (15%)", "15", "150.00", "4751.01", "473.01"},
		{"rental retention", "1000.00", "Retencion Alquiler (19%)", "19", "190.00", "4751.02", "473.02"},
		{"rental keyword in english", "1000.00", "rental withholding 19%", "19", "190.00", "4751.02", "473.02"},
		{"comma decimal rate", "1000.00", "IRPF 7,5%", "7.5", "75.00", "4751.01", "473.01"},
		{"rate without parentheses", "200.00", "retencion s/IRPF 15%", "15", "30.00", "4751.01", "473.01"},
		{"rounds half up", "123.45", "IRPF (10%)", "10", "12.35", "4751.01", "473.01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := tax.ComputeWithholding(dec.RequireFromString(tt.base), tt.treatment, nil)
			require.True(t, ok)
			assert.True(t, d.Rate.Equal(dec.RequireFromString(tt.wantRate)),
				"rate: got %s want %s", d.Rate.String(), tt.wantRate)
			assert.Equal(t, tt.wantAmount, d.Amount.StringFixed(2))
			assert.Equal(t, tt.wantAccount, d.Account)
			assert.Equal(t, tt.wantReceivable, d.ReceivableAccount)
		})
	}
}

func TestComputeWithholding_NotDeclared(t *testing.T) {
	base := dec.RequireFromString("1000.00")

	_, ok := tax.ComputeWithholding(base, "", nil)
	assert.False(t, ok)

	_, ok = tax.ComputeWithholding(base, "   ", nil)
	assert.False(t, ok)

	// A treatment without a percentage declares no retention.
	_, ok = tax.ComputeWithholding(base, "sin retencion", nil)
	assert.False(t, ok)
}

func TestComputeWithholding_DeltaAgainstExtracted(t *testing.T) {
	base := dec.RequireFromString("1000.00")

	exact := dec.RequireFromString("190.00")
	d, ok := tax.ComputeWithholding(base, "Retencion Alquiler (19%)", &exact)
	require.True(t, ok)
	assert.True(t, d.HasDelta)
	assert.True(t, d.Delta.IsZero())

	low := dec.RequireFromString("185.00")
	d, ok = tax.ComputeWithholding(base, "Retencion Alquiler (19%)", &low)
	require.True(t, ok)
	assert.True(t, d.HasDelta)
	assert.Equal(t, "5.00", d.Delta.StringFixed(2))
	// Calculated amount wins over the extracted one.
	assert.Equal(t, "190.00", d.Amount.StringFixed(2))
}

func TestReceivableAccount(t *testing.T) {
	assert.Equal(t, "473.01", tax.ReceivableAccount("4751.01"))
	assert.Equal(t, "473.02", tax.ReceivableAccount("4751.02"))
	assert.Empty(t, tax.ReceivableAccount("572"))
}

func TestStandardAccounts(t *testing.T) {
	accounts := tax.StandardAccounts()
	assert.Equal(t, "472.21", accounts["iva_soportado_general"])
	assert.Equal(t, "000REVIEW", accounts["revision_manual"])
	assert.Len(t, accounts, 13)
}
