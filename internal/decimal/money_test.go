package decimal_test

import (
	"testing"

	dec "github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contaflux/asientos/internal/decimal"
)

func TestFromFloat(t *testing.T) {
	d := decimal.FromFloat(100.555)
	// Should round to 2 decimal places
	assert.True(t, d.Equal(dec.NewFromFloat(100.56)))
}

func TestFromString(t *testing.T) {
	d, err := decimal.FromString("1234.56")
	require.NoError(t, err)
	assert.True(t, d.Equal(dec.RequireFromString("1234.56")))

	_, err = decimal.FromString("not-a-number")
	require.Error(t, err)
}

func TestMustFromString(t *testing.T) {
	d := decimal.MustFromString("999.99")
	assert.True(t, d.Equal(dec.RequireFromString("999.99")))

	assert.Panics(t, func() {
		decimal.MustFromString("invalid")
	})
}

func TestRoundHalfUp(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"half rounds up", "12.345", "12.35"},
		{"below half rounds down", "12.344", "12.34"},
		{"above half rounds up", "12.346", "12.35"},
		{"already two places", "21.00", "21.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := decimal.RoundHalfUp(dec.RequireFromString(tt.input))
			assert.Equal(t, tt.expected, result.StringFixed(2))
		})
	}
}

func TestApplyRate(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		rate     string
		expected string
	}{
		{"21% of 100.00", "100.00", "21", "21.00"},
		{"10% of 123.45 rounds half up", "123.45", "10", "12.35"},
		{"4% of 250.00", "250.00", "4", "10.00"},
		{"19% of 1000.00", "1000.00", "19", "190.00"},
		{"zero rate", "1000.00", "0", "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount := dec.RequireFromString(tt.amount)
			rate := dec.RequireFromString(tt.rate)
			result := decimal.ApplyRate(amount, rate)
			assert.Equal(t, tt.expected, result.StringFixed(2),
				"%s%% of %s: got %s", tt.rate, tt.amount, result.String())
		})
	}
}

func TestSum(t *testing.T) {
	values := []dec.Decimal{
		dec.RequireFromString("100.10"),
		dec.RequireFromString("200.20"),
		dec.RequireFromString("300.30"),
	}
	result := decimal.Sum(values)
	assert.True(t, result.Equal(dec.RequireFromString("600.60")))
}

func TestSum_Empty(t *testing.T) {
	result := decimal.Sum([]dec.Decimal{})
	assert.True(t, result.IsZero())
}

func TestWithinTolerance(t *testing.T) {
	a := dec.RequireFromString("1210.00")
	assert.True(t, decimal.WithinTolerance(a, dec.RequireFromString("1210.04")))
	assert.True(t, decimal.WithinTolerance(a, dec.RequireFromString("1209.95")))
	assert.False(t, decimal.WithinTolerance(a, dec.RequireFromString("1210.06")))
}

func TestEqualCents(t *testing.T) {
	assert.True(t, decimal.EqualCents(
		dec.RequireFromString("21.004"),
		dec.RequireFromString("21.00"),
	))
	assert.False(t, decimal.EqualCents(
		dec.RequireFromString("21.01"),
		dec.RequireFromString("21.00"),
	))
}

func TestIsPositive(t *testing.T) {
	assert.True(t, decimal.IsPositive(dec.NewFromInt(1)))
	assert.False(t, decimal.IsPositive(dec.Zero))
	assert.False(t, decimal.IsPositive(dec.NewFromInt(-1)))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "1234.50", decimal.FormatAmount(dec.RequireFromString("1234.5")))
	assert.Equal(t, "0.00", decimal.FormatAmount(dec.Zero))
}

func TestFormatComma(t *testing.T) {
	assert.Equal(t, "1234,50", decimal.FormatComma(dec.RequireFromString("1234.5")))
	assert.Equal(t, "0,00", decimal.FormatComma(dec.Zero))
	assert.Equal(t, "190,00", decimal.FormatComma(dec.RequireFromString("190")))
}
