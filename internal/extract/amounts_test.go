package extract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contaflux/asientos/internal/extract"
)

func TestNormalizeAmount(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{"european thousands", "1.234,56", "1234.56", true},
		{"anglo thousands", "1,234.56", "1234.56", true},
		{"comma decimal only", "1234,56", "1234.56", true},
		{"dot decimal only", "1234.56", "1234.56", true},
		{"lone dot thousands", "1.500", "1500", true},
		{"lone comma thousands", "1,500", "1500", true},
		{"one digit after comma is thousands", "12,3", "123", true},
		{"multiple dot groups", "1.234.567", "1234567", true},
		{"multiple comma groups", "1,234,567", "1234567", true},
		{"currency symbol", "€ 1.234,56", "1234.56", true},
		{"pound and spaces", "£ 99,10", "99.1", true},
		{"negative", "-45,10", "-45.1", true},
		{"plain integer", "21", "21", true},
		{"garbage", "abc", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extract.NormalizeAmount(tt.input)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, got.String(),
					"input %q normalized to %s", tt.input, got.String())
			}
		})
	}
}
