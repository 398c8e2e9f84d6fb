package llm_test

import (
	"encoding/json"
	"testing"

	dec "github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contaflux/asientos/internal/llm"
)

func TestNewClient(t *testing.T) {
	client := llm.NewClient("test-api-key")
	require.NotNil(t, client)
}

func TestNewClient_WithOptions(t *testing.T) {
	client := llm.NewClient("test-api-key",
		llm.WithBaseURL("https://custom.api.com/v1"),
		llm.WithDefaultModel(llm.ModelGPT4o),
	)
	require.NotNil(t, client)
}

func TestNewExtractor(t *testing.T) {
	client := llm.NewClient("test-api-key")
	extractor := llm.NewExtractor(client)
	require.NotNil(t, extractor)
}

func TestNewExtractor_WithModels(t *testing.T) {
	client := llm.NewClient("test-api-key")
	extractor := llm.NewExtractor(client,
		llm.WithModel(llm.ModelGPT4oMini),
		llm.WithVisionModel(llm.ModelGeminiFlash),
	)
	require.NotNil(t, extractor)
}

func TestExtractJSON_CodeBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "json code block",
			input:    "Here is the invoice data:\n```json\n{\"numero_factura\": \"001\"}\n```",
			expected: `{"numero_factura": "001"}`,
		},
		{
			name:     "generic code block",
			input:    "```\n{\"numero_factura\": \"002\"}\n```",
			expected: `{"numero_factura": "002"}`,
		},
		{
			name:     "raw json object",
			input:    `{"numero_factura": "003"}`,
			expected: `{"numero_factura": "003"}`,
		},
		{
			name:     "json with explanation",
			input:    "I found the following data:\n```json\n{\"total_factura\": \"121,00\"}\n```\nThis represents the total.",
			expected: `{"total_factura": "121,00"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := llm.ExtractJSON(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestModelConstants(t *testing.T) {
	models := []string{
		llm.ModelClaude35Sonnet,
		llm.ModelClaude3Haiku,
		llm.ModelGPT4oMini,
		llm.ModelGPT4o,
		llm.ModelGeminiFlash,
	}

	for _, m := range models {
		assert.NotEmpty(t, m)
		assert.Contains(t, m, "/") // All models have provider/model format
	}
}

func TestFieldsResponse_Normalisation(t *testing.T) {
	jsonResp := `{
		"fecha_factura": "2023-11-05",
		"numero_factura": "ALQ-2023-11",
		"proveedor_nombre": "INMOBILIARIA GARCIA S.L.",
		"proveedor_nif": "b-11 223 344",
		"cliente_nombre": null,
		"cliente_nif": null,
		"base_imponible": "1.000,00",
		"iva_percentage": "21%",
		"cuota_iva": "210,00",
		"retencion_irpf": "190,00",
		"total_factura": "1.020,00"
	}`

	var resp llm.FieldsResponse
	require.NoError(t, json.Unmarshal([]byte(jsonResp), &resp))

	fields := resp.Fields()
	require.NotNil(t, fields)

	require.NotNil(t, fields.InvoiceDate)
	assert.Equal(t, "2023-11-05", *fields.InvoiceDate)
	require.NotNil(t, fields.InvoiceNumber)
	assert.Equal(t, "ALQ-2023-11", *fields.InvoiceNumber)
	require.NotNil(t, fields.IssuerTaxID)
	assert.Equal(t, "B11223344", *fields.IssuerTaxID)
	assert.Nil(t, fields.CounterpartyName)
	assert.Nil(t, fields.CounterpartyTaxID)

	require.NotNil(t, fields.TaxableBase)
	assert.True(t, fields.TaxableBase.Equal(dec.NewFromInt(1000)))
	require.NotNil(t, fields.TaxRateHint)
	assert.True(t, fields.TaxRateHint.Equal(dec.NewFromInt(21)))
	require.NotNil(t, fields.TotalAmount)
	assert.True(t, fields.TotalAmount.Equal(dec.NewFromInt(1020)))

	// 1000 + 210 - 190 = 1020, consistent.
	assert.Empty(t, fields.Warnings)
}

func TestFieldsResponse_NullSpellings(t *testing.T) {
	jsonResp := `{
		"fecha_factura": "null",
		"numero_factura": "N/A",
		"proveedor_nombre": "-",
		"base_imponible": "no consta"
	}`

	var resp llm.FieldsResponse
	require.NoError(t, json.Unmarshal([]byte(jsonResp), &resp))

	fields := resp.Fields()
	assert.Nil(t, fields.InvoiceDate)
	assert.Nil(t, fields.InvoiceNumber)
	assert.Nil(t, fields.IssuerName)
	assert.Nil(t, fields.TaxableBase)
}

func TestFieldsResponse_ConsistencyWarning(t *testing.T) {
	jsonResp := `{
		"base_imponible": "1000,00",
		"cuota_iva": "210,00",
		"total_factura": "1500,00"
	}`

	var resp llm.FieldsResponse
	require.NoError(t, json.Unmarshal([]byte(jsonResp), &resp))

	fields := resp.Fields()
	require.NotEmpty(t, fields.Warnings)
	assert.Contains(t, fields.Warnings[0], "Inconsistencia")
}

func TestPromptTemplates(t *testing.T) {
	assert.NotEmpty(t, llm.SystemPromptFieldExtractor)
	assert.NotEmpty(t, llm.UserPromptTextExtraction)
	assert.NotEmpty(t, llm.UserPromptImageExtraction)

	assert.Contains(t, llm.SystemPromptFieldExtractor, "Spanish")
	assert.Contains(t, llm.SystemPromptFieldExtractor, "factura")
	assert.Contains(t, llm.UserPromptTextExtraction, "JSON")
	assert.Contains(t, llm.UserPromptImageExtraction, "JSON")
}

func TestDefaultBaseURL(t *testing.T) {
	assert.Equal(t, "https://openrouter.ai/api/v1", llm.DefaultBaseURL)
}

func BenchmarkExtractJSON(b *testing.B) {
	input := "Here is the data:\n```json\n{\"numero_factura\": \"001\", \"total_factura\": \"121,00\"}\n```"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		llm.ExtractJSON(input)
	}
}
