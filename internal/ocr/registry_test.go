package ocr_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contaflux/asientos/internal/model"
	"github.com/contaflux/asientos/internal/ocr"
)

func TestNewRegistry(t *testing.T) {
	registry := ocr.NewRegistry()
	require.NotNil(t, registry)

	for _, name := range []string{"pdf", "text"} {
		p := registry.ProviderByName(name)
		require.NotNil(t, p, "provider %s should exist", name)
		assert.Equal(t, name, p.Name())
	}
}

func TestRegistry_Detect(t *testing.T) {
	registry := ocr.NewRegistry()

	tests := []struct {
		name     string
		filename string
		data     string
		expected string
	}{
		{
			name:     "pdf by content sniff",
			filename: "",
			data:     "%PDF-1.7\nrest of document",
			expected: "pdf",
		},
		{
			name:     "pdf by extension",
			filename: "factura.pdf",
			data:     "broken payload",
			expected: "pdf",
		},
		{
			name:     "text by extension",
			filename: "factura.txt",
			data:     "FACTURA Num: 2023-001",
			expected: "text",
		},
		{
			name:     "raw text without filename",
			filename: "",
			data:     "FACTURA Num: 2023-001",
			expected: "text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := registry.Detect(tt.filename, []byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p.Name())
		})
	}
}

func TestRegistry_Detect_UnknownFormat(t *testing.T) {
	registry := ocr.NewRegistry()

	_, err := registry.Detect("scan.png", []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a})
	require.Error(t, err)

	var extErr *model.ExtractionError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, "registry", extErr.Method)
}

func TestRegistry_Register(t *testing.T) {
	registry := ocr.NewRegistry()

	custom := &mockProvider{name: "custom"}
	registry.Register(custom)

	p, err := registry.Detect("factura.txt", []byte("texto"))
	require.NoError(t, err)
	assert.Equal(t, custom, p)
}

func TestRegistry_Extract(t *testing.T) {
	registry := ocr.NewRegistry()

	text, provider, err := registry.Extract(context.Background(), "factura.txt", []byte("\ufeffFACTURA\r\nTotal: 121,00"))
	require.NoError(t, err)
	assert.Equal(t, "text", provider)
	assert.Equal(t, "FACTURA\nTotal: 121,00", text)
}

type mockProvider struct {
	name string
}

func (m *mockProvider) Extract(ctx context.Context, data []byte) (string, error) {
	return "", nil
}
func (m *mockProvider) CanHandle(filename string, data []byte) bool { return true }
func (m *mockProvider) Name() string                                { return m.name }
