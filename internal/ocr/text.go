package ocr

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
)

const probeSize = 512

var textExtensions = map[string]bool{
	".txt":  true,
	".text": true,
	".md":   true,
	".csv":  true,
}

// TextProvider passes plain text documents through unchanged apart from
// byte order mark and line ending normalisation.
type TextProvider struct{}

func NewTextProvider() *TextProvider { return &TextProvider{} }

func (*TextProvider) Name() string { return "text" }

func (*TextProvider) CanHandle(filename string, data []byte) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	if textExtensions[ext] {
		return true
	}
	if ext != "" {
		return false
	}
	// No extension: accept anything that does not look binary.
	probe := data
	if len(probe) > probeSize {
		probe = probe[:probeSize]
	}
	return len(probe) > 0 && bytes.IndexByte(probe, 0) < 0
}

func (*TextProvider) Extract(_ context.Context, data []byte) (string, error) {
	text := strings.TrimPrefix(string(data), "\ufeff")
	return strings.ReplaceAll(text, "\r\n", "\n"), nil
}
