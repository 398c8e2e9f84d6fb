// Package ocr acquires plain text from incoming documents. Digital PDFs
// are read through their embedded text layer; everything else is treated
// as plain text. Documents whose text layer is too thin are flagged as
// scans so callers can fall back to vision extraction.
package ocr

import (
	"context"

	"github.com/contaflux/asientos/internal/model"
)

// Provider turns one document format into plain text.
type Provider interface {
	// Extract returns the document text.
	Extract(ctx context.Context, data []byte) (string, error)

	// CanHandle reports whether this provider understands the payload.
	CanHandle(filename string, data []byte) bool

	// Name identifies the provider in logs and results.
	Name() string
}

// Registry holds all registered providers.
type Registry struct {
	providers []Provider
}

// NewRegistry creates a registry with the default providers.
// Order matters: specific formats come before the plain text fallback.
func NewRegistry() *Registry {
	return &Registry{
		providers: []Provider{
			NewPDFProvider(),  // %PDF- sniff
			NewTextProvider(), // most generic, last
		},
	}
}

// Detect identifies the provider for a document.
func (r *Registry) Detect(filename string, data []byte) (Provider, error) {
	for _, p := range r.providers {
		if p.CanHandle(filename, data) {
			return p, nil
		}
	}
	return nil, model.NewExtractionError("registry", "no provider for document format", nil)
}

// Extract returns the document text together with the name of the
// provider that produced it.
func (r *Registry) Extract(ctx context.Context, filename string, data []byte) (string, string, error) {
	p, err := r.Detect(filename, data)
	if err != nil {
		return "", "", err
	}
	text, err := p.Extract(ctx, data)
	if err != nil {
		return "", p.Name(), err
	}
	return text, p.Name(), nil
}

// Register adds a custom provider to the registry.
func (r *Registry) Register(p Provider) {
	// Prepend so custom providers take priority.
	r.providers = append([]Provider{p}, r.providers...)
}

// ProviderByName returns the registered provider with the given name.
func (r *Registry) ProviderByName(name string) Provider {
	for _, p := range r.providers {
		if p.Name() == name {
			return p
		}
	}
	return nil
}
