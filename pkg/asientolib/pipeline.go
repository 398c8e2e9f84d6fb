package asientolib

import (
	"context"
	"io"

	"github.com/rs/zerolog"
)

// Result is one processed document with its generation metadata.
type Result struct {
	// Entry is the generated accounting record, nil when no
	// classification rule matched the document.
	Entry *AccountingEntry

	// Rule is the classification rule that matched, nil on a miss.
	Rule *Rule

	// Fields holds the raw extracted invoice fields.
	Fields *ExtractedFields

	// Method names how fields were recovered: regex, llm_text or
	// llm_vision.
	Method string

	// Confidence scores the extraction between 0 and 1.
	Confidence float64

	Warnings []string

	// NeedsReview is set when the entry is flagged, when no rule
	// matched, or when confidence falls below the review threshold.
	NeedsReview bool
}

// Pipeline processes invoice documents into accounting entries.
type Pipeline interface {
	// Process sniffs the input format and runs the full pipeline.
	Process(ctx context.Context, r io.Reader) (*Result, error)

	// ProcessText runs the pipeline over plain invoice text.
	ProcessText(ctx context.Context, text string) (*Result, error)

	// ProcessBatch processes inputs concurrently, preserving order.
	ProcessBatch(ctx context.Context, inputs []io.Reader) ([]*Result, error)
}

// Options configures a Processor.
type Options struct {
	// RulesPath points at a local rule table (CSV). Ignored when
	// RuleSource is set; with neither, documents are never classified.
	RulesPath string

	// RuleSource overrides the rule backend.
	RuleSource RuleSource

	// ReviewThreshold flags results whose confidence falls below it.
	ReviewThreshold float64

	// LLM configuration. Empty fields keep the client defaults.
	LLMAPIKey      string
	LLMBaseURL     string
	LLMModel       string
	LLMVisionModel string
	EnableLLM      bool

	Logger zerolog.Logger
}

// DefaultOptions returns the default processor options.
func DefaultOptions() Options {
	return Options{
		ReviewThreshold: 0.70,
		EnableLLM:       true,
		Logger:          zerolog.Nop(),
	}
}
