package asientolib

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/contaflux/asientos/internal/export/contasol"
	"github.com/contaflux/asientos/internal/llm"
	"github.com/contaflux/asientos/internal/model"
	"github.com/contaflux/asientos/internal/processor"
	"github.com/contaflux/asientos/internal/rules"
)

// Processor implements Pipeline over the internal processing chain.
type Processor struct {
	pipeline *processor.Pipeline
	store    *rules.Store
	options  Options
}

// NewProcessor creates a processor. The rule table is loaded once up
// front; a load failure is returned instead of a half-working
// processor.
func NewProcessor(opts Options) (*Processor, error) {
	var store *rules.Store
	src := opts.RuleSource
	if src == nil && opts.RulesPath != "" {
		src = rules.NewCSVSource(opts.RulesPath)
	}
	if src != nil {
		store = rules.NewStore(src, rules.WithLogger(opts.Logger))
		if err := store.Refresh(context.Background(), false); err != nil {
			return nil, err
		}
	}

	popts := []processor.Option{processor.WithLogger(opts.Logger)}
	if store != nil {
		popts = append(popts, processor.WithStore(store))
	}
	if opts.EnableLLM && opts.LLMAPIKey != "" {
		var clientOpts []llm.ClientOption
		if opts.LLMBaseURL != "" {
			clientOpts = append(clientOpts, llm.WithBaseURL(opts.LLMBaseURL))
		}
		client := llm.NewClient(opts.LLMAPIKey, clientOpts...)

		var extractorOpts []llm.ExtractorOption
		if opts.LLMModel != "" {
			extractorOpts = append(extractorOpts, llm.WithModel(opts.LLMModel))
		}
		if opts.LLMVisionModel != "" {
			extractorOpts = append(extractorOpts, llm.WithVisionModel(opts.LLMVisionModel))
		}
		popts = append(popts, processor.WithLLMExtractor(llm.NewExtractor(client, extractorOpts...)))
	}

	return &Processor{
		pipeline: processor.NewPipeline(popts...),
		store:    store,
		options:  opts,
	}, nil
}

// NewDefaultProcessor creates a processor with default options. It
// classifies nothing until rules are configured.
func NewDefaultProcessor() (*Processor, error) {
	return NewProcessor(DefaultOptions())
}

// Process sniffs the input format and runs the full pipeline.
func (p *Processor) Process(ctx context.Context, r io.Reader) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, model.NewParseError("input", "failed to read input", err)
	}
	return p.result(p.pipeline.ProcessFile(ctx, "", data))
}

// ProcessText runs the pipeline over plain invoice text.
func (p *Processor) ProcessText(ctx context.Context, text string) (*Result, error) {
	return p.result(p.pipeline.ProcessText(ctx, text))
}

// ProcessPDF runs the pipeline over a PDF document.
func (p *Processor) ProcessPDF(ctx context.Context, r io.Reader) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, model.NewParseError("input", "failed to read input", err)
	}
	return p.result(p.pipeline.ProcessPDF(ctx, data))
}

// ProcessImage runs the pipeline over an invoice image.
func (p *Processor) ProcessImage(ctx context.Context, imageData []byte, mimeType string) (*Result, error) {
	return p.result(p.pipeline.ProcessImage(ctx, imageData, mimeType))
}

// ProcessBatch processes inputs concurrently. Results keep input
// order; the first error is returned after all inputs finish, with the
// failed slots left nil.
func (p *Processor) ProcessBatch(ctx context.Context, inputs []io.Reader) ([]*Result, error) {
	results := make([]*Result, len(inputs))
	errCh := make(chan error, len(inputs))

	for i, input := range inputs {
		go func(idx int, r io.Reader) {
			result, err := p.Process(ctx, r)
			if err != nil {
				errCh <- err
				return
			}
			results[idx] = result
			errCh <- nil
		}(i, input)
	}

	var firstErr error
	for range inputs {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return results, firstErr
}

// Classify matches text against the rule table without generating an
// entry. It returns nil when nothing matches.
func (p *Processor) Classify(text string) *Rule {
	return p.pipeline.Classify(text)
}

// Rules returns the active rule set in matching order.
func (p *Processor) Rules() []Rule {
	if p.store == nil {
		return nil
	}
	return p.store.Snapshot().Rules()
}

// Refresh force-reloads the rule table.
func (p *Processor) Refresh(ctx context.Context) error {
	if p.store == nil {
		return nil
	}
	return p.store.Refresh(ctx, true)
}

func (p *Processor) result(res *processor.Result) (*Result, error) {
	if res.Error != nil {
		return nil, res.Error
	}

	needsReview := res.Confidence < p.options.ReviewThreshold
	if res.Entry == nil || res.Entry.NeedsReview {
		needsReview = true
	}

	return &Result{
		Entry:       res.Entry,
		Rule:        res.Rule,
		Fields:      res.Fields,
		Method:      string(res.Method),
		Confidence:  res.Confidence,
		Warnings:    res.Warnings,
		NeedsReview: needsReview,
	}, nil
}

// WriteContasol renders entries in the Contasol import dialect.
func WriteContasol(w io.Writer, entries []*AccountingEntry) error {
	return contasol.NewWriter(zerolog.Nop()).Write(w, entries)
}

// ContasolFilename returns the conventional export file name for a
// client and period, e.g. "Asesoria_Perez_202311.csv".
func ContasolFilename(client string, period time.Time) string {
	return contasol.ExportFilename(client, period)
}
