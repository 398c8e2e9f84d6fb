// Package intake feeds documents into the processing pipeline from
// watched sources: a local inbox directory and a Google Drive folder.
// Both remember what they already processed in a shared State so a
// restart does not book the same invoice twice, and both log failures
// instead of stopping the service.
package intake

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/contaflux/asientos/internal/model"
	"github.com/contaflux/asientos/internal/processor"
	"github.com/contaflux/asientos/internal/sheet"
)

// DefaultDebounce is how long the watcher waits after the last write
// event before reading a file. Scanners and sync clients write
// documents in several steps.
const DefaultDebounce = 100 * time.Millisecond

// Watcher processes documents dropped into a local inbox directory.
type Watcher struct {
	dir      string
	pipe     *processor.Pipeline
	sinks    []sheet.Sink
	state    *State
	debounce time.Duration
	log      zerolog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithSinks sets where generated entries are delivered.
func WithSinks(sinks ...sheet.Sink) WatcherOption {
	return func(w *Watcher) {
		w.sinks = append(w.sinks, sinks...)
	}
}

// WithState sets the processed-file state store.
func WithState(state *State) WatcherOption {
	return func(w *Watcher) {
		w.state = state
	}
}

// WithDebounce overrides the settle delay.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithWatcherLogger sets the watcher logger.
func WithWatcherLogger(log zerolog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.log = log
	}
}

// NewWatcher creates an inbox watcher over dir. Without options it
// keeps state in memory and delivers entries nowhere.
func NewWatcher(dir string, pipe *processor.Pipeline, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		dir:      dir,
		pipe:     pipe,
		debounce: DefaultDebounce,
		log:      zerolog.Nop(),
		timers:   make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.state == nil {
		w.state, _ = LoadState("")
	}
	return w
}

// Run sweeps the backlog already in the inbox, then watches for new
// files until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Sweep(ctx); err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating inbox watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	w.log.Info().Str("dir", w.dir).Msg("inbox watcher started")

	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			return ctx.Err()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if !eligible(ev.Name) {
				continue
			}
			w.schedule(ctx, ev.Name)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("inbox watcher error")
		}
	}
}

// Sweep processes every eligible file currently in the inbox.
func (w *Watcher) Sweep(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("reading inbox %s: %w", w.dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !eligible(e.Name()) {
			continue
		}
		w.Process(ctx, filepath.Join(w.dir, e.Name()))
	}
	return nil
}

// Process runs one inbox file through the pipeline and the sinks.
// Failures are logged and leave the file unmarked so it is retried.
func (w *Watcher) Process(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil {
		w.log.Warn().Err(err).Str("path", path).Msg("inbox file vanished before processing")
		return
	}
	key := filepath.Base(path)
	marker := info.ModTime().UTC().Format(time.RFC3339Nano)
	if w.state.Seen(key, marker) {
		w.log.Debug().Str("file", key).Msg("already processed, skipping")
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		w.log.Error().Err(err).Str("file", key).Msg("reading inbox file failed")
		return
	}

	result := w.pipe.ProcessFile(ctx, key, data)
	if result.Error != nil {
		w.log.Error().Err(result.Error).Str("file", key).Msg("document processing failed")
		return
	}
	if result.Entry == nil {
		// No rule matched. Mark it anyway so the inbox does not churn
		// on the same unclassifiable document every cycle.
		w.log.Warn().Str("file", key).Msg("no rule matched, document needs manual handling")
		w.mark(key, marker)
		return
	}

	result.Entry.DocumentID = key
	if err := dispatch(ctx, w.sinks, result.Entry); err != nil {
		w.log.Error().Err(err).Str("file", key).Msg("delivering entry failed")
		return
	}
	w.mark(key, marker)
	w.log.Info().
		Str("file", key).
		Bool("needs_review", result.Entry.NeedsReview).
		Msg("document processed")
}

func (w *Watcher) mark(key, marker string) {
	if err := w.state.Mark(key, marker); err != nil {
		w.log.Warn().Err(err).Str("file", key).Msg("saving intake state failed")
	}
}

func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		w.Process(ctx, path)
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, t := range w.timers {
		t.Stop()
	}
	w.timers = make(map[string]*time.Timer)
}

// eligible reports whether the inbox accepts this file.
func eligible(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".txt":
		return true
	default:
		return false
	}
}

// dispatch delivers one entry to every sink, returning the first error.
func dispatch(ctx context.Context, sinks []sheet.Sink, e *model.AccountingEntry) error {
	for _, s := range sinks {
		if err := s.Append(ctx, e); err != nil {
			return err
		}
	}
	return nil
}
