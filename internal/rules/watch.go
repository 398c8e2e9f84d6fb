package rules

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileBacked is implemented by sources backed by a local file that can
// be watched for edits.
type FileBacked interface {
	Path() string
}

// Watch reloads the store whenever the backing rule file changes, and
// blocks until ctx is done. It returns an error immediately when the
// source is not file backed or the watcher cannot be set up.
//
// The parent directory is watched rather than the file itself:
// editors replace files on save, which would silently drop a watch
// set on the file.
func (s *Store) Watch(ctx context.Context) error {
	fb, ok := s.source.(FileBacked)
	if !ok {
		return fmt.Errorf("rule source %s is not file backed", s.source.Describe())
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create rule file watcher: %w", err)
	}

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		_ = watcher.Close()
	}()

	target := filepath.Clean(fb.Path())
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch rule file directory: %w", err)
	}
	s.log.Info().Str("path", target).Msg("watching rule file for changes")

	// Editors often write files in multiple steps, so changes are
	// debounced before triggering a reload.
	const debounceDelay = 100 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			// Remove/Rename are common in atomic saves.
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceDelay, func() {
				if err := s.Refresh(ctx, true); err != nil {
					s.log.Warn().Err(err).Msg("rule reload after file change failed")
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warn().Err(err).Msg("rule file watcher error")
		}
	}
}
