package intake

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// State records which documents have been processed so restarts do not
// book the same invoice twice. Keys are file names for the local inbox
// and file IDs for the Drive poller; the marker is the source's
// modification stamp, so an edited document is picked up again.
type State struct {
	path string

	mu   sync.Mutex
	seen map[string]string
}

type stateFile struct {
	Processed map[string]string `json:"processed"`
}

// LoadState reads the state file at path, tolerating a missing file.
// An empty path keeps the state in memory only.
func LoadState(path string) (*State, error) {
	s := &State{path: path, seen: make(map[string]string)}
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading state %s: %w", path, err)
	}

	var f stateFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing state %s: %w", path, err)
	}
	if f.Processed != nil {
		s.seen = f.Processed
	}
	return s, nil
}

// Seen reports whether key was already processed with the same marker.
func (s *State) Seen(key, marker string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	got, ok := s.seen[key]
	return ok && got == marker
}

// Mark records key as processed and persists the state.
func (s *State) Mark(key, marker string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[key] = marker
	return s.save()
}

// Len returns the number of recorded documents.
func (s *State) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// save must run with the mutex held. The write goes through a temp file
// so a crash mid-write cannot corrupt the state.
func (s *State) save() error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	data, err := json.MarshalIndent(stateFile{Processed: s.seen}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing state: %w", err)
	}
	return nil
}
