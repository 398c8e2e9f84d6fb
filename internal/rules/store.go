package rules

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/contaflux/asientos/internal/model"
)

// Source provides rule rows from a tabular backend.
type Source interface {
	// Load returns the rules in source order together with an opaque
	// version marker (file mtime, Drive revision time).
	Load(ctx context.Context) ([]model.Rule, string, error)

	// Changed reports whether the backend moved past the given
	// version without fetching the full rule set.
	Changed(ctx context.Context, version string) (bool, error)

	// Describe names the source for logs and errors.
	Describe() string
}

// Snapshot is an immutable rule set ordered by descending priority.
// Ties keep source order, so earlier rows win among equals.
type Snapshot struct {
	rules    []model.Rule
	version  string
	loadedAt time.Time
}

func newSnapshot(ruleSet []model.Rule, version string) *Snapshot {
	ordered := make([]model.Rule, len(ruleSet))
	copy(ordered, ruleSet)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})
	return &Snapshot{rules: ordered, version: version, loadedAt: time.Now()}
}

// Rules returns the ordered rule set. Callers must not mutate it.
func (s *Snapshot) Rules() []model.Rule {
	if s == nil {
		return nil
	}
	return s.rules
}

// Len returns the number of rules.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

// Version returns the source version marker of this snapshot.
func (s *Snapshot) Version() string {
	if s == nil {
		return ""
	}
	return s.version
}

// LoadedAt returns when this snapshot was built.
func (s *Snapshot) LoadedAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.loadedAt
}

// Match returns the highest priority rule whose keywords occur in the
// text, or nil when nothing matches. Empty text never matches, and
// neither do rules without keywords.
func (s *Snapshot) Match(text string) *model.Rule {
	if s == nil || strings.TrimSpace(text) == "" {
		return nil
	}
	lowered := strings.ToLower(text)
	for i := range s.rules {
		if s.rules[i].Matches(lowered) {
			return &s.rules[i]
		}
	}
	return nil
}

// Store owns the active rule snapshot and refreshes it from a source.
type Store struct {
	source Source
	log    zerolog.Logger

	mu       sync.RWMutex
	snapshot *Snapshot
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the store's logger. Defaults to a disabled logger.
func WithLogger(log zerolog.Logger) StoreOption {
	return func(s *Store) { s.log = log }
}

// NewStore creates a store over the given source. Call Refresh before
// matching; Snapshot returns nil until the first successful load.
func NewStore(source Source, opts ...StoreOption) *Store {
	s := &Store{source: source, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the active rule set, or nil before the first
// successful Refresh.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Refresh reloads rules from the source. Without force, an unchanged
// source keeps the active snapshot. A failed load also keeps it: a
// broken edit to the rule sheet must not take classification down.
func (s *Store) Refresh(ctx context.Context, force bool) error {
	current := s.Snapshot()
	if !force && current != nil {
		changed, err := s.source.Changed(ctx, current.version)
		if err != nil {
			s.log.Warn().Err(err).Msg("rule source change check failed, reloading")
		} else if !changed {
			return nil
		}
	}

	loaded, version, err := s.source.Load(ctx)
	if err != nil {
		if current != nil {
			s.log.Error().Err(err).Str("source", s.source.Describe()).
				Msg("rule reload failed, keeping previous snapshot")
		}
		return err
	}

	snap := newSnapshot(loaded, version)
	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()

	s.log.Info().
		Int("rules", snap.Len()).
		Str("source", s.source.Describe()).
		Msg("rule snapshot loaded")
	return nil
}
