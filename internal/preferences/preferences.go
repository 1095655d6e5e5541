// Package preferences persists the reader's category selection and feed toggles.
package preferences

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/TobiSchelling/newsdesk/internal/database"
)

// Preferences is the persisted preference document.
type Preferences struct {
	Categories        []string `json:"categories"`
	AIPersonalization bool     `json:"aiPersonalization"`
	BreakingNews      bool     `json:"breakingNews"`
}

// Defaults returns the preferences written on first run.
func Defaults() Preferences {
	return Preferences{
		Categories:        []string{"technology", "business"},
		AIPersonalization: true,
		BreakingNews:      true,
	}
}

// Prefers reports whether category is among the selected categories, ignoring case.
func (p Preferences) Prefers(category string) bool {
	return slices.Contains(p.Categories, strings.ToLower(category))
}

func (p Preferences) clone() Preferences {
	p.Categories = slices.Clone(p.Categories)
	return p
}

// Patch is a partial update. Nil fields keep their current value; an empty,
// non-nil Categories clears the selection.
type Patch struct {
	Categories        []string
	AIPersonalization *bool
	BreakingNews      *bool
}

// KV is the persistence the store reads and writes through.
type KV interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any) error
}

// Store holds the current preferences and writes every change through to KV.
type Store struct {
	kv     KV
	logger *slog.Logger

	mu    sync.RWMutex
	prefs Preferences
}

// NewStore creates a Store seeded with the defaults until Load runs.
func NewStore(kv KV, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{kv: kv, logger: logger, prefs: Defaults()}
}

// Load reads the stored preferences. A missing document is replaced by the
// defaults, which are written back; a read failure falls back to the defaults.
func (s *Store) Load(ctx context.Context) Preferences {
	var stored Preferences
	ok, err := s.kv.Get(ctx, database.KeyPreferences, &stored)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case err != nil:
		s.logger.Error("loading preferences, using defaults", "err", err)
		s.prefs = Defaults()
	case !ok:
		s.prefs = Defaults()
		if err := s.kv.Set(ctx, database.KeyPreferences, s.prefs); err != nil {
			s.logger.Error("writing default preferences", "err", err)
		}
	default:
		stored.Categories = normalize(stored.Categories)
		s.prefs = stored
	}
	return s.prefs.clone()
}

// Get returns a copy of the current preferences.
func (s *Store) Get() Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs.clone()
}

// Update merges p over the current preferences and rewrites the whole
// document. The in-memory value changes even when the write fails.
func (s *Store) Update(ctx context.Context, p Patch) (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.prefs.clone()
	if p.Categories != nil {
		next.Categories = normalize(p.Categories)
	}
	if p.AIPersonalization != nil {
		next.AIPersonalization = *p.AIPersonalization
	}
	if p.BreakingNews != nil {
		next.BreakingNews = *p.BreakingNews
	}
	s.prefs = next

	if err := s.kv.Set(ctx, database.KeyPreferences, next); err != nil {
		s.logger.Error("updating preferences", "err", err)
		return next.clone(), err
	}
	return next.clone(), nil
}

// normalize lowercases and trims category ids, dropping blanks and duplicates.
func normalize(ids []string) []string {
	out := lo.FilterMap(ids, func(id string, _ int) (string, bool) {
		id = strings.ToLower(strings.TrimSpace(id))
		return id, id != ""
	})
	return lo.Uniq(out)
}
