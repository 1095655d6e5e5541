package news

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/TobiSchelling/newsdesk/internal/database"
	"github.com/TobiSchelling/newsdesk/internal/preferences"
)

// Options configures a Store.
type Options struct {
	Logger *slog.Logger
	// Rand drives the personalization jitter and refresh shuffles.
	// A nil Rand is seeded from the clock.
	Rand *rand.Rand
	// LoadDelay and SearchDelay pause Load and Search before they do any
	// work so that a caller can show a loading state.
	LoadDelay   time.Duration
	SearchDelay time.Duration
}

// Store is the in-memory article state shared by the CLI and the web UI.
// All methods are safe for concurrent use.
type Store struct {
	source      Source
	kv          KV
	logger      *slog.Logger
	loadDelay   time.Duration
	searchDelay time.Duration

	mu              sync.RWMutex
	rnd             *rand.Rand
	articles        []Article
	view            []Article
	activeFilter    string
	searchResults   []Article
	bookmarks       []Article
	bookmarksLoaded bool
	loading         bool
	searching       bool
}

// NewStore creates an empty store. Nothing is read until Load.
func NewStore(source Source, kv KV, opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Rand == nil {
		seed := uint64(time.Now().UnixNano())
		opts.Rand = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return &Store{
		source:      source,
		kv:          kv,
		logger:      opts.Logger,
		loadDelay:   opts.LoadDelay,
		searchDelay: opts.SearchDelay,
		rnd:         opts.Rand,
	}
}

// Load reads the collection from the source and derives the view from prefs.
// With a category selection, personalization reorders the collection so the
// selected categories come first; without personalization the collection is
// cut down to the selected categories. A nil prefs, or an empty selection,
// keeps the source order. Bookmarks are read from storage on the first call.
//
// Source and storage failures are logged and leave an empty collection; the
// only error returned is the context's.
func (s *Store) Load(ctx context.Context, prefs *preferences.Preferences) error {
	s.setLoading(true)
	defer s.setLoading(false)

	s.loadBookmarks(ctx)

	if err := wait(ctx, s.loadDelay); err != nil {
		return err
	}

	articles, err := s.source.Articles(ctx)
	if err != nil {
		s.logger.Error("loading articles", "err", err)
		articles = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prefs != nil && len(prefs.Categories) > 0 {
		if prefs.AIPersonalization {
			articles = personalize(articles, prefs.Categories, s.rnd)
		} else {
			articles = keepCategories(articles, prefs.Categories)
		}
	}
	s.articles = articles
	s.view = filterByCategory(s.articles, s.activeFilter)
	s.logger.Debug("articles loaded", "total", len(s.articles), "visible", len(s.view))
	return nil
}

func (s *Store) loadBookmarks(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bookmarksLoaded {
		return
	}
	s.bookmarksLoaded = true

	var stored []Article
	if _, err := s.kv.Get(ctx, database.KeyBookmarks, &stored); err != nil {
		s.logger.Error("loading bookmarks", "err", err)
		return
	}
	s.bookmarks = stored
}

// Refresh reloads the source collection in a random order and reapplies the
// active filter. Preferences are not consulted. On a source failure the
// current state is kept.
func (s *Store) Refresh(ctx context.Context) error {
	s.setLoading(true)
	defer s.setLoading(false)

	articles, err := s.source.Articles(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		s.logger.Error("refreshing articles", "err", err)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.rnd.Shuffle(len(articles), func(i, j int) {
		articles[i], articles[j] = articles[j], articles[i]
	})
	s.articles = articles
	s.view = filterByCategory(s.articles, s.activeFilter)
	return nil
}

// SetCategoryFilter sets the active category; the empty string clears it.
// An unknown category yields an empty view.
func (s *Store) SetCategoryFilter(categoryID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeFilter = categoryID
	s.view = filterByCategory(s.articles, categoryID)
}

// ActiveFilter returns the active category id, or "" for all.
func (s *Store) ActiveFilter() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeFilter
}

// Articles returns the filtered view.
func (s *Store) Articles() []Article {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.view)
}

// Loading reports whether a Load or Refresh is in progress.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// GetByID looks the article up in the view, then the whole collection, then
// the bookmarks.
func (s *Store) GetByID(id string) (Article, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byID := func(a Article) bool { return a.ID == id }
	for _, set := range [][]Article{s.view, s.articles, s.bookmarks} {
		if a, ok := lo.Find(set, byID); ok {
			return a, true
		}
	}
	return Article{}, false
}

// GetByCategory returns the collection's articles in categoryID, ignoring the
// active filter.
func (s *Store) GetByCategory(categoryID string) []Article {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterByCategory(s.articles, categoryID)
}

// Search returns the articles whose title, content, summary, category or
// author contain query, ignoring case, in collection order. The query is not
// validated: an empty query matches every article.
func (s *Store) Search(ctx context.Context, query string) ([]Article, error) {
	s.setSearching(true)
	defer s.setSearching(false)

	if err := wait(ctx, s.searchDelay); err != nil {
		return nil, err
	}

	q := strings.ToLower(query)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchResults = lo.Filter(s.articles, func(a Article, _ int) bool {
		return strings.Contains(a.searchText(), q)
	})
	return slices.Clone(s.searchResults), nil
}

// SearchResults returns the results of the last completed search.
func (s *Store) SearchResults() []Article {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.searchResults)
}

// Searching reports whether a Search is in progress.
func (s *Store) Searching() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.searching
}

// ToggleBookmark removes id from the bookmarks if it is there, otherwise adds
// the article, and reports the new membership. Removal works for articles no
// longer in the loaded collection; adding ignores ids that are not loaded.
func (s *Store) ToggleBookmark(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID := func(a Article) bool { return a.ID == id }
	if lo.ContainsBy(s.bookmarks, byID) {
		s.bookmarks = lo.Reject(s.bookmarks, func(a Article, _ int) bool { return a.ID == id })
		s.saveBookmarks(ctx)
		return false
	}

	article, ok := lo.Find(s.articles, byID)
	if !ok {
		if article, ok = lo.Find(s.view, byID); !ok {
			return false
		}
	}
	s.bookmarks = append(slices.Clone(s.bookmarks), article)
	s.saveBookmarks(ctx)
	return true
}

// RemoveBookmark drops id from the bookmarks. Absent ids are a no-op.
func (s *Store) RemoveBookmark(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !lo.ContainsBy(s.bookmarks, func(a Article) bool { return a.ID == id }) {
		return
	}
	s.bookmarks = lo.Reject(s.bookmarks, func(a Article, _ int) bool { return a.ID == id })
	s.saveBookmarks(ctx)
}

// ClearBookmarks empties the bookmarks and removes them from storage.
func (s *Store) ClearBookmarks(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bookmarks = nil
	if err := s.kv.Delete(ctx, database.KeyBookmarks); err != nil {
		s.logger.Error("clearing bookmarks", "err", err)
	}
}

// IsBookmarked reports whether id is bookmarked.
func (s *Store) IsBookmarked(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.ContainsBy(s.bookmarks, func(a Article) bool { return a.ID == id })
}

// Bookmarks returns the bookmarked articles in insertion order.
func (s *Store) Bookmarks() []Article {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.bookmarks)
}

// Categories returns the fixed category list.
func (s *Store) Categories() []Category {
	return Categories()
}

// saveBookmarks writes the full bookmark snapshot. Callers hold mu, so
// snapshots reach storage in mutation order. Failures are logged and the
// in-memory set is kept.
func (s *Store) saveBookmarks(ctx context.Context) {
	snapshot := s.bookmarks
	if snapshot == nil {
		snapshot = []Article{}
	}
	if err := s.kv.Set(ctx, database.KeyBookmarks, snapshot); err != nil {
		s.logger.Error("saving bookmarks", "err", err)
	}
}

func (s *Store) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

func (s *Store) setSearching(v bool) {
	s.mu.Lock()
	s.searching = v
	s.mu.Unlock()
}

func filterByCategory(articles []Article, categoryID string) []Article {
	if categoryID == "" {
		return slices.Clone(articles)
	}
	return lo.Filter(articles, func(a Article, _ int) bool { return a.InCategory(categoryID) })
}

// wait blocks for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
