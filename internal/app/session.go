// Package app wires storage, preferences, auth and the article store into a
// single session shared by the CLI commands and the web UI.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/TobiSchelling/newsdesk/internal/auth"
	"github.com/TobiSchelling/newsdesk/internal/catalog"
	"github.com/TobiSchelling/newsdesk/internal/collect"
	"github.com/TobiSchelling/newsdesk/internal/config"
	"github.com/TobiSchelling/newsdesk/internal/database"
	"github.com/TobiSchelling/newsdesk/internal/news"
	"github.com/TobiSchelling/newsdesk/internal/preferences"
)

// Session is the application state for one process.
type Session struct {
	Config      *config.Config
	DB          *database.DB
	Preferences *preferences.Store
	Auth        *auth.Service
	News        *news.Store

	logger *slog.Logger
}

// Open opens the database under the configured data directory, restores the
// user and preferences, and loads the article store with them.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := database.OpenDir(cfg.GetDataDir())
	if err != nil {
		return nil, err
	}

	source, err := NewSource(cfg, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &Session{
		Config:      cfg,
		DB:          db,
		Preferences: preferences.NewStore(db, logger),
		Auth:        auth.NewService(db, logger),
		logger:      logger,
	}
	s.News = news.NewStore(source, db, news.Options{
		Logger:      logger,
		Rand:        newRand(cfg.Store.Seed),
		LoadDelay:   cfg.Store.LoadDelay,
		SearchDelay: cfg.Store.SearchDelay,
	})

	s.Auth.Load(ctx)
	prefs := s.Preferences.Load(ctx)
	if err := s.News.Load(ctx, &prefs); err != nil {
		db.Close()
		return nil, fmt.Errorf("loading articles: %w", err)
	}
	return s, nil
}

// NewSource builds the article source selected by catalog.source.
func NewSource(cfg *config.Config, logger *slog.Logger) (news.Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Catalog.Source {
	case config.SourceStatic, "":
		c, err := catalog.New()
		if err != nil {
			return nil, fmt.Errorf("loading sample catalog: %w", err)
		}
		return c, nil
	case config.SourceFeeds:
		feeds := make([]collect.FeedConfig, len(cfg.Catalog.Feeds))
		for i, f := range cfg.Catalog.Feeds {
			feeds[i] = collect.FeedConfig{URL: f.URL, Name: f.Name, Category: f.Category}
		}
		opts := []collect.Option{collect.WithLogger(logger)}
		if cfg.Catalog.FetchContent {
			opts = append(opts, collect.WithContentFetcher(collect.NewContentFetcher(0, logger)))
		}
		return collect.NewFeedSource(feeds, opts...), nil
	default:
		return nil, fmt.Errorf("unknown article source %q", cfg.Catalog.Source)
	}
}

// UpdatePreferences applies p, then reloads the article store so the new
// selection takes effect. A failed write is returned after the reload.
func (s *Session) UpdatePreferences(ctx context.Context, p preferences.Patch) (preferences.Preferences, error) {
	prefs, writeErr := s.Preferences.Update(ctx, p)
	if err := s.News.Load(ctx, &prefs); err != nil {
		return prefs, fmt.Errorf("reloading articles: %w", err)
	}
	return prefs, writeErr
}

// Close releases the database.
func (s *Session) Close() error {
	return s.DB.Close()
}

func newRand(seed uint64) *rand.Rand {
	if seed == 0 {
		return nil
	}
	return rand.New(rand.NewPCG(seed, seed))
}
