package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/newsdesk/internal/collect"
	"github.com/TobiSchelling/newsdesk/internal/config"
	"github.com/TobiSchelling/newsdesk/internal/database"
	"github.com/TobiSchelling/newsdesk/internal/preferences"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Output.DataDir = t.TempDir()
	cfg.Store.LoadDelay = 0
	cfg.Store.SearchDelay = 0
	cfg.Store.Seed = 7
	return cfg
}

func openSession(t *testing.T, cfg *config.Config) *Session {
	t.Helper()
	s, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenFirstRun(t *testing.T) {
	s := openSession(t, testConfig(t))

	assert.Equal(t, preferences.Defaults(), s.Preferences.Get())
	_, signedIn := s.Auth.Current()
	assert.False(t, signedIn)

	// Defaults put technology and business first.
	view := s.News.Articles()
	require.Len(t, view, 13)
	for _, a := range view[:4] {
		assert.Contains(t, []string{"Technology", "Business"}, a.Category)
	}

	_, ok, err := s.DB.GetRaw(context.Background(), database.KeyPreferences)
	require.NoError(t, err)
	assert.True(t, ok, "defaults are written on first run")
}

func TestSessionStateSurvivesReopen(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	first, err := Open(ctx, cfg, nil)
	require.NoError(t, err)
	_, err = first.Auth.Login(ctx, "reader@example.com", "pw")
	require.NoError(t, err)
	id := first.News.Articles()[0].ID
	require.True(t, first.News.ToggleBookmark(ctx, id))
	require.NoError(t, first.Close())

	second := openSession(t, cfg)
	u, ok := second.Auth.Current()
	require.True(t, ok)
	assert.Equal(t, "reader@example.com", u.Email)
	assert.True(t, second.News.IsBookmarked(id))
}

func TestUpdatePreferencesReloadsStore(t *testing.T) {
	s := openSession(t, testConfig(t))
	off := false

	prefs, err := s.UpdatePreferences(context.Background(), preferences.Patch{
		Categories:        []string{"health"},
		AIPersonalization: &off,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"health"}, prefs.Categories)

	view := s.News.Articles()
	require.Len(t, view, 2)
	for _, a := range view {
		assert.Equal(t, "Health", a.Category)
	}
}

func TestNewSource(t *testing.T) {
	cfg := testConfig(t)

	src, err := NewSource(cfg, nil)
	require.NoError(t, err)
	articles, err := src.Articles(context.Background())
	require.NoError(t, err)
	assert.Len(t, articles, 13)

	cfg.Catalog.Source = config.SourceFeeds
	cfg.Catalog.Feeds = []config.Feed{{URL: "http://127.0.0.1:0/rss", Category: "world"}}
	src, err = NewSource(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &collect.FeedSource{}, src)

	cfg.Catalog.Source = "carrier-pigeon"
	_, err = NewSource(cfg, nil)
	assert.Error(t, err)
}
