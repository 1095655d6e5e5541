package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/TobiSchelling/newsdesk/internal/catalog"
	"github.com/TobiSchelling/newsdesk/internal/config"
	"github.com/TobiSchelling/newsdesk/internal/database"
	"github.com/TobiSchelling/newsdesk/internal/news"
)

func loadedStore(t *testing.T) *news.Store {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	c, err := catalog.New()
	if err != nil {
		t.Fatalf("failed to load catalog: %v", err)
	}
	store := news.NewStore(c, db, news.Options{})
	if err := store.Load(context.Background(), nil); err != nil {
		t.Fatalf("failed to load store: %v", err)
	}
	return store
}

func TestFindArticleByPrefix(t *testing.T) {
	store := loadedStore(t)
	want := store.Articles()[4]

	got, ok := findArticle(store, want.ID)
	if !ok || got.ID != want.ID {
		t.Fatalf("expected lookup by full id to succeed")
	}

	got, ok = findArticle(store, want.ID[:8])
	if !ok || got.ID != want.ID {
		t.Errorf("expected lookup by 8-character prefix to succeed")
	}

	if _, ok := findArticle(store, want.ID[:2]); ok {
		t.Error("expected too-short prefix to be rejected")
	}
	if _, ok := findArticle(store, "zzzzzzzz"); ok {
		t.Error("expected unknown prefix to fail")
	}
}

func TestFormatCategories(t *testing.T) {
	if got := formatCategories(nil); got != "(all)" {
		t.Errorf("expected '(all)', got %q", got)
	}
	if got := formatCategories([]string{"world", "technology"}); got != "World News, Technology" {
		t.Errorf("unexpected %q", got)
	}
}

func TestOneShotConfigDropsDelays(t *testing.T) {
	base := config.Default()
	base.Output.DataDir = t.TempDir()

	c := oneShotConfig(base)
	if c.Store.LoadDelay != 0 || c.Store.SearchDelay != 0 {
		t.Errorf("expected no delays, got load=%v search=%v", c.Store.LoadDelay, c.Store.SearchDelay)
	}
	if base.Store.LoadDelay != time.Second {
		t.Errorf("expected the loaded config to keep its delay, got %v", base.Store.LoadDelay)
	}
	if c.Output.DataDir != base.Output.DataDir {
		t.Error("expected other settings to be kept")
	}

	cfg = base
	start := time.Now()
	s, err := openSession(context.Background())
	if err != nil {
		t.Fatalf("failed to open session: %v", err)
	}
	defer s.Close()
	if elapsed := time.Since(start); elapsed >= time.Second {
		t.Errorf("expected a one-shot session to skip the load delay, took %v", elapsed)
	}
}
