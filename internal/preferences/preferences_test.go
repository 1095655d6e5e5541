package preferences

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/newsdesk/internal/database"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestLoadWritesDefaultsOnFirstRun(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	got := NewStore(db, nil).Load(ctx)
	assert.Equal(t, Defaults(), got)

	var stored Preferences
	ok, err := db.Get(ctx, database.KeyPreferences, &stored)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Defaults(), stored)
}

func TestLoadReadsStoredDocument(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.Set(ctx, database.KeyPreferences, Preferences{
		Categories: []string{" Health", "science", "health"},
	}))

	got := NewStore(db, nil).Load(ctx)
	assert.Equal(t, []string{"health", "science"}, got.Categories)
	assert.False(t, got.AIPersonalization)
	assert.False(t, got.BreakingNews)
}

func TestUpdateMergesFields(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	s := NewStore(db, nil)
	s.Load(ctx)

	off := false
	got, err := s.Update(ctx, Patch{AIPersonalization: &off})
	require.NoError(t, err)
	assert.Equal(t, []string{"technology", "business"}, got.Categories)
	assert.False(t, got.AIPersonalization)
	assert.True(t, got.BreakingNews)

	got, err = s.Update(ctx, Patch{Categories: []string{"Sports"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"sports"}, got.Categories)
	assert.False(t, got.AIPersonalization)

	// A fresh store sees the merged document.
	reloaded := NewStore(db, nil).Load(ctx)
	assert.Equal(t, got, reloaded)
}

func TestUpdateEmptySelection(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	s := NewStore(db, nil)
	s.Load(ctx)

	got, err := s.Update(ctx, Patch{Categories: []string{}})
	require.NoError(t, err)
	assert.Empty(t, got.Categories)
	assert.True(t, got.AIPersonalization)
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewStore(openTestDB(t), nil)
	s.Load(context.Background())

	p := s.Get()
	p.Categories[0] = "mutated"
	assert.Equal(t, "technology", s.Get().Categories[0])
}

func TestPrefers(t *testing.T) {
	p := Preferences{Categories: []string{"technology", "world"}}
	assert.True(t, p.Prefers("Technology"))
	assert.True(t, p.Prefers("WORLD"))
	assert.False(t, p.Prefers("Health"))
}

type brokenKV struct{}

func (b *brokenKV) Get(ctx context.Context, key string, dst any) (bool, error) {
	return false, errors.New("unreadable")
}

func (b *brokenKV) Set(ctx context.Context, key string, v any) error {
	return errors.New("read-only")
}

func TestStorageFailures(t *testing.T) {
	s := NewStore(&brokenKV{}, nil)
	ctx := context.Background()

	assert.Equal(t, Defaults(), s.Load(ctx))

	on := true
	got, err := s.Update(ctx, Patch{Categories: []string{"food"}, BreakingNews: &on})
	require.Error(t, err)
	assert.Equal(t, []string{"food"}, got.Categories)
	assert.Equal(t, got, s.Get(), "memory keeps the update")
}
