package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type prefsDoc struct {
	Categories        []string `json:"categories"`
	AIPersonalization bool     `json:"aiPersonalization"`
}

func TestGetMissingKey(t *testing.T) {
	db := openTestDB(t)

	var doc prefsDoc
	ok, err := db.Get(context.Background(), KeyPreferences, &doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected ok=false for missing key")
	}
}

func TestSetAndGet(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	in := prefsDoc{Categories: []string{"health"}, AIPersonalization: true}
	if err := db.Set(ctx, KeyPreferences, in); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var out prefsDoc
	ok, err := db.Get(ctx, KeyPreferences, &out)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected key to exist")
	}
	if len(out.Categories) != 1 || out.Categories[0] != "health" {
		t.Errorf("expected [health], got %v", out.Categories)
	}
	if !out.AIPersonalization {
		t.Error("expected aiPersonalization=true")
	}
}

func TestSetReplacesValue(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	db.Set(ctx, KeyBookmarks, []string{"a", "b"})
	if err := db.Set(ctx, KeyBookmarks, []string{"c"}); err != nil {
		t.Fatalf("second Set: %v", err)
	}

	raw, ok, err := db.GetRaw(ctx, KeyBookmarks)
	if err != nil || !ok {
		t.Fatalf("GetRaw: ok=%v err=%v", ok, err)
	}
	if raw != `["c"]` {
		t.Errorf("expected snapshot to be replaced, got %s", raw)
	}

	entries, _ := db.Entries(ctx)
	if len(entries) != 1 {
		t.Errorf("expected 1 entry, got %d", len(entries))
	}
}

func TestDelete(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	db.Set(ctx, KeyUser, map[string]string{"id": "user-123"})
	if err := db.Delete(ctx, KeyUser); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := db.GetRaw(ctx, KeyUser); ok {
		t.Error("expected key to be gone after delete")
	}

	// Deleting again is a no-op.
	if err := db.Delete(ctx, KeyUser); err != nil {
		t.Errorf("expected no error deleting absent key, got %v", err)
	}
}

func TestGetDecodeError(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	db.Set(ctx, KeyPreferences, "not an object")

	var doc prefsDoc
	ok, err := db.Get(ctx, KeyPreferences, &doc)
	if err == nil {
		t.Fatal("expected decode error")
	}
	if ok {
		t.Error("expected ok=false on decode error")
	}
}

func TestEntriesOrdered(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	db.Set(ctx, KeyUser, 1)
	db.Set(ctx, KeyBookmarks, 2)
	db.Set(ctx, KeyPreferences, 3)

	entries, err := db.Entries(ctx)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	want := []string{KeyBookmarks, KeyPreferences, KeyUser}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, k := range want {
		if entries[i].Key != k {
			t.Errorf("entry %d: expected %q, got %q", i, k, entries[i].Key)
		}
		if entries[i].UpdatedAt == nil {
			t.Errorf("entry %d: expected updated_at to be set", i)
		}
	}
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	db.Set(ctx, KeyUser, map[string]string{"id": "user-123"})
	db.Set(ctx, KeyBookmarks, []string{})

	stats, err := db.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.Keys != 2 {
		t.Errorf("expected 2 keys, got %d", stats.Keys)
	}
	if stats.SizeBytes == 0 {
		t.Error("expected non-zero db size")
	}
}

func TestOpenDirCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sub", "deep")

	db, err := OpenDir(dir)
	if err != nil {
		t.Fatalf("OpenDir: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(filepath.Join(dir, FileName)); err != nil {
		t.Errorf("expected database file to be created: %v", err)
	}
	if db.Path() != filepath.Join(dir, FileName) {
		t.Errorf("unexpected path %q", db.Path())
	}
}
