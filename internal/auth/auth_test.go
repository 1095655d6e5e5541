package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

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

func TestLoginStoresUser(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	s := NewService(db, nil)

	u, err := s.Login(ctx, "reader@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, User{ID: "user-123", Name: "John Doe", Email: "reader@example.com"}, u)

	cur, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, u, cur)

	var stored User
	found, err := db.Get(ctx, database.KeyUser, &stored)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, u, stored)
}

func TestLoginRejectsEmptyFields(t *testing.T) {
	s := NewService(openTestDB(t), nil)
	ctx := context.Background()

	tests := []struct{ email, password string }{
		{"", "secret"},
		{"reader@example.com", ""},
		{"  ", "secret"},
	}
	for _, tt := range tests {
		_, err := s.Login(ctx, tt.email, tt.password)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, ok := s.Current()
	assert.False(t, ok)
}

func TestRegisterUsesClock(t *testing.T) {
	s := NewService(openTestDB(t), nil).WithClock(func() time.Time {
		return time.UnixMilli(1700000000123)
	})

	u, err := s.Register(context.Background(), "Ada", "ada@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "user-1700000000123", u.ID)
	assert.Equal(t, "Ada", u.Name)

	_, err = s.Register(context.Background(), "", "ada@example.com", "pw")
	assert.ErrorIs(t, err, ErrInvalidRegistration)
}

func TestLoadRestoresUser(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	_, err := NewService(db, nil).Login(ctx, "a@b.c", "x")
	require.NoError(t, err)

	next := NewService(db, nil)
	_, ok := next.Current()
	assert.False(t, ok)

	next.Load(ctx)
	u, ok := next.Current()
	require.True(t, ok)
	assert.Equal(t, "a@b.c", u.Email)
}

func TestLogout(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	s := NewService(db, nil)
	_, err := s.Login(ctx, "a@b.c", "x")
	require.NoError(t, err)

	require.NoError(t, s.Logout(ctx))
	_, ok := s.Current()
	assert.False(t, ok)

	_, found, err := db.GetRaw(ctx, database.KeyUser)
	require.NoError(t, err)
	assert.False(t, found)

	// Logging out twice is fine.
	assert.NoError(t, s.Logout(ctx))
}

type stuckKV struct{}

func (stuckKV) Get(ctx context.Context, key string, dst any) (bool, error) {
	return false, errors.New("unreadable")
}
func (stuckKV) Set(ctx context.Context, key string, v any) error { return nil }
func (stuckKV) Delete(ctx context.Context, key string) error {
	return errors.New("read-only")
}

func TestStorageFailures(t *testing.T) {
	s := NewService(stuckKV{}, nil)
	ctx := context.Background()

	s.Load(ctx)
	_, ok := s.Current()
	assert.False(t, ok)

	_, err := s.Login(ctx, "a@b.c", "x")
	require.NoError(t, err)

	assert.Error(t, s.Logout(ctx))
	_, ok = s.Current()
	assert.True(t, ok, "user stays signed in when the delete fails")
}
