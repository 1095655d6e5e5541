// Package auth is the mock sign-in layer. It accepts any non-empty
// credentials and remembers the signed-in user in the key-value store.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/TobiSchelling/newsdesk/internal/database"
)

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidRegistration = errors.New("invalid registration data")
)

// User is the signed-in reader.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// KV is the persistence the service keeps the user in.
type KV interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any) error
	Delete(ctx context.Context, key string) error
}

// Service tracks the current user.
type Service struct {
	kv     KV
	logger *slog.Logger
	now    func() time.Time

	mu   sync.RWMutex
	user *User
}

// NewService creates a signed-out service.
func NewService(kv KV, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{kv: kv, logger: logger, now: time.Now}
}

// WithClock replaces the clock used for registration ids.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Load restores the stored user, if any. Read failures are logged and leave
// the service signed out.
func (s *Service) Load(ctx context.Context) {
	var u User
	ok, err := s.kv.Get(ctx, database.KeyUser, &u)
	if err != nil {
		s.logger.Error("loading user", "err", err)
		return
	}
	if !ok {
		return
	}
	s.mu.Lock()
	s.user = &u
	s.mu.Unlock()
}

// Login signs in with any non-empty email and password.
func (s *Service) Login(ctx context.Context, email, password string) (User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return User{}, ErrInvalidCredentials
	}
	return s.signIn(ctx, User{ID: "user-123", Name: "John Doe", Email: email})
}

// Register creates a user with a time-derived id and signs it in.
func (s *Service) Register(ctx context.Context, name, email, password string) (User, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(email) == "" || password == "" {
		return User{}, ErrInvalidRegistration
	}
	id := fmt.Sprintf("user-%d", s.now().UnixMilli())
	return s.signIn(ctx, User{ID: id, Name: name, Email: email})
}

func (s *Service) signIn(ctx context.Context, u User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = &u
	if err := s.kv.Set(ctx, database.KeyUser, u); err != nil {
		s.logger.Error("saving user", "err", err)
		return u, fmt.Errorf("saving user: %w", err)
	}
	return u, nil
}

// Logout forgets the user. If the stored copy cannot be removed the user
// stays signed in.
func (s *Service) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Delete(ctx, database.KeyUser); err != nil {
		s.logger.Error("logging out", "err", err)
		return fmt.Errorf("removing user: %w", err)
	}
	s.user = nil
	return nil
}

// Current returns the signed-in user.
func (s *Service) Current() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}
