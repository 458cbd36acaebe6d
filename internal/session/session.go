// Package session holds the local user's API session: the persisted token
// and access to the current account.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/erazemk/sejem/internal/auth"
	"github.com/erazemk/sejem/internal/model"
	"github.com/erazemk/sejem/internal/store"
)

// ErrNotAuthenticated means there is no usable session token.
var ErrNotAuthenticated = errors.New("not authenticated")

// API is the subset of the API client the session needs.
type API interface {
	SetToken(token string)
	Login(ctx context.Context, username, password string) (string, error)
	Logout(ctx context.Context) error
	GetProfile(ctx context.Context) (*model.UserAccount, error)
}

// UnauthorizedFunc reports whether an API error means the token was rejected.
type UnauthorizedFunc func(error) bool

// Session is the explicit session context passed to screens.
type Session struct {
	db           *sql.DB
	api          API
	unauthorized UnauthorizedFunc
	now          func() time.Time

	mu    sync.RWMutex
	token string
}

// Open loads the persisted token from db and hands it to api. An expired
// token is discarded.
func Open(ctx context.Context, db *sql.DB, api API, unauthorized UnauthorizedFunc) (*Session, error) {
	s := &Session{db: db, api: api, unauthorized: unauthorized, now: time.Now}

	token, err := store.LoadSessionToken(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("loading session token: %w", err)
	}

	if token != "" && s.expired(token) {
		slog.Info("stored session expired, logging out")
		if err := store.ClearSessionToken(ctx, db); err != nil {
			return nil, fmt.Errorf("clearing expired token: %w", err)
		}
		token = ""
	}

	s.setToken(token)
	return s, nil
}

// expired inspects JWT tokens locally. Opaque tokens are left for the API
// to judge.
func (s *Session) expired(token string) bool {
	claims, err := auth.InspectToken(token)
	if err != nil {
		return false
	}
	return claims.Expired(s.now())
}

func (s *Session) setToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	s.api.SetToken(token)
}

// Authenticated reports whether a token is present. It does not contact
// the API.
func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

// Login authenticates against the API and persists the token.
func (s *Session) Login(ctx context.Context, username, password string) (*model.UserAccount, error) {
	token, err := s.api.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if err := store.SaveSessionToken(ctx, s.db, token); err != nil {
		return nil, fmt.Errorf("saving session token: %w", err)
	}
	s.setToken(token)

	user, err := s.api.GetProfile(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching profile after login: %w", err)
	}
	slog.Info("logged in", "user", user.Username)
	return user, nil
}

// Logout forgets the token locally. Failing to notify the API is logged
// but does not keep the user logged in.
func (s *Session) Logout(ctx context.Context) error {
	if s.Authenticated() {
		if err := s.api.Logout(ctx); err != nil {
			slog.Warn("api logout failed", "error", err)
		}
	}
	if err := store.ClearSessionToken(ctx, s.db); err != nil {
		return fmt.Errorf("clearing session token: %w", err)
	}
	s.setToken("")
	return nil
}

// CurrentUser fetches the authenticated account. A token the API rejects
// is cleared and reported as ErrNotAuthenticated.
func (s *Session) CurrentUser(ctx context.Context) (*model.UserAccount, error) {
	if !s.Authenticated() {
		return nil, ErrNotAuthenticated
	}

	user, err := s.api.GetProfile(ctx)
	if err != nil {
		if s.unauthorized != nil && s.unauthorized(err) {
			slog.Info("session rejected by api, logging out")
			if err := store.ClearSessionToken(ctx, s.db); err != nil {
				slog.Error("failed to clear rejected token", "error", err)
			}
			s.setToken("")
			return nil, ErrNotAuthenticated
		}
		return nil, err
	}
	return user, nil
}
