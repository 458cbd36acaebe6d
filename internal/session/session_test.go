package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/erazemk/sejem/internal/auth"
	"github.com/erazemk/sejem/internal/db"
	"github.com/erazemk/sejem/internal/model"
	"github.com/erazemk/sejem/internal/store"
)

var errRejected = errors.New("rejected")

type fakeAPI struct {
	token      string
	loginToken string
	profileErr error
	logouts    int
}

func (f *fakeAPI) SetToken(token string) { f.token = token }

func (f *fakeAPI) Login(ctx context.Context, username, password string) (string, error) {
	if password != "correct-horse" {
		return "", errRejected
	}
	return f.loginToken, nil
}

func (f *fakeAPI) Logout(ctx context.Context) error {
	f.logouts++
	return nil
}

func (f *fakeAPI) GetProfile(ctx context.Context) (*model.UserAccount, error) {
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	return &model.UserAccount{ID: "U1", Username: "ana"}, nil
}

func isRejected(err error) bool { return errors.Is(err, errRejected) }

func TestLoginPersistsToken(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	api := &fakeAPI{loginToken: "opaque-1"}

	s, err := Open(ctx, database, api, isRejected)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.Authenticated() {
		t.Fatal("expected fresh session to be anonymous")
	}
	if _, err := s.CurrentUser(ctx); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("expected ErrNotAuthenticated, got %v", err)
	}

	if _, err := s.Login(ctx, "ana", "wrong"); err == nil {
		t.Error("expected login failure")
	}

	user, err := s.Login(ctx, "ana", "correct-horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.Username != "ana" {
		t.Errorf("expected ana, got %q", user.Username)
	}
	if api.token != "opaque-1" {
		t.Errorf("expected token handed to api, got %q", api.token)
	}

	// A new session on the same storage picks the token up.
	api2 := &fakeAPI{}
	s2, err := Open(ctx, database, api2, isRejected)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if !s2.Authenticated() || api2.token != "opaque-1" {
		t.Errorf("expected persisted token, got %q", api2.token)
	}
}

func TestLogoutClearsToken(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	store.SaveSessionToken(ctx, database, "opaque-2")
	api := &fakeAPI{}

	s, _ := Open(ctx, database, api, isRejected)
	if err := s.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if s.Authenticated() || api.token != "" {
		t.Error("expected anonymous session after logout")
	}
	if api.logouts != 1 {
		t.Errorf("expected api logout once, got %d", api.logouts)
	}

	token, _ := store.LoadSessionToken(ctx, database)
	if token != "" {
		t.Errorf("expected stored token cleared, got %q", token)
	}
}

func TestOpenDiscardsExpiredJWT(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	claims := auth.Claims{
		UserID: "U1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("signing: %v", err)
	}
	store.SaveSessionToken(ctx, database, expired)

	api := &fakeAPI{}
	s, err := Open(ctx, database, api, isRejected)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.Authenticated() {
		t.Error("expected expired token to be discarded")
	}
	token, _ := store.LoadSessionToken(ctx, database)
	if token != "" {
		t.Errorf("expected stored token cleared, got %q", token)
	}
}

func TestOpenKeepsValidJWT(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	token, err := auth.GenerateToken("secret", "U1", "ana")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	store.SaveSessionToken(ctx, database, token)

	api := &fakeAPI{}
	s, err := Open(ctx, database, api, isRejected)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !s.Authenticated() || api.token != token {
		t.Error("expected valid JWT to be kept")
	}
}

func TestCurrentUserRejectedTokenLogsOut(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	store.SaveSessionToken(ctx, database, "stale")
	api := &fakeAPI{profileErr: errRejected}

	s, _ := Open(ctx, database, api, isRejected)
	if _, err := s.CurrentUser(ctx); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if s.Authenticated() {
		t.Error("expected session to drop the rejected token")
	}
	token, _ := store.LoadSessionToken(ctx, database)
	if token != "" {
		t.Errorf("expected stored token cleared, got %q", token)
	}
}

func TestCurrentUserOtherErrorsKeepToken(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	store.SaveSessionToken(ctx, database, "tok")
	api := &fakeAPI{profileErr: errors.New("network down")}

	s, _ := Open(ctx, database, api, isRejected)
	if _, err := s.CurrentUser(ctx); err == nil || errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if !s.Authenticated() {
		t.Error("transport failures must not log the user out")
	}
}
