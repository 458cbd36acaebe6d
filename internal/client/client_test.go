package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := New(Config{BaseURL: server.URL + "/"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNewValidatesBaseURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error for empty base URL")
	}
	if _, err := New(Config{BaseURL: "ftp://example.com"}); err == nil {
		t.Error("expected error for non-http scheme")
	}
	if _, err := New(Config{BaseURL: "http://example.com", RateLimit: 5}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRequestHeaders(t *testing.T) {
	var gotAuth, gotRequestID string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		io.WriteString(w, `{"id": "U1", "username": "ana", "balance": "12.5"}`)
	})

	c.SetToken("tok")
	user, err := c.GetProfile(context.Background())
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if user.Username != "ana" || user.Balance.Fixed() != "12.50" {
		t.Errorf("unexpected profile %+v", user)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("expected bearer header, got %q", gotAuth)
	}
	if gotRequestID == "" {
		t.Error("expected X-Request-ID header")
	}

	c.SetToken("")
	c.GetProfile(context.Background())
	if gotAuth != "" {
		t.Errorf("expected no auth header after clearing token, got %q", gotAuth)
	}
}

func TestListItemsUnwrapsAndPassesFilters(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		io.WriteString(w, `{"products": [{"id": 1, "title": "Bike"}, {"id": 2, "title": "Lamp"}]}`)
	})

	items, err := c.ListItems(context.Background(), ListParams{Query: "bike", Status: "available"})
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("expected 2 items, got %d", len(items))
	}
	if !strings.Contains(gotQuery, "q=bike") || !strings.Contains(gotQuery, "status=available") {
		t.Errorf("unexpected query %q", gotQuery)
	}
}

func TestGetUsersUnknownShapeIsEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"unexpected": true}`)
	})

	users, err := c.GetUsers(context.Background())
	if err != nil {
		t.Fatalf("GetUsers: %v", err)
	}
	if users == nil || len(users) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", users)
	}
}

func TestAPIErrorCarriesServerMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		io.WriteString(w, `{"error": "listing is no longer available"}`)
	})

	_, err := c.BuyItem(context.Background(), "7")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusConflict {
		t.Errorf("expected 409, got %d", apiErr.Status)
	}
	if got := MessageOf(err, "purchase request failed"); got != "listing is no longer available" {
		t.Errorf("MessageOf = %q", got)
	}
}

func TestMessageOfFallback(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.BuyItem(context.Background(), "7")
	if got := MessageOf(err, "purchase request failed"); got != "purchase request failed" {
		t.Errorf("MessageOf = %q", got)
	}
	if got := MessageOf(errors.New("dial tcp: refused"), "fallback"); got != "fallback" {
		t.Errorf("MessageOf transport error = %q", got)
	}
}

func TestStatusHelpers(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/profile":
			w.WriteHeader(http.StatusUnauthorized)
		default:
			http.NotFound(w, r)
		}
	})

	_, err := c.GetProfile(context.Background())
	if !IsUnauthorized(err) {
		t.Errorf("expected unauthorized, got %v", err)
	}
	_, err = c.GetItemDetail(context.Background(), "missing")
	if !IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestLoginReadsToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/auth/login" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, `{"token": "abc"}`)
	})

	token, err := c.Login(context.Background(), "ana", "secret123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if token != "abc" {
		t.Errorf("expected token 'abc', got %q", token)
	}
}

func TestUploadImageSendsMultipart(t *testing.T) {
	var gotMime string
	var gotData string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("image")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		gotData = string(data)
		gotMime = header.Header.Get("Content-Type")
		io.WriteString(w, `{"id": "9", "image": "/api/items/9/image"}`)
	})

	l, err := c.UploadImage(context.Background(), "9", []byte("jpeg"), "image/jpeg")
	if err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	if gotData != "jpeg" || gotMime != "image/jpeg" {
		t.Errorf("unexpected upload %q (%s)", gotData, gotMime)
	}
	if !strings.HasSuffix(c.ImageURL(l.Image), "/api/items/9/image") || !strings.HasPrefix(c.ImageURL(l.Image), "http") {
		t.Errorf("unexpected resolved image URL %q", c.ImageURL(l.Image))
	}
	if got := c.ImageURL("https://cdn.example.com/a.jpg"); got != "https://cdn.example.com/a.jpg" {
		t.Errorf("absolute URL changed to %q", got)
	}
}

func TestStateChangesAcceptEmptyBody(t *testing.T) {
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	l, err := c.BuyItem(context.Background(), "L1")
	if err != nil {
		t.Fatalf("BuyItem: %v", err)
	}
	if l != nil {
		t.Errorf("expected no listing for an empty body, got %+v", l)
	}

	l, err = c.CompleteSale(context.Background(), "L1")
	if err != nil {
		t.Fatalf("CompleteSale: %v", err)
	}
	if l != nil {
		t.Errorf("expected no listing for an empty body, got %+v", l)
	}

	want := []string{"POST /api/items/L1/buy", "POST /api/items/L1/complete"}
	if strings.Join(paths, ",") != strings.Join(want, ",") {
		t.Errorf("requests = %v, want %v", paths, want)
	}
}

func TestBuyItemRejectsMalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `not json`)
	})
	if _, err := c.BuyItem(context.Background(), "L1"); err == nil {
		t.Error("expected error for a malformed body")
	}
}
