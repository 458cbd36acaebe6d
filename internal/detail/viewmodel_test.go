package detail

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/erazemk/sejem/internal/client"
	"github.com/erazemk/sejem/internal/model"
	"github.com/erazemk/sejem/internal/session"
)

type fakeAPI struct {
	mu        sync.Mutex
	listing   *model.Listing
	detailErr error
	users     []model.UserAccount
	usersErr  error
	buyResult *model.Listing
	buyErr    error
	buyCalls  int
	// block, when set, holds BuyItem until it is closed.
	block chan struct{}
	// entered is signalled when BuyItem starts.
	entered chan struct{}
}

func (f *fakeAPI) GetItemDetail(ctx context.Context, id string) (*model.Listing, error) {
	if f.detailErr != nil {
		return nil, f.detailErr
	}
	l := *f.listing
	return &l, nil
}

func (f *fakeAPI) GetUsers(ctx context.Context) ([]model.UserAccount, error) {
	return f.users, f.usersErr
}

func (f *fakeAPI) BuyItem(ctx context.Context, id string) (*model.Listing, error) {
	f.mu.Lock()
	f.buyCalls++
	f.mu.Unlock()
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	return f.buyResult, f.buyErr
}

func (f *fakeAPI) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buyCalls
}

type fakeViewer struct {
	user *model.UserAccount
	err  error
}

func (v fakeViewer) CurrentUser(ctx context.Context) (*model.UserAccount, error) {
	if v.user == nil && v.err == nil {
		return nil, session.ErrNotAuthenticated
	}
	return v.user, v.err
}

func account(id string, balance int64) *model.UserAccount {
	return &model.UserAccount{ID: model.FlexID(id), Balance: model.AmountFromInt(balance)}
}

func loaded(t *testing.T, api *fakeAPI, viewer *model.UserAccount) *ViewModel {
	t.Helper()
	vm := New(api, fakeViewer{user: viewer})
	if err := vm.Load(context.Background(), "L1"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return vm
}

func TestLoadResolvesState(t *testing.T) {
	api := &fakeAPI{listing: listing(model.StatusAvailable, ""), users: directory}
	vm := loaded(t, api, account("U42", 100))

	s := vm.State()
	if s.Listing == nil || s.Listing.Title != "Bike" {
		t.Fatalf("expected listing, got %+v", s.Listing)
	}
	if s.Contact == nil || s.Contact.Username != "seller" {
		t.Errorf("expected seller contact, got %+v", s.Contact)
	}
	if !s.Flags.CanRequestBuy || s.BuyDisabled() {
		t.Error("expected enabled buy control")
	}
}

func TestLoadAnonymousViewer(t *testing.T) {
	api := &fakeAPI{listing: listing(model.StatusAvailable, ""), users: directory}
	vm := loaded(t, api, nil)

	s := vm.State()
	if s.Viewer != nil {
		t.Errorf("expected anonymous viewer, got %+v", s.Viewer)
	}
	if s.Contact == nil || s.Contact.Role != model.ContactRoleSeller {
		t.Errorf("anonymous viewers see the seller while available, got %+v", s.Contact)
	}
}

func TestLoadDegradesOnSecondaryFailures(t *testing.T) {
	api := &fakeAPI{listing: listing(model.StatusAvailable, ""), usersErr: errors.New("boom")}
	vm := New(api, fakeViewer{err: errors.New("profile down")})

	if err := vm.Load(context.Background(), "L1"); err != nil {
		t.Fatalf("secondary failures must not fail the load: %v", err)
	}
	s := vm.State()
	if s.Listing == nil {
		t.Fatal("expected listing to render")
	}
	if s.Contact != nil {
		t.Errorf("expected no contact without a directory, got %+v", s.Contact)
	}
}

func TestLoadListingFailure(t *testing.T) {
	api := &fakeAPI{detailErr: &client.APIError{Status: 404, Message: "not found"}, users: directory}
	vm := New(api, fakeViewer{user: account("U42", 10)})

	err := vm.Load(context.Background(), "missing")
	if !client.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	s := vm.State()
	if s.LoadErr == nil || s.Listing != nil {
		t.Errorf("expected failed state, got %+v", s)
	}
	if !s.BuyDisabled() {
		t.Error("expected buy control disabled without a listing")
	}
	if s.Viewer == nil || len(s.Users) != len(directory) {
		t.Errorf("expected the other fetches to finish despite the listing failure, got viewer=%v users=%d", s.Viewer, len(s.Users))
	}
}

func TestRequestToBuyInsufficientBalance(t *testing.T) {
	api := &fakeAPI{listing: listing(model.StatusAvailable, ""), users: directory}
	vm := loaded(t, api, account("U42", 10))

	_, err := vm.RequestToBuy(context.Background())
	var balErr *InsufficientBalanceError
	if !errors.As(err, &balErr) {
		t.Fatalf("expected InsufficientBalanceError, got %v", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "$25.00") || !strings.Contains(msg, "$10.00") {
		t.Errorf("expected both figures in %q", msg)
	}
	if api.calls() != 0 {
		t.Errorf("expected no buy call, got %d", api.calls())
	}
}

func TestRequestToBuyOwnListing(t *testing.T) {
	api := &fakeAPI{listing: listing(model.StatusAvailable, ""), users: directory}

	for _, balance := range []int64{0, 1000} {
		vm := loaded(t, api, account("S1", balance))
		if _, err := vm.RequestToBuy(context.Background()); !errors.Is(err, ErrOwnListing) {
			t.Errorf("balance %d: expected ErrOwnListing, got %v", balance, err)
		}
	}
	if api.calls() != 0 {
		t.Errorf("expected no buy call, got %d", api.calls())
	}
}

func TestRequestToBuyRequiresAuth(t *testing.T) {
	api := &fakeAPI{listing: listing(model.StatusAvailable, ""), users: directory}
	vm := loaded(t, api, nil)

	if _, err := vm.RequestToBuy(context.Background()); !errors.Is(err, ErrAuthRequired) {
		t.Errorf("expected ErrAuthRequired, got %v", err)
	}
	if api.calls() != 0 {
		t.Errorf("expected no buy call, got %d", api.calls())
	}
}

func TestRequestToBuyNotAvailable(t *testing.T) {
	api := &fakeAPI{listing: listing(model.StatusSold, "X9"), users: directory}
	vm := loaded(t, api, account("U42", 100))

	if !vm.State().BuyDisabled() {
		t.Error("expected buy control disabled for sold listing")
	}
	if _, err := vm.RequestToBuy(context.Background()); !errors.Is(err, ErrNotAvailable) {
		t.Errorf("expected ErrNotAvailable, got %v", err)
	}
	if api.calls() != 0 {
		t.Errorf("expected no buy call, got %d", api.calls())
	}
}

func TestRequestToBuySuccessReresolves(t *testing.T) {
	updated := listing(model.StatusPending, "U42")
	api := &fakeAPI{listing: listing(model.StatusAvailable, ""), users: directory, buyResult: updated}
	vm := loaded(t, api, account("U42", 30))

	notice, err := vm.RequestToBuy(context.Background())
	if err != nil {
		t.Fatalf("RequestToBuy: %v", err)
	}
	if !strings.Contains(notice, "Bike") {
		t.Errorf("expected notice to name the listing, got %q", notice)
	}
	if api.calls() != 1 {
		t.Errorf("expected one buy call, got %d", api.calls())
	}

	s := vm.State()
	if s.Listing.Status != model.StatusPending || s.Listing.BuyerID != "U42" {
		t.Errorf("expected pending listing bought by U42, got %+v", s.Listing)
	}
	if s.Contact == nil || s.Contact.Username != "seller" || s.Contact.Role != model.ContactRoleSeller {
		t.Errorf("expected buyer to see the seller, got %+v", s.Contact)
	}
	if !s.BuyDisabled() {
		t.Error("expected buy control disabled once pending")
	}

	// The seller viewing the same snapshot sees the buyer.
	seller := ResolveContact(s.Listing, "S1", s.Users)
	if seller == nil || seller.Username != "buyer" || seller.Role != model.ContactRoleBuyer {
		t.Errorf("expected seller to see U42 as buyer, got %+v", seller)
	}
}

func TestRequestToBuyEmptyResponseAppliesTransition(t *testing.T) {
	api := &fakeAPI{listing: listing(model.StatusAvailable, ""), users: directory}
	vm := loaded(t, api, account("U42", 30))

	if _, err := vm.RequestToBuy(context.Background()); err != nil {
		t.Fatalf("RequestToBuy: %v", err)
	}
	s := vm.State()
	if s.Listing.Status != model.StatusPending || s.Listing.BuyerID != "U42" {
		t.Errorf("expected local pending transition, got %+v", s.Listing)
	}
}

func TestRequestToBuyNoContentFromServer(t *testing.T) {
	var buyCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/items/L1", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"id": "L1", "title": "Lamp", "price": 5, "status": "available", "seller_id": "S1"}`)
	})
	mux.HandleFunc("GET /api/users", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"id": "S1", "username": "sara", "email": "sara@example.com"}]`)
	})
	mux.HandleFunc("POST /api/items/L1/buy", func(w http.ResponseWriter, r *http.Request) {
		buyCalls++
		w.WriteHeader(http.StatusNoContent)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	c, err := client.New(client.Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}
	vm := New(c, fakeViewer{user: account("U42", 10)})
	if err := vm.Load(context.Background(), "L1"); err != nil {
		t.Fatalf("Load: %v", err)
	}

	notice, err := vm.RequestToBuy(context.Background())
	if err != nil {
		t.Fatalf("RequestToBuy: %v", err)
	}
	if notice != `Purchase requested for "Lamp".` {
		t.Errorf("unexpected notice %q", notice)
	}
	if buyCalls != 1 {
		t.Errorf("expected 1 buy call, got %d", buyCalls)
	}

	s := vm.State()
	if s.Listing.Status != model.StatusPending || s.Listing.BuyerID != "U42" {
		t.Errorf("expected pending with buyer U42, got %+v", s.Listing)
	}
	if s.Contact == nil || s.Contact.Username != "sara" || s.Contact.Phone != model.PhoneNotAvailable {
		t.Errorf("expected seller contact after purchase, got %+v", s.Contact)
	}
}

func TestRequestToBuyFailureKeepsState(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"server message", &client.APIError{Status: 409, Message: "listing is no longer available"}, "listing is no longer available"},
		{"no message", &client.APIError{Status: 500}, FallbackPurchaseMessage},
		{"transport", errors.New("connection refused"), FallbackPurchaseMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{listing: listing(model.StatusAvailable, ""), users: directory, buyErr: tt.err}
			vm := loaded(t, api, account("U42", 30))

			_, err := vm.RequestToBuy(context.Background())
			var pErr *PurchaseError
			if !errors.As(err, &pErr) {
				t.Fatalf("expected PurchaseError, got %v", err)
			}
			if pErr.Message != tt.want {
				t.Errorf("expected %q, got %q", tt.want, pErr.Message)
			}

			s := vm.State()
			if s.Listing.Status != model.StatusAvailable || s.Listing.HasBuyer() {
				t.Errorf("expected unchanged listing, got %+v", s.Listing)
			}
			if s.Buying {
				t.Error("expected in-flight flag cleared")
			}
		})
	}
}

func TestRequestToBuyRejectsConcurrentRequest(t *testing.T) {
	api := &fakeAPI{
		listing:   listing(model.StatusAvailable, ""),
		users:     directory,
		buyResult: listing(model.StatusPending, "U42"),
		block:     make(chan struct{}),
		entered:   make(chan struct{}, 1),
	}
	vm := loaded(t, api, account("U42", 30))

	done := make(chan error, 1)
	go func() {
		_, err := vm.RequestToBuy(context.Background())
		done <- err
	}()
	<-api.entered

	if !vm.State().BuyDisabled() {
		t.Error("expected buy control disabled while in flight")
	}
	if _, err := vm.RequestToBuy(context.Background()); !errors.Is(err, ErrRequestInFlight) {
		t.Errorf("expected ErrRequestInFlight, got %v", err)
	}

	close(api.block)
	if err := <-done; err != nil {
		t.Fatalf("first request: %v", err)
	}
	if api.calls() != 1 {
		t.Errorf("expected exactly one buy call, got %d", api.calls())
	}
}
