// Package detail is the listing detail view-model: it loads a listing with
// its viewer and user directory, decides which counterparty contact to
// reveal, and drives purchase requests.
package detail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/erazemk/sejem/internal/client"
	"github.com/erazemk/sejem/internal/model"
	"github.com/erazemk/sejem/internal/session"
)

// API is the remote surface the view-model depends on.
type API interface {
	GetItemDetail(ctx context.Context, id string) (*model.Listing, error)
	GetUsers(ctx context.Context) ([]model.UserAccount, error)
	BuyItem(ctx context.Context, id string) (*model.Listing, error)
}

// Viewer resolves the current user. It returns session.ErrNotAuthenticated
// for anonymous viewers.
type Viewer interface {
	CurrentUser(ctx context.Context) (*model.UserAccount, error)
}

// State is a snapshot of the view-model for rendering.
type State struct {
	Listing *model.Listing
	Viewer  *model.UserAccount
	Users   []model.UserAccount
	Contact *model.ContactDisclosure
	Flags   Flags
	// LoadErr is set when the listing itself failed to load.
	LoadErr error
	// Buying is true while a purchase request is in flight.
	Buying bool
}

// BuyDisabled reports whether the "Request to Buy" control is disabled.
func (s State) BuyDisabled() bool {
	return s.Buying || s.Listing == nil || !s.Flags.IsAvailable
}

// ViewModel holds one listing screen's state.
type ViewModel struct {
	api    API
	viewer Viewer

	buying atomic.Bool

	mu      sync.Mutex
	listing *model.Listing
	user    *model.UserAccount
	users   []model.UserAccount
	contact *model.ContactDisclosure
	loadErr error
}

// New creates a view-model backed by api and the session's viewer.
func New(api API, viewer Viewer) *ViewModel {
	return &ViewModel{api: api, viewer: viewer}
}

// Load fetches the listing, the viewer and the user directory in parallel
// and waits for all three. Only a failed listing fetch is returned; a
// missing viewer or directory degrades to anonymous and no contact.
func (vm *ViewModel) Load(ctx context.Context, id string) error {
	var (
		listing *model.Listing
		user    *model.UserAccount
		users   []model.UserAccount
	)

	// Only the listing fetch can fail the group; Wait still waits for all
	// three.
	var g errgroup.Group
	g.Go(func() error {
		var err error
		listing, err = vm.api.GetItemDetail(ctx, id)
		return err
	})
	g.Go(func() error {
		u, err := vm.viewer.CurrentUser(ctx)
		switch {
		case errors.Is(err, session.ErrNotAuthenticated):
		case err != nil:
			slog.Warn("failed to load viewer profile", "error", err)
		default:
			user = u
		}
		return nil
	})
	g.Go(func() error {
		us, err := vm.api.GetUsers(ctx)
		if err != nil {
			slog.Warn("failed to load users", "error", err)
			return nil
		}
		users = us
		return nil
	})
	listingErr := g.Wait()
	if listingErr == nil && listing == nil {
		listingErr = fmt.Errorf("listing %s: empty response", id)
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.user = user
	vm.users = users
	vm.loadErr = listingErr
	if listingErr != nil {
		vm.listing = nil
	} else {
		vm.listing = listing
	}
	vm.resolveLocked()
	return listingErr
}

// resolveLocked re-derives the contact disclosure. vm.mu must be held.
func (vm *ViewModel) resolveLocked() {
	vm.contact = ResolveContact(vm.listing, vm.viewerIDLocked(), vm.users)
}

func (vm *ViewModel) viewerIDLocked() model.FlexID {
	if vm.user == nil {
		return ""
	}
	return vm.user.ID
}

// State returns a snapshot of the current state.
func (vm *ViewModel) State() State {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	s := State{
		Viewer:  vm.user,
		Users:   vm.users,
		Contact: vm.contact,
		LoadErr: vm.loadErr,
		Buying:  vm.buying.Load(),
	}
	if vm.listing != nil {
		l := *vm.listing
		s.Listing = &l
	}
	s.Flags = Classify(vm.listing, vm.viewerIDLocked())
	return s
}

// RequestToBuy validates and submits a purchase request for the loaded
// listing. Local rejections never reach the API. On success the listing is
// replaced by the server's copy and a notice naming it is returned.
func (vm *ViewModel) RequestToBuy(ctx context.Context) (string, error) {
	if !vm.buying.CompareAndSwap(false, true) {
		return "", ErrRequestInFlight
	}
	defer vm.buying.Store(false)

	vm.mu.Lock()
	listing := vm.listing
	user := vm.user
	vm.mu.Unlock()

	if listing == nil {
		return "", ErrNotLoaded
	}
	if user == nil || user.ID.IsZero() {
		return "", ErrAuthRequired
	}
	if model.SameID(user.ID, listing.SellerID) {
		return "", ErrOwnListing
	}
	if user.Balance.LessThan(listing.Price) {
		return "", &InsufficientBalanceError{Price: listing.Price, Balance: user.Balance}
	}
	if listing.Status != model.StatusAvailable {
		return "", ErrNotAvailable
	}

	updated, err := vm.api.BuyItem(ctx, listing.ID.String())
	if err != nil {
		slog.Warn("purchase request failed", "listing", listing.ID, "error", err)
		return "", &PurchaseError{Message: client.MessageOf(err, FallbackPurchaseMessage), Err: err}
	}

	if updated == nil || updated.ID.IsZero() {
		// The API acknowledged without a body; apply the known transition.
		l := *listing
		l.Status = model.StatusPending
		l.BuyerID = user.ID
		updated = &l
	}

	vm.mu.Lock()
	vm.listing = updated
	vm.resolveLocked()
	vm.mu.Unlock()

	slog.Info("purchase requested", "listing", updated.ID, "buyer", user.ID)
	return fmt.Sprintf("Purchase requested for %q.", updated.Title), nil
}
