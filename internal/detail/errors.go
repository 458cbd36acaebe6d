package detail

import (
	"errors"
	"fmt"

	"github.com/erazemk/sejem/internal/model"
)

var (
	// ErrAuthRequired means the viewer has to log in first.
	ErrAuthRequired = errors.New("log in to request a purchase")
	// ErrOwnListing rejects buying one's own listing.
	ErrOwnListing = errors.New("cannot buy your own listing")
	// ErrNotAvailable means the listing is already pending or sold.
	ErrNotAvailable = errors.New("listing is no longer available")
	// ErrRequestInFlight rejects a second concurrent purchase request.
	ErrRequestInFlight = errors.New("a purchase request is already in progress")
	// ErrNotLoaded is returned when acting before a listing was loaded.
	ErrNotLoaded = errors.New("listing not loaded")
)

// FallbackPurchaseMessage is shown when a failed purchase carries no server
// message.
const FallbackPurchaseMessage = "purchase request failed"

// InsufficientBalanceError rejects a purchase the viewer cannot afford.
type InsufficientBalanceError struct {
	Price   model.Amount
	Balance model.Amount
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: listing costs %s, you have %s",
		e.Price.Dollars(), e.Balance.Dollars())
}

// PurchaseError is a purchase the API refused or could not complete.
type PurchaseError struct {
	Message string
	Err     error
}

func (e *PurchaseError) Error() string { return e.Message }

func (e *PurchaseError) Unwrap() error { return e.Err }
