package model

import "time"

// Listing is a marketplace item offered for sale or donation.
type Listing struct {
	ID          FlexID    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Price       Amount    `json:"price"`
	Location    string    `json:"location,omitempty"`
	Image       string    `json:"image,omitempty"`
	Status      string    `json:"status"`
	SellerID    FlexID    `json:"seller_id"`
	SellerName  string    `json:"seller_name,omitempty"`
	BuyerID     FlexID    `json:"buyer_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Listing statuses.
const (
	StatusAvailable = "available"
	StatusPending   = "pending"
	StatusSold      = "sold"
)

// ValidStatus reports whether s is a known listing status.
func ValidStatus(s string) bool {
	switch s {
	case StatusAvailable, StatusPending, StatusSold:
		return true
	}
	return false
}

// HasBuyer reports whether a purchase has been requested.
func (l *Listing) HasBuyer() bool {
	return !l.BuyerID.IsZero()
}

// IsFree reports whether the listing is a donation.
func (l *Listing) IsFree() bool {
	return l.Price.IsZero()
}
