// Package catalog filters listings for browsing and derives a user's
// purchase and sale history.
package catalog

import (
	"errors"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/erazemk/sejem/internal/model"
)

// ErrInvalidPriceLimit is returned by ParsePriceLimit for input that is not
// a non-negative number.
var ErrInvalidPriceLimit = errors.New("max price must be a non-negative number")

// ParsePriceLimit parses a max-price bound. Empty input means no bound.
func ParsePriceLimit(s string) (*model.Amount, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "$")
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return nil, ErrInvalidPriceLimit
	}
	limit := model.NewAmount(d)
	return &limit, nil
}

// Filter narrows a listing collection. Zero values match everything.
type Filter struct {
	Query    string
	Status   string
	MaxPrice *model.Amount
	FreeOnly bool
	// HideOwn drops listings sold by ViewerID.
	HideOwn  bool
	ViewerID model.FlexID
}

// Match reports whether l passes the filter.
func (f Filter) Match(l *model.Listing) bool {
	if f.Status != "" && l.Status != f.Status {
		return false
	}
	if f.FreeOnly && !l.IsFree() {
		return false
	}
	if f.MaxPrice != nil && f.MaxPrice.LessThan(l.Price) {
		return false
	}
	if f.HideOwn && model.SameID(f.ViewerID, l.SellerID) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		haystack := strings.ToLower(l.Title + "\n" + l.Description + "\n" + l.Location)
		for _, term := range strings.Fields(q) {
			if !strings.Contains(haystack, term) {
				return false
			}
		}
	}
	return true
}

// Apply returns the matching listings, newest first. The input is not
// modified.
func (f Filter) Apply(listings []model.Listing) []model.Listing {
	out := make([]model.Listing, 0, len(listings))
	for i := range listings {
		if f.Match(&listings[i]) {
			out = append(out, listings[i])
		}
	}
	slices.SortStableFunc(out, func(a, b model.Listing) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}
