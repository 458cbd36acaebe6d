package detail

import (
	"strings"

	"github.com/erazemk/sejem/internal/model"
)

// ResolveContact decides whose contact details the viewer may see. The
// first matching rule wins:
//
//  1. the seller sees the buyer once a purchase has been requested
//  2. the buyer sees the seller once a purchase has been requested
//  3. anyone sees the seller while the listing is available
//
// Anyone else sees nothing, and so does everyone when the counterparty is
// missing from users. viewerID is empty for anonymous viewers.
func ResolveContact(l *model.Listing, viewerID model.FlexID, users []model.UserAccount) *model.ContactDisclosure {
	if l == nil {
		return nil
	}

	available := l.Status == model.StatusAvailable

	var targetID model.FlexID
	var role string
	switch {
	case model.SameID(viewerID, l.SellerID) && l.HasBuyer() && !available:
		targetID, role = l.BuyerID, model.ContactRoleBuyer
	case model.SameID(viewerID, l.BuyerID) && !available:
		targetID, role = l.SellerID, model.ContactRoleSeller
	case available:
		targetID, role = l.SellerID, model.ContactRoleSeller
	default:
		return nil
	}

	target := model.FindAccount(users, targetID)
	if target == nil {
		return nil
	}

	phone := strings.TrimSpace(target.Phone)
	if phone == "" {
		phone = model.PhoneNotAvailable
	}
	return &model.ContactDisclosure{
		Phone:    phone,
		Email:    target.Email,
		Username: target.Username,
		Role:     role,
	}
}

// Flags are the ownership and status booleans a detail screen renders from.
type Flags struct {
	IsOwner     bool
	IsBuyer     bool
	IsAvailable bool
	IsPending   bool
	IsSold      bool
	// CanEdit shows the edit action.
	CanEdit bool
	// CanRequestBuy shows an enabled "Request to Buy" control.
	CanRequestBuy bool
	// CanComplete lets the seller mark a pending sale as done.
	CanComplete bool
}

// Classify derives Flags for a viewer. viewerID is empty for anonymous
// viewers.
func Classify(l *model.Listing, viewerID model.FlexID) Flags {
	if l == nil {
		return Flags{}
	}
	f := Flags{
		IsOwner:     model.SameID(viewerID, l.SellerID),
		IsBuyer:     model.SameID(viewerID, l.BuyerID),
		IsAvailable: l.Status == model.StatusAvailable,
		IsPending:   l.Status == model.StatusPending,
		IsSold:      l.Status == model.StatusSold,
	}
	f.CanEdit = f.IsOwner
	f.CanRequestBuy = !f.IsOwner && f.IsAvailable
	f.CanComplete = f.IsOwner && f.IsPending
	return f
}
