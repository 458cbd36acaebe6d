package catalog

import "github.com/erazemk/sejem/internal/model"

// Ledger groups listings on one side of a transaction by status.
type Ledger struct {
	Pending []model.Listing
	Sold    []model.Listing
	// Open holds the seller's listings nobody has requested yet.
	Open []model.Listing
}

// Count returns the number of listings in the ledger.
func (l Ledger) Count() int {
	return len(l.Pending) + len(l.Sold) + len(l.Open)
}

// Summary is a user's trading history.
type Summary struct {
	Purchases Ledger
	Sales     Ledger
	// Spent covers requested and completed purchases; the balance is
	// debited when a purchase is requested.
	Spent model.Amount
	// Earned covers completed sales only.
	Earned model.Amount
	// Incoming is what pending sales will pay out.
	Incoming model.Amount
}

// History splits listings into the viewer's purchases and sales.
// Listings the viewer is not party to are ignored.
func History(listings []model.Listing, viewerID model.FlexID) Summary {
	var s Summary
	for _, l := range listings {
		switch {
		case model.SameID(viewerID, l.BuyerID):
			switch l.Status {
			case model.StatusPending:
				s.Purchases.Pending = append(s.Purchases.Pending, l)
				s.Spent = s.Spent.Add(l.Price)
			case model.StatusSold:
				s.Purchases.Sold = append(s.Purchases.Sold, l)
				s.Spent = s.Spent.Add(l.Price)
			}
		case model.SameID(viewerID, l.SellerID):
			switch l.Status {
			case model.StatusAvailable:
				s.Sales.Open = append(s.Sales.Open, l)
			case model.StatusPending:
				s.Sales.Pending = append(s.Sales.Pending, l)
				s.Incoming = s.Incoming.Add(l.Price)
			case model.StatusSold:
				s.Sales.Sold = append(s.Sales.Sold, l)
				s.Earned = s.Earned.Add(l.Price)
			}
		}
	}
	return s
}
