package catalog

import (
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/erazemk/sejem/internal/client"
	"github.com/erazemk/sejem/internal/model"
)

// Draft is an unvalidated post or edit form.
type Draft struct {
	Title       string
	Description string
	Price       string
	Location    string
}

// DraftFromListing fills a draft for editing l.
func DraftFromListing(l *model.Listing) Draft {
	return Draft{
		Title:       l.Title,
		Description: l.Description,
		Price:       l.Price.Fixed(),
		Location:    l.Location,
	}
}

// FieldErrors maps form field names to messages.
type FieldErrors map[string]string

// Validate checks the draft field by field. An empty price means the item
// is given away.
func (d Draft) Validate() (client.ListingInput, FieldErrors) {
	errs := FieldErrors{}
	in := client.ListingInput{
		Title:       strings.TrimSpace(d.Title),
		Description: strings.TrimSpace(d.Description),
		Location:    strings.TrimSpace(d.Location),
	}

	if in.Title == "" {
		errs["title"] = "Title is required"
	} else if utf8.RuneCountInString(in.Title) > 120 {
		errs["title"] = "Title must be at most 120 characters"
	}

	price := strings.TrimPrefix(strings.TrimSpace(d.Price), "$")
	if price != "" {
		p, err := decimal.NewFromString(price)
		switch {
		case err != nil:
			errs["price"] = "Price must be a number"
		case p.IsNegative():
			errs["price"] = "Price cannot be negative"
		case !p.Equal(p.Round(2)):
			errs["price"] = "Price can have at most two decimals"
		default:
			in.Price = model.NewAmount(p)
		}
	}

	if len(errs) == 0 {
		return in, nil
	}
	return in, errs
}

// PriceLabel renders a price, with zero shown as "Free".
func PriceLabel(a model.Amount) string {
	if a.IsZero() {
		return "Free"
	}
	return a.Dollars()
}
