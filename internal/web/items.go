package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/sejem/internal/catalog"
	"github.com/erazemk/sejem/internal/client"
	"github.com/erazemk/sejem/internal/detail"
	"github.com/erazemk/sejem/internal/model"
)

type listingsPage struct {
	PageData
	Listings []model.Listing
	Query    string
	Status   string
	MaxPrice string
	FreeOnly bool
	HideOwn  bool
}

// ListingsPage handles GET /.
func (s *Server) ListingsPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := &listingsPage{
		PageData: s.page(r, "Browse"),
		Query:    strings.TrimSpace(q.Get("q")),
		Status:   q.Get("status"),
		MaxPrice: strings.TrimSpace(q.Get("max")),
		FreeOnly: q.Get("free") != "",
		HideOwn:  q.Get("hideown") != "",
	}
	if !model.ValidStatus(page.Status) {
		page.Status = ""
	}

	filter := catalog.Filter{
		Query:    page.Query,
		Status:   page.Status,
		FreeOnly: page.FreeOnly,
		HideOwn:  page.HideOwn,
	}
	limit, err := catalog.ParsePriceLimit(page.MaxPrice)
	if err != nil {
		page.Error = "Max price must be a non-negative number, so it was ignored."
	}
	filter.MaxPrice = limit
	if page.User != nil {
		filter.ViewerID = page.User.ID
	}

	listings, err := s.API.ListItems(r.Context(), client.ListParams{Query: page.Query, Status: page.Status})
	if err != nil {
		slog.Error("failed to list items", "error", err)
		page.Error = client.MessageOf(err, "Could not load listings.")
	}
	page.Listings = filter.Apply(listings)

	s.Templates.Render(w, "listings.html", page)
}

type detailPage struct {
	PageData
	detail.State
}

type notFoundPage struct {
	PageData
	Message string
	Retry   string
}

// loadDetail loads the listing view-model for the request. On failure it
// renders the not-found page and returns nil.
func (s *Server) loadDetail(w http.ResponseWriter, r *http.Request) *detail.ViewModel {
	id := r.PathValue("id")
	vm := detail.New(s.API, s.Session)
	if err := vm.Load(r.Context(), id); err != nil {
		slog.Warn("failed to load listing", "listing", id, "error", err)
		status, msg := http.StatusBadGateway, client.MessageOf(err, "The listing could not be loaded.")
		if client.IsNotFound(err) {
			status, msg = http.StatusNotFound, "This listing does not exist or was removed."
		}
		pd := s.page(r, "Listing not found")
		s.Templates.RenderStatus(w, status, "not_found.html", &notFoundPage{
			PageData: pd,
			Message:  msg,
			Retry:    "/items/" + id,
		})
		return nil
	}
	return vm
}

func (s *Server) renderDetail(w http.ResponseWriter, status int, vm *detail.ViewModel, pd PageData) {
	st := vm.State()
	if st.Listing != nil {
		pd.Title = st.Listing.Title
	}
	if st.Viewer != nil {
		pd.User = st.Viewer
	}
	s.Templates.RenderStatus(w, status, "listing_detail.html", &detailPage{PageData: pd, State: st})
}

// ListingDetailPage handles GET /items/{id}.
func (s *Server) ListingDetailPage(w http.ResponseWriter, r *http.Request) {
	vm := s.loadDetail(w, r)
	if vm == nil {
		return
	}
	s.renderDetail(w, http.StatusOK, vm, PageData{})
}

// BuySubmit handles POST /items/{id}/buy.
func (s *Server) BuySubmit(w http.ResponseWriter, r *http.Request) {
	vm := s.loadDetail(w, r)
	if vm == nil {
		return
	}

	notice, err := vm.RequestToBuy(r.Context())
	if errors.Is(err, detail.ErrAuthRequired) {
		redirectToLogin(w, r, r.URL.Path)
		return
	}

	var pd PageData
	status := http.StatusOK
	if err != nil {
		pd.Error = purchaseMessage(err)
		status = http.StatusConflict
	} else {
		pd.Success = notice
	}
	s.renderDetail(w, status, vm, pd)
}

// purchaseMessage turns a purchase rejection into alert text.
func purchaseMessage(err error) string {
	var balErr *detail.InsufficientBalanceError
	switch {
	case errors.As(err, &balErr):
		return "Insufficient balance: this listing costs " + balErr.Price.Dollars() +
			" and you have " + balErr.Balance.Dollars() + "."
	case errors.Is(err, detail.ErrOwnListing):
		return "You cannot buy your own listing."
	default:
		return err.Error()
	}
}

// CompleteSubmit handles POST /items/{id}/complete.
func (s *Server) CompleteSubmit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.API.CompleteSale(r.Context(), id); err != nil {
		slog.Warn("failed to complete sale", "listing", id, "error", err)
		vm := s.loadDetail(w, r)
		if vm == nil {
			return
		}
		s.renderDetail(w, http.StatusConflict, vm, PageData{Error: client.MessageOf(err, "Could not complete the sale.")})
		return
	}

	slog.Info("sale completed", "listing", id)
	http.Redirect(w, r, "/items/"+id, http.StatusSeeOther)
}
