package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/sejem/internal/imaging"
	"github.com/erazemk/sejem/internal/model"
	"github.com/erazemk/sejem/internal/store"
)

// ItemsHandler handles listing endpoints.
type ItemsHandler struct {
	DB *sql.DB
}

type listingRequest struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Price       model.Amount `json:"price"`
	Location    string       `json:"location"`
}

func (req *listingRequest) validate() (store.NewListing, string) {
	in := store.NewListing{
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Price:       req.Price,
		Location:    strings.TrimSpace(req.Location),
	}
	if in.Title == "" {
		return in, "title required"
	}
	if in.Price.IsNegative() {
		return in, "price cannot be negative"
	}
	return in, ""
}

// List handles GET /api/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := q.Get("status")
	if status != "" && !model.ValidStatus(status) {
		jsonError(w, http.StatusBadRequest, "invalid status")
		return
	}

	listings, err := store.ListListings(r.Context(), h.DB, store.ListingFilter{
		Query:    strings.TrimSpace(q.Get("q")),
		Status:   status,
		SellerID: q.Get("seller"),
		BuyerID:  q.Get("buyer"),
	})
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	if listings == nil {
		listings = []model.Listing{}
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"count":   len(listings),
		"results": listings,
	})
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	listing, err := store.GetListing(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if listing == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	jsonResponse(w, http.StatusOK, listing)
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var req listingRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in, problem := req.validate()
	if problem != "" {
		jsonError(w, http.StatusBadRequest, problem)
		return
	}

	listing, err := store.CreateListing(r.Context(), h.DB, claims.UserID, in)
	if err != nil {
		slog.Error("creating listing", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create item")
		return
	}

	slog.Info("listing posted", "listing", listing.ID, "user", claims.Username)
	jsonResponse(w, http.StatusCreated, listing)
}

// ownListing loads the listing in the path and checks the caller sells it.
// It writes the error response and returns nil when the check fails.
func (h *ItemsHandler) ownListing(w http.ResponseWriter, r *http.Request) *model.Listing {
	claims := GetClaims(r.Context())
	listing, err := store.GetListing(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return nil
	}
	if listing == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return nil
	}
	if !model.SameID(listing.SellerID, claims.UserID) {
		storeError(w, store.ErrNotSeller, "")
		return nil
	}
	return listing
}

// Update handles PUT /api/items/{id}.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	listing := h.ownListing(w, r)
	if listing == nil {
		return
	}
	if listing.Status == model.StatusSold {
		jsonError(w, http.StatusConflict, "sold listings cannot be edited")
		return
	}

	var req listingRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in, problem := req.validate()
	if problem != "" {
		jsonError(w, http.StatusBadRequest, problem)
		return
	}

	id := listing.ID.String()
	if err := store.UpdateListing(r.Context(), h.DB, id, in); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to update item")
		return
	}

	updated, _ := store.GetListing(r.Context(), h.DB, id)
	jsonResponse(w, http.StatusOK, updated)
}

// UploadImage handles PUT /api/items/{id}/image.
func (h *ItemsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	listing := h.ownListing(w, r)
	if listing == nil {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxInputSize+1<<20)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	upload, err := imaging.Prepare(file)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, imaging.ErrTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		jsonError(w, status, err.Error())
		return
	}

	id := listing.ID.String()
	if err := store.SetListingImage(r.Context(), h.DB, id, upload.Data, upload.MIME); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to save image")
		return
	}

	updated, _ := store.GetListing(r.Context(), h.DB, id)
	jsonResponse(w, http.StatusOK, updated)
}

// GetImage handles GET /api/items/{id}/image.
func (h *ItemsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	data, mime, err := store.GetListingImage(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get image")
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}

// Buy handles POST /api/items/{id}/buy.
func (h *ItemsHandler) Buy(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	listing, err := store.RequestPurchase(r.Context(), h.DB, r.PathValue("id"), claims.UserID)
	if err != nil {
		storeError(w, err, "failed to request purchase")
		return
	}

	slog.Info("purchase requested", "listing", listing.ID, "user", claims.Username)
	jsonResponse(w, http.StatusOK, listing)
}

// Complete handles POST /api/items/{id}/complete.
func (h *ItemsHandler) Complete(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	listing, err := store.CompleteSale(r.Context(), h.DB, r.PathValue("id"), claims.UserID)
	if err != nil {
		storeError(w, err, "failed to complete sale")
		return
	}

	slog.Info("sale completed", "listing", listing.ID, "user", claims.Username)
	jsonResponse(w, http.StatusOK, listing)
}
