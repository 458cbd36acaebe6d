package web

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/sejem/internal/catalog"
	"github.com/erazemk/sejem/internal/client"
	"github.com/erazemk/sejem/internal/imaging"
	"github.com/erazemk/sejem/internal/model"
)

type listingFormPage struct {
	PageData
	// ID is empty when posting a new listing.
	ID     string
	Image  string
	Form   catalog.Draft
	Errors catalog.FieldErrors
}

func draftFromRequest(r *http.Request) catalog.Draft {
	return catalog.Draft{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Price:       r.FormValue("price"),
		Location:    r.FormValue("location"),
	}
}

// uploadFromRequest prepares the optional "image" file of a listing form.
// It returns nil without error when no file was sent.
func uploadFromRequest(r *http.Request) (*imaging.Upload, error) {
	file, _, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return imaging.Prepare(file)
}

func parseListingForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxInputSize+1<<20)
	err := r.ParseMultipartForm(8 << 20)
	if errors.Is(err, http.ErrNotMultipart) {
		return r.ParseForm()
	}
	return err
}

// NewListingPage handles GET /items/new.
func (s *Server) NewListingPage(w http.ResponseWriter, r *http.Request) {
	s.Templates.Render(w, "listing_form.html", &listingFormPage{PageData: s.page(r, "Post an item")})
}

// NewListingSubmit handles POST /items/new.
func (s *Server) NewListingSubmit(w http.ResponseWriter, r *http.Request) {
	page := &listingFormPage{PageData: s.page(r, "Post an item")}
	if err := parseListingForm(w, r); err != nil {
		page.Error = "The form could not be read. Is the photo too large?"
		s.Templates.RenderStatus(w, http.StatusBadRequest, "listing_form.html", page)
		return
	}

	page.Form = draftFromRequest(r)
	in, errs := page.Form.Validate()
	upload, err := uploadFromRequest(r)
	if err != nil {
		if errs == nil {
			errs = catalog.FieldErrors{}
		}
		errs["image"] = err.Error()
	}
	if errs != nil {
		page.Errors = errs
		s.Templates.RenderStatus(w, http.StatusBadRequest, "listing_form.html", page)
		return
	}

	listing, err := s.API.CreateItem(r.Context(), in)
	if err != nil {
		slog.Warn("failed to post listing", "error", err)
		page.Error = client.MessageOf(err, "Could not post the listing.")
		s.Templates.RenderStatus(w, http.StatusBadGateway, "listing_form.html", page)
		return
	}
	id := listing.ID.String()
	slog.Info("listing posted", "listing", id, "title", listing.Title)

	if upload != nil {
		if _, err := s.API.UploadImage(r.Context(), id, upload.Data, upload.MIME); err != nil {
			slog.Warn("failed to upload photo", "listing", id, "error", err)
			page.Title = "Edit listing"
			page.ID = id
			page.Error = "The listing was posted, but the photo upload failed: " + client.MessageOf(err, "unknown error")
			s.Templates.RenderStatus(w, http.StatusBadGateway, "listing_form.html", page)
			return
		}
	}

	http.Redirect(w, r, "/items/"+id, http.StatusSeeOther)
}

// editable loads a listing the current user may edit. It renders an error
// page and returns nil otherwise.
func (s *Server) editable(w http.ResponseWriter, r *http.Request, pd PageData) *model.Listing {
	id := r.PathValue("id")
	listing, err := s.API.GetItemDetail(r.Context(), id)
	if err != nil {
		status := http.StatusBadGateway
		if client.IsNotFound(err) {
			status = http.StatusNotFound
		}
		pd.Title = "Listing not found"
		s.Templates.RenderStatus(w, status, "not_found.html", &notFoundPage{
			PageData: pd,
			Message:  client.MessageOf(err, "The listing could not be loaded."),
			Retry:    r.URL.Path,
		})
		return nil
	}
	if pd.User == nil || !model.SameID(pd.User.ID, listing.SellerID) {
		http.Error(w, "only the seller can edit this listing", http.StatusForbidden)
		return nil
	}
	return listing
}

// EditListingPage handles GET /items/{id}/edit.
func (s *Server) EditListingPage(w http.ResponseWriter, r *http.Request) {
	pd := s.page(r, "Edit listing")
	listing := s.editable(w, r, pd)
	if listing == nil {
		return
	}
	s.Templates.Render(w, "listing_form.html", &listingFormPage{
		PageData: pd,
		ID:       listing.ID.String(),
		Image:    listing.Image,
		Form:     catalog.DraftFromListing(listing),
	})
}

// EditListingSubmit handles POST /items/{id}/edit.
func (s *Server) EditListingSubmit(w http.ResponseWriter, r *http.Request) {
	pd := s.page(r, "Edit listing")
	if err := parseListingForm(w, r); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	listing := s.editable(w, r, pd)
	if listing == nil {
		return
	}
	id := listing.ID.String()

	page := &listingFormPage{PageData: pd, ID: id, Image: listing.Image, Form: draftFromRequest(r)}
	in, errs := page.Form.Validate()
	upload, err := uploadFromRequest(r)
	if err != nil {
		if errs == nil {
			errs = catalog.FieldErrors{}
		}
		errs["image"] = err.Error()
	}
	if errs != nil {
		page.Errors = errs
		s.Templates.RenderStatus(w, http.StatusBadRequest, "listing_form.html", page)
		return
	}

	if _, err := s.API.UpdateItem(r.Context(), id, in); err != nil {
		slog.Warn("failed to update listing", "listing", id, "error", err)
		page.Error = client.MessageOf(err, "Could not save the listing.")
		s.Templates.RenderStatus(w, http.StatusBadGateway, "listing_form.html", page)
		return
	}
	if upload != nil {
		if _, err := s.API.UploadImage(r.Context(), id, upload.Data, upload.MIME); err != nil {
			slog.Warn("failed to upload photo", "listing", id, "error", err)
			page.Error = "Changes saved, but the photo upload failed: " + client.MessageOf(err, "unknown error")
			s.Templates.RenderStatus(w, http.StatusBadGateway, "listing_form.html", page)
			return
		}
	}

	slog.Info("listing updated", "listing", id)
	http.Redirect(w, r, "/items/"+id, http.StatusSeeOther)
}
