package web

import (
	"errors"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/erazemk/sejem/internal/catalog"
	"github.com/erazemk/sejem/internal/client"
	"github.com/erazemk/sejem/internal/model"
	"github.com/erazemk/sejem/internal/session"
)

type historyPage struct {
	PageData
	catalog.Summary
}

// HistoryPage handles GET /history.
func (s *Server) HistoryPage(w http.ResponseWriter, r *http.Request) {
	pd := s.page(r, "History")
	if pd.User == nil {
		redirectToLogin(w, r, r.URL.RequestURI())
		return
	}

	listings, err := s.API.ListItems(r.Context(), client.ListParams{})
	if err != nil {
		slog.Error("failed to load history", "error", err)
		pd.Error = client.MessageOf(err, "Could not load your history.")
	}

	s.Templates.Render(w, "history.html", &historyPage{
		PageData: pd,
		Summary:  catalog.History(listings, pd.User.ID),
	})
}

type profilePage struct {
	PageData
	Account  *model.UserAccount
	Listings int
	Summary  catalog.Summary
}

// ProfilePage handles GET /profile.
func (s *Server) ProfilePage(w http.ResponseWriter, r *http.Request) {
	var (
		account    *model.UserAccount
		listings   []model.Listing
		accountErr error
	)
	var g errgroup.Group
	g.Go(func() error {
		account, accountErr = s.Session.CurrentUser(r.Context())
		return nil
	})
	g.Go(func() error {
		var err error
		if listings, err = s.API.ListItems(r.Context(), client.ListParams{}); err != nil {
			slog.Warn("failed to load listings for profile", "error", err)
		}
		return nil
	})
	g.Wait()

	if errors.Is(accountErr, session.ErrNotAuthenticated) {
		redirectToLogin(w, r, r.URL.RequestURI())
		return
	}
	if accountErr != nil {
		slog.Error("failed to load profile", "error", accountErr)
		s.Templates.RenderStatus(w, http.StatusBadGateway, "not_found.html", &notFoundPage{
			PageData: PageData{Title: "Profile"},
			Message:  client.MessageOf(accountErr, "Your profile could not be loaded."),
			Retry:    "/profile",
		})
		return
	}

	summary := catalog.History(listings, account.ID)
	s.Templates.Render(w, "profile.html", &profilePage{
		PageData: PageData{Title: "Profile", User: account},
		Account:  account,
		Listings: summary.Sales.Count(),
		Summary:  summary,
	})
}
