package web

import (
	"net/http"

	"github.com/erazemk/sejem/internal/client"
	"github.com/erazemk/sejem/internal/session"
	webembed "github.com/erazemk/sejem/web"
)

// NewRouter creates the web page router with all page routes registered.
func NewRouter(sess *session.Session, api *client.Client) (http.Handler, error) {
	templates, err := LoadTemplates(api)
	if err != nil {
		return nil, err
	}
	static, err := webembed.StaticFS()
	if err != nil {
		return nil, err
	}

	s := &Server{
		Session:   sess,
		API:       api,
		Templates: templates,
	}

	mux := http.NewServeMux()
	requireSession := RequireSession(sess)

	// Static assets.
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	// Public routes.
	mux.HandleFunc("GET /{$}", s.ListingsPage)
	mux.HandleFunc("GET /login", s.LoginPage)
	mux.HandleFunc("POST /login", s.LoginSubmit)
	mux.HandleFunc("GET /register", s.RegisterPage)
	mux.HandleFunc("POST /register", s.RegisterSubmit)
	mux.HandleFunc("POST /logout", s.Logout)
	mux.HandleFunc("GET /items/{id}", s.ListingDetailPage)

	// Session routes.
	mux.Handle("POST /items/{id}/buy", requireSession(http.HandlerFunc(s.BuySubmit)))
	mux.Handle("POST /items/{id}/complete", requireSession(http.HandlerFunc(s.CompleteSubmit)))
	mux.Handle("GET /items/new", requireSession(http.HandlerFunc(s.NewListingPage)))
	mux.Handle("POST /items/new", requireSession(http.HandlerFunc(s.NewListingSubmit)))
	mux.Handle("GET /items/{id}/edit", requireSession(http.HandlerFunc(s.EditListingPage)))
	mux.Handle("POST /items/{id}/edit", requireSession(http.HandlerFunc(s.EditListingSubmit)))
	mux.Handle("GET /history", requireSession(http.HandlerFunc(s.HistoryPage)))
	mux.Handle("GET /profile", requireSession(http.HandlerFunc(s.ProfilePage)))

	return mux, nil
}
