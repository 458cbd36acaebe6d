package web

import (
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/sejem/internal/catalog"
	"github.com/erazemk/sejem/internal/client"
	"github.com/erazemk/sejem/internal/model"
	"github.com/erazemk/sejem/internal/session"
	webembed "github.com/erazemk/sejem/web"
)

// Templates holds parsed HTML templates.
type Templates struct {
	templates map[string]*template.Template
}

// FuncMap returns the template function map. Image references resolve
// against the API the client talks to.
func FuncMap(api *client.Client) template.FuncMap {
	return template.FuncMap{
		"price":  catalog.PriceLabel,
		"money":  func(a model.Amount) string { return a.Dollars() },
		"tel":    func(phone string) template.URL { return template.URL(model.TelURI(phone)) },
		"mailto": func(email string) template.URL { return template.URL(model.MailtoURI(email)) },
		"image":  api.ImageURL,
		"date": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("2 Jan 2006")
		},
		"statusName": func(status string) string {
			switch status {
			case model.StatusAvailable:
				return "Available"
			case model.StatusPending:
				return "Pending"
			case model.StatusSold:
				return "Sold"
			default:
				return status
			}
		},
	}
}

var pages = []string{
	"login.html",
	"register.html",
	"listings.html",
	"listing_detail.html",
	"listing_form.html",
	"not_found.html",
	"history.html",
	"profile.html",
}

// LoadTemplates parses all page templates with the layout.
func LoadTemplates(api *client.Client) (*Templates, error) {
	tfs, err := webembed.TemplatesFS()
	if err != nil {
		return nil, err
	}

	layoutBytes, err := fs.ReadFile(tfs, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("reading layout template: %w", err)
	}

	ts := &Templates{templates: make(map[string]*template.Template)}
	funcs := FuncMap(api)

	for _, page := range pages {
		pageBytes, err := fs.ReadFile(tfs, page)
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", page, err)
		}

		tmpl := template.New(page).Funcs(funcs)
		tmpl, err = tmpl.Parse(string(layoutBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing layout for %s: %w", page, err)
		}
		tmpl, err = tmpl.Parse(string(pageBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", page, err)
		}

		ts.templates[page] = tmpl
	}

	return ts, nil
}

// Render renders a template with the given data.
func (ts *Templates) Render(w http.ResponseWriter, name string, data any) {
	ts.RenderStatus(w, http.StatusOK, name, data)
}

// RenderStatus renders a template with a non-200 status code.
func (ts *Templates) RenderStatus(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := ts.templates[name]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		slog.Error("failed to render template", "template", name, "error", err)
	}
}

// PageData is the base data passed to all templates.
type PageData struct {
	Title   string
	User    *model.UserAccount
	Error   string
	Success string
}

// Server holds all dependencies for page handlers.
type Server struct {
	Session   *session.Session
	API       *client.Client
	Templates *Templates
}

// page builds the base page data, resolving the current user for the
// navigation bar. Failures leave the page anonymous.
func (s *Server) page(r *http.Request, title string) PageData {
	pd := PageData{Title: title}
	if !s.Session.Authenticated() {
		return pd
	}
	user, err := s.Session.CurrentUser(r.Context())
	if err != nil {
		slog.Debug("page rendered without user", "error", err)
		return pd
	}
	pd.User = user
	return pd
}
