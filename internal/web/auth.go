package web

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/sejem/internal/client"
	"github.com/erazemk/sejem/internal/model"
)

type loginPage struct {
	PageData
	Next     string
	Username string
}

// LoginPage handles GET /login.
func (s *Server) LoginPage(w http.ResponseWriter, r *http.Request) {
	s.Templates.Render(w, "login.html", &loginPage{
		PageData: PageData{Title: "Log in"},
		Next:     safeNext(r.URL.Query().Get("next")),
	})
}

// LoginSubmit handles POST /login.
func (s *Server) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")
	next := safeNext(r.FormValue("next"))

	fail := func(status int, msg string) {
		s.Templates.RenderStatus(w, status, "login.html", &loginPage{
			PageData: PageData{Title: "Log in", Error: msg},
			Next:     next,
			Username: username,
		})
	}

	if username == "" || password == "" {
		fail(http.StatusBadRequest, "Enter your username and password.")
		return
	}

	if _, err := s.Session.Login(r.Context(), username, password); err != nil {
		slog.Warn("web login failed", "username", username, "error", err)
		if client.IsUnauthorized(err) {
			fail(http.StatusUnauthorized, "Wrong username or password.")
			return
		}
		fail(http.StatusBadGateway, client.MessageOf(err, "Could not log in. Try again later."))
		return
	}

	http.Redirect(w, r, next, http.StatusSeeOther)
}

type registerPage struct {
	PageData
	Form   client.Registration
	Errors map[string]string
}

// RegisterPage handles GET /register.
func (s *Server) RegisterPage(w http.ResponseWriter, r *http.Request) {
	s.Templates.Render(w, "register.html", &registerPage{PageData: PageData{Title: "Register"}})
}

// RegisterSubmit handles POST /register.
func (s *Server) RegisterSubmit(w http.ResponseWriter, r *http.Request) {
	form := client.Registration{
		Username: strings.TrimSpace(r.FormValue("username")),
		Email:    strings.TrimSpace(r.FormValue("email")),
		Password: r.FormValue("password"),
		Phone:    strings.TrimSpace(r.FormValue("phone")),
	}

	errs := map[string]string{}
	if form.Username == "" {
		errs["username"] = "Username is required"
	}
	if form.Email == "" || !strings.Contains(form.Email, "@") {
		errs["email"] = "Enter a valid email address"
	}
	if err := model.ValidatePassword(form.Password); err != nil {
		errs["password"] = err.Error()
	}
	if form.Password != r.FormValue("confirm") {
		errs["confirm"] = "Passwords do not match"
	}

	page := &registerPage{PageData: PageData{Title: "Register"}, Form: form, Errors: errs}
	if len(errs) > 0 {
		page.Form.Password = ""
		s.Templates.RenderStatus(w, http.StatusBadRequest, "register.html", page)
		return
	}

	if _, err := s.API.Register(r.Context(), form); err != nil {
		slog.Warn("registration failed", "username", form.Username, "error", err)
		page.Form.Password = ""
		page.Error = client.MessageOf(err, "Registration failed. Try again later.")
		s.Templates.RenderStatus(w, http.StatusBadRequest, "register.html", page)
		return
	}

	if _, err := s.Session.Login(r.Context(), form.Username, form.Password); err != nil {
		slog.Warn("login after registration failed", "error", err)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout handles POST /logout.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	if err := s.Session.Logout(r.Context()); err != nil {
		slog.Error("logout failed", "error", err)
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
