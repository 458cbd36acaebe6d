package web

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/erazemk/sejem/internal/session"
)

// RequireSession redirects anonymous visitors to the login page, which
// sends them back afterwards.
func RequireSession(sess *session.Session) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !sess.Authenticated() {
				redirectToLogin(w, r, r.URL.RequestURI())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// redirectToLogin sends the visitor to /login with next as the return
// path. Form posts return to the page they were posted from.
func redirectToLogin(w http.ResponseWriter, r *http.Request, next string) {
	if r.Method != http.MethodGet {
		next = strings.TrimSuffix(strings.TrimSuffix(next, "/buy"), "/complete")
	}
	http.Redirect(w, r, "/login?next="+url.QueryEscape(next), http.StatusSeeOther)
}

// safeNext returns next if it is a local path, or "/".
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return "/"
	}
	return next
}
