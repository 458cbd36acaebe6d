package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/sejem/internal/model"
	"github.com/erazemk/sejem/internal/store"
)

// UsersHandler serves the member directory.
type UsersHandler struct {
	DB *sql.DB
}

// member is the directory view of an account; balances stay private.
type member struct {
	ID       model.FlexID `json:"id"`
	Username string       `json:"username"`
	Email    string       `json:"email"`
	Phone    string       `json:"phone,omitempty"`
	Avatar   string       `json:"avatar,omitempty"`
}

// List handles GET /api/users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts, err := store.ListAccounts(r.Context(), h.DB)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	members := make([]member, 0, len(accounts))
	for _, a := range accounts {
		members = append(members, member{
			ID:       a.ID,
			Username: a.Username,
			Email:    a.Email,
			Phone:    a.Phone,
			Avatar:   a.Avatar,
		})
	}
	jsonResponse(w, http.StatusOK, members)
}
