// Package api is the sandbox marketplace API: a local SQLite-backed
// implementation of the remote contract the client speaks.
package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/sejem/internal/model"
)

// NewRouter creates the API router with all endpoints registered. New
// accounts start with startBalance.
func NewRouter(db *sql.DB, jwtSecret string, startBalance model.Amount) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret, StartBalance: startBalance}
	usersHandler := &UsersHandler{DB: db}
	itemsHandler := &ItemsHandler{DB: db}

	authMW := AuthMiddleware(jwtSecret, db)

	// Public.
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("GET /api/users", usersHandler.List)
	mux.HandleFunc("GET /api/items", itemsHandler.List)
	mux.HandleFunc("GET /api/items/{id}", itemsHandler.Get)
	mux.HandleFunc("GET /api/items/{id}/image", itemsHandler.GetImage)

	// Authenticated.
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("GET /api/profile", authMW(http.HandlerFunc(authHandler.Profile)))
	mux.Handle("POST /api/items", authMW(http.HandlerFunc(itemsHandler.Create)))
	mux.Handle("PUT /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Update)))
	mux.Handle("PUT /api/items/{id}/image", authMW(http.HandlerFunc(itemsHandler.UploadImage)))
	mux.Handle("POST /api/items/{id}/buy", authMW(http.HandlerFunc(itemsHandler.Buy)))
	mux.Handle("POST /api/items/{id}/complete", authMW(http.HandlerFunc(itemsHandler.Complete)))

	return mux
}
