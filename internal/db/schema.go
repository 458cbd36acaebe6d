package db

import (
	"database/sql"
	"fmt"
)

// localSchema holds the client's own persistent state.
const localSchema = `
CREATE TABLE IF NOT EXISTS kv (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// sandboxSchema backs the sandbox marketplace API.
const sandboxSchema = `
CREATE TABLE IF NOT EXISTS accounts (
    id            TEXT PRIMARY KEY,
    username      TEXT NOT NULL,
    email         TEXT NOT NULL,
    phone         TEXT,
    password_hash TEXT NOT NULL,
    balance       TEXT NOT NULL DEFAULT '0',
    avatar        TEXT,
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_username ON accounts(username);

CREATE TABLE IF NOT EXISTS listings (
    id          TEXT PRIMARY KEY,
    title       TEXT NOT NULL,
    description TEXT,
    price       TEXT NOT NULL DEFAULT '0',
    location    TEXT,
    status      TEXT NOT NULL DEFAULT 'available' CHECK (status IN ('available', 'pending', 'sold')),
    seller_id   TEXT NOT NULL REFERENCES accounts(id),
    buyer_id    TEXT REFERENCES accounts(id),
    image       BLOB,
    image_mime  TEXT,
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_listings_seller ON listings(seller_id);
CREATE INDEX IF NOT EXISTS idx_listings_buyer ON listings(buyer_id);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// sandboxMigrations are applied in order after the sandbox schema.
// Each migration must be idempotent. Append new migrations at the end.
var sandboxMigrations = []string{
	// Migration 1: listings are shown newest first.
	`CREATE INDEX IF NOT EXISTS idx_listings_created ON listings(created_at DESC)`,
	// Migration 2: sandbox settings, such as the token signing key.
	`CREATE TABLE IF NOT EXISTS settings (
	    key   TEXT PRIMARY KEY,
	    value TEXT NOT NULL
	)`,
}

// EnsureSchema creates the local client state tables if they don't exist.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(localSchema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// EnsureSandboxSchema creates the sandbox tables and runs its migrations.
func EnsureSandboxSchema(db *sql.DB) error {
	if _, err := db.Exec(sandboxSchema); err != nil {
		return fmt.Errorf("creating sandbox schema: %w", err)
	}

	for i, m := range sandboxMigrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running sandbox migration %d: %w", i+1, err)
		}
	}

	return nil
}
