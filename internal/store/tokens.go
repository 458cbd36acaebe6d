package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SaveSessionToken persists the client's API token.
func SaveSessionToken(ctx context.Context, db *sql.DB, token string) error {
	return SetValue(ctx, db, KeySessionToken, token)
}

// LoadSessionToken returns the persisted API token, or "" if there is none.
func LoadSessionToken(ctx context.Context, db *sql.DB) (string, error) {
	token, _, err := GetValue(ctx, db, KeySessionToken)
	return token, err
}

// ClearSessionToken forgets the persisted API token.
func ClearSessionToken(ctx context.Context, db *sql.DB) error {
	return DeleteValue(ctx, db, KeySessionToken)
}

// RevokeToken records a sandbox token ID as logged out until it would have
// expired anyway. Expired revocations are dropped in the same call.
func RevokeToken(ctx context.Context, db *sql.DB, jti string, expiresAt time.Time) error {
	if _, err := db.ExecContext(ctx,
		`DELETE FROM revoked_tokens WHERE expires_at < ?`, time.Now(),
	); err != nil {
		return fmt.Errorf("purging revoked tokens: %w", err)
	}

	if _, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO revoked_tokens (jti, expires_at) VALUES (?, ?)`,
		jti, expiresAt,
	); err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	return nil
}

// IsTokenRevoked reports whether a sandbox token ID has been logged out.
func IsTokenRevoked(ctx context.Context, db *sql.DB, jti string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = ?)`, jti,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking token revocation: %w", err)
	}
	return exists, nil
}
