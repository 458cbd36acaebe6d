package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/erazemk/sejem/internal/model"
)

const accountColumns = `id, username, email, phone, password_hash, balance, avatar, created_at`

// CreateAccount registers a sandbox account with a starting balance.
func CreateAccount(ctx context.Context, db *sql.DB, username, email, phone, passwordHash string, balance model.Amount) (*model.UserAccount, error) {
	id := ulid.Make().String()
	_, err := db.ExecContext(ctx,
		`INSERT INTO accounts (id, username, email, phone, password_hash, balance) VALUES (?, ?, ?, ?, ?, ?)`,
		id, username, email, nullString(phone), passwordHash, balance,
	)
	if err != nil {
		return nil, fmt.Errorf("creating account: %w", err)
	}

	return GetAccount(ctx, db, id)
}

// GetAccount returns an account by ID.
func GetAccount(ctx context.Context, db *sql.DB, id string) (*model.UserAccount, error) {
	row := db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting account: %w", err)
	}
	return a, nil
}

// GetAccountByUsername returns an account by username.
func GetAccountByUsername(ctx context.Context, db *sql.DB, username string) (*model.UserAccount, error) {
	row := db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE username = ?`, username)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting account by username: %w", err)
	}
	return a, nil
}

// ListAccounts returns all accounts ordered by username.
func ListAccounts(ctx context.Context, db *sql.DB) ([]model.UserAccount, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.UserAccount
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// SetAccountBalance overwrites an account balance.
func SetAccountBalance(ctx context.Context, db *sql.DB, id string, balance model.Amount) error {
	_, err := db.ExecContext(ctx, `UPDATE accounts SET balance = ? WHERE id = ?`, balance, id)
	if err != nil {
		return fmt.Errorf("setting balance: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*model.UserAccount, error) {
	a := &model.UserAccount{}
	var id string
	var phone, avatar sql.NullString
	if err := row.Scan(&id, &a.Username, &a.Email, &phone, &a.PasswordHash, &a.Balance, &avatar, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.ID = model.FlexID(id)
	a.Phone = phone.String
	a.Avatar = avatar.String
	return a, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
