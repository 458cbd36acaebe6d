package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/erazemk/sejem/internal/model"
)

// Purchase errors. Sandbox handlers map them to 4xx responses.
var (
	ErrListingNotFound     = errors.New("listing not found")
	ErrListingNotAvailable = errors.New("listing is no longer available")
	ErrListingNotPending   = errors.New("listing has no pending purchase")
	ErrOwnListing          = errors.New("cannot buy your own listing")
	ErrNotSeller           = errors.New("only the seller can do that")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

const listingSelect = `SELECT l.id, l.title, l.description, l.price, l.location, l.status,
       l.seller_id, a.username, l.buyer_id, l.image_mime, l.created_at, l.updated_at
FROM listings l
JOIN accounts a ON a.id = l.seller_id`

// ListingFilter narrows ListListings. Zero fields match everything.
type ListingFilter struct {
	Query    string
	Status   string
	SellerID string
	BuyerID  string
}

// NewListing holds the caller-editable listing fields.
type NewListing struct {
	Title       string
	Description string
	Price       model.Amount
	Location    string
}

// CreateListing creates an available listing owned by sellerID.
func CreateListing(ctx context.Context, db *sql.DB, sellerID string, in NewListing) (*model.Listing, error) {
	id := ulid.Make().String()
	_, err := db.ExecContext(ctx,
		`INSERT INTO listings (id, title, description, price, location, seller_id) VALUES (?, ?, ?, ?, ?, ?)`,
		id, in.Title, nullString(in.Description), in.Price, nullString(in.Location), sellerID,
	)
	if err != nil {
		return nil, fmt.Errorf("creating listing: %w", err)
	}

	return GetListing(ctx, db, id)
}

// GetListing returns a listing by ID.
func GetListing(ctx context.Context, db *sql.DB, id string) (*model.Listing, error) {
	l, err := scanListing(db.QueryRowContext(ctx, listingSelect+` WHERE l.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting listing: %w", err)
	}
	return l, nil
}

// ListListings returns listings newest first.
func ListListings(ctx context.Context, db *sql.DB, f ListingFilter) ([]model.Listing, error) {
	query := listingSelect + ` WHERE 1=1`
	var args []any

	if f.Query != "" {
		like := "%" + strings.ToLower(f.Query) + "%"
		query += ` AND (lower(l.title) LIKE ? OR lower(COALESCE(l.description, '')) LIKE ? OR lower(COALESCE(l.location, '')) LIKE ?)`
		args = append(args, like, like, like)
	}
	if f.Status != "" {
		query += ` AND l.status = ?`
		args = append(args, f.Status)
	}
	if f.SellerID != "" {
		query += ` AND l.seller_id = ?`
		args = append(args, f.SellerID)
	}
	if f.BuyerID != "" {
		query += ` AND l.buyer_id = ?`
		args = append(args, f.BuyerID)
	}

	query += ` ORDER BY l.created_at DESC, l.id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing listings: %w", err)
	}
	defer rows.Close()

	var listings []model.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning listing: %w", err)
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

// UpdateListing rewrites a listing's editable fields.
func UpdateListing(ctx context.Context, db *sql.DB, id string, in NewListing) error {
	_, err := db.ExecContext(ctx,
		`UPDATE listings SET title = ?, description = ?, price = ?, location = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		in.Title, nullString(in.Description), in.Price, nullString(in.Location), id,
	)
	if err != nil {
		return fmt.Errorf("updating listing: %w", err)
	}
	return nil
}

// SetListingImage stores a listing's image.
func SetListingImage(ctx context.Context, db *sql.DB, id string, image []byte, mime string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE listings SET image = ?, image_mime = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		image, mime, id,
	)
	if err != nil {
		return fmt.Errorf("setting listing image: %w", err)
	}
	return nil
}

// GetListingImage returns a listing's image data and MIME type.
func GetListingImage(ctx context.Context, db *sql.DB, id string) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT image, image_mime FROM listings WHERE id = ?`, id,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting listing image: %w", err)
	}
	return image, mime.String, nil
}

// RequestPurchase moves an available listing to pending for buyerID and
// debits the price from the buyer's balance in a single transaction.
func RequestPurchase(ctx context.Context, db *sql.DB, listingID, buyerID string) (*model.Listing, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var status, sellerID string
	var price model.Amount
	err = tx.QueryRowContext(ctx,
		`SELECT status, seller_id, price FROM listings WHERE id = ?`, listingID,
	).Scan(&status, &sellerID, &price)
	if err == sql.ErrNoRows {
		return nil, ErrListingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading listing: %w", err)
	}

	if sellerID == buyerID {
		return nil, ErrOwnListing
	}
	if status != model.StatusAvailable {
		return nil, ErrListingNotAvailable
	}

	var balance model.Amount
	err = tx.QueryRowContext(ctx,
		`SELECT balance FROM accounts WHERE id = ?`, buyerID,
	).Scan(&balance)
	if err != nil {
		return nil, fmt.Errorf("reading buyer balance: %w", err)
	}
	if balance.LessThan(price) {
		return nil, fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, balance.Dollars(), price.Dollars())
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance = ? WHERE id = ?`, balance.Sub(price), buyerID,
	); err != nil {
		return nil, fmt.Errorf("debiting buyer: %w", err)
	}

	// The status guard keeps a concurrent request from claiming it twice.
	result, err := tx.ExecContext(ctx,
		`UPDATE listings SET status = ?, buyer_id = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ?`,
		model.StatusPending, buyerID, listingID, model.StatusAvailable,
	)
	if err != nil {
		return nil, fmt.Errorf("marking listing pending: %w", err)
	}
	if n, _ := result.RowsAffected(); n != 1 {
		return nil, ErrListingNotAvailable
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing purchase: %w", err)
	}

	return GetListing(ctx, db, listingID)
}

// CompleteSale marks a pending listing sold and credits the seller.
func CompleteSale(ctx context.Context, db *sql.DB, listingID, sellerID string) (*model.Listing, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var status, owner string
	var price model.Amount
	err = tx.QueryRowContext(ctx,
		`SELECT status, seller_id, price FROM listings WHERE id = ?`, listingID,
	).Scan(&status, &owner, &price)
	if err == sql.ErrNoRows {
		return nil, ErrListingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading listing: %w", err)
	}
	if owner != sellerID {
		return nil, ErrNotSeller
	}
	if status != model.StatusPending {
		return nil, ErrListingNotPending
	}

	var balance model.Amount
	if err := tx.QueryRowContext(ctx,
		`SELECT balance FROM accounts WHERE id = ?`, sellerID,
	).Scan(&balance); err != nil {
		return nil, fmt.Errorf("reading seller balance: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance = ? WHERE id = ?`, balance.Add(price), sellerID,
	); err != nil {
		return nil, fmt.Errorf("crediting seller: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE listings SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		model.StatusSold, listingID,
	); err != nil {
		return nil, fmt.Errorf("marking listing sold: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing sale: %w", err)
	}

	return GetListing(ctx, db, listingID)
}

func scanListing(row rowScanner) (*model.Listing, error) {
	l := &model.Listing{}
	var id, sellerID string
	var description, location, buyerID, imageMime sql.NullString
	if err := row.Scan(&id, &l.Title, &description, &l.Price, &location, &l.Status,
		&sellerID, &l.SellerName, &buyerID, &imageMime, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	l.ID = model.FlexID(id)
	l.SellerID = model.FlexID(sellerID)
	l.BuyerID = model.FlexID(buyerID.String)
	l.Description = description.String
	l.Location = location.String
	if imageMime.Valid {
		l.Image = "/api/items/" + id + "/image"
	}
	return l, nil
}
