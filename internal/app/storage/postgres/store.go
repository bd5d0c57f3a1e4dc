// Package postgres implements the storage interfaces backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/PixelMint-Labs/art_layer/internal/app/domain/art"
	"github.com/PixelMint-Labs/art_layer/internal/app/domain/credits"
	"github.com/PixelMint-Labs/art_layer/internal/app/domain/marketplace"
	"github.com/PixelMint-Labs/art_layer/internal/app/domain/user"
	"github.com/PixelMint-Labs/art_layer/internal/app/storage"
)

// Store implements the storage interfaces on a sqlx database handle.
type Store struct {
	db *sqlx.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.CreditStore = (*Store)(nil)
var _ storage.ArtStore = (*Store)(nil)
var _ storage.ListingStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = time.Now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return user.User{}, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (id, wallet_address, created_at)
		VALUES ($1, $2, $3)
	`, u.ID, u.WalletAddress, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, storage.ErrWalletExists
		}
		return user.User{}, err
	}

	// Credit account is provisioned with the user, balance zero.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO credits (user_id, credits_balance, updated_at)
		VALUES ($1, 0, $2)
	`, u.ID, u.CreatedAt)
	if err != nil {
		return user.User{}, err
	}

	if err := tx.Commit(); err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	var u user.User
	err := s.db.QueryRowxContext(ctx, `
		SELECT id, wallet_address, created_at FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.WalletAddress, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, storage.ErrNotFound
	}
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) GetUserByWallet(ctx context.Context, wallet string) (user.User, error) {
	var u user.User
	err := s.db.QueryRowxContext(ctx, `
		SELECT id, wallet_address, created_at FROM users WHERE wallet_address = $1
	`, wallet).Scan(&u.ID, &u.WalletAddress, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, storage.ErrNotFound
	}
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

// --- CreditStore ------------------------------------------------------------

func (s *Store) GetBalance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := s.db.QueryRowxContext(ctx, `
		SELECT credits_balance FROM credits WHERE user_id = $1
	`, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (s *Store) Deposit(ctx context.Context, userID string, amount int64, txHash string) (credits.Transaction, bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return credits.Transaction{}, false, err
	}
	defer tx.Rollback()

	record := credits.Transaction{
		ID:              uuid.NewString(),
		UserID:          userID,
		Amount:          amount,
		Status:          credits.StatusCompleted,
		TransactionHash: txHash,
		CreatedAt:       time.Now().UTC(),
	}

	// The unique index on transaction_hash is the idempotence guarantee:
	// a replayed hash inserts zero rows and the balance is left alone.
	result, err := tx.ExecContext(ctx, `
		INSERT INTO credit_transactions (id, user_id, amount, status, transaction_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (transaction_hash) DO NOTHING
	`, record.ID, record.UserID, record.Amount, record.Status, record.TransactionHash, record.CreatedAt)
	if err != nil {
		return credits.Transaction{}, false, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		var existing credits.Transaction
		err := tx.QueryRowxContext(ctx, `
			SELECT id, user_id, amount, status, transaction_hash, reason, created_at
			FROM credit_transactions WHERE transaction_hash = $1
		`, txHash).Scan(&existing.ID, &existing.UserID, &existing.Amount,
			&existing.Status, &existing.TransactionHash, &existing.Reason, &existing.CreatedAt)
		if err != nil {
			return credits.Transaction{}, false, err
		}
		return existing, false, tx.Commit()
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE credits SET credits_balance = credits_balance + $2, updated_at = $3
		WHERE user_id = $1
	`, userID, amount, record.CreatedAt)
	if err != nil {
		return credits.Transaction{}, false, err
	}

	if err := tx.Commit(); err != nil {
		return credits.Transaction{}, false, err
	}
	return record, true, nil
}

func (s *Store) Debit(ctx context.Context, userID string, amount int64, reason string) (credits.Transaction, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return credits.Transaction{}, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	// Single conditional decrement; zero rows affected means the balance was
	// below the requested amount and nothing changed.
	result, err := tx.ExecContext(ctx, `
		UPDATE credits SET credits_balance = credits_balance - $2, updated_at = $3
		WHERE user_id = $1 AND credits_balance >= $2
	`, userID, amount, now)
	if err != nil {
		return credits.Transaction{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return credits.Transaction{}, storage.ErrInsufficientCredits
	}

	record := credits.Transaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    -amount,
		Status:    credits.StatusCompleted,
		Reason:    reason,
		CreatedAt: now,
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO credit_transactions (id, user_id, amount, status, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, record.ID, record.UserID, record.Amount, record.Status, record.Reason, record.CreatedAt)
	if err != nil {
		return credits.Transaction{}, err
	}

	if err := tx.Commit(); err != nil {
		return credits.Transaction{}, err
	}
	return record, nil
}

func (s *Store) ListTransactions(ctx context.Context, userID string, limit int, cursor string) ([]credits.Transaction, error) {
	query := `
		SELECT id, user_id, amount, status, COALESCE(transaction_hash, ''), reason, created_at
		FROM credit_transactions
		WHERE user_id = $1`
	args := []interface{}{userID}

	if cursor != "" {
		query += `
		AND created_at < (SELECT created_at FROM credit_transactions WHERE id = $2)`
		args = append(args, cursor)
	}
	query += `
		ORDER BY created_at DESC`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []credits.Transaction
	for rows.Next() {
		var tx credits.Transaction
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Amount, &tx.Status,
			&tx.TransactionHash, &tx.Reason, &tx.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	return result, rows.Err()
}

// --- ArtStore ---------------------------------------------------------------

func (s *Store) CreateArt(ctx context.Context, piece art.Piece) (art.Piece, error) {
	if piece.ID == "" {
		piece.ID = uuid.NewString()
	}
	piece.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO art (id, user_id, title, image_url, storage_key, is_minted,
			minted_nft_address, minted_token_uri, creator_wallet, owner_wallet, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, piece.ID, piece.UserID, piece.Title, piece.ImageURL, piece.StorageKey, piece.IsMinted,
		nullString(piece.MintedNFTAddress), nullString(piece.MintedTokenURI),
		piece.CreatorWallet, piece.OwnerWallet, piece.CreatedAt)
	if err != nil {
		return art.Piece{}, err
	}
	return piece, nil
}

const artColumns = `id, user_id, title, image_url, storage_key, is_minted,
	COALESCE(minted_nft_address, ''), COALESCE(minted_token_uri, ''),
	creator_wallet, owner_wallet, created_at`

func scanArt(row interface {
	Scan(dest ...interface{}) error
}) (art.Piece, error) {
	var piece art.Piece
	err := row.Scan(&piece.ID, &piece.UserID, &piece.Title, &piece.ImageURL,
		&piece.StorageKey, &piece.IsMinted, &piece.MintedNFTAddress,
		&piece.MintedTokenURI, &piece.CreatorWallet, &piece.OwnerWallet, &piece.CreatedAt)
	return piece, err
}

func (s *Store) GetArt(ctx context.Context, id string) (art.Piece, error) {
	row := s.db.QueryRowxContext(ctx, `
		SELECT `+artColumns+` FROM art WHERE id = $1
	`, id)
	piece, err := scanArt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return art.Piece{}, storage.ErrNotFound
	}
	if err != nil {
		return art.Piece{}, err
	}
	return piece, nil
}

func (s *Store) ListArt(ctx context.Context, offset, limit int) ([]art.Piece, int, error) {
	var total int
	if err := s.db.QueryRowxContext(ctx, `SELECT COUNT(*) FROM art`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryxContext(ctx, `
		SELECT `+artColumns+` FROM art ORDER BY created_at DESC OFFSET $1 LIMIT $2
	`, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []art.Piece
	for rows.Next() {
		piece, err := scanArt(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, piece)
	}
	return result, total, rows.Err()
}

func (s *Store) ListArtByOwner(ctx context.Context, userID string) ([]art.Piece, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT `+artColumns+` FROM art WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []art.Piece
	for rows.Next() {
		piece, err := scanArt(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, piece)
	}
	return result, rows.Err()
}

func (s *Store) DeleteArt(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM art WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) SetMintInfo(ctx context.Context, id, mintAddress, tokenURI string) (art.Piece, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE art SET is_minted = TRUE, minted_nft_address = $2, minted_token_uri = $3
		WHERE id = $1 AND is_minted = FALSE
	`, id, mintAddress, tokenURI)
	if err != nil {
		return art.Piece{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		// Zero rows means either a missing piece or one minted before.
		if _, err := s.GetArt(ctx, id); err != nil {
			return art.Piece{}, err
		}
		return art.Piece{}, storage.ErrAlreadyMinted
	}
	return s.GetArt(ctx, id)
}

func (s *Store) TransferArt(ctx context.Context, id, newOwnerID, newOwnerWallet string) (art.Piece, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE art SET user_id = $2, owner_wallet = $3 WHERE id = $1
	`, id, newOwnerID, newOwnerWallet)
	if err != nil {
		return art.Piece{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return art.Piece{}, storage.ErrNotFound
	}
	return s.GetArt(ctx, id)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// --- ListingStore -----------------------------------------------------------

const listingColumns = `id, user_id, art_id, nft_address, price, status,
	token_account, COALESCE(buyer_id::text, ''), created_at, updated_at`

func scanListing(row interface {
	Scan(dest ...interface{}) error
}) (marketplace.Listing, error) {
	var listing marketplace.Listing
	err := row.Scan(&listing.ID, &listing.UserID, &listing.ArtID, &listing.NFTAddress,
		&listing.Price, &listing.Status, &listing.TokenAccount, &listing.BuyerID,
		&listing.CreatedAt, &listing.UpdatedAt)
	return listing, err
}

func (s *Store) CreateListing(ctx context.Context, listing marketplace.Listing) (marketplace.Listing, error) {
	if listing.ID == "" {
		listing.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	listing.Status = marketplace.StatusActive
	listing.CreatedAt = now
	listing.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO marketplace_listings (id, user_id, art_id, nft_address, price, status, token_account, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, listing.ID, listing.UserID, listing.ArtID, listing.NFTAddress,
		listing.Price, listing.Status, listing.TokenAccount, listing.CreatedAt, listing.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return marketplace.Listing{}, storage.ErrActiveListingExists
		}
		return marketplace.Listing{}, err
	}
	return listing, nil
}

func (s *Store) GetListing(ctx context.Context, id string) (marketplace.Listing, error) {
	row := s.db.QueryRowxContext(ctx, `
		SELECT `+listingColumns+` FROM marketplace_listings WHERE id = $1
	`, id)
	listing, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return marketplace.Listing{}, storage.ErrNotFound
	}
	if err != nil {
		return marketplace.Listing{}, err
	}
	return listing, nil
}

func (s *Store) ListListings(ctx context.Context, offset, limit int, activeOnly bool) ([]marketplace.Listing, int, error) {
	statusFilter := ""
	if activeOnly {
		statusFilter = ` WHERE status = 'active'`
	}

	var total int
	if err := s.db.QueryRowxContext(ctx, `SELECT COUNT(*) FROM marketplace_listings`+statusFilter).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryxContext(ctx, `
		SELECT `+listingColumns+` FROM marketplace_listings`+statusFilter+`
		ORDER BY created_at DESC OFFSET $1 LIMIT $2
	`, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []marketplace.Listing
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, listing)
	}
	return result, total, rows.Err()
}

func (s *Store) ListListingsForArt(ctx context.Context, artID string) ([]marketplace.Listing, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT `+listingColumns+` FROM marketplace_listings
		WHERE art_id = $1 ORDER BY created_at DESC
	`, artID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []marketplace.Listing
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, listing)
	}
	return result, rows.Err()
}

func (s *Store) GetActiveListingForArt(ctx context.Context, artID string) (marketplace.Listing, error) {
	row := s.db.QueryRowxContext(ctx, `
		SELECT `+listingColumns+` FROM marketplace_listings
		WHERE art_id = $1 AND status = 'active'
	`, artID)
	listing, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return marketplace.Listing{}, storage.ErrNotFound
	}
	if err != nil {
		return marketplace.Listing{}, err
	}
	return listing, nil
}

func (s *Store) MarkListingSold(ctx context.Context, id, buyerID string) (marketplace.Listing, error) {
	return s.transitionListing(ctx, id, marketplace.StatusActive, marketplace.StatusSold, buyerID)
}

func (s *Store) ReopenListing(ctx context.Context, id string) (marketplace.Listing, error) {
	return s.transitionListing(ctx, id, marketplace.StatusSold, marketplace.StatusActive, "")
}

func (s *Store) CancelListing(ctx context.Context, id string) (marketplace.Listing, error) {
	return s.transitionListing(ctx, id, marketplace.StatusActive, marketplace.StatusCancelled, "")
}

// transitionListing performs a conditional status transition; the WHERE
// clause on the current status makes concurrent double-purchase attempts
// lose cleanly.
func (s *Store) transitionListing(ctx context.Context, id, from, to, buyerID string) (marketplace.Listing, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE marketplace_listings
		SET status = $3, buyer_id = $4, updated_at = $5
		WHERE id = $1 AND status = $2
	`, id, from, to, nullString(buyerID), time.Now().UTC())
	if err != nil {
		return marketplace.Listing{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		if _, getErr := s.GetListing(ctx, id); getErr != nil {
			return marketplace.Listing{}, getErr
		}
		return marketplace.Listing{}, storage.ErrListingNotActive
	}
	return s.GetListing(ctx, id)
}
