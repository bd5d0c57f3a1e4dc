// Package storage defines the persistence interfaces used by the application
// services, together with the sentinel errors stores must return so services
// can map them onto the API error taxonomy.
package storage

import (
	"context"
	"errors"

	"github.com/PixelMint-Labs/art_layer/internal/app/domain/art"
	"github.com/PixelMint-Labs/art_layer/internal/app/domain/credits"
	"github.com/PixelMint-Labs/art_layer/internal/app/domain/marketplace"
	"github.com/PixelMint-Labs/art_layer/internal/app/domain/user"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrInsufficientCredits is returned by Debit when the balance is lower
	// than the requested amount. The balance is left untouched.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrActiveListingExists is returned by CreateListing when the art piece
	// already has an active listing.
	ErrActiveListingExists = errors.New("active listing already exists")
	// ErrListingNotActive is returned by MarkListingSold and CancelListing
	// when the listing is not in the active state.
	ErrListingNotActive = errors.New("listing is not active")
	// ErrWalletExists is returned by CreateUser when the wallet address is
	// already registered.
	ErrWalletExists = errors.New("wallet address already registered")
	// ErrAlreadyMinted is returned by SetMintInfo when the piece is already
	// minted. Mint info is written once and never overwritten.
	ErrAlreadyMinted = errors.New("art is already minted")
)

// UserStore persists users. CreateUser also provisions the user's
// zero-balance credit account in the same logical step.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByWallet(ctx context.Context, wallet string) (user.User, error)
}

// CreditStore persists credit accounts and their transaction ledger. Debit
// and Deposit are the only operations in the system that require storage-level
// atomicity: Debit must be a single conditional decrement, and Deposit must
// be idempotent on the transaction hash.
type CreditStore interface {
	// GetBalance returns the balance for the user. A missing credit account
	// reads as zero, not as an error.
	GetBalance(ctx context.Context, userID string) (int64, error)

	// Deposit credits the account and appends a completed transaction. The
	// returned bool is false when txHash was seen before; in that case the
	// balance is unchanged and the original transaction is returned.
	Deposit(ctx context.Context, userID string, amount int64, txHash string) (credits.Transaction, bool, error)

	// Debit decrements the balance and appends a negative transaction as one
	// atomic step. Returns ErrInsufficientCredits without partial effect when
	// the balance is lower than amount.
	Debit(ctx context.Context, userID string, amount int64, reason string) (credits.Transaction, error)

	// ListTransactions returns up to limit transactions most-recent-first,
	// starting after the transaction identified by cursor ("" for the head).
	ListTransactions(ctx context.Context, userID string, limit int, cursor string) ([]credits.Transaction, error)
}

// ArtStore persists art pieces.
type ArtStore interface {
	CreateArt(ctx context.Context, piece art.Piece) (art.Piece, error)
	GetArt(ctx context.Context, id string) (art.Piece, error)
	// ListArt returns a page ordered by creation time descending plus the
	// total number of pieces.
	ListArt(ctx context.Context, offset, limit int) ([]art.Piece, int, error)
	ListArtByOwner(ctx context.Context, userID string) ([]art.Piece, error)
	DeleteArt(ctx context.Context, id string) error
	// SetMintInfo marks the piece minted and records the mint address and
	// token URI as one conditional write. It fails with ErrNotFound when the
	// piece does not exist and ErrAlreadyMinted when it was minted before;
	// existing mint info is never overwritten.
	SetMintInfo(ctx context.Context, id, mintAddress, tokenURI string) (art.Piece, error)
	// TransferArt reassigns ownership after a marketplace purchase.
	TransferArt(ctx context.Context, id, newOwnerID, newOwnerWallet string) (art.Piece, error)
}

// ListingStore persists marketplace listings. CreateListing must reject a
// second active listing for the same art piece; MarkListingSold and
// CancelListing are conditional on the active status.
type ListingStore interface {
	CreateListing(ctx context.Context, listing marketplace.Listing) (marketplace.Listing, error)
	GetListing(ctx context.Context, id string) (marketplace.Listing, error)
	ListListings(ctx context.Context, offset, limit int, activeOnly bool) ([]marketplace.Listing, int, error)
	// ListListingsForArt returns every listing ever opened for the piece,
	// newest first.
	ListListingsForArt(ctx context.Context, artID string) ([]marketplace.Listing, error)
	GetActiveListingForArt(ctx context.Context, artID string) (marketplace.Listing, error)
	MarkListingSold(ctx context.Context, id, buyerID string) (marketplace.Listing, error)
	// ReopenListing reverts a sold listing to active. It exists solely as the
	// compensating action when the post-purchase ownership transfer fails.
	ReopenListing(ctx context.Context, id string) (marketplace.Listing, error)
	CancelListing(ctx context.Context, id string) (marketplace.Listing, error)
}
