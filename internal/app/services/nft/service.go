// Package nft orchestrates minting and the marketplace: metadata preparation,
// mint confirmation, listing lifecycle and purchase settlement.
package nft

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/PixelMint-Labs/art_layer/internal/app/domain/art"
	"github.com/PixelMint-Labs/art_layer/internal/app/domain/marketplace"
	"github.com/PixelMint-Labs/art_layer/internal/app/storage"
	"github.com/PixelMint-Labs/art_layer/internal/chain"
	apperrors "github.com/PixelMint-Labs/art_layer/internal/errors"
	"github.com/PixelMint-Labs/art_layer/internal/logging"
	"github.com/PixelMint-Labs/art_layer/internal/metrics"
)

// MaxMetadataNameRunes is the on-chain limit for NFT names.
const MaxMetadataNameRunes = 32

// ListingPage is one page of marketplace listings.
type ListingPage struct {
	Items  []marketplace.Listing `json:"items"`
	Total  int                   `json:"total"`
	Offset int                   `json:"offset"`
	Limit  int                   `json:"limit"`
}

// PurchaseResult reports a settled purchase.
type PurchaseResult struct {
	Listing marketplace.Listing `json:"listing"`
	Art     art.Piece           `json:"art"`
}

// Service implements mint and marketplace operations.
type Service struct {
	artStore storage.ArtStore
	listings storage.ListingStore
	users    storage.UserStore
	verifier chain.Verifier
	log      *logging.Logger
	metrics  *metrics.Metrics
}

// New constructs an NFT service. The verifier is optional; when nil, mint and
// purchase confirmations are accepted without an on-chain check.
func New(artStore storage.ArtStore, listings storage.ListingStore, users storage.UserStore,
	verifier chain.Verifier, log *logging.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = logging.New("nft")
	}
	return &Service{
		artStore: artStore,
		listings: listings,
		users:    users,
		verifier: verifier,
		log:      log,
		metrics:  m,
	}
}

// PrepareMint builds the token metadata for a piece the caller created. The
// piece must not already be minted.
func (s *Service) PrepareMint(ctx context.Context, artID, callerUserID string) (art.Piece, art.Metadata, error) {
	piece, err := s.getArt(ctx, artID)
	if err != nil {
		return art.Piece{}, art.Metadata{}, err
	}
	if piece.UserID != callerUserID {
		return art.Piece{}, art.Metadata{}, apperrors.Forbidden("Only the creator can mint this art")
	}
	if piece.IsMinted {
		return art.Piece{}, art.Metadata{}, apperrors.Conflict("Art is already minted")
	}

	return piece, art.Metadata{
		Name:        truncateName(piece.Title),
		Description: piece.Title,
		Image:       piece.ImageURL,
		Attributes: []art.Attribute{
			{TraitType: "Creator", Value: piece.CreatorWallet},
			{TraitType: "Created Date", Value: piece.CreatedAt.UTC().Format(time.RFC3339)},
		},
	}, nil
}

// ConfirmMint records a completed on-chain mint against the piece. Minting is
// one-shot; a second confirmation conflicts.
func (s *Service) ConfirmMint(ctx context.Context, artID, callerUserID, mintAddress, tokenURI, signature string) (art.Piece, error) {
	mintAddress = strings.TrimSpace(mintAddress)
	if mintAddress == "" {
		return art.Piece{}, apperrors.InvalidInput("Mint address is required")
	}

	piece, err := s.getArt(ctx, artID)
	if err != nil {
		return art.Piece{}, err
	}
	if piece.UserID != callerUserID {
		return art.Piece{}, apperrors.Forbidden("Only the creator can mint this art")
	}
	if piece.IsMinted {
		return art.Piece{}, apperrors.Conflict("Art is already minted")
	}

	if err := s.verifyOnChain(ctx, signature, "mint transaction"); err != nil {
		return art.Piece{}, err
	}

	// The store write is conditional on the piece being unminted, so a
	// concurrent confirm that lost the race surfaces here as a conflict.
	updated, err := s.artStore.SetMintInfo(ctx, artID, mintAddress, tokenURI)
	if errors.Is(err, storage.ErrNotFound) {
		return art.Piece{}, apperrors.NotFound("art")
	}
	if errors.Is(err, storage.ErrAlreadyMinted) {
		return art.Piece{}, apperrors.Conflict("Art is already minted")
	}
	if err != nil {
		return art.Piece{}, apperrors.Internal("record mint", err)
	}

	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"art_id":       artID,
		"mint_address": mintAddress,
	}).Info("mint confirmed")
	if s.metrics != nil {
		s.metrics.RecordMint()
	}
	return updated, nil
}

// CreateListing puts a minted piece up for sale. A piece carries at most one
// active listing at a time.
func (s *Service) CreateListing(ctx context.Context, artID, callerUserID string, price decimal.Decimal, tokenAccount string) (marketplace.Listing, error) {
	if price.LessThanOrEqual(decimal.Zero) {
		return marketplace.Listing{}, apperrors.InvalidInput("Price must be positive")
	}

	piece, err := s.getArt(ctx, artID)
	if err != nil {
		return marketplace.Listing{}, err
	}
	if piece.UserID != callerUserID {
		return marketplace.Listing{}, apperrors.Forbidden("Only the owner can list this art")
	}
	if !piece.IsMinted {
		return marketplace.Listing{}, apperrors.InvalidInput("Art must be minted before listing")
	}

	listing, err := s.listings.CreateListing(ctx, marketplace.Listing{
		UserID:       callerUserID,
		ArtID:        artID,
		NFTAddress:   piece.MintedNFTAddress,
		Price:        price,
		TokenAccount: tokenAccount,
	})
	if errors.Is(err, storage.ErrActiveListingExists) {
		return marketplace.Listing{}, apperrors.Conflict("Art is already listed")
	}
	if err != nil {
		return marketplace.Listing{}, apperrors.Internal("create listing", err)
	}

	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"listing_id": listing.ID,
		"art_id":     artID,
		"price":      price.String(),
	}).Info("listing created")
	return listing, nil
}

// ListListings returns a marketplace page, newest first.
func (s *Service) ListListings(ctx context.Context, offset, limit int, activeOnly bool) (ListingPage, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	items, total, err := s.listings.ListListings(ctx, offset, limit, activeOnly)
	if err != nil {
		return ListingPage{}, apperrors.Internal("list listings", err)
	}
	if items == nil {
		items = []marketplace.Listing{}
	}
	return ListingPage{Items: items, Total: total, Offset: offset, Limit: limit}, nil
}

// CancelListing takes the seller's active listing off the market. The piece
// can be relisted afterwards.
func (s *Service) CancelListing(ctx context.Context, listingID, callerUserID string) (marketplace.Listing, error) {
	listing, err := s.getListing(ctx, listingID)
	if err != nil {
		return marketplace.Listing{}, err
	}
	if listing.UserID != callerUserID {
		return marketplace.Listing{}, apperrors.Forbidden("Only the seller can cancel this listing")
	}

	cancelled, err := s.listings.CancelListing(ctx, listingID)
	if errors.Is(err, storage.ErrListingNotActive) {
		return marketplace.Listing{}, apperrors.Conflict("Listing is no longer active")
	}
	if errors.Is(err, storage.ErrNotFound) {
		return marketplace.Listing{}, apperrors.NotFound("listing")
	}
	if err != nil {
		return marketplace.Listing{}, apperrors.Internal("cancel listing", err)
	}
	return cancelled, nil
}

// Purchase settles a sale: the listing is conditionally marked sold, then
// ownership of the piece moves to the buyer. If the transfer fails the listing
// is reopened so the market never holds a sold listing for unsold art.
func (s *Service) Purchase(ctx context.Context, listingID, buyerUserID, signature string) (PurchaseResult, error) {
	listing, err := s.getListing(ctx, listingID)
	if err != nil {
		return PurchaseResult{}, err
	}
	if listing.Status != marketplace.StatusActive {
		return PurchaseResult{}, apperrors.Conflict("Listing is no longer active")
	}
	if listing.UserID == buyerUserID {
		return PurchaseResult{}, apperrors.InvalidInput("Cannot purchase your own listing")
	}

	buyer, err := s.users.GetUser(ctx, buyerUserID)
	if err != nil {
		return PurchaseResult{}, apperrors.Internal("look up buyer", err)
	}

	if err := s.verifyOnChain(ctx, signature, "purchase transaction"); err != nil {
		return PurchaseResult{}, err
	}

	// Conditional transition; a concurrent buyer loses here with a conflict
	// instead of both walking away with the art.
	sold, err := s.listings.MarkListingSold(ctx, listingID, buyerUserID)
	if errors.Is(err, storage.ErrListingNotActive) {
		return PurchaseResult{}, apperrors.Conflict("Listing was just sold or cancelled")
	}
	if errors.Is(err, storage.ErrNotFound) {
		return PurchaseResult{}, apperrors.NotFound("listing")
	}
	if err != nil {
		return PurchaseResult{}, apperrors.Internal("mark listing sold", err)
	}

	transferred, err := s.artStore.TransferArt(ctx, listing.ArtID, buyerUserID, buyer.WalletAddress)
	if err != nil {
		if _, reopenErr := s.listings.ReopenListing(ctx, listingID); reopenErr != nil {
			s.log.WithContext(ctx).WithError(reopenErr).WithFields(map[string]interface{}{
				"listing_id": listingID,
			}).Error("compensation failed: listing left sold without transfer")
		}
		return PurchaseResult{}, apperrors.Internal("transfer ownership", err)
	}

	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"listing_id": listingID,
		"art_id":     listing.ArtID,
		"buyer_id":   buyerUserID,
	}).Info("purchase settled")
	if s.metrics != nil {
		s.metrics.RecordPurchase()
	}
	return PurchaseResult{Listing: sold, Art: transferred}, nil
}

func (s *Service) getArt(ctx context.Context, id string) (art.Piece, error) {
	piece, err := s.artStore.GetArt(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return art.Piece{}, apperrors.NotFound("art")
	}
	if err != nil {
		return art.Piece{}, apperrors.Internal("read art", err)
	}
	return piece, nil
}

func (s *Service) getListing(ctx context.Context, id string) (marketplace.Listing, error) {
	listing, err := s.listings.GetListing(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return marketplace.Listing{}, apperrors.NotFound("listing")
	}
	if err != nil {
		return marketplace.Listing{}, apperrors.Internal("read listing", err)
	}
	return listing, nil
}

func (s *Service) verifyOnChain(ctx context.Context, signature, what string) error {
	if s.verifier == nil || signature == "" {
		return nil
	}
	confirmed, err := s.verifier.VerifySignature(ctx, signature)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordUpstreamCall("chain", "error")
		}
		return apperrors.ChainFailure("verify "+what, err)
	}
	if s.metrics != nil {
		s.metrics.RecordUpstreamCall("chain", "ok")
	}
	if !confirmed {
		return apperrors.InvalidInput("Transaction is not confirmed on chain")
	}
	return nil
}

// truncateName shortens a title to the on-chain name limit without splitting
// a multi-byte rune.
func truncateName(name string) string {
	runes := []rune(name)
	if len(runes) <= MaxMetadataNameRunes {
		return name
	}
	return string(runes[:MaxMetadataNameRunes])
}
