// Package art manages generated art records and their lifecycle.
package art

import (
	"context"
	"errors"

	"github.com/PixelMint-Labs/art_layer/internal/app/domain/art"
	"github.com/PixelMint-Labs/art_layer/internal/app/domain/marketplace"
	"github.com/PixelMint-Labs/art_layer/internal/app/storage"
	apperrors "github.com/PixelMint-Labs/art_layer/internal/errors"
	"github.com/PixelMint-Labs/art_layer/internal/logging"
	"github.com/PixelMint-Labs/art_layer/internal/objectstore"
)

// DefaultPageSize is used when a gallery request does not name a page size.
const DefaultPageSize = 20

// MaxPageSize bounds a single gallery page.
const MaxPageSize = 100

// Page is one page of the public gallery.
type Page struct {
	Items  []art.Piece `json:"items"`
	Total  int         `json:"total"`
	Offset int         `json:"offset"`
	Limit  int         `json:"limit"`
}

// Detail is a single piece together with its listing history. ActiveListing
// is set when the piece is currently for sale.
type Detail struct {
	Piece         art.Piece             `json:"art"`
	Listings      []marketplace.Listing `json:"listings"`
	ActiveListing *marketplace.Listing  `json:"active_listing,omitempty"`
}

// Service exposes read and delete operations over art records.
type Service struct {
	store    storage.ArtStore
	listings storage.ListingStore
	blobs    objectstore.Store
	log      *logging.Logger
}

// New constructs an art service. The blob store is optional; without it,
// deletes remove the record only.
func New(store storage.ArtStore, listings storage.ListingStore, blobs objectstore.Store, log *logging.Logger) *Service {
	if log == nil {
		log = logging.New("art")
	}
	return &Service{store: store, listings: listings, blobs: blobs, log: log}
}

// List returns a page of the public gallery, newest first.
func (s *Service) List(ctx context.Context, offset, limit int) (Page, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	items, total, err := s.store.ListArt(ctx, offset, limit)
	if err != nil {
		return Page{}, apperrors.Internal("list art", err)
	}
	if items == nil {
		items = []art.Piece{}
	}
	return Page{Items: items, Total: total, Offset: offset, Limit: limit}, nil
}

// ListByOwner returns every piece the user currently owns.
func (s *Service) ListByOwner(ctx context.Context, userID string) ([]art.Piece, error) {
	items, err := s.store.ListArtByOwner(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("list owned art", err)
	}
	if items == nil {
		items = []art.Piece{}
	}
	return items, nil
}

// Get fetches a single piece.
func (s *Service) Get(ctx context.Context, id string) (art.Piece, error) {
	piece, err := s.store.GetArt(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return art.Piece{}, apperrors.NotFound("art")
	}
	if err != nil {
		return art.Piece{}, apperrors.Internal("read art", err)
	}
	return piece, nil
}

// GetDetail fetches a piece together with all listings ever opened for it.
func (s *Service) GetDetail(ctx context.Context, id string) (Detail, error) {
	piece, err := s.Get(ctx, id)
	if err != nil {
		return Detail{}, err
	}

	listings, err := s.listings.ListListingsForArt(ctx, id)
	if err != nil {
		return Detail{}, apperrors.Internal("list listings for art", err)
	}
	if listings == nil {
		listings = []marketplace.Listing{}
	}

	detail := Detail{Piece: piece, Listings: listings}
	active, err := s.listings.GetActiveListingForArt(ctx, id)
	if err == nil {
		detail.ActiveListing = &active
	} else if !errors.Is(err, storage.ErrNotFound) {
		return Detail{}, apperrors.Internal("read active listing", err)
	}
	return detail, nil
}

// Delete removes a piece the caller created. The stored image blob is removed
// first so a half-failed delete leaves a record pointing at nothing rather
// than an orphaned blob.
func (s *Service) Delete(ctx context.Context, id, callerUserID string) error {
	piece, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if piece.UserID != callerUserID {
		return apperrors.Forbidden("Only the creator can delete this art")
	}
	if piece.IsMinted {
		return apperrors.Conflict("Minted art cannot be deleted")
	}

	if s.blobs != nil && piece.StorageKey != "" {
		if err := s.blobs.Delete(ctx, piece.StorageKey); err != nil {
			s.log.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
				"art_id":      id,
				"storage_key": piece.StorageKey,
			}).Warn("image blob delete failed, keeping record")
			return apperrors.StorageFailure("delete image", err)
		}
	}

	if err := s.store.DeleteArt(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return apperrors.Internal("delete art", err)
	}

	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"art_id":  id,
		"user_id": callerUserID,
	}).Info("art deleted")
	return nil
}
