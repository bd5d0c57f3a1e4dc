package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PixelMint-Labs/art_layer/internal/app/domain/art"
	"github.com/PixelMint-Labs/art_layer/internal/app/domain/credits"
	"github.com/PixelMint-Labs/art_layer/internal/app/domain/marketplace"
	"github.com/PixelMint-Labs/art_layer/internal/app/domain/user"
	"github.com/PixelMint-Labs/art_layer/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local
// development.
type Store struct {
	mu            sync.RWMutex
	users         map[string]user.User
	usersByWallet map[string]string
	balances      map[string]int64
	transactions  map[string][]credits.Transaction
	txByHash      map[string]credits.Transaction
	artPieces     map[string]art.Piece
	listings      map[string]marketplace.Listing
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.CreditStore = (*Store)(nil)
var _ storage.ArtStore = (*Store)(nil)
var _ storage.ListingStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		users:         make(map[string]user.User),
		usersByWallet: make(map[string]string),
		balances:      make(map[string]int64),
		transactions:  make(map[string][]credits.Transaction),
		txByHash:      make(map[string]credits.Transaction),
		artPieces:     make(map[string]art.Piece),
		listings:      make(map[string]marketplace.Listing),
	}
}

// UserStore implementation --------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByWallet[u.WalletAddress]; exists {
		return user.User{}, storage.ErrWalletExists
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = time.Now().UTC()

	s.users[u.ID] = u
	s.usersByWallet[u.WalletAddress] = u.ID
	s.balances[u.ID] = 0
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByWallet(_ context.Context, wallet string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByWallet[wallet]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return s.users[id], nil
}

// CreditStore implementation ------------------------------------------------

func (s *Store) GetBalance(_ context.Context, userID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.balances[userID], nil
}

func (s *Store) Deposit(_ context.Context, userID string, amount int64, txHash string) (credits.Transaction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, seen := s.txByHash[txHash]; seen {
		return existing, false, nil
	}

	tx := credits.Transaction{
		ID:              uuid.NewString(),
		UserID:          userID,
		Amount:          amount,
		Status:          credits.StatusCompleted,
		TransactionHash: txHash,
		CreatedAt:       time.Now().UTC(),
	}
	s.balances[userID] += amount
	s.transactions[userID] = append(s.transactions[userID], tx)
	s.txByHash[txHash] = tx
	return tx, true, nil
}

func (s *Store) Debit(_ context.Context, userID string, amount int64, reason string) (credits.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.balances[userID] < amount {
		return credits.Transaction{}, storage.ErrInsufficientCredits
	}

	tx := credits.Transaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    -amount,
		Status:    credits.StatusCompleted,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
	s.balances[userID] -= amount
	s.transactions[userID] = append(s.transactions[userID], tx)
	return tx, nil
}

func (s *Store) ListTransactions(_ context.Context, userID string, limit int, cursor string) ([]credits.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.transactions[userID]
	result := make([]credits.Transaction, len(all))
	copy(result, all)
	// Newest first; ties broken by insertion order which copy preserves.
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	start := 0
	if cursor != "" {
		// An unknown cursor yields an empty page, not the head.
		start = len(result)
		for i, tx := range result {
			if tx.ID == cursor {
				start = i + 1
				break
			}
		}
	}
	if start >= len(result) {
		return nil, nil
	}
	result = result[start:]
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ArtStore implementation ---------------------------------------------------

func (s *Store) CreateArt(_ context.Context, piece art.Piece) (art.Piece, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if piece.ID == "" {
		piece.ID = uuid.NewString()
	}
	piece.CreatedAt = time.Now().UTC()
	s.artPieces[piece.ID] = piece
	return piece, nil
}

func (s *Store) GetArt(_ context.Context, id string) (art.Piece, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	piece, ok := s.artPieces[id]
	if !ok {
		return art.Piece{}, storage.ErrNotFound
	}
	return piece, nil
}

func (s *Store) ListArt(_ context.Context, offset, limit int) ([]art.Piece, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]art.Piece, 0, len(s.artPieces))
	for _, piece := range s.artPieces {
		all = append(all, piece)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

func (s *Store) ListArtByOwner(_ context.Context, userID string) ([]art.Piece, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []art.Piece
	for _, piece := range s.artPieces {
		if piece.UserID == userID {
			result = append(result, piece)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *Store) DeleteArt(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.artPieces[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.artPieces, id)
	return nil
}

func (s *Store) SetMintInfo(_ context.Context, id, mintAddress, tokenURI string) (art.Piece, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	piece, ok := s.artPieces[id]
	if !ok {
		return art.Piece{}, storage.ErrNotFound
	}
	if piece.IsMinted {
		return art.Piece{}, storage.ErrAlreadyMinted
	}
	piece.IsMinted = true
	piece.MintedNFTAddress = mintAddress
	piece.MintedTokenURI = tokenURI
	s.artPieces[id] = piece
	return piece, nil
}

func (s *Store) TransferArt(_ context.Context, id, newOwnerID, newOwnerWallet string) (art.Piece, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	piece, ok := s.artPieces[id]
	if !ok {
		return art.Piece{}, storage.ErrNotFound
	}
	piece.UserID = newOwnerID
	piece.OwnerWallet = newOwnerWallet
	s.artPieces[id] = piece
	return piece, nil
}

// ListingStore implementation -----------------------------------------------

func (s *Store) CreateListing(_ context.Context, listing marketplace.Listing) (marketplace.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.listings {
		if existing.ArtID == listing.ArtID && existing.Status == marketplace.StatusActive {
			return marketplace.Listing{}, storage.ErrActiveListingExists
		}
	}

	if listing.ID == "" {
		listing.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	listing.Status = marketplace.StatusActive
	listing.CreatedAt = now
	listing.UpdatedAt = now
	s.listings[listing.ID] = listing
	return listing, nil
}

func (s *Store) GetListing(_ context.Context, id string) (marketplace.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	listing, ok := s.listings[id]
	if !ok {
		return marketplace.Listing{}, storage.ErrNotFound
	}
	return listing, nil
}

func (s *Store) ListListings(_ context.Context, offset, limit int, activeOnly bool) ([]marketplace.Listing, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []marketplace.Listing
	for _, listing := range s.listings {
		if activeOnly && listing.Status != marketplace.StatusActive {
			continue
		}
		all = append(all, listing)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

func (s *Store) ListListingsForArt(_ context.Context, artID string) ([]marketplace.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []marketplace.Listing
	for _, listing := range s.listings {
		if listing.ArtID == artID {
			result = append(result, listing)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *Store) GetActiveListingForArt(_ context.Context, artID string) (marketplace.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, listing := range s.listings {
		if listing.ArtID == artID && listing.Status == marketplace.StatusActive {
			return listing, nil
		}
	}
	return marketplace.Listing{}, storage.ErrNotFound
}

func (s *Store) MarkListingSold(_ context.Context, id, buyerID string) (marketplace.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	listing, ok := s.listings[id]
	if !ok {
		return marketplace.Listing{}, storage.ErrNotFound
	}
	if listing.Status != marketplace.StatusActive {
		return marketplace.Listing{}, storage.ErrListingNotActive
	}
	listing.Status = marketplace.StatusSold
	listing.BuyerID = buyerID
	listing.UpdatedAt = time.Now().UTC()
	s.listings[id] = listing
	return listing, nil
}

func (s *Store) ReopenListing(_ context.Context, id string) (marketplace.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	listing, ok := s.listings[id]
	if !ok {
		return marketplace.Listing{}, storage.ErrNotFound
	}
	listing.Status = marketplace.StatusActive
	listing.BuyerID = ""
	listing.UpdatedAt = time.Now().UTC()
	s.listings[id] = listing
	return listing, nil
}

func (s *Store) CancelListing(_ context.Context, id string) (marketplace.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	listing, ok := s.listings[id]
	if !ok {
		return marketplace.Listing{}, storage.ErrNotFound
	}
	if listing.Status != marketplace.StatusActive {
		return marketplace.Listing{}, storage.ErrListingNotActive
	}
	listing.Status = marketplace.StatusCancelled
	listing.UpdatedAt = time.Now().UTC()
	s.listings[id] = listing
	return listing, nil
}
