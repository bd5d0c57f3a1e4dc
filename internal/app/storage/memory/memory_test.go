package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/PixelMint-Labs/art_layer/internal/app/domain/art"
	"github.com/PixelMint-Labs/art_layer/internal/app/domain/marketplace"
	"github.com/PixelMint-Labs/art_layer/internal/app/domain/user"
	"github.com/PixelMint-Labs/art_layer/internal/app/storage"
)

func newTestUser(t *testing.T, s *Store, wallet string) user.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), user.User{WalletAddress: wallet})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func TestCreateUserProvisionsZeroBalance(t *testing.T) {
	s := New()
	u := newTestUser(t, s, "wallet-1")

	balance, err := s.GetBalance(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance != 0 {
		t.Errorf("new user balance = %d, want 0", balance)
	}
}

func TestCreateUserDuplicateWallet(t *testing.T) {
	s := New()
	newTestUser(t, s, "wallet-1")

	_, err := s.CreateUser(context.Background(), user.User{WalletAddress: "wallet-1"})
	if !errors.Is(err, storage.ErrWalletExists) {
		t.Fatalf("duplicate wallet error = %v, want ErrWalletExists", err)
	}
}

func TestDepositIdempotentOnHash(t *testing.T) {
	s := New()
	u := newTestUser(t, s, "wallet-1")
	ctx := context.Background()

	first, applied, err := s.Deposit(ctx, u.ID, 10, "hash-1")
	if err != nil || !applied {
		t.Fatalf("first deposit: applied=%v err=%v", applied, err)
	}

	second, applied, err := s.Deposit(ctx, u.ID, 10, "hash-1")
	if err != nil {
		t.Fatalf("replayed deposit: %v", err)
	}
	if applied {
		t.Error("replayed deposit reported applied")
	}
	if second.ID != first.ID {
		t.Errorf("replay returned transaction %s, want original %s", second.ID, first.ID)
	}

	balance, _ := s.GetBalance(ctx, u.ID)
	if balance != 10 {
		t.Errorf("balance after replay = %d, want 10", balance)
	}
}

func TestDebitInsufficientLeavesBalance(t *testing.T) {
	s := New()
	u := newTestUser(t, s, "wallet-1")
	ctx := context.Background()

	if _, _, err := s.Deposit(ctx, u.ID, 3, "hash-1"); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	_, err := s.Debit(ctx, u.ID, 5, "image_generation")
	if !errors.Is(err, storage.ErrInsufficientCredits) {
		t.Fatalf("debit error = %v, want ErrInsufficientCredits", err)
	}

	balance, _ := s.GetBalance(ctx, u.ID)
	if balance != 3 {
		t.Errorf("balance after failed debit = %d, want 3", balance)
	}
	txs, _ := s.ListTransactions(ctx, u.ID, 10, "")
	if len(txs) != 1 {
		t.Errorf("ledger has %d entries after failed debit, want 1", len(txs))
	}
}

func TestDebitRecordsNegativeTransaction(t *testing.T) {
	s := New()
	u := newTestUser(t, s, "wallet-1")
	ctx := context.Background()

	s.Deposit(ctx, u.ID, 10, "hash-1")
	tx, err := s.Debit(ctx, u.ID, 5, "image_generation")
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if tx.Amount != -5 {
		t.Errorf("debit transaction amount = %d, want -5", tx.Amount)
	}

	balance, _ := s.GetBalance(ctx, u.ID)
	if balance != 5 {
		t.Errorf("balance = %d, want 5", balance)
	}
}

func TestListTransactionsCursor(t *testing.T) {
	s := New()
	u := newTestUser(t, s, "wallet-1")
	ctx := context.Background()

	for _, hash := range []string{"h1", "h2", "h3"} {
		if _, _, err := s.Deposit(ctx, u.ID, 1, hash); err != nil {
			t.Fatalf("deposit %s: %v", hash, err)
		}
	}

	first, err := s.ListTransactions(ctx, u.ID, 2, "")
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("first page has %d entries, want 2", len(first))
	}

	rest, err := s.ListTransactions(ctx, u.ID, 2, first[1].ID)
	if err != nil {
		t.Fatalf("ListTransactions with cursor: %v", err)
	}
	if len(rest) != 1 {
		t.Fatalf("second page has %d entries, want 1", len(rest))
	}
	if rest[0].ID == first[0].ID || rest[0].ID == first[1].ID {
		t.Error("cursor page repeated an entry from the first page")
	}

	unknown, err := s.ListTransactions(ctx, u.ID, 2, "no-such-transaction")
	if err != nil {
		t.Fatalf("ListTransactions with unknown cursor: %v", err)
	}
	if len(unknown) != 0 {
		t.Errorf("unknown cursor returned %d entries, want empty page", len(unknown))
	}
}

func TestOneActiveListingPerArt(t *testing.T) {
	s := New()
	u := newTestUser(t, s, "wallet-1")
	ctx := context.Background()

	piece, err := s.CreateArt(ctx, art.Piece{UserID: u.ID, Title: "t"})
	if err != nil {
		t.Fatalf("CreateArt: %v", err)
	}

	listing := marketplace.Listing{UserID: u.ID, ArtID: piece.ID, Price: decimal.NewFromFloat(2.5)}
	created, err := s.CreateListing(ctx, listing)
	if err != nil {
		t.Fatalf("CreateListing: %v", err)
	}

	if _, err := s.CreateListing(ctx, listing); !errors.Is(err, storage.ErrActiveListingExists) {
		t.Fatalf("second active listing error = %v, want ErrActiveListingExists", err)
	}

	// Cancelling frees the slot for a relist.
	if _, err := s.CancelListing(ctx, created.ID); err != nil {
		t.Fatalf("CancelListing: %v", err)
	}
	if _, err := s.CreateListing(ctx, listing); err != nil {
		t.Fatalf("relist after cancel: %v", err)
	}
}

func TestListingTransitions(t *testing.T) {
	s := New()
	seller := newTestUser(t, s, "seller")
	buyer := newTestUser(t, s, "buyer")
	ctx := context.Background()

	piece, _ := s.CreateArt(ctx, art.Piece{UserID: seller.ID})
	listing, _ := s.CreateListing(ctx, marketplace.Listing{
		UserID: seller.ID, ArtID: piece.ID, Price: decimal.NewFromInt(1),
	})

	sold, err := s.MarkListingSold(ctx, listing.ID, buyer.ID)
	if err != nil {
		t.Fatalf("MarkListingSold: %v", err)
	}
	if sold.Status != marketplace.StatusSold || sold.BuyerID != buyer.ID {
		t.Errorf("sold listing = %+v", sold)
	}

	if _, err := s.MarkListingSold(ctx, listing.ID, buyer.ID); !errors.Is(err, storage.ErrListingNotActive) {
		t.Fatalf("second sale error = %v, want ErrListingNotActive", err)
	}
	if _, err := s.CancelListing(ctx, listing.ID); !errors.Is(err, storage.ErrListingNotActive) {
		t.Fatalf("cancel sold error = %v, want ErrListingNotActive", err)
	}

	reopened, err := s.ReopenListing(ctx, listing.ID)
	if err != nil {
		t.Fatalf("ReopenListing: %v", err)
	}
	if reopened.Status != marketplace.StatusActive || reopened.BuyerID != "" {
		t.Errorf("reopened listing = %+v", reopened)
	}
}

func TestTransferArt(t *testing.T) {
	s := New()
	creator := newTestUser(t, s, "creator")
	buyer := newTestUser(t, s, "buyer")
	ctx := context.Background()

	piece, _ := s.CreateArt(ctx, art.Piece{
		UserID: creator.ID, CreatorWallet: "creator", OwnerWallet: "creator",
	})

	moved, err := s.TransferArt(ctx, piece.ID, buyer.ID, "buyer")
	if err != nil {
		t.Fatalf("TransferArt: %v", err)
	}
	if moved.UserID != buyer.ID || moved.OwnerWallet != "buyer" {
		t.Errorf("transferred piece = %+v", moved)
	}
	if moved.CreatorWallet != "creator" {
		t.Errorf("creator wallet changed on transfer: %s", moved.CreatorWallet)
	}
}

func TestSetMintInfo(t *testing.T) {
	s := New()
	u := newTestUser(t, s, "wallet-1")
	ctx := context.Background()

	piece, _ := s.CreateArt(ctx, art.Piece{UserID: u.ID})
	minted, err := s.SetMintInfo(ctx, piece.ID, "Sol123", "https://meta/1")
	if err != nil {
		t.Fatalf("SetMintInfo: %v", err)
	}
	if !minted.IsMinted || minted.MintedNFTAddress != "Sol123" {
		t.Errorf("minted piece = %+v", minted)
	}

	if _, err := s.SetMintInfo(ctx, "missing", "x", "y"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing art error = %v, want ErrNotFound", err)
	}
}

func TestSetMintInfoWritesOnce(t *testing.T) {
	s := New()
	u := newTestUser(t, s, "wallet-1")
	ctx := context.Background()

	piece, _ := s.CreateArt(ctx, art.Piece{UserID: u.ID})
	if _, err := s.SetMintInfo(ctx, piece.ID, "Sol123", "https://meta/1"); err != nil {
		t.Fatalf("SetMintInfo: %v", err)
	}

	if _, err := s.SetMintInfo(ctx, piece.ID, "Sol456", "https://meta/2"); !errors.Is(err, storage.ErrAlreadyMinted) {
		t.Fatalf("second SetMintInfo error = %v, want ErrAlreadyMinted", err)
	}

	got, err := s.GetArt(ctx, piece.ID)
	if err != nil {
		t.Fatalf("GetArt: %v", err)
	}
	if got.MintedNFTAddress != "Sol123" || got.MintedTokenURI != "https://meta/1" {
		t.Errorf("mint info changed after second write: %+v", got)
	}
}
