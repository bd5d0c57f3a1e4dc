package credits

import (
	"context"
	"testing"

	"github.com/PixelMint-Labs/art_layer/internal/app/domain/user"
	"github.com/PixelMint-Labs/art_layer/internal/app/storage/memory"
	errs "github.com/PixelMint-Labs/art_layer/internal/errors"
)

type stubVerifier struct {
	confirmed bool
	err       error
}

func (v stubVerifier) VerifySignature(context.Context, string) (bool, error) {
	return v.confirmed, v.err
}

func setup(t *testing.T) (*Service, *memory.Store, string) {
	t.Helper()
	store := memory.New()
	u, err := store.CreateUser(context.Background(), user.User{WalletAddress: "0xAAA"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return New(store, nil, nil, nil), store, u.ID
}

func TestDepositValidation(t *testing.T) {
	svc, _, userID := setup(t)
	ctx := context.Background()

	if _, _, err := svc.Deposit(ctx, userID, 10, ""); !errs.Is(err, errs.CodeInvalidInput) {
		t.Errorf("missing hash error = %v, want INVALID_INPUT", err)
	}
	if _, _, err := svc.Deposit(ctx, userID, 0, "hash-1"); !errs.Is(err, errs.CodeInvalidInput) {
		t.Errorf("zero amount error = %v, want INVALID_INPUT", err)
	}
	if _, _, err := svc.Deposit(ctx, userID, -5, "hash-1"); !errs.Is(err, errs.CodeInvalidInput) {
		t.Errorf("negative amount error = %v, want INVALID_INPUT", err)
	}
}

func TestDepositReplayDoesNotCredit(t *testing.T) {
	svc, _, userID := setup(t)
	ctx := context.Background()

	_, applied, err := svc.Deposit(ctx, userID, 10, "hash-1")
	if err != nil || !applied {
		t.Fatalf("first deposit: applied=%v err=%v", applied, err)
	}
	_, applied, err = svc.Deposit(ctx, userID, 10, "hash-1")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if applied {
		t.Error("replayed deposit reported applied")
	}

	balance, err := svc.GetBalance(ctx, userID)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance != 10 {
		t.Errorf("balance = %d, want 10", balance)
	}
}

func TestDepositUnconfirmedRejected(t *testing.T) {
	store := memory.New()
	u, _ := store.CreateUser(context.Background(), user.User{WalletAddress: "0xAAA"})
	svc := New(store, stubVerifier{confirmed: false}, nil, nil)

	_, _, err := svc.Deposit(context.Background(), u.ID, 10, "hash-1")
	if !errs.Is(err, errs.CodeInvalidInput) {
		t.Fatalf("unconfirmed deposit error = %v, want INVALID_INPUT", err)
	}

	balance, _ := svc.GetBalance(context.Background(), u.ID)
	if balance != 0 {
		t.Errorf("balance after rejected deposit = %d, want 0", balance)
	}
}

func TestDebitInsufficientCarriesDetails(t *testing.T) {
	svc, _, userID := setup(t)
	ctx := context.Background()

	if _, _, err := svc.Deposit(ctx, userID, 3, "hash-1"); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	_, err := svc.Debit(ctx, userID, 5, "image_generation")
	serviceErr := errs.GetServiceError(err)
	if serviceErr == nil || serviceErr.Code != errs.CodeInsufficientCredits {
		t.Fatalf("debit error = %v, want INSUFFICIENT_CREDITS", err)
	}
	if serviceErr.Details["required"] != int64(5) || serviceErr.Details["available"] != int64(3) {
		t.Errorf("error details = %v", serviceErr.Details)
	}
}

func TestHistoryDefaultLimit(t *testing.T) {
	svc, store, userID := setup(t)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		if _, _, err := store.Deposit(ctx, userID, 1, "h"+string(rune('a'+i))); err != nil {
			t.Fatalf("deposit %d: %v", i, err)
		}
	}

	txs, err := svc.History(ctx, userID, 0, "")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(txs) != DefaultHistoryLimit {
		t.Errorf("history returned %d entries, want %d", len(txs), DefaultHistoryLimit)
	}
}
