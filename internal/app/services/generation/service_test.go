package generation

import (
	"context"
	"errors"
	"sync"
	"testing"

	creditsvc "github.com/PixelMint-Labs/art_layer/internal/app/services/credits"
	"github.com/PixelMint-Labs/art_layer/internal/app/domain/user"
	"github.com/PixelMint-Labs/art_layer/internal/app/storage/memory"
	errs "github.com/PixelMint-Labs/art_layer/internal/errors"
)

type fakeGenerator struct {
	url       string
	err       error
	onCall    func()
	callCount int
}

func (g *fakeGenerator) Generate(context.Context, string) (string, error) {
	g.callCount++
	if g.onCall != nil {
		g.onCall()
	}
	return g.url, g.err
}

type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[string][]byte)}
}

func (b *fakeBlobs) Upload(_ context.Context, key string, data []byte, _ string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	return "https://cdn.example/" + key, nil
}

func (b *fakeBlobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	b.deleted = append(b.deleted, key)
	return nil
}

func (b *fakeBlobs) Fetch(context.Context, string) ([]byte, string, error) {
	return []byte("png-bytes"), "image/png", nil
}

type fixture struct {
	svc     *Service
	store   *memory.Store
	credits *creditsvc.Service
	blobs   *fakeBlobs
	gen     *fakeGenerator
	userID  string
}

func setup(t *testing.T, balance int64) *fixture {
	t.Helper()
	store := memory.New()
	u, err := store.CreateUser(context.Background(), user.User{WalletAddress: "0xAAA"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if balance > 0 {
		if _, _, err := store.Deposit(context.Background(), u.ID, balance, "seed"); err != nil {
			t.Fatalf("seed deposit: %v", err)
		}
	}

	creditService := creditsvc.New(store, nil, nil, nil)
	gen := &fakeGenerator{url: "https://model.example/out.png"}
	blobs := newFakeBlobs()
	svc := New(gen, blobs, store, creditService, 5, 0, nil, nil)

	return &fixture{svc: svc, store: store, credits: creditService, blobs: blobs, gen: gen, userID: u.ID}
}

func TestGenerateSuccess(t *testing.T) {
	f := setup(t, 10)
	ctx := context.Background()

	result, err := f.svc.Generate(ctx, f.userID, "0xAAA", "a pixel castle")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if result.Art.ID == "" || result.Art.UserID != f.userID {
		t.Errorf("art = %+v", result.Art)
	}
	if result.Art.OwnerWallet != "0xAAA" || result.Art.CreatorWallet != "0xAAA" {
		t.Errorf("wallets = %s/%s", result.Art.CreatorWallet, result.Art.OwnerWallet)
	}
	if result.CreditsRemaining != 5 {
		t.Errorf("remaining = %d, want 5", result.CreditsRemaining)
	}
	if result.Transaction.Amount != -5 {
		t.Errorf("transaction amount = %d, want -5", result.Transaction.Amount)
	}

	owned, _ := f.store.ListArtByOwner(ctx, f.userID)
	if len(owned) != 1 {
		t.Errorf("owner has %d pieces, want 1", len(owned))
	}
}

func TestGenerateInsufficientCreditsPrecheck(t *testing.T) {
	f := setup(t, 3)
	ctx := context.Background()

	_, err := f.svc.Generate(ctx, f.userID, "0xAAA", "a pixel castle")
	if !errs.Is(err, errs.CodeInsufficientCredits) {
		t.Fatalf("error = %v, want INSUFFICIENT_CREDITS", err)
	}
	if f.gen.callCount != 0 {
		t.Error("model was called despite insufficient balance")
	}

	balance, _ := f.credits.GetBalance(ctx, f.userID)
	if balance != 3 {
		t.Errorf("balance = %d, want 3", balance)
	}
	if items, _, _ := f.store.ListArt(ctx, 0, 10); len(items) != 0 {
		t.Errorf("%d art rows created on failed generation", len(items))
	}
}

func TestGenerateModelFailureChargesNothing(t *testing.T) {
	f := setup(t, 10)
	f.gen.url = ""
	f.gen.err = errors.New("model exploded")
	ctx := context.Background()

	_, err := f.svc.Generate(ctx, f.userID, "0xAAA", "a pixel castle")
	if !errs.Is(err, errs.CodeModelError) {
		t.Fatalf("error = %v, want MODEL_ERROR", err)
	}

	balance, _ := f.credits.GetBalance(ctx, f.userID)
	if balance != 10 {
		t.Errorf("balance = %d, want 10", balance)
	}
	if items, _, _ := f.store.ListArt(ctx, 0, 10); len(items) != 0 {
		t.Errorf("%d art rows survived a model failure", len(items))
	}
}

func TestGenerateDebitFailureRollsBack(t *testing.T) {
	f := setup(t, 5)
	ctx := context.Background()

	// Drain the balance mid-flight so the precheck passes but the debit
	// after generation fails.
	f.gen.onCall = func() {
		if _, err := f.store.Debit(ctx, f.userID, 5, "drain"); err != nil {
			t.Errorf("drain debit: %v", err)
		}
	}

	_, err := f.svc.Generate(ctx, f.userID, "0xAAA", "a pixel castle")
	if !errs.Is(err, errs.CodeInsufficientCredits) {
		t.Fatalf("error = %v, want INSUFFICIENT_CREDITS", err)
	}

	if items, _, _ := f.store.ListArt(ctx, 0, 10); len(items) != 0 {
		t.Errorf("%d art rows survived a failed debit", len(items))
	}
	if len(f.blobs.deleted) != 1 {
		t.Errorf("blob deletions = %v, want the generated image removed", f.blobs.deleted)
	}
	if len(f.blobs.objects) != 0 {
		t.Errorf("%d blobs left behind", len(f.blobs.objects))
	}
}

func TestGenerateRejectsEmptyPrompt(t *testing.T) {
	f := setup(t, 10)

	_, err := f.svc.Generate(context.Background(), f.userID, "0xAAA", "  ")
	if !errs.Is(err, errs.CodeInvalidInput) {
		t.Fatalf("error = %v, want INVALID_INPUT", err)
	}
}

func TestTitleFromPrompt(t *testing.T) {
	short := "a castle"
	if got := titleFromPrompt(short); got != short {
		t.Errorf("short title = %q", got)
	}

	long := "a very long and detailed prompt describing a sprawling pixel art castle on a cliff at sunset"
	got := titleFromPrompt(long)
	if len(got) > 64 {
		t.Errorf("long title not truncated: %q", got)
	}
}
