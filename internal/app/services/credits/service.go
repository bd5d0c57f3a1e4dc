// Package credits manages user credit balances and the transaction ledger.
package credits

import (
	"context"
	"errors"
	"strings"

	"github.com/PixelMint-Labs/art_layer/internal/app/domain/credits"
	"github.com/PixelMint-Labs/art_layer/internal/app/storage"
	"github.com/PixelMint-Labs/art_layer/internal/chain"
	apperrors "github.com/PixelMint-Labs/art_layer/internal/errors"
	"github.com/PixelMint-Labs/art_layer/internal/logging"
	"github.com/PixelMint-Labs/art_layer/internal/metrics"
)

// DefaultHistoryLimit caps transaction listings when the caller does not ask
// for a specific page size.
const DefaultHistoryLimit = 10

// MaxHistoryLimit bounds how many ledger rows a single request may fetch.
const MaxHistoryLimit = 100

// Service is the credits ledger facade.
type Service struct {
	store    storage.CreditStore
	verifier chain.Verifier
	log      *logging.Logger
	metrics  *metrics.Metrics
}

// New constructs a credits service. The verifier is optional; when nil,
// deposits are accepted on the strength of the transaction hash alone.
func New(store storage.CreditStore, verifier chain.Verifier, log *logging.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = logging.New("credits")
	}
	return &Service{store: store, verifier: verifier, log: log, metrics: m}
}

// GetBalance returns the user's current balance. Users without a credit row
// read as zero.
func (s *Service) GetBalance(ctx context.Context, userID string) (int64, error) {
	balance, err := s.store.GetBalance(ctx, userID)
	if err != nil {
		return 0, apperrors.Internal("read balance", err)
	}
	return balance, nil
}

// History lists the user's ledger entries, newest first. A zero limit means
// DefaultHistoryLimit; cursor is the ID of the last entry of the previous page.
func (s *Service) History(ctx context.Context, userID string, limit int, cursor string) ([]credits.Transaction, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	txs, err := s.store.ListTransactions(ctx, userID, limit, cursor)
	if err != nil {
		return nil, apperrors.Internal("list transactions", err)
	}
	return txs, nil
}

// Deposit records a completed on-chain payment and credits the user. The
// transaction hash is the idempotency key: replaying a hash returns the
// original ledger entry without crediting again.
func (s *Service) Deposit(ctx context.Context, userID string, amount int64, txHash string) (credits.Transaction, bool, error) {
	txHash = strings.TrimSpace(txHash)
	if txHash == "" {
		return credits.Transaction{}, false, apperrors.InvalidInput("Transaction hash is required")
	}
	if amount <= 0 {
		return credits.Transaction{}, false, apperrors.InvalidInput("Deposit amount must be positive")
	}

	if s.verifier != nil {
		confirmed, err := s.verifier.VerifySignature(ctx, txHash)
		if err != nil {
			s.recordUpstream("chain", "error")
			return credits.Transaction{}, false, apperrors.ChainFailure("verify deposit transaction", err)
		}
		s.recordUpstream("chain", "ok")
		if !confirmed {
			return credits.Transaction{}, false, apperrors.InvalidInput("Transaction is not confirmed on chain")
		}
	}

	tx, applied, err := s.store.Deposit(ctx, userID, amount, txHash)
	if err != nil {
		return credits.Transaction{}, false, apperrors.Internal("record deposit", err)
	}

	if applied {
		s.log.WithContext(ctx).WithFields(map[string]interface{}{
			"user_id": userID,
			"amount":  amount,
			"tx_hash": txHash,
		}).Info("deposit credited")
		if s.metrics != nil {
			s.metrics.RecordCreditEvent("deposit")
		}
	} else {
		s.log.WithContext(ctx).WithFields(map[string]interface{}{
			"user_id": userID,
			"tx_hash": txHash,
		}).Info("deposit replayed, no credit applied")
		if s.metrics != nil {
			s.metrics.RecordCreditEvent("deposit_replay")
		}
	}
	return tx, applied, nil
}

// Debit atomically deducts amount from the user's balance and records the
// ledger entry. The balance never goes negative.
func (s *Service) Debit(ctx context.Context, userID string, amount int64, reason string) (credits.Transaction, error) {
	if amount <= 0 {
		return credits.Transaction{}, apperrors.InvalidInput("Debit amount must be positive")
	}

	tx, err := s.store.Debit(ctx, userID, amount, reason)
	if errors.Is(err, storage.ErrInsufficientCredits) {
		available, balErr := s.store.GetBalance(ctx, userID)
		if balErr != nil {
			available = 0
		}
		return credits.Transaction{}, apperrors.InsufficientCredits(amount, available)
	}
	if err != nil {
		return credits.Transaction{}, apperrors.Internal("debit credits", err)
	}

	if s.metrics != nil {
		s.metrics.RecordCreditEvent("debit")
	}
	return tx, nil
}

func (s *Service) recordUpstream(target, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordUpstreamCall(target, outcome)
	}
}
