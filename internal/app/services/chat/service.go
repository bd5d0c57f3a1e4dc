// Package chat gates chat model access behind the credits ledger.
package chat

import (
	"context"
	"strings"

	creditsvc "github.com/PixelMint-Labs/art_layer/internal/app/services/credits"
	"github.com/PixelMint-Labs/art_layer/internal/chatmodel"
	apperrors "github.com/PixelMint-Labs/art_layer/internal/errors"
	"github.com/PixelMint-Labs/art_layer/internal/logging"
	"github.com/PixelMint-Labs/art_layer/internal/metrics"
)

// MaxMessageLength bounds a single chat message.
const MaxMessageLength = 4000

// DebitReasonChat is the ledger reason recorded for chat debits.
const DebitReasonChat = "chat_message"

// Result is a model reply plus the caller's remaining balance.
type Result struct {
	Reply            string `json:"reply"`
	CreditsRemaining int64  `json:"credits_remaining"`
}

// Service relays messages to the chat model, charging per message.
type Service struct {
	responder chatmodel.Responder
	credits   *creditsvc.Service
	cost      int64
	log       *logging.Logger
	metrics   *metrics.Metrics
}

// New constructs a chat service.
func New(responder chatmodel.Responder, creditService *creditsvc.Service, cost int64,
	log *logging.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = logging.New("chat")
	}
	return &Service{responder: responder, credits: creditService, cost: cost, log: log, metrics: m}
}

// Cost returns the credit price of one message.
func (s *Service) Cost() int64 { return s.cost }

// Send relays one message to the model and debits the caller. The debit runs
// after the model call so a failed call never charges; conversations are not
// persisted.
func (s *Service) Send(ctx context.Context, userID, message string) (Result, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Result{}, apperrors.InvalidInput("Message is required")
	}
	if len(message) > MaxMessageLength {
		return Result{}, apperrors.InvalidInput("Message is too long")
	}

	balance, err := s.credits.GetBalance(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	if balance < s.cost {
		return Result{}, apperrors.InsufficientCredits(s.cost, balance)
	}

	if s.responder == nil {
		return Result{}, apperrors.ModelFailure("chat model not configured", nil)
	}

	reply, err := s.responder.Reply(ctx, message)
	if err != nil {
		s.recordUpstream("chatmodel", "error")
		return Result{}, apperrors.ModelFailure("chat completion", err)
	}
	s.recordUpstream("chatmodel", "ok")

	if _, err := s.credits.Debit(ctx, userID, s.cost, DebitReasonChat); err != nil {
		return Result{}, err
	}

	remaining, balErr := s.credits.GetBalance(ctx, userID)
	if balErr != nil {
		remaining = balance - s.cost
	}
	return Result{Reply: reply, CreditsRemaining: remaining}, nil
}

func (s *Service) recordUpstream(target, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordUpstreamCall(target, outcome)
	}
}
