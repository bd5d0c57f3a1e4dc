// Package generation orchestrates AI image generation end to end: model call,
// image re-hosting, art record creation and credit debit.
package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/PixelMint-Labs/art_layer/internal/app/domain/art"
	"github.com/PixelMint-Labs/art_layer/internal/app/domain/credits"
	creditsvc "github.com/PixelMint-Labs/art_layer/internal/app/services/credits"
	"github.com/PixelMint-Labs/art_layer/internal/app/storage"
	apperrors "github.com/PixelMint-Labs/art_layer/internal/errors"
	"github.com/PixelMint-Labs/art_layer/internal/imagegen"
	"github.com/PixelMint-Labs/art_layer/internal/logging"
	"github.com/PixelMint-Labs/art_layer/internal/metrics"
	"github.com/PixelMint-Labs/art_layer/internal/objectstore"
)

// MaxPromptLength bounds user prompts before they reach the model.
const MaxPromptLength = 1000

// DebitReasonGeneration is the ledger reason recorded for generation debits.
const DebitReasonGeneration = "image_generation"

// Result is the outcome of a successful generation.
type Result struct {
	Art              art.Piece          `json:"art"`
	CreditsRemaining int64              `json:"credits_remaining"`
	Transaction      credits.Transaction `json:"transaction"`
}

// Service runs the generation pipeline.
type Service struct {
	generator imagegen.Generator
	blobs     objectstore.Store
	artStore  storage.ArtStore
	credits   *creditsvc.Service
	cost      int64
	timeout   time.Duration
	log       *logging.Logger
	metrics   *metrics.Metrics
}

// New constructs a generation service. cost is the per-image credit price;
// timeout bounds the whole model call including polling.
func New(generator imagegen.Generator, blobs objectstore.Store, artStore storage.ArtStore,
	creditService *creditsvc.Service, cost int64, timeout time.Duration,
	log *logging.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = logging.New("generation")
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Service{
		generator: generator,
		blobs:     blobs,
		artStore:  artStore,
		credits:   creditService,
		cost:      cost,
		timeout:   timeout,
		log:       log,
		metrics:   m,
	}
}

// Cost returns the credit price of one generation.
func (s *Service) Cost() int64 { return s.cost }

// Generate runs the full pipeline for one prompt. The user is only charged
// after the art record exists; if the debit fails the record and the stored
// image are rolled back so no art survives unpaid.
func (s *Service) Generate(ctx context.Context, userID, wallet, prompt string) (Result, error) {
	if s.generator == nil {
		return Result{}, apperrors.ModelFailure("image model not configured", nil)
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Result{}, apperrors.InvalidInput("Prompt is required")
	}
	if len(prompt) > MaxPromptLength {
		return Result{}, apperrors.InvalidInput(fmt.Sprintf("Prompt exceeds %d characters", MaxPromptLength))
	}

	// Cheap precheck so obviously broke users never reach the model. The
	// debit after generation is still the authoritative gate.
	balance, err := s.credits.GetBalance(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	if balance < s.cost {
		return Result{}, apperrors.InsufficientCredits(s.cost, balance)
	}

	modelCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	modelURL, err := s.generator.Generate(modelCtx, prompt)
	if err != nil {
		s.recordGeneration("model_error")
		s.recordUpstream("imagegen", "error")
		if modelCtx.Err() == context.DeadlineExceeded {
			return Result{}, apperrors.Timeout("image generation")
		}
		return Result{}, apperrors.ModelFailure("generate image", err)
	}
	s.recordUpstream("imagegen", "ok")

	imageURL, storageKey, err := s.rehost(ctx, modelURL)
	if err != nil {
		s.recordGeneration("storage_error")
		return Result{}, err
	}

	piece, err := s.artStore.CreateArt(ctx, art.Piece{
		UserID:        userID,
		Title:         titleFromPrompt(prompt),
		ImageURL:      imageURL,
		StorageKey:    storageKey,
		CreatorWallet: wallet,
		OwnerWallet:   wallet,
	})
	if err != nil {
		s.recordGeneration("storage_error")
		s.compensateBlob(ctx, storageKey)
		return Result{}, apperrors.Internal("create art record", err)
	}

	tx, err := s.credits.Debit(ctx, userID, s.cost, DebitReasonGeneration)
	if err != nil {
		// Balance was drained between the precheck and here. Unwind so
		// the user does not keep art they did not pay for.
		s.compensate(ctx, piece)
		s.recordGeneration("debit_failed")
		return Result{}, err
	}

	remaining, balErr := s.credits.GetBalance(ctx, userID)
	if balErr != nil {
		remaining = balance - s.cost
	}

	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"art_id":      piece.ID,
		"user_id":     userID,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("image generated")
	s.recordGeneration("success")

	return Result{Art: piece, CreditsRemaining: remaining, Transaction: tx}, nil
}

// rehost copies the model output into our own object store so the art does
// not depend on the model provider's ephemeral URLs.
func (s *Service) rehost(ctx context.Context, modelURL string) (string, string, error) {
	if s.blobs == nil {
		return modelURL, "", nil
	}

	data, contentType, err := s.blobs.Fetch(ctx, modelURL)
	if err != nil {
		s.recordUpstream("objectstore", "error")
		return "", "", apperrors.StorageFailure("fetch generated image", err)
	}

	key := fmt.Sprintf("generated/%s.png", uuid.NewString())
	publicURL, err := s.blobs.Upload(ctx, key, data, contentType)
	if err != nil {
		s.recordUpstream("objectstore", "error")
		return "", "", apperrors.StorageFailure("store generated image", err)
	}
	s.recordUpstream("objectstore", "ok")
	return publicURL, key, nil
}

func (s *Service) compensate(ctx context.Context, piece art.Piece) {
	if err := s.artStore.DeleteArt(ctx, piece.ID); err != nil {
		s.log.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"art_id": piece.ID,
		}).Error("compensation failed: art record not removed")
	}
	s.compensateBlob(ctx, piece.StorageKey)
}

func (s *Service) compensateBlob(ctx context.Context, storageKey string) {
	if s.blobs == nil || storageKey == "" {
		return
	}
	if err := s.blobs.Delete(ctx, storageKey); err != nil {
		s.log.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"storage_key": storageKey,
		}).Error("compensation failed: image blob not removed")
	}
}

// titleFromPrompt derives a display title from the first words of the prompt.
func titleFromPrompt(prompt string) string {
	const maxTitle = 60
	if len(prompt) <= maxTitle {
		return prompt
	}
	truncated := prompt[:maxTitle]
	if idx := strings.LastIndex(truncated, " "); idx > 0 {
		truncated = truncated[:idx]
	}
	return truncated + "..."
}

func (s *Service) recordGeneration(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordGeneration(outcome)
	}
}

func (s *Service) recordUpstream(target, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordUpstreamCall(target, outcome)
	}
}
