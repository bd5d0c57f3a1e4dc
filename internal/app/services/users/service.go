// Package users resolves wallet credentials to application identities.
package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"

	"github.com/PixelMint-Labs/art_layer/internal/app/domain/user"
	"github.com/PixelMint-Labs/art_layer/internal/app/storage"
	apperrors "github.com/PixelMint-Labs/art_layer/internal/errors"
	"github.com/PixelMint-Labs/art_layer/internal/logging"
)

// Service resolves wallet addresses to users and issues session tokens.
type Service struct {
	store       storage.UserStore
	log         *logging.Logger
	cache       *redis.Client
	cacheTTL    time.Duration
	tokenSecret []byte
	tokenTTL    time.Duration
}

// New constructs a user service.
func New(store storage.UserStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.New("users")
	}
	return &Service{store: store, log: log, tokenTTL: 24 * time.Hour}
}

// AttachCache wires an optional short-TTL wallet lookup cache. The
// wallet-to-user mapping is immutable once created, so caching it never
// serves a stale identity.
func (s *Service) AttachCache(cache *redis.Client, ttl time.Duration) {
	s.cache = cache
	if ttl > 0 {
		s.cacheTTL = ttl
	} else {
		s.cacheTTL = 30 * time.Second
	}
}

// ConfigureTokens enables session token issuance with the given HMAC secret.
func (s *Service) ConfigureTokens(secret string, ttl time.Duration) {
	s.tokenSecret = []byte(secret)
	if ttl > 0 {
		s.tokenTTL = ttl
	}
}

// Authenticate resolves wallet to a user, creating the user plus its
// zero-balance credit account on first sight. The second return reports
// whether the user was just created.
func (s *Service) Authenticate(ctx context.Context, wallet string) (user.User, bool, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return user.User{}, false, apperrors.Unauthenticated("Wallet address is required")
	}

	existing, err := s.lookup(ctx, wallet)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return user.User{}, false, apperrors.Internal("look up user", err)
	}

	created, err := s.store.CreateUser(ctx, user.User{WalletAddress: wallet})
	if err != nil {
		// Lost the race against a concurrent first-auth for the same wallet.
		if errors.Is(err, storage.ErrWalletExists) {
			existing, lookupErr := s.store.GetUserByWallet(ctx, wallet)
			if lookupErr != nil {
				return user.User{}, false, apperrors.Internal("look up user", lookupErr)
			}
			return existing, false, nil
		}
		return user.User{}, false, apperrors.Internal("create user", err)
	}

	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"user_id": created.ID,
	}).Info("user created")
	return created, true, nil
}

// Resolve maps a wallet credential to its user. Unlike Authenticate it never
// creates; an unknown wallet reads as unauthenticated.
func (s *Service) Resolve(ctx context.Context, wallet string) (user.User, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return user.User{}, apperrors.Unauthenticated("")
	}

	u, err := s.lookup(ctx, wallet)
	if errors.Is(err, storage.ErrNotFound) {
		return user.User{}, apperrors.Unauthenticated("Unknown wallet address")
	}
	if err != nil {
		return user.User{}, apperrors.Internal("look up user", err)
	}
	return u, nil
}

// Get fetches a user by identifier.
func (s *Service) Get(ctx context.Context, id string) (user.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return user.User{}, apperrors.NotFound("user")
	}
	if err != nil {
		return user.User{}, apperrors.Internal("look up user", err)
	}
	return u, nil
}

func (s *Service) lookup(ctx context.Context, wallet string) (user.User, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey(wallet)).Bytes(); err == nil {
			var u user.User
			if json.Unmarshal(cached, &u) == nil && u.ID != "" {
				return u, nil
			}
		}
	}

	u, err := s.store.GetUserByWallet(ctx, wallet)
	if err != nil {
		return user.User{}, err
	}

	if s.cache != nil {
		if data, marshalErr := json.Marshal(u); marshalErr == nil {
			if err := s.cache.Set(ctx, cacheKey(wallet), data, s.cacheTTL).Err(); err != nil {
				s.log.WithError(err).Debug("identity cache write failed")
			}
		}
	}
	return u, nil
}

func cacheKey(wallet string) string {
	return "identity:" + wallet
}

type sessionClaims struct {
	Wallet string `json:"wallet_address"`
	jwt.RegisteredClaims
}

// IssueToken returns a signed short-lived session token for the user, or ""
// when tokens are not configured.
func (s *Service) IssueToken(u user.User) (string, error) {
	if len(s.tokenSecret) == 0 {
		return "", nil
	}

	now := time.Now()
	claims := sessionClaims{
		Wallet: u.WalletAddress,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.tokenSecret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a session token and returns the wallet address it was
// issued for.
func (s *Service) ParseToken(tokenString string) (string, error) {
	if len(s.tokenSecret) == 0 {
		return "", fmt.Errorf("session tokens not configured")
	}

	token, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.tokenSecret, nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(*sessionClaims)
	if !ok || claims.Wallet == "" {
		return "", fmt.Errorf("invalid session claims")
	}
	return claims.Wallet, nil
}
