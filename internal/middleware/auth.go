// Package middleware provides the HTTP middleware chain: authentication,
// CORS, rate limiting and request observability.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/PixelMint-Labs/art_layer/internal/app/domain/user"
	"github.com/PixelMint-Labs/art_layer/internal/app/services/users"
	apperrors "github.com/PixelMint-Labs/art_layer/internal/errors"
	"github.com/PixelMint-Labs/art_layer/internal/logging"
)

type contextKey string

const userContextKey contextKey = "auth_user"

// AuthMiddleware resolves the Authorization header to a user on every
// request. The bearer credential is either a raw wallet address or a signed
// session token; identity is re-resolved fresh each time, never trusted from
// the request body.
type AuthMiddleware struct {
	users  *users.Service
	logger *logging.Logger
}

// NewAuthMiddleware creates the authentication middleware.
func NewAuthMiddleware(userService *users.Service, logger *logging.Logger) *AuthMiddleware {
	return &AuthMiddleware{users: userService, logger: logger}
}

// Handler authenticates the request and stores the resolved user in the
// context.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		credential, err := bearerCredential(r)
		if err != nil {
			writeError(w, err)
			return
		}

		wallet := credential
		if looksLikeToken(credential) {
			parsed, tokenErr := m.users.ParseToken(credential)
			if tokenErr != nil {
				m.logger.LogSecurityEvent(r.Context(), "invalid_session_token", map[string]interface{}{
					"path": r.URL.Path,
				})
				writeError(w, apperrors.Unauthenticated("Invalid session token"))
				return
			}
			wallet = parsed
		}

		u, err := m.users.Resolve(r.Context(), wallet)
		if err != nil {
			m.logger.LogSecurityEvent(r.Context(), "auth_failed", map[string]interface{}{
				"path": r.URL.Path,
			})
			writeError(w, err)
			return
		}

		ctx := WithUser(r.Context(), u)
		ctx = logging.WithUser(ctx, u.ID, u.WalletAddress)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerCredential(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", apperrors.Unauthenticated("Missing Authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", apperrors.Unauthenticated("Invalid Authorization header format")
	}
	return strings.TrimSpace(parts[1]), nil
}

// looksLikeToken distinguishes a JWT from a raw wallet address by the two
// dots of the compact serialization. Wallet addresses never contain dots.
func looksLikeToken(credential string) bool {
	return strings.Count(credential, ".") == 2
}

// WithUser stores the authenticated user in the context.
func WithUser(ctx context.Context, u user.User) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

// GetUser returns the authenticated user, if any.
func GetUser(ctx context.Context) (user.User, bool) {
	u, ok := ctx.Value(userContextKey).(user.User)
	return u, ok
}

// GetUserID returns the authenticated user's ID or "".
func GetUserID(ctx context.Context) string {
	u, ok := GetUser(ctx)
	if !ok {
		return ""
	}
	return u.ID
}

// writeError writes the unified error envelope. Unclassified errors are
// reduced to an internal error first.
func writeError(w http.ResponseWriter, err error) {
	serviceErr := apperrors.GetServiceError(err)
	if serviceErr == nil {
		serviceErr = apperrors.Internal("", err)
	}

	type errorBody struct {
		Code    apperrors.ErrorCode    `json:"code"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details,omitempty"`
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(serviceErr.HTTPStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": errorBody{
			Code:    serviceErr.Code,
			Message: serviceErr.Message,
			Details: serviceErr.Details,
		},
	})
}
