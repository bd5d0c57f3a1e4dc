package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/PixelMint-Labs/art_layer/internal/app/services/users"
	"github.com/PixelMint-Labs/art_layer/internal/app/storage/memory"
	"github.com/PixelMint-Labs/art_layer/internal/logging"
)

func newAuthTestSetup(t *testing.T) (*users.Service, http.Handler) {
	t.Helper()
	userService := users.New(memory.New(), nil)
	userService.ConfigureTokens("test-secret", time.Hour)

	auth := NewAuthMiddleware(userService, logging.New("test"))
	handler := auth.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := GetUser(r.Context())
		if !ok {
			t.Error("no user in context behind auth middleware")
		}
		w.Write([]byte(u.WalletAddress))
	}))
	return userService, handler
}

func TestAuthMiddlewareWalletCredential(t *testing.T) {
	userService, handler := newAuthTestSetup(t)
	if _, _, err := userService.Authenticate(context.Background(), "0xAAA"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer 0xAAA")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "0xAAA" {
		t.Errorf("resolved wallet = %s", rec.Body.String())
	}
}

func TestAuthMiddlewareSessionToken(t *testing.T) {
	userService, handler := newAuthTestSetup(t)
	u, _, err := userService.Authenticate(context.Background(), "0xAAA")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	token, err := userService.IssueToken(u)
	if err != nil || token == "" {
		t.Fatalf("IssueToken: %q %v", token, err)
	}

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestAuthMiddlewareRejections(t *testing.T) {
	userService, handler := newAuthTestSetup(t)
	userService.Authenticate(context.Background(), "0xAAA")

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"empty credential", "Bearer "},
		{"unknown wallet", "Bearer 0xNOBODY"},
		{"garbage token", "Bearer a.b.c"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
			var body struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if body.Error.Code != "UNAUTHENTICATED" {
				t.Errorf("code = %s", body.Error.Code)
			}
		})
	}
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	limiter := NewRateLimiter(1, 2, logging.New("test"))
	handler := limiter.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", last)
	}

	// A different caller has its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("fresh caller status = %d, want 200", rec.Code)
	}
}

func TestRateLimiterSweepBoundsMap(t *testing.T) {
	limiter := NewRateLimiter(1, 1, logging.New("test"))
	handler := limiter.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = "10.0.0." + string(rune('1'+i)) + ":1234"
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	limiter.sweep(10)
	if len(limiter.limiters) != 5 {
		t.Errorf("sweep under bound dropped entries, map size = %d", len(limiter.limiters))
	}

	limiter.sweep(3)
	if len(limiter.limiters) != 0 {
		t.Errorf("sweep over bound kept %d entries, want 0", len(limiter.limiters))
	}
}

func TestCORSPreflight(t *testing.T) {
	cors := NewCORSMiddleware([]string{"https://app.example"})
	handler := cors.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Errorf("allow-origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin got allow-origin = %q", got)
	}
}
