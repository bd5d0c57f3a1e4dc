// Package httpapi exposes the application services over HTTP.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/PixelMint-Labs/art_layer/internal/app"
	"github.com/PixelMint-Labs/art_layer/internal/app/domain/credits"
	apperrors "github.com/PixelMint-Labs/art_layer/internal/errors"
	"github.com/PixelMint-Labs/art_layer/internal/logging"
	"github.com/PixelMint-Labs/art_layer/internal/middleware"
)

const maxBodyBytes = 64 * 1024

// Handler serves the HTTP API.
type Handler struct {
	app *app.Application
	log *logging.Logger
}

// NewHandler creates the API handler.
func NewHandler(application *app.Application) *Handler {
	return &Handler{app: application, log: application.Log}
}

// Router builds the full route table with the middleware chain applied.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.LoggingMiddleware(h.log))
	r.Use(middleware.MetricsMiddleware("art_layer", h.app.Metrics))

	cors := middleware.NewCORSMiddleware(h.app.Config.CORS.AllowedOrigins)
	r.Use(cors.Handler)

	limiter := middleware.NewRateLimiter(
		h.app.Config.RateLimit.RequestsPerSecond, h.app.Config.RateLimit.Burst, h.log)
	limiter.StartCleanup(5*time.Minute, 10000)
	r.Use(limiter.Handler)

	r.HandleFunc("/healthz", h.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", h.app.Metrics.Handler()).Methods(http.MethodGet)

	// Public routes.
	r.HandleFunc("/auth", h.handleAuth).Methods(http.MethodPost)
	r.HandleFunc("/art", h.handleListArt).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}/wallet", h.handleUserWallet).Methods(http.MethodGet)
	r.HandleFunc("/marketplace/listings", h.handleListListings).Methods(http.MethodGet)

	// Authenticated routes.
	auth := middleware.NewAuthMiddleware(h.app.Users, h.log)
	protected := r.NewRoute().Subrouter()
	protected.Use(auth.Handler)

	protected.HandleFunc("/auth/me", h.handleMe).Methods(http.MethodGet)
	protected.HandleFunc("/art/user", h.handleMyArt).Methods(http.MethodGet)
	protected.HandleFunc("/art/{id}", h.handleDeleteArt).Methods(http.MethodDelete)
	protected.HandleFunc("/generate", h.handleGenerate).Methods(http.MethodPost)
	protected.HandleFunc("/chat", h.handleChat).Methods(http.MethodPost)
	protected.HandleFunc("/credits/balance", h.handleBalance).Methods(http.MethodGet)
	protected.HandleFunc("/credits/deposit", h.handleDeposit).Methods(http.MethodPost)
	protected.HandleFunc("/credits/transactions", h.handleTransactions).Methods(http.MethodGet)
	protected.HandleFunc("/nft/mint", h.handleMint).Methods(http.MethodPost)
	protected.HandleFunc("/nft/update", h.handleMintUpdate).Methods(http.MethodPost)
	protected.HandleFunc("/marketplace/listings", h.handleCreateListing).Methods(http.MethodPost)
	protected.HandleFunc("/marketplace/listings/{id}", h.handleCancelListing).Methods(http.MethodDelete)
	protected.HandleFunc("/marketplace/purchase/{id}", h.handlePurchase).Methods(http.MethodPost)

	// Registered after /art/user so the template match order keeps the
	// static segment ahead of the id wildcard.
	r.HandleFunc("/art/{id}", h.handleGetArt).Methods(http.MethodGet)

	return r
}

// --- auth -------------------------------------------------------------------

type authRequest struct {
	WalletAddress string `json:"wallet_address"`
}

func (h *Handler) handleAuth(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	u, isNew, err := h.app.Users.Authenticate(r.Context(), req.WalletAddress)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	resp := map[string]interface{}{
		"user":        u,
		"is_new_user": isNew,
	}
	if token, err := h.app.Users.IssueToken(u); err == nil && token != "" {
		resp["token"] = token
	}

	status := http.StatusOK
	if isNew {
		status = http.StatusCreated
	}
	h.respondJSON(w, status, resp)
}

// handleUserWallet resolves a user ID to its wallet address so listing
// sellers can be displayed without exposing the full user record.
func (h *Handler) handleUserWallet(w http.ResponseWriter, r *http.Request) {
	u, err := h.app.Users.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"wallet_address": u.WalletAddress})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.GetUser(r.Context())
	if !ok {
		h.respondError(w, r, apperrors.Unauthenticated(""))
		return
	}
	h.respondJSON(w, http.StatusOK, u)
}

// --- art --------------------------------------------------------------------

func (h *Handler) handleListArt(w http.ResponseWriter, r *http.Request) {
	offset, limit := pageParams(r, 20)

	page, err := h.app.Art.List(r.Context(), offset, limit)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"data":     page.Items,
		"total":    page.Total,
		"has_more": page.Offset+len(page.Items) < page.Total,
	})
}

func (h *Handler) handleGetArt(w http.ResponseWriter, r *http.Request) {
	detail, err := h.app.Art.GetDetail(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, detail)
}

func (h *Handler) handleMyArt(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.GetUser(r.Context())
	items, err := h.app.Art.ListByOwner(r.Context(), u.ID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, items)
}

func (h *Handler) handleDeleteArt(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.GetUser(r.Context())
	if err := h.app.Art.Delete(r.Context(), mux.Vars(r)["id"], u.ID); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// --- generation and chat ----------------------------------------------------

type generateRequest struct {
	Prompt string `json:"prompt"`
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	u, _ := middleware.GetUser(r.Context())
	result, err := h.app.Generation.Generate(r.Context(), u.ID, u.WalletAddress, req.Prompt)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, result)
}

type chatRequest struct {
	Message string `json:"message"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	u, _ := middleware.GetUser(r.Context())
	result, err := h.app.Chat.Send(r.Context(), u.ID, req.Message)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

// --- credits ----------------------------------------------------------------

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.GetUser(r.Context())
	balance, err := h.app.Credits.GetBalance(r.Context(), u.ID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]int64{"credits_balance": balance})
}

type depositRequest struct {
	Amount          int64  `json:"amount"`
	TransactionHash string `json:"transaction_hash"`
}

func (h *Handler) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	u, _ := middleware.GetUser(r.Context())
	tx, applied, err := h.app.Credits.Deposit(r.Context(), u.ID, req.Amount, req.TransactionHash)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"applied":     applied,
		"transaction": tx,
	})
}

func (h *Handler) handleTransactions(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.GetUser(r.Context())

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			h.respondError(w, r, apperrors.InvalidInput("limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	txs, err := h.app.Credits.History(r.Context(), u.ID, limit, r.URL.Query().Get("cursor"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if txs == nil {
		txs = []credits.Transaction{}
	}
	h.respondJSON(w, http.StatusOK, txs)
}

// --- nft and marketplace ----------------------------------------------------

type mintRequest struct {
	ArtID string `json:"art_id"`
}

func (h *Handler) handleMint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if req.ArtID == "" {
		h.respondError(w, r, apperrors.InvalidInput("art_id is required"))
		return
	}

	u, _ := middleware.GetUser(r.Context())
	piece, metadata, err := h.app.NFT.PrepareMint(r.Context(), req.ArtID, u.ID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"art":      piece,
		"metadata": metadata,
	})
}

type mintUpdateRequest struct {
	ArtID            string `json:"art_id"`
	MintedNFTAddress string `json:"minted_nft_address"`
	MintedTokenURI   string `json:"minted_token_uri"`
	Signature        string `json:"signature"`
}

func (h *Handler) handleMintUpdate(w http.ResponseWriter, r *http.Request) {
	var req mintUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if req.ArtID == "" {
		h.respondError(w, r, apperrors.InvalidInput("art_id is required"))
		return
	}

	u, _ := middleware.GetUser(r.Context())
	piece, err := h.app.NFT.ConfirmMint(r.Context(), req.ArtID, u.ID,
		req.MintedNFTAddress, req.MintedTokenURI, req.Signature)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"art":     piece,
	})
}

type createListingRequest struct {
	ArtID        string          `json:"art_id"`
	Price        decimal.Decimal `json:"price"`
	TokenAccount string          `json:"token_account"`
}

func (h *Handler) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	var req createListingRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if req.ArtID == "" {
		h.respondError(w, r, apperrors.InvalidInput("art_id is required"))
		return
	}

	u, _ := middleware.GetUser(r.Context())
	listing, err := h.app.NFT.CreateListing(r.Context(), req.ArtID, u.ID, req.Price, req.TokenAccount)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, listing)
}

func (h *Handler) handleListListings(w http.ResponseWriter, r *http.Request) {
	offset, limit := pageParams(r, 20)
	activeOnly := r.URL.Query().Get("active") != "false"

	page, err := h.app.NFT.ListListings(r.Context(), offset, limit, activeOnly)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"data":     page.Items,
		"total":    page.Total,
		"has_more": page.Offset+len(page.Items) < page.Total,
	})
}

func (h *Handler) handleCancelListing(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.GetUser(r.Context())
	listing, err := h.app.NFT.CancelListing(r.Context(), mux.Vars(r)["id"], u.ID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"listing": listing,
	})
}

type purchaseRequest struct {
	Signature string `json:"signature"`
}

func (h *Handler) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			h.respondError(w, r, err)
			return
		}
	}

	u, _ := middleware.GetUser(r.Context())
	result, err := h.app.NFT.Purchase(r.Context(), mux.Vars(r)["id"], u.ID, req.Signature)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"listing": result.Listing,
		"art":     result.Art,
	})
}

// --- misc -------------------------------------------------------------------

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- helpers ----------------------------------------------------------------

// pageParams reads page/limit query parameters and converts them to an
// offset. Pages are 1-based.
func pageParams(r *http.Request, defaultLimit int) (offset, limit int) {
	limit = defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			page = parsed
		}
	}
	return (page - 1) * limit, limit
}

func decodeJSON(r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return apperrors.InvalidInput(fmt.Sprintf("Invalid request body: %v", err))
	}
	return nil
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.WithError(err).Error("encode response failed")
	}
}

type errorBody struct {
	Code    apperrors.ErrorCode    `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// respondError writes the unified error envelope, logging server-side faults
// at error level and client faults at debug.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	serviceErr := apperrors.GetServiceError(err)
	if serviceErr == nil {
		serviceErr = apperrors.Internal("", err)
	}

	entry := h.log.WithContext(r.Context()).WithError(err)
	if serviceErr.HTTPStatus >= http.StatusInternalServerError {
		entry.Errorf("%s %s failed", r.Method, r.URL.Path)
	} else {
		entry.Debugf("%s %s rejected", r.Method, r.URL.Path)
	}

	h.respondJSON(w, serviceErr.HTTPStatus, map[string]interface{}{
		"error": errorBody{
			Code:    serviceErr.Code,
			Message: serviceErr.Message,
			Details: serviceErr.Details,
		},
	})
}
