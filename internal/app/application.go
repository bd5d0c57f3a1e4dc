// Package app wires the services over their storage and collaborator
// interfaces.
package app

import (
	"github.com/go-redis/redis/v8"

	"github.com/PixelMint-Labs/art_layer/internal/app/services/art"
	"github.com/PixelMint-Labs/art_layer/internal/app/services/chat"
	"github.com/PixelMint-Labs/art_layer/internal/app/services/credits"
	"github.com/PixelMint-Labs/art_layer/internal/app/services/generation"
	"github.com/PixelMint-Labs/art_layer/internal/app/services/nft"
	"github.com/PixelMint-Labs/art_layer/internal/app/services/users"
	"github.com/PixelMint-Labs/art_layer/internal/app/storage"
	"github.com/PixelMint-Labs/art_layer/internal/app/storage/memory"
	"github.com/PixelMint-Labs/art_layer/internal/chain"
	"github.com/PixelMint-Labs/art_layer/internal/chatmodel"
	"github.com/PixelMint-Labs/art_layer/internal/config"
	"github.com/PixelMint-Labs/art_layer/internal/imagegen"
	"github.com/PixelMint-Labs/art_layer/internal/logging"
	"github.com/PixelMint-Labs/art_layer/internal/metrics"
	"github.com/PixelMint-Labs/art_layer/internal/objectstore"
)

// Stores bundles the persistence interfaces the application runs on. Nil
// fields default to a shared in-memory store.
type Stores struct {
	Users    storage.UserStore
	Credits  storage.CreditStore
	Art      storage.ArtStore
	Listings storage.ListingStore
}

// Collaborators bundles the external systems the application talks to. Every
// field is optional; nil disables the corresponding capability.
type Collaborators struct {
	Generator imagegen.Generator
	Blobs     objectstore.Store
	Chat      chatmodel.Responder
	Verifier  chain.Verifier
	Cache     *redis.Client
}

// Application is the composition root of all services.
type Application struct {
	Config  *config.Config
	Log     *logging.Logger
	Metrics *metrics.Metrics

	Users      *users.Service
	Credits    *credits.Service
	Art        *art.Service
	Generation *generation.Service
	Chat       *chat.Service
	NFT        *nft.Service
}

// New builds the application. Missing stores fall back to a single shared
// in-memory store so tests and local runs need no database.
func New(cfg *config.Config, stores Stores, collab Collaborators) *Application {
	if cfg == nil {
		cfg = config.Default()
	}

	var mem *memory.Store
	fallback := func() *memory.Store {
		if mem == nil {
			mem = memory.New()
		}
		return mem
	}
	if stores.Users == nil {
		stores.Users = fallback()
	}
	if stores.Credits == nil {
		stores.Credits = fallback()
	}
	if stores.Art == nil {
		stores.Art = fallback()
	}
	if stores.Listings == nil {
		stores.Listings = fallback()
	}

	log := logging.New("art_layer")
	m := metrics.New("art_layer")

	userService := users.New(stores.Users, log)
	if collab.Cache != nil {
		userService.AttachCache(collab.Cache, cfg.Redis.CacheTTL)
	}
	if cfg.Auth.TokenSecret != "" {
		userService.ConfigureTokens(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL)
	}

	creditService := credits.New(stores.Credits, collab.Verifier, log, m)
	artService := art.New(stores.Art, stores.Listings, collab.Blobs, log)
	generationService := generation.New(collab.Generator, collab.Blobs, stores.Art,
		creditService, cfg.Costs.Generation, cfg.ImageGen.Timeout, log, m)
	chatService := chat.New(collab.Chat, creditService, cfg.Costs.Chat, log, m)
	nftService := nft.New(stores.Art, stores.Listings, stores.Users, collab.Verifier, log, m)

	return &Application{
		Config:     cfg,
		Log:        log,
		Metrics:    m,
		Users:      userService,
		Credits:    creditService,
		Art:        artService,
		Generation: generationService,
		Chat:       chatService,
		NFT:        nftService,
	}
}
