// Command server runs the art layer HTTP service.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"github.com/PixelMint-Labs/art_layer/internal/app"
	"github.com/PixelMint-Labs/art_layer/internal/app/httpapi"
	"github.com/PixelMint-Labs/art_layer/internal/app/storage/postgres"
	"github.com/PixelMint-Labs/art_layer/internal/chain"
	"github.com/PixelMint-Labs/art_layer/internal/chatmodel"
	"github.com/PixelMint-Labs/art_layer/internal/config"
	"github.com/PixelMint-Labs/art_layer/internal/database"
	"github.com/PixelMint-Labs/art_layer/internal/imagegen"
	"github.com/PixelMint-Labs/art_layer/internal/logging"
	"github.com/PixelMint-Labs/art_layer/internal/objectstore"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	// Optional .env for local development; environment wins over file.
	_ = godotenv.Load()

	log := logging.New("server")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Error("configuration invalid")
		os.Exit(1)
	}

	stores, cleanup, err := buildStores(cfg, log)
	if err != nil {
		log.WithError(err).Error("storage initialization failed")
		os.Exit(1)
	}
	defer cleanup()

	collab, err := buildCollaborators(cfg, log)
	if err != nil {
		log.WithError(err).Error("collaborator initialization failed")
		os.Exit(1)
	}

	application := app.New(cfg, stores, collab)
	handler := httpapi.NewHandler(application)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Infof("listening on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("server failed")
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("shutdown incomplete")
	}
}

// buildStores selects PostgreSQL when a database URL is configured and falls
// back to the in-memory store otherwise.
func buildStores(cfg *config.Config, log *logging.Logger) (app.Stores, func(), error) {
	if cfg.Database.URL == "" {
		log.Warn("no database configured, using in-memory store")
		return app.Stores{}, func() {}, nil
	}

	db, err := database.Connect(database.Config{
		URL:          cfg.Database.URL,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return app.Stores{}, nil, err
	}

	if cfg.Database.Migrate {
		if err := database.Migrate(db); err != nil {
			db.Close()
			return app.Stores{}, nil, err
		}
	}

	store := postgres.New(db)
	stores := app.Stores{Users: store, Credits: store, Art: store, Listings: store}
	return stores, func() { db.Close() }, nil
}

func buildCollaborators(cfg *config.Config, log *logging.Logger) (app.Collaborators, error) {
	var collab app.Collaborators

	if cfg.ImageGen.BaseURL != "" {
		generator, err := imagegen.NewClient(imagegen.Config{
			BaseURL:      cfg.ImageGen.BaseURL,
			APIToken:     cfg.ImageGen.APIToken,
			ModelVersion: cfg.ImageGen.ModelVersion,
			PollInterval: cfg.ImageGen.PollInterval,
		}, logging.New("imagegen"))
		if err != nil {
			return app.Collaborators{}, err
		}
		collab.Generator = generator
	} else {
		log.Warn("image generation not configured")
	}

	if cfg.ObjectStore.BaseURL != "" {
		blobs, err := objectstore.NewClient(objectstore.Config{
			BaseURL:    cfg.ObjectStore.BaseURL,
			ServiceKey: cfg.ObjectStore.ServiceKey,
			Bucket:     cfg.ObjectStore.Bucket,
			Timeout:    cfg.ObjectStore.Timeout,
		})
		if err != nil {
			return app.Collaborators{}, err
		}
		collab.Blobs = blobs
	}

	if cfg.ChatModel.BaseURL != "" {
		responder, err := chatmodel.NewClient(chatmodel.Config{
			BaseURL:  cfg.ChatModel.BaseURL,
			APIToken: cfg.ChatModel.APIToken,
			Model:    cfg.ChatModel.Model,
			Timeout:  cfg.ChatModel.Timeout,
		})
		if err != nil {
			return app.Collaborators{}, err
		}
		collab.Chat = responder
	}

	if cfg.Chain.RPCURL != "" {
		verifier, err := chain.NewClient(chain.Config{
			RPCURL:  cfg.Chain.RPCURL,
			Timeout: cfg.Chain.Timeout,
		})
		if err != nil {
			return app.Collaborators{}, err
		}
		collab.Verifier = verifier
	} else {
		log.Warn("chain verification not configured, deposits accepted unverified")
	}

	if cfg.Redis.Addr != "" {
		collab.Cache = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	return collab, nil
}
