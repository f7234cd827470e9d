// Package main provides the storefront server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/numba-music/storefront/internal/api/rest"
	"github.com/numba-music/storefront/internal/app/cart"
	"github.com/numba-music/storefront/internal/app/fulfillment"
	"github.com/numba-music/storefront/internal/app/lastplayed"
	"github.com/numba-music/storefront/internal/app/notify"
	"github.com/numba-music/storefront/internal/app/player"
	"github.com/numba-music/storefront/internal/app/playgate"
	"github.com/numba-music/storefront/internal/app/wishlist"
	"github.com/numba-music/storefront/internal/domain/catalog"
	"github.com/numba-music/storefront/internal/infra/audio"
	"github.com/numba-music/storefront/internal/infra/config"
	"github.com/numba-music/storefront/internal/infra/kv"
	"github.com/numba-music/storefront/internal/infra/logger"
	"github.com/numba-music/storefront/internal/infra/spotify"
	"github.com/numba-music/storefront/internal/store"
)

var (
	app        = kingpin.New("numba-server", "Numba storefront server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Pretty: cfg.Logging.Pretty,
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	logger.Init(loggerConfig)

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx := context.Background()

	// Catalog, with hot reload on file change
	provider, err := catalog.NewStaticProvider(cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	defer provider.Close()

	// Client-side state file
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.StatePath), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	state, err := kv.NewFile(cfg.Storage.StatePath)
	if err != nil {
		return fmt.Errorf("failed to open state file: %w", err)
	}

	// Order database
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := store.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	orders := store.NewOrdersRepo(db)
	purchases := store.NewPurchasesRepo(db)

	// Playback core
	gate := playgate.NewLedger(state, playgate.Config{MaxFreePlays: cfg.Playback.MaxFreePlays})
	snapshots := lastplayed.NewStore(state)
	output := audio.NewOutput()
	if !audio.Available {
		zlog.Warn().Msg("Audio backend unavailable in this build; transport endpoints will report errors")
	}
	controller := player.NewController(output, gate, snapshots, player.Config{
		DefaultVolume: cfg.Playback.DefaultVolume,
	})
	defer controller.Close()

	notifier := notify.NewManager()
	defer notifier.Close()
	go notifier.Run(controller.Events())

	// Optional catalog enrichment with Spotify streaming links.
	if cfg.SpotifyEnabled() {
		client, err := spotify.New(ctx, spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
		})
		if err != nil {
			zlog.Warn().Msgf("Spotify enrichment disabled: %v", err)
		} else {
			enriched := client.Enrich(ctx, provider.Releases())
			var linked int
			for _, r := range enriched {
				if r.StreamingLinks.Spotify != "" {
					linked++
				}
			}
			zlog.Info().Msgf("Spotify enrichment done: %d/%d releases linked", linked, len(enriched))
		}
	}

	handler := &rest.Handler{
		Catalog:     provider,
		Player:      controller,
		Gate:        gate,
		Snapshots:   snapshots,
		Cart:        cart.New(state),
		Wishlist:    wishlist.New(state),
		Orders:      orders,
		Purchases:   purchases,
		Fulfillment: fulfillment.NewProcessor(orders, purchases, gate, provider),
		Notify:      notifier,
	}

	// Create server with h2c (HTTP/2 cleartext) support
	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: h2c.NewHandler(handler.Router(), &http2.Server{}),
	}

	serverErrCh := make(chan error, 1)
	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	// Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		return fmt.Errorf("server error: %w", err)
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")
	return nil
}
