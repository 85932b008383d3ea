// main is the entry point of the GameQuery application.
// It queries a single game server, runs history maintenance, or serves the HTTP query API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/gamequery/internal/config"
	"github.com/woozymasta/gamequery/internal/engine"
	"github.com/woozymasta/gamequery/internal/fake"
	"github.com/woozymasta/gamequery/internal/games"
	"github.com/woozymasta/gamequery/internal/geoip"
	"github.com/woozymasta/gamequery/internal/logger"
	"github.com/woozymasta/gamequery/internal/maintenance"
	"github.com/woozymasta/gamequery/internal/models"
	"github.com/woozymasta/gamequery/internal/output"
	"github.com/woozymasta/gamequery/internal/resolve"
	"github.com/woozymasta/gamequery/internal/server"
	"github.com/woozymasta/gamequery/internal/sink"
	"github.com/woozymasta/gamequery/internal/storage"
)

func main() {
	os.Exit(run(config.Parse()))
}

func run(cfg *config.Config) int {
	closer := logger.Setup(cfg.Logger)
	defer func() { _ = closer.Close() }()

	format, err := output.ParseFormat(cfg.Query.Format)
	if err != nil {
		log.Error().Err(err).Msg("Invalid output format")
		return 1
	}

	if cfg.Query.ListGames {
		if err := output.WriteGames(os.Stdout, games.All(), format); err != nil {
			log.Error().Err(err).Msg("Failed to print games")
			return 1
		}
		return 0
	}

	// GeoIP
	var geoProvider *geoip.Provider
	if cfg.GeoIP.Path != "" {
		if err := geoip.EnsureDB(cfg.GeoIP.Path, cfg.GeoIP.URL, cfg.GeoIP.Interval); err != nil {
			log.Error().Err(err).Msg("Failed to download GeoIP database")
		}

		geoProvider, err = geoip.Open(cfg.GeoIP.Path)
		if err != nil {
			log.Error().Err(err).Msg("Failed to open GeoIP database, country detection disabled")
			geoProvider = nil
		}
		defer func() { _ = geoProvider.Close() }()
	}

	// Database
	var store *storage.Repository
	if cfg.Storage.Path != "" {
		store, err = storage.New(cfg.Storage.Path)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize database")
			return 1
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Error().Err(err).Msg("Error closing database")
			}
		}()
	}

	// data generation or database maintenance
	if cfg.Storage.GenerateCount > 0 {
		fake.GenerateData(store, cfg.Storage.GenerateCount)
		return 0
	} else if maintenance.Run(cfg, store, geoProvider) {
		return 0
	}

	// Redis
	var publisher *sink.Publisher
	if cfg.Redis.Addr != "" {
		publisher, err = sink.New(cfg.Redis)
		if err != nil {
			log.Error().Err(err).Msg("Failed to connect to Redis, publishing disabled")
			publisher = nil
		}
		defer func() { _ = publisher.Close() }()
	}

	resolver := resolve.New(cfg.Timeouts.Read)

	if cfg.Query.Serve {
		return serve(cfg, store, geoProvider, publisher, resolver)
	}

	return query(cfg, format, store, geoProvider, publisher, resolver)
}

// query runs a single query and prints its result.
func query(
	cfg *config.Config, format output.Format,
	store *storage.Repository, geo *geoip.Provider, pub *sink.Publisher, resolver *resolve.Resolver,
) int {
	mode, err := output.ParseMode(cfg.Query.Mode)
	if err != nil {
		log.Error().Err(err).Msg("Invalid output mode")
		return 1
	}

	game, err := games.Lookup(cfg.Query.Game)
	if err != nil {
		log.Error().Err(err).Msg("Use --list-games to see supported games")
		return 1
	}

	opts := engine.Options{
		Timeouts:   cfg.Timeouts.TimeoutSettings(),
		Extra:      cfg.Extra.ExtraSettings(),
		BufferSize: cfg.A2S.BufferSize,
	}

	ip, err := resolver.Resolve(cfg.Query.IP, &opts.Extra)
	if err != nil {
		log.Error().Err(err).Str("host", cfg.Query.IP).Msg("Failed to resolve server address")
		return 1
	}

	port := cfg.Query.Port
	if port == 0 {
		port = game.Port
	}

	res, queryErr := engine.Query(game, ip, port, opts)
	if res != nil {
		res.Country = geo.Country(ip)
	}

	if store != nil {
		rec := models.NewRecord(game.ID, ip.String(), int(port), opts.Extra.Hostname, res, queryErr)
		if _, err := store.InsertRecord(rec); err != nil {
			log.Error().Err(err).Msg("Failed to save query to DB")
		}
	}

	if queryErr != nil {
		log.Error().
			Err(queryErr).
			Str("game", game.ID).
			Str("ip", ip.String()).
			Uint16("port", port).
			Msg("Query failed")
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pub.Publish(ctx, res); err != nil {
		log.Error().Err(err).Msg("Failed to publish server state")
	}

	if err := output.Write(os.Stdout, res, format, mode); err != nil {
		log.Error().Err(err).Msg("Failed to print result")
		return 1
	}

	return 0
}

// queryBudget bounds one live query: the challenge and status exchanges may
// each use every attempt.
func queryBudget(t config.Timeouts) time.Duration {
	return 2 * t.TimeoutSettings().ExchangeBudget()
}

// serve runs the HTTP API until SIGINT or SIGTERM.
func serve(
	cfg *config.Config,
	store *storage.Repository, geo *geoip.Provider, pub *sink.Publisher, resolver *resolve.Resolver,
) int {
	srvHandler := server.New(cfg, store, geo, pub, resolver)

	// Background queue
	srvHandler.StartWorkers()

	budget := queryBudget(cfg.Timeouts)

	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           srvHandler.Run(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      budget + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	failed := make(chan error, 1)
	go func() {
		log.Info().Str("address", cfg.Server.Address).Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			failed <- err
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	code := 0
	select {
	case <-quit:
	case err := <-failed:
		log.Error().Err(err).Msg("Server failed")
		code = 1
	}

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), budget+5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop workers (wait queue done)
	srvHandler.StopWorkers()

	log.Info().Msg("Server exited")
	return code
}
