// Package maintenance provides tools for cleaning and refreshing the query history.
package maintenance

import (
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/gamequery/internal/config"
	"github.com/woozymasta/gamequery/internal/engine"
	"github.com/woozymasta/gamequery/internal/games"
	"github.com/woozymasta/gamequery/internal/geoip"
	"github.com/woozymasta/gamequery/internal/models"
	"github.com/woozymasta/gamequery/internal/storage"
)

// Workers used by the recheck task.
const Workers = 10

// Run checks if any maintenance flags are set and executes the corresponding tasks.
// Returns true if a maintenance task was executed (indicating the program should exit).
func Run(cfg *config.Config, store *storage.Repository, geo *geoip.Provider) bool {
	ran := false

	if cfg.Storage.PruneOlder > 0 {
		ran = true
		log.Info().Dur("older", cfg.Storage.PruneOlder).Msg("Pruning old history...")

		count, err := PruneOlder(store, cfg.Storage.PruneOlder)
		if err != nil {
			log.Error().Err(err).Msg("Failed to prune history")
		} else {
			log.Info().Int64("deleted", count).Msg("Prune finished")
		}
	}

	if cfg.Storage.PruneFailed != "" {
		ran = true
		game := parseGame(cfg.Storage.PruneFailed)
		log.Info().Str("game_filter", game).Msg("Pruning failed queries...")

		count, err := store.DeleteFailed(game)
		if err != nil {
			log.Error().Err(err).Msg("Failed to prune failed queries")
		} else {
			log.Info().Int64("deleted", count).Msg("Prune finished")
		}
	}

	if cfg.Storage.Recheck != "" {
		ran = true
		opts := engine.Options{
			Timeouts:   cfg.Timeouts.TimeoutSettings(),
			Extra:      cfg.Extra.ExtraSettings(),
			BufferSize: cfg.A2S.BufferSize,
		}

		ok, failed, err := Recheck(store, geo, opts, parseGame(cfg.Storage.Recheck))
		if err != nil {
			log.Error().Err(err).Msg("Failed to fetch servers")
		} else {
			log.Info().Int("up", ok).Int("down", failed).Msg("Recheck finished")
		}
	}

	return ran
}

// PruneOlder deletes history older than age.
func PruneOlder(store *storage.Repository, age time.Duration) (int64, error) {
	return store.DeleteOlderThan(time.Now().Add(-age))
}

// Recheck queries every known server of game (all games when empty) again and
// stores the outcome. It returns the number of servers that answered and failed.
func Recheck(store *storage.Repository, geo *geoip.Provider, opts engine.Options, game string) (int, int, error) {
	servers, err := store.GetServers(game)
	if err != nil {
		return 0, 0, err
	}

	if len(servers) == 0 {
		log.Info().Msg("No servers found for maintenance")
		return 0, 0, nil
	}

	log.Info().Int("count", len(servers)).Int("workers", Workers).Msg("Starting recheck task")

	var up, down atomic.Int32
	runWorkerPool(servers, func(s models.ServerRef) {
		if processServer(s, store, geo, opts) {
			up.Add(1)
		} else {
			down.Add(1)
		}
	})

	return int(up.Load()), int(down.Load()), nil
}

// parseGame converts the optional flag value AnyGame to an empty filter.
func parseGame(input string) string {
	if input == config.AnyGame {
		return ""
	}

	return input
}

func runWorkerPool(servers []models.ServerRef, process func(models.ServerRef)) {
	jobs := make(chan models.ServerRef, len(servers))
	var wg sync.WaitGroup

	for i := 0; i < Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range jobs {
				process(s)
			}
		}()
	}

	for _, s := range servers {
		jobs <- s
	}
	close(jobs)

	wg.Wait()
}

func processServer(s models.ServerRef, store *storage.Repository, geo *geoip.Provider, opts engine.Options) bool {
	logCtx := log.With().
		Str("game", s.Game).
		Str("ip", s.IP).
		Int("port", s.Port).
		Logger()

	game, err := games.Lookup(s.Game)
	if err != nil {
		logCtx.Warn().Err(err).Msg("Skipping server of unknown game")
		return false
	}

	ip, err := netip.ParseAddr(s.IP)
	if err != nil || s.Port <= 0 || s.Port > 65535 {
		logCtx.Warn().Msg("Skipping invalid server address")
		return false
	}

	if opts.Extra.Hostname == "" {
		opts.Extra.Hostname = s.Hostname
	}

	res, err := engine.Query(game, ip, uint16(s.Port), opts)
	if res != nil {
		res.Country = geo.Country(ip)
	}

	rec := models.NewRecord(s.Game, s.IP, s.Port, s.Hostname, res, err)
	if _, insertErr := store.InsertRecord(rec); insertErr != nil {
		logCtx.Error().Err(insertErr).Msg("Failed to store recheck result")
	}

	if err != nil {
		logCtx.Debug().Err(err).Msg("Server unreachable")
		return false
	}

	logCtx.Trace().Msg("Server updated successfully")
	return true
}
