// Package fake provides utilities for generating random query history for testing and development purposes.
package fake

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/gamequery/internal/games"
	"github.com/woozymasta/gamequery/internal/models"
	"github.com/woozymasta/gamequery/internal/storage"
)

// GenerateData populates the storage with count randomized query records.
// It simulates several games, maps, countries and failure kinds.
func GenerateData(store *storage.Repository, count int) int {
	return generate(store, count, rand.New(rand.NewSource(time.Now().UnixNano())))
}

func generate(store *storage.Repository, count int, rng *rand.Rand) int {
	ids := []string{"quake2", "quake3", "openarena", "urbanterror", "cod4", "wolfet", "dayz"}
	maps := []string{"q2dm1", "q3dm17", "ut4_turnpike", "mp_crash", "oasis", "chernarusplus"}
	modes := []string{"0", "1", "3", "4", "ctf", "ffa"}
	countries := []string{"US", "DE", "RU", "BR", "FR", "GB", "PL", "CZ", "NL", "SE", "JP", "AU"}
	failures := []string{"timeout", "protocol", "decode"}

	type server struct {
		game    games.Game
		ip      string
		country string
		port    int
	}
	var known []server

	inserted := 0
	for i := 0; i < count; i++ {
		// 40% chance to query a known server again
		var s server
		if len(known) > 0 && rng.Float32() < 0.4 {
			s = known[rng.Intn(len(known))]
		} else {
			g, err := games.Lookup(ids[rng.Intn(len(ids))])
			if err != nil {
				continue
			}
			s = server{
				game:    g,
				ip:      fmt.Sprintf("%d.%d.%d.%d", rng.Intn(220)+1, rng.Intn(255), rng.Intn(255), rng.Intn(255)),
				country: countries[rng.Intn(len(countries))],
				port:    int(g.Port) + rng.Intn(10),
			}
			known = append(known, s)
		}

		rec := models.QueryRecord{
			QueriedAt: time.Now().UTC().
				Add(-time.Duration(rng.Intn(30*24*60)) * time.Minute),
			Game:        s.game.ID,
			IP:          s.ip,
			Port:        s.port,
			CountryCode: s.country,
		}

		// 15% of queries fail
		if rng.Float32() < 0.15 {
			rec.ErrorKind = failures[rng.Intn(len(failures))]
			rec.Error = "fake " + rec.ErrorKind + " failure"
		} else {
			rec.Success = true
			rec.ServerName = fmt.Sprintf("%s Server #%d", s.game.Name, rng.Intn(1000))
			rec.MapName = maps[rng.Intn(len(maps))]
			rec.GameMode = modes[rng.Intn(len(modes))]
			rec.MaxPlayers = 8 + rng.Intn(56)
			rec.Players = rng.Intn(rec.MaxPlayers + 1)
			rec.HasPassword = rng.Float32() < 0.1
			rec.PingMs = int64(5 + rng.Intn(250))
		}

		if _, err := store.InsertRecord(rec); err != nil {
			log.Warn().Err(err).Msg("Failed to generate fake record")
			continue
		}
		inserted++
	}

	log.Info().Int("count", inserted).Msg("Fake history generated")
	return inserted
}
