package server

import (
	"context"
	"errors"
	"net/http"
	"net/netip"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/gamequery/internal/engine"
	"github.com/woozymasta/gamequery/internal/games"
	"github.com/woozymasta/gamequery/internal/models"
	"github.com/woozymasta/gamequery/internal/output"
	"github.com/woozymasta/gamequery/internal/resolve"
	"github.com/woozymasta/gamequery/pkg/quake"
)

const publishTimeout = 5 * time.Second

// handleQuery performs a live query of one server.
// Query params: ?game=quake3&host=1.2.3.4&port=27960&mode=generic
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	mode, err := output.ParseMode(q.Get("mode"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	game, err := games.Lookup(q.Get("game"))
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error(), "")
		return
	}

	if !s.allowed(game.ID) {
		log.Debug().
			Str("ip", GetRealIP(r, s.trustProxy)).
			Str("game", game.ID).
			Msg("Game not allowed")

		respondError(w, http.StatusForbidden, "game not allowed", "")
		return
	}

	port := game.Port
	if p := q.Get("port"); p != "" {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil || n == 0 {
			respondError(w, http.StatusBadRequest, "invalid port", "")
			return
		}
		port = uint16(n)
	}

	opts := s.options
	host := q.Get("host")
	ip, err := s.resolver.Resolve(host, &opts.Extra)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, resolve.ErrInvalidHostname) {
			status = http.StatusBadRequest
		}
		respondError(w, status, err.Error(), "")
		return
	}
	addr := netip.AddrPortFrom(ip, port)

	// Soft limit
	if mode == output.ModeGeneric {
		if res := s.recent(game.ID, addr); res != nil {
			log.Trace().
				Str("game", game.ID).
				Str("address", addr.String()).
				Msg("Served by soft limit hit")

			s.respondResult(w, res, mode, true)
			return
		}
	}

	res, queryErr := engine.Query(game, ip, port, opts)
	if res != nil {
		res.Country = s.geoip.Country(ip)
	}

	s.enqueue(queryJob{
		Record: models.NewRecord(game.ID, ip.String(), int(port), opts.Extra.Hostname, res, queryErr),
		Result: res,
	})

	if queryErr != nil {
		respondError(w, queryStatus(queryErr), queryErr.Error(), models.ErrorKind(queryErr))
		return
	}

	s.respondResult(w, res, mode, false)
}

// recent returns the stored success of addr when it is younger than the soft limit.
func (s *Server) recent(game string, addr netip.AddrPort) *engine.Result {
	if s.storage == nil || s.softLimitDur <= 0 {
		return nil
	}

	rec, err := s.storage.GetLatest(game, addr.Addr().String(), int(addr.Port()))
	if err != nil {
		log.Error().Err(err).Msg("Failed to read latest record")
		return nil
	}
	if rec == nil || time.Since(rec.QueriedAt) >= s.softLimitDur {
		return nil
	}

	return rec.Result(addr.String())
}

func (s *Server) respondResult(w http.ResponseWriter, res *engine.Result, mode output.Mode, cached bool) {
	doc, err := output.Document(res, mode)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	respondJSON(w, http.StatusOK, models.QueryResponse{Data: doc, Cached: cached})
}

// queryStatus maps a query error to an HTTP status.
func queryStatus(err error) int {
	switch {
	case engine.IsTimeout(err):
		return http.StatusGatewayTimeout
	case errors.Is(err, engine.ErrUnsupportedProtocol):
		return http.StatusNotImplemented
	case errors.Is(err, quake.ErrSocket):
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

// enqueue hands a job to the workers without blocking the request.
func (s *Server) enqueue(job queryJob) {
	s.queueMu.RLock()
	defer s.queueMu.RUnlock()

	select {
	case <-s.shutdown:
		log.Warn().
			Str("game", job.Record.Game).
			Str("ip", job.Record.IP).
			Int("port", job.Record.Port).
			Msg("Workers stopped, query result dropped")
		return
	default:
	}

	select {
	case s.queue <- job:
	default:
		log.Warn().
			Str("game", job.Record.Game).
			Str("ip", job.Record.IP).
			Int("port", job.Record.Port).
			Msg("Queue full, query result dropped")
	}
}

// worker is a background goroutine that processes jobs from the queue.
func (s *Server) worker() {
	defer s.wg.Done()

	for job := range s.queue {
		s.processJob(job)
	}
}

// processJob records a query in the history and publishes a successful result.
func (s *Server) processJob(job queryJob) {
	if s.storage != nil {
		if _, err := s.storage.InsertRecord(job.Record); err != nil {
			log.Error().Err(err).Msg("Failed to save query to DB")
		}
	}

	if job.Result != nil {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		if err := s.publisher.Publish(ctx, job.Result); err != nil {
			log.Error().Err(err).Msg("Failed to publish server state")
		}
	}

	log.Trace().
		Str("game", job.Record.Game).
		Str("ip", job.Record.IP).
		Bool("success", job.Record.Success).
		Msg("Query recorded")
}
