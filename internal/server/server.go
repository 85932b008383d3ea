// Package server implements the HTTP query API, its middleware, and background workers.
package server

import (
	"net/http"

	"github.com/cespare/xxhash/v2"
	"github.com/woozymasta/gamequery/internal/config"
	"github.com/woozymasta/gamequery/internal/engine"
	"github.com/woozymasta/gamequery/internal/geoip"
	"github.com/woozymasta/gamequery/internal/resolve"
	"github.com/woozymasta/gamequery/internal/sink"
	"github.com/woozymasta/gamequery/internal/storage"
)

// New creates a Server. Storage, GeoIP provider and publisher are optional.
func New(cfg *config.Config, store *storage.Repository, geo *geoip.Provider, pub *sink.Publisher, res *resolve.Resolver) *Server {
	allowed := make(map[uint64]struct{})
	for _, id := range cfg.Server.AllowedGames {
		allowed[xxhash.Sum64String(id)] = struct{}{}
	}

	queueSize := cfg.Server.QueueSize
	if queueSize <= 0 {
		queueSize = 1000
	}

	workers := cfg.Server.Workers
	if workers <= 0 {
		workers = 1
	}

	if res == nil {
		res = resolve.New(cfg.Timeouts.Read)
	}

	return &Server{
		storage:   store,
		geoip:     geo,
		publisher: pub,
		resolver:  res,
		options: engine.Options{
			Timeouts:   cfg.Timeouts.TimeoutSettings(),
			Extra:      cfg.Extra.ExtraSettings(),
			BufferSize: cfg.A2S.BufferSize,
		},
		authToken:      cfg.Server.AuthToken,
		allowedGames:   allowed,
		trustProxy:     cfg.Server.TrustProxy,
		workers:        workers,
		hardLimitCount: cfg.RateLimit.HardLimitCount,
		hardLimitWin:   cfg.RateLimit.HardLimitWin,
		softLimitDur:   cfg.RateLimit.SoftLimitDur,

		queue:    make(chan queryJob, queueSize),
		shutdown: make(chan struct{}),
	}
}

// StartWorkers starts the background workers recording and publishing results.
func (s *Server) StartWorkers() {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
}

// StopWorkers drains the job queue and waits for the workers to finish.
// Jobs of handlers still running afterwards are dropped.
func (s *Server) StopWorkers() {
	s.queueMu.Lock()
	close(s.shutdown)
	close(s.queue)
	s.queueMu.Unlock()

	s.wg.Wait()
}

// Run configures the HTTP routes and returns the main handler.
func (s *Server) Run() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /api/query", s.RateLimitMiddleware(http.HandlerFunc(s.handleQuery)))
	mux.Handle("GET /api/games", http.HandlerFunc(s.handleGames))
	mux.Handle("GET /api/version", http.HandlerFunc(s.handleVersion))
	mux.Handle("GET /api/history", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleHistory)))
	mux.Handle("DELETE /api/history", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleDeleteHistory)))

	return s.LoggingMiddleware(mux)
}

// allowed reports whether the API may query game id.
func (s *Server) allowed(id string) bool {
	if len(s.allowedGames) == 0 {
		return true
	}

	_, ok := s.allowedGames[xxhash.Sum64String(id)]
	return ok
}
