package server

import (
	"sync"
	"time"

	"github.com/woozymasta/gamequery/internal/engine"
	"github.com/woozymasta/gamequery/internal/geoip"
	"github.com/woozymasta/gamequery/internal/models"
	"github.com/woozymasta/gamequery/internal/resolve"
	"github.com/woozymasta/gamequery/internal/sink"
	"github.com/woozymasta/gamequery/internal/storage"
)

// Server holds the dependencies, configuration, and runtime state required
// to handle HTTP requests and background history processing.
type Server struct {
	// storage keeps the query history. It can be nil, which disables history
	// endpoints and the soft limit.
	storage *storage.Repository

	// geoip resolves server addresses to country codes. It can be nil.
	geoip *geoip.Provider

	// publisher mirrors successful results to Redis. It can be nil.
	publisher *sink.Publisher

	// resolver turns the host parameter into an address.
	resolver *resolve.Resolver

	// allowedGames is a set of hashed game ids (using xxhash) the API may query.
	// Empty means every registered game.
	allowedGames map[uint64]struct{}

	// queue passes finished queries from handlers to background workers.
	queue chan queryJob

	// shutdown broadcasts a stop signal to background routines.
	shutdown chan struct{}

	// queueMu guards sends on queue against StopWorkers closing it.
	queueMu sync.RWMutex

	// authToken is required to access the history endpoints.
	authToken string

	// options are applied to every live query.
	options engine.Options

	wg sync.WaitGroup

	// workers is the number of background workers.
	workers int

	// hardLimitCount is the maximum number of requests allowed per IP address
	// within the hardLimitWin duration.
	hardLimitCount int

	// hardLimitWin is the time window duration for the hard rate limiter.
	hardLimitWin time.Duration

	// softLimitDur is how long a stored success is served instead of querying
	// the server again.
	softLimitDur time.Duration

	// trustProxy indicates whether the server should trust headers like X-Forwarded-For
	// or CF-Connecting-IP when determining the client's real IP address.
	trustProxy bool
}

// queryJob is a finished query waiting to be recorded and published.
type queryJob struct {
	Result *engine.Result
	Record models.QueryRecord
}
