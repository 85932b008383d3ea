// Package config handles the parsing and validation of application configuration
// from command-line arguments and environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/woozymasta/gamequery/internal/logger"
	"github.com/woozymasta/gamequery/internal/vars"
	"github.com/woozymasta/gamequery/pkg/quake"
)

// AnyGame marks maintenance of every game.
const AnyGame = "AnyGame"

var (
	// ErrMissingTarget is returned when a query has no game or host.
	ErrMissingTarget = errors.New("both --game and --ip are required")

	// ErrMissingToken is returned when the API is served without an auth token.
	ErrMissingToken = errors.New("flag `-t, --auth-token' or environment variable `GAMEQUERY_AUTH_TOKEN` is required to serve")

	// ErrMissingStorage is returned by maintenance tasks without a database.
	ErrMissingStorage = errors.New("flag `--db-path' is required for maintenance tasks")
)

// Config represents the complete application flags configuration.
type Config struct {
	Query     Query         `group:"Query Options" env-namespace:"GAMEQUERY"`
	Timeouts  Timeouts      `group:"Timeout Options" namespace:"timeout" env-namespace:"GAMEQUERY_TIMEOUT"`
	Extra     Extra         `group:"Extra Options" namespace:"extra" env-namespace:"GAMEQUERY_EXTRA"`
	A2S       A2S           `group:"A2S Options" namespace:"a2s" env-namespace:"GAMEQUERY_A2S"`
	Server    Server        `group:"Server Options" env-namespace:"GAMEQUERY"`
	RateLimit RateLimit     `group:"Rate Limit Options" namespace:"rate-limit" env-namespace:"GAMEQUERY_RATE_LIMIT"`
	Storage   Storage       `group:"Storage Options" namespace:"db" env-namespace:"GAMEQUERY_DB"`
	GeoIP     GeoIP         `group:"GeoIP Options" namespace:"geoip" env-namespace:"GAMEQUERY_GEOIP"`
	Redis     Redis         `group:"Redis Options" namespace:"redis" env-namespace:"GAMEQUERY_REDIS"`
	Logger    logger.Config `group:"Logger Options" namespace:"log" env-namespace:"GAMEQUERY_LOG"`
}

// Query holds the single query and mode selection flags.
type Query struct {
	Game      string `short:"g" long:"game" env:"GAME" description:"Game id to query (see --list-games)"`
	IP        string `short:"i" long:"ip" env:"IP" description:"Server IP address or domain name"`
	Format    string `short:"f" long:"format" env:"FORMAT" description:"Output format" default:"text" choice:"text" choice:"json" choice:"yaml"`
	Mode      string `short:"m" long:"mode" env:"MODE" description:"Output mode" default:"generic" choice:"generic" choice:"protocol"`
	Port      uint16 `short:"p" long:"port" env:"PORT" description:"Server query port, game default when omitted"`
	ListGames bool   `long:"list-games" description:"Print supported games and exit"`
	Serve     bool   `long:"serve" env:"SERVE" description:"Run the HTTP query API"`
	Version   bool   `short:"v" long:"version" description:"Print version and build info"`
}

// Timeouts holds the query timing settings.
type Timeouts struct {
	Read     time.Duration `long:"read" env:"READ" description:"Per attempt read timeout" default:"4s"`
	Write    time.Duration `long:"write" env:"WRITE" description:"Send timeout" default:"4s"`
	Attempts int           `long:"attempts" env:"ATTEMPTS" description:"Request attempts before giving up" default:"3"`
}

// Extra holds protocol extension settings.
type Extra struct {
	Hostname  string `long:"hostname" env:"HOSTNAME" description:"Hostname passed to protocols that use it, set from --ip when it is a domain"`
	Challenge bool   `long:"challenge" env:"CHALLENGE" description:"Force the challenge handshake before the status request"`
}

// A2S holds Source Query protocol configuration.
type A2S struct {
	BufferSize uint16 `long:"buffer-size" env:"BUFFER_SIZE" description:"Response body buffer size" default:"1400"`
}

// Server holds web server configuration.
type Server struct {
	Address      string   `short:"l" long:"address" env:"LISTEN_ADDRESS" description:"Server listen address" default:":8080"`
	AuthToken    string   `short:"t" long:"auth-token" env:"AUTH_TOKEN" description:"Admin authentication token"`
	AllowedGames []string `short:"a" long:"allowed-game" env:"ALLOWED_GAMES" description:"Games the API may query, all when empty" env-delim:","`
	QueueSize    int      `long:"queue-size" env:"QUEUE_SIZE" description:"Background job queue size" default:"1000"`
	Workers      int      `long:"workers" env:"WORKERS" description:"Background job workers" default:"4"`
	TrustProxy   bool     `long:"trust-proxy" env:"TRUST_PROXY" description:"Trust X-Forwarded-For headers"`
}

// RateLimit holds API rate limiting configuration.
type RateLimit struct {
	HardLimitCount int           `long:"hard-count" env:"HARD_COUNT" description:"Hard IP limit: requests count" default:"30"`
	HardLimitWin   time.Duration `long:"hard-window" env:"HARD_WINDOW" description:"Hard IP limit: window duration" default:"1m"`
	SoftLimitDur   time.Duration `long:"soft" env:"SOFT" description:"Soft limit: serve stored result if queried within duration" default:"30s"`
}

// Storage holds database configuration.
type Storage struct {
	Path          string        `short:"d" long:"path" env:"PATH" description:"Path to SQLite history database, disabled when empty"`
	PruneOlder    time.Duration `long:"prune-older" description:"Delete history records older than duration and exit"`
	PruneFailed   string        `long:"prune-failed" description:"Delete failed history records and exit. Optional arg: game id." optional:"true" optional-value:"AnyGame"`
	Recheck       string        `long:"recheck" description:"Query every server found in history again and record the outcome. Optional arg: game id." optional:"true" optional-value:"AnyGame"`
	GenerateCount int           `long:"gen-fake-data" hidden:"true"`
}

// GeoIP holds MaxMind GeoIP configuration.
type GeoIP struct {
	Path     string        `long:"path" env:"PATH" description:"Path to MMDB file, disabled when empty"`
	URL      string        `long:"url" env:"URL" description:"URL to download MMDB" default:"https://git.io/GeoLite2-Country.mmdb"`
	Interval time.Duration `long:"interval" env:"INTERVAL" description:"Update interval check" default:"24h"`
}

// Redis holds the state publisher configuration.
type Redis struct {
	Addr     string        `long:"addr" env:"ADDR" description:"Redis address host:port, disabled when empty"`
	Username string        `long:"username" env:"USERNAME" description:"Redis ACL username"`
	Password string        `long:"password" env:"PASSWORD" description:"Redis password"`
	Prefix   string        `long:"prefix" env:"PREFIX" description:"Key prefix of published servers" default:"gamequery"`
	TTL      time.Duration `long:"ttl" env:"TTL" description:"Expiration of published server state" default:"10m"`
	DB       int           `long:"db" env:"DB" description:"Redis database number" default:"0"`
	TLS      bool          `long:"tls" env:"TLS" description:"Connect with TLS"`
}

// TimeoutSettings converts the flags to engine settings.
func (t Timeouts) TimeoutSettings() quake.TimeoutSettings {
	return quake.TimeoutSettings{Read: t.Read, Write: t.Write, Attempts: t.Attempts}
}

// ExtraSettings converts the flags to engine settings.
func (e Extra) ExtraSettings() quake.ExtraSettings {
	return quake.ExtraSettings{Hostname: e.Hostname, Challenge: e.Challenge}
}

// Maintenance reports whether a database maintenance task was requested.
func (s Storage) Maintenance() bool {
	return s.PruneOlder > 0 || s.PruneFailed != "" || s.Recheck != "" || s.GenerateCount > 0
}

// Parse reads the configuration from flags and environment variables.
// It terminates the application if the configuration is invalid or if the help flag is invoked.
func Parse() *Config {
	cfg, err := parse(os.Args[1:], os.Stdout)
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		if !errors.As(err, &flagsErr) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}

	if cfg.Query.Version {
		vars.Print(os.Stdout)
		os.Exit(0)
	}

	return cfg
}

func parse(args []string, out io.Writer) (*Config, error) {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default&^flags.PrintErrors)
	parser.NamespaceDelimiter = "-"
	parser.Name = "gamequery"

	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			_, _ = fmt.Fprintln(out, err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Query.Version, c.Query.ListGames:
		return nil
	case c.Storage.Maintenance():
		if c.Storage.Path == "" {
			return ErrMissingStorage
		}
		return nil
	case c.Query.Serve:
		if c.Server.AuthToken == "" {
			return ErrMissingToken
		}
		return nil
	}

	if c.Query.Game == "" || c.Query.IP == "" {
		return ErrMissingTarget
	}

	return nil
}
