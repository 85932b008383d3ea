// Package engine dispatches a query to the protocol engine of a game and
// normalizes the result into one generic shape.
package engine

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/gamequery/internal/games"
	"github.com/woozymasta/gamequery/pkg/quake"
)

// ErrUnsupportedProtocol is returned for descriptors without an engine.
var ErrUnsupportedProtocol = errors.New("unsupported protocol")

// Options are caller settings shared by every engine.
type Options struct {
	Extra    quake.ExtraSettings
	Timeouts quake.TimeoutSettings

	// BufferSize of the A2S receive buffer, zero keeps the library default.
	BufferSize uint16
}

// Player is the generic view of one player.
type Player struct {
	Name  string `json:"name" yaml:"name"`
	Score int    `json:"score" yaml:"score"`
}

// Common is the cross-protocol view of a server.
type Common struct {
	Name           string        `json:"name" yaml:"name"`
	Map            string        `json:"map" yaml:"map"`
	GameMode       string        `json:"game_mode,omitempty" yaml:"game_mode,omitempty"`
	Version        string        `json:"game_version,omitempty" yaml:"game_version,omitempty"`
	Players        []Player      `json:"players,omitempty" yaml:"players,omitempty"`
	Ping           time.Duration `json:"ping" yaml:"ping"`
	PlayersOnline  int           `json:"players_online" yaml:"players_online"`
	PlayersMaximum int           `json:"players_maximum" yaml:"players_maximum"`
	HasPassword    bool          `json:"has_password" yaml:"has_password"`
}

// Result is a successful query of one server.
type Result struct {
	QueriedAt time.Time `json:"queried_at" yaml:"queried_at"`

	// Original is the protocol specific response: *quake.Response,
	// *a2s.Info or *minequery.FullQueryStatus.
	Original any `json:"original" yaml:"original"`

	Game    string `json:"game" yaml:"game"`
	Address string `json:"address" yaml:"address"`
	Country string `json:"country,omitempty" yaml:"country,omitempty"`
	Common  Common `json:"common" yaml:"common"`
}

// Engine queries one protocol family.
type Engine interface {
	Query(addr netip.AddrPort, game games.Game, opts Options) (*Result, error)
}

// For returns the engine serving protocol p.
func For(p games.Protocol) (Engine, error) {
	switch p {
	case games.ProtocolQuake1:
		return quakeEngine{variant: quake.Quake1}, nil
	case games.ProtocolQuake2:
		return quakeEngine{variant: quake.Quake2}, nil
	case games.ProtocolQuake3:
		return quakeEngine{variant: quake.Quake3}, nil
	case games.ProtocolValve:
		return valveEngine{}, nil
	case games.ProtocolMinecraft:
		return minecraftEngine{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProtocol, p)
	}
}

// Query runs a single query against ip:port for game. A zero port selects the
// default port of the game.
func Query(game games.Game, ip netip.Addr, port uint16, opts Options) (*Result, error) {
	e, err := For(game.Protocol)
	if err != nil {
		return nil, err
	}

	if port == 0 {
		port = game.Port
	}
	addr := netip.AddrPortFrom(ip.Unmap(), port)

	res, err := e.Query(addr, game, opts)
	if err != nil {
		log.Debug().
			Err(err).
			Str("game", game.ID).
			Str("address", addr.String()).
			Msg("Query failed")
		return nil, err
	}

	res.Game = game.ID
	res.Address = addr.String()
	res.QueriedAt = time.Now().UTC()

	log.Debug().
		Str("game", game.ID).
		Str("address", addr.String()).
		Str("name", res.Common.Name).
		Int("players", res.Common.PlayersOnline).
		Dur("ping", res.Common.Ping).
		Msg("Query succeeded")

	return res, nil
}

// IsTimeout reports whether err means the server did not answer in time,
// whichever engine produced it.
func IsTimeout(err error) bool {
	if errors.Is(err, quake.ErrTimeout) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
