package engine

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/a2s/pkg/a2s"
	"github.com/woozymasta/gamequery/internal/games"
	"github.com/woozymasta/gamequery/pkg/quake"
)

// valveEngine requests A2S_INFO from Source engine servers.
type valveEngine struct{}

func (valveEngine) Query(addr netip.AddrPort, game games.Game, opts Options) (*Result, error) {
	attempts := opts.Timeouts.Attempts
	if attempts <= 0 {
		attempts = quake.DefaultAttempts
	}

	var (
		info *a2s.Info
		ping time.Duration
		err  error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		info, ping, err = queryInfo(addr, opts)
		if err == nil || !IsTimeout(err) {
			break
		}
		log.Debug().
			Str("game", game.ID).
			Int("attempt", attempt).
			Msg("A2S query timed out, retrying")
	}
	if err != nil {
		return nil, fmt.Errorf("a2s query %s: %w", addr, err)
	}

	return &Result{
		Common: Common{
			Name:           info.Name,
			Map:            info.Map,
			GameMode:       info.Game,
			Version:        info.Version,
			Ping:           ping,
			PlayersOnline:  int(info.Players),
			PlayersMaximum: int(info.MaxPlayers),
		},
		Original: info,
	}, nil
}

// queryInfo connects to a game server via UDP and requests A2S_INFO.
func queryInfo(addr netip.AddrPort, opts Options) (*a2s.Info, time.Duration, error) {
	client, err := a2s.New(addr.Addr().String(), int(addr.Port()))
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = client.Close() }()

	if opts.BufferSize > 0 {
		client.BufferSize = opts.BufferSize
	}
	client.Timeout = opts.Timeouts.Read
	if client.Timeout <= 0 {
		client.Timeout = quake.DefaultReadTimeout
	}

	start := time.Now()
	info, err := client.GetInfo()
	if err != nil {
		return nil, 0, err
	}

	return info, time.Since(start), nil
}
