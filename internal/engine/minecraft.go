package engine

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/dreamscached/minequery/v2"
	"github.com/woozymasta/gamequery/internal/games"
	"github.com/woozymasta/gamequery/pkg/quake"
)

// minecraftEngine performs a full stat request of the Minecraft Query protocol.
type minecraftEngine struct{}

func (minecraftEngine) Query(addr netip.AddrPort, _ games.Game, opts Options) (*Result, error) {
	timeout := opts.Timeouts.Read
	if timeout <= 0 {
		timeout = quake.DefaultReadTimeout
	}

	// sessions are cached per pinger, a fresh one keeps queries independent
	pinger := minequery.NewPinger(
		minequery.WithTimeout(timeout),
		minequery.WithQueryCacheDisabled(),
	)

	start := time.Now()
	status, err := pinger.QueryFull(addr.Addr().String(), int(addr.Port()))
	if err != nil {
		return nil, fmt.Errorf("minecraft query %s: %w", addr, err)
	}
	ping := time.Since(start)

	common := Common{
		Name:           status.MOTD,
		Map:            status.Map,
		GameMode:       status.GameType,
		Version:        status.Version,
		Ping:           ping,
		PlayersOnline:  status.OnlinePlayers,
		PlayersMaximum: status.MaxPlayers,
	}
	for _, name := range status.SamplePlayers {
		common.Players = append(common.Players, Player{Name: name})
	}

	return &Result{Common: common, Original: status}, nil
}
