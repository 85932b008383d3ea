package engine

import (
	"net/netip"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/gamequery/internal/games"
	"github.com/woozymasta/gamequery/pkg/quake"
)

// quakeEngine serves the Quake out-of-band family through pkg/quake.
type quakeEngine struct {
	variant quake.Variant
}

func (e quakeEngine) Query(addr netip.AddrPort, game games.Game, opts Options) (*Result, error) {
	v := e.variant
	v.Challenge = game.Challenge
	v.StripColors = game.StripColors

	client := quake.New(v)
	client.Timeouts = opts.Timeouts
	client.Extra = opts.Extra
	client.Logger = log.With().Str("game", game.ID).Logger()

	resp, err := client.Query(addr.Addr(), addr.Port())
	if err != nil {
		return nil, err
	}

	c := resp.Common()
	common := Common{
		Name:           c.Name,
		Map:            c.Map,
		GameMode:       c.GameMode,
		Version:        c.Version,
		Ping:           c.Ping,
		PlayersOnline:  c.PlayersOnline,
		PlayersMaximum: c.PlayersMaximum,
		HasPassword:    c.HasPassword,
	}
	for _, p := range c.Players {
		common.Players = append(common.Players, Player{Name: p.Name, Score: p.Score})
	}

	return &Result{Common: common, Original: resp}, nil
}
