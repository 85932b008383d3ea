package quake

import (
	"strconv"
	"strings"
	"time"
)

// Player is one record of the player list. Optional fields are set only by the
// variants whose wire format carries them.
type Player struct {
	ID          *int   `json:"id,omitempty" yaml:"id,omitempty"`
	Time        *int   `json:"time,omitempty" yaml:"time,omitempty"`
	TopColor    *int   `json:"top_color,omitempty" yaml:"top_color,omitempty"`
	BottomColor *int   `json:"bottom_color,omitempty" yaml:"bottom_color,omitempty"`
	Name        string `json:"name" yaml:"name"`
	Skin        string `json:"skin,omitempty" yaml:"skin,omitempty"`
	Address     string `json:"address,omitempty" yaml:"address,omitempty"`
	Score       int    `json:"score" yaml:"score"`
	Ping        int    `json:"ping" yaml:"ping"`
}

// Response is the fully decoded status reply in its wire-derived shape.
type Response struct {
	// Info holds every key/value pair of the info string.
	Info map[string]string `json:"info" yaml:"info"`

	// Players in the order the server listed them.
	Players []Player `json:"players" yaml:"players"`

	// Ping is the round trip of the status exchange.
	Ping time.Duration `json:"ping" yaml:"ping"`

	stripColors bool
}

// CommonPlayer is the cross-game view of a player.
type CommonPlayer struct {
	Name  string `json:"name" yaml:"name"`
	Score int    `json:"score" yaml:"score"`
}

// CommonResponse is the cross-game normalized projection of a Response.
type CommonResponse struct {
	Name           string         `json:"name" yaml:"name"`
	Map            string         `json:"map" yaml:"map"`
	GameMode       string         `json:"game_mode,omitempty" yaml:"game_mode,omitempty"`
	Version        string         `json:"game_version,omitempty" yaml:"game_version,omitempty"`
	Players        []CommonPlayer `json:"players" yaml:"players"`
	Ping           time.Duration  `json:"ping" yaml:"ping"`
	PlayersOnline  int            `json:"players_online" yaml:"players_online"`
	PlayersMaximum int            `json:"players_maximum" yaml:"players_maximum"`
	HasPassword    bool           `json:"has_password" yaml:"has_password"`
}

// Common derives the normalized view. It is a pure function of r.
func (r *Response) Common() CommonResponse {
	clean := func(s string) string {
		s = trimQuotes(s)
		if r.stripColors {
			s = StripColors(s)
		}
		return s
	}

	c := CommonResponse{
		Name:          clean(r.first("hostname", "sv_hostname")),
		Map:           r.first("mapname", "map"),
		GameMode:      r.first("g_gametype", "gametype"),
		Version:       r.first("version", "*version", "iv"),
		Ping:          r.Ping,
		PlayersOnline: len(r.Players),
		Players:       make([]CommonPlayer, 0, len(r.Players)),
	}

	if v, err := strconv.Atoi(r.first("maxclients", "sv_maxclients")); err == nil {
		c.PlayersMaximum = v
	}

	if pass := r.first("needpass", "g_needpass"); pass != "" && pass != "0" {
		c.HasPassword = true
	}

	for _, p := range r.Players {
		c.Players = append(c.Players, CommonPlayer{Name: clean(p.Name), Score: p.Score})
	}

	return c
}

// first returns the value of the first present key.
func (r *Response) first(keys ...string) string {
	for _, k := range keys {
		if v, ok := r.Info[k]; ok {
			return v
		}
	}

	return ""
}

// StripColors removes Quake III style ^X color escapes.
func StripColors(s string) string {
	if !strings.Contains(s, "^") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '^' && i+1 < len(s) && s[i+1] != '^' {
			i++
			continue
		}
		b.WriteByte(s[i])
	}

	return b.String()
}

func trimQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}

	return s
}
