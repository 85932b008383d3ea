// Package games holds game descriptors: default ports, protocol family and the
// protocol capability flags a query needs.
package games

import (
	"errors"
	"fmt"
	"sort"
)

// Protocol identifies the engine family used to query a game.
type Protocol string

const (
	ProtocolQuake1    Protocol = "quake1"
	ProtocolQuake2    Protocol = "quake2"
	ProtocolQuake3    Protocol = "quake3"
	ProtocolValve     Protocol = "valve"
	ProtocolMinecraft Protocol = "minecraft"
)

// ErrUnknownGame is returned by Lookup for ids missing from the registry.
var ErrUnknownGame = errors.New("unknown game")

// Game is the capability record of one game. It is trusted configuration.
type Game struct {
	ID       string   `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	Protocol Protocol `json:"protocol" yaml:"protocol"`
	Port     uint16   `json:"port" yaml:"port"`

	// Challenge marks servers that answer status only after a challenge handshake.
	Challenge bool `json:"challenge,omitempty" yaml:"challenge,omitempty"`

	// StripColors removes ^N color escapes from names in the generic view.
	StripColors bool `json:"strip_colors,omitempty" yaml:"strip_colors,omitempty"`
}

var registry = map[string]Game{
	// generic protocol entries
	"quake1":           {Name: "Quake (QuakeWorld)", Protocol: ProtocolQuake1, Port: 27500},
	"quake2":           {Name: "Quake II", Protocol: ProtocolQuake2, Port: 27910},
	"quake3":           {Name: "Quake III Arena", Protocol: ProtocolQuake3, Port: 27960, StripColors: true},
	"quake3-challenge": {Name: "Quake III protocol with challenge", Protocol: ProtocolQuake3, Port: 27960, StripColors: true, Challenge: true},
	"valve":            {Name: "Valve Source query", Protocol: ProtocolValve, Port: 27015},

	// quake family
	"quakeworld":  {Name: "QuakeWorld", Protocol: ProtocolQuake1, Port: 27500},
	"openarena":   {Name: "OpenArena", Protocol: ProtocolQuake3, Port: 27960, StripColors: true},
	"urbanterror": {Name: "Urban Terror", Protocol: ProtocolQuake3, Port: 27960, StripColors: true},
	"warsow":      {Name: "Warsow", Protocol: ProtocolQuake3, Port: 44400, StripColors: true},
	"jk2":         {Name: "Star Wars Jedi Knight II: Jedi Outcast", Protocol: ProtocolQuake3, Port: 28070, StripColors: true},
	"jka":         {Name: "Star Wars Jedi Knight: Jedi Academy", Protocol: ProtocolQuake3, Port: 29070, StripColors: true},
	"sof2":        {Name: "Soldier of Fortune 2", Protocol: ProtocolQuake3, Port: 20100, StripColors: true},
	"cod":         {Name: "Call of Duty", Protocol: ProtocolQuake3, Port: 28960, StripColors: true},
	"cod2":        {Name: "Call of Duty 2", Protocol: ProtocolQuake3, Port: 28960, StripColors: true},
	"cod4":        {Name: "Call of Duty 4: Modern Warfare", Protocol: ProtocolQuake3, Port: 28960, StripColors: true},
	"wolfet":      {Name: "Wolfenstein: Enemy Territory", Protocol: ProtocolQuake3, Port: 27960, StripColors: true},

	// valve A2S
	"dayz":  {Name: "DayZ", Protocol: ProtocolValve, Port: 27016},
	"arma3": {Name: "Arma 3", Protocol: ProtocolValve, Port: 2303},
	"cs2":   {Name: "Counter-Strike 2", Protocol: ProtocolValve, Port: 27015},
	"tf2":   {Name: "Team Fortress 2", Protocol: ProtocolValve, Port: 27015},
	"rust":  {Name: "Rust", Protocol: ProtocolValve, Port: 28015},

	// minecraft query
	"minecraft": {Name: "Minecraft (query)", Protocol: ProtocolMinecraft, Port: 25565},
}

func init() {
	for id, g := range registry {
		g.ID = id
		registry[id] = g
	}
}

// Lookup returns the descriptor registered under id.
func Lookup(id string) (Game, error) {
	g, ok := registry[id]
	if !ok {
		return Game{}, fmt.Errorf("%w: %q", ErrUnknownGame, id)
	}

	return g, nil
}

// All returns every descriptor sorted by id.
func All() []Game {
	out := make([]Game, 0, len(registry))
	for _, g := range registry {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out
}
