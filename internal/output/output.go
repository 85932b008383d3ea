// Package output renders query results for the terminal and for machines.
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/woozymasta/gamequery/internal/engine"
	"github.com/woozymasta/gamequery/internal/games"
	"github.com/woozymasta/gamequery/pkg/quake"
	"gopkg.in/yaml.v3"
)

// Format of the rendered document.
type Format string

// Mode selects which shape of the result is rendered.
type Mode string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"

	// ModeGeneric renders the cross-game view.
	ModeGeneric Mode = "generic"
	// ModeProtocol renders the protocol specific response.
	ModeProtocol Mode = "protocol"
)

var (
	ErrUnknownFormat = errors.New("unknown output format")
	ErrUnknownMode   = errors.New("unknown output mode")
)

// Generic is the document written in generic mode.
type Generic struct {
	QueriedAt time.Time     `json:"queried_at" yaml:"queried_at"`
	Game      string        `json:"game" yaml:"game"`
	Address   string        `json:"address" yaml:"address"`
	Country   string        `json:"country,omitempty" yaml:"country,omitempty"`
	Server    engine.Common `json:"server" yaml:"server"`
}

// Protocol is the document written in protocol mode.
type Protocol struct {
	Response any    `json:"response" yaml:"response"`
	Game     string `json:"game" yaml:"game"`
	Address  string `json:"address" yaml:"address"`
}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeGeneric, ModeProtocol:
		return m, nil
	case "":
		return ModeGeneric, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Document returns the value rendered for res in mode.
func Document(res *engine.Result, mode Mode) (any, error) {
	switch mode {
	case ModeGeneric, "":
		return Generic{
			QueriedAt: res.QueriedAt,
			Game:      res.Game,
			Address:   res.Address,
			Country:   res.Country,
			Server:    res.Common,
		}, nil
	case ModeProtocol:
		return Protocol{Game: res.Game, Address: res.Address, Response: res.Original}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

// Write renders res to w.
func Write(w io.Writer, res *engine.Result, format Format, mode Mode) error {
	doc, err := Document(res, mode)
	if err != nil {
		return err
	}

	if format == FormatText || format == "" {
		switch d := doc.(type) {
		case Generic:
			return writeGenericText(w, d)
		case Protocol:
			if resp, ok := d.Response.(*quake.Response); ok {
				return writeQuakeText(w, d, resp)
			}
			return encode(w, FormatYAML, d)
		}
	}

	return encode(w, format, doc)
}

// WriteGames renders the game registry.
func WriteGames(w io.Writer, list []games.Game, format Format) error {
	if format != FormatText && format != "" {
		return encode(w, format, list)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tPROTOCOL\tPORT\tNAME")
	for _, g := range list {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", g.ID, g.Protocol, g.Port, g.Name)
	}

	return tw.Flush()
}

func encode(w io.Writer, format Format, v any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func writeGenericText(w io.Writer, d Generic) error {
	s := d.Server
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	_, _ = fmt.Fprintf(tw, "Game:\t%s\n", d.Game)
	_, _ = fmt.Fprintf(tw, "Address:\t%s\n", d.Address)
	if d.Country != "" {
		_, _ = fmt.Fprintf(tw, "Country:\t%s\n", d.Country)
	}
	_, _ = fmt.Fprintf(tw, "Name:\t%s\n", s.Name)
	_, _ = fmt.Fprintf(tw, "Map:\t%s\n", s.Map)
	if s.GameMode != "" {
		_, _ = fmt.Fprintf(tw, "Mode:\t%s\n", s.GameMode)
	}
	if s.Version != "" {
		_, _ = fmt.Fprintf(tw, "Version:\t%s\n", s.Version)
	}
	_, _ = fmt.Fprintf(tw, "Players:\t%d/%d\n", s.PlayersOnline, s.PlayersMaximum)
	_, _ = fmt.Fprintf(tw, "Password:\t%t\n", s.HasPassword)
	_, _ = fmt.Fprintf(tw, "Ping:\t%s\n", s.Ping.Round(time.Millisecond))

	if len(s.Players) > 0 {
		_, _ = fmt.Fprintln(tw, "\nSCORE\tNAME")
		for _, p := range s.Players {
			_, _ = fmt.Fprintf(tw, "%d\t%s\n", p.Score, p.Name)
		}
	}

	return tw.Flush()
}

func writeQuakeText(w io.Writer, d Protocol, resp *quake.Response) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	_, _ = fmt.Fprintf(tw, "Game:\t%s\n", d.Game)
	_, _ = fmt.Fprintf(tw, "Address:\t%s\n", d.Address)
	_, _ = fmt.Fprintf(tw, "Ping:\t%s\n\n", resp.Ping.Round(time.Millisecond))

	keys := make([]string, 0, len(resp.Info))
	for k := range resp.Info {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", k, resp.Info[k])
	}

	if len(resp.Players) > 0 {
		_, _ = fmt.Fprintln(tw, "\nSCORE\tPING\tNAME\tEXTRA")
		for _, p := range resp.Players {
			_, _ = fmt.Fprintf(tw, "%d\t%d\t%s\t%s\n", p.Score, p.Ping, p.Name, playerExtra(p))
		}
	}

	return tw.Flush()
}

func playerExtra(p quake.Player) string {
	var out string
	add := func(k, v string) {
		if out != "" {
			out += " "
		}
		out += k + "=" + v
	}

	if p.ID != nil {
		add("id", strconv.Itoa(*p.ID))
	}
	if p.Skin != "" {
		add("skin", p.Skin)
	}
	if p.Address != "" {
		add("addr", p.Address)
	}

	return out
}
