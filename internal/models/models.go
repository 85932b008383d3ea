// Package models defines the data structures used for API responses and database persistence.
package models

import (
	"errors"
	"time"

	"github.com/woozymasta/gamequery/internal/engine"
	"github.com/woozymasta/gamequery/pkg/quake"
)

// QueryRecord is one stored query attempt of a server.
type QueryRecord struct {
	QueriedAt   time.Time `json:"queried_at"`
	Game        string    `json:"game"`
	IP          string    `json:"ip"`
	Hostname    string    `json:"hostname,omitempty"`
	CountryCode string    `json:"country_code,omitempty"`
	ErrorKind   string    `json:"error_kind,omitempty"`
	Error       string    `json:"error,omitempty"`
	ServerName  string    `json:"server_name"`
	MapName     string    `json:"map_name"`
	GameMode    string    `json:"game_mode,omitempty"`
	GameVersion string    `json:"game_version,omitempty"`
	ID          int64     `json:"id"`
	PingMs      int64     `json:"ping_ms"`
	Port        int       `json:"port"`
	Players     int       `json:"players"`
	MaxPlayers  int       `json:"max_players"`
	Success     bool      `json:"success"`
	HasPassword bool      `json:"has_password"`
}

// ServerRef identifies one queried server.
type ServerRef struct {
	Game     string `json:"game"`
	IP       string `json:"ip"`
	Hostname string `json:"hostname,omitempty"`
	Port     int    `json:"port"`
}

// HistoryFilter narrows a history listing. Zero fields match everything.
type HistoryFilter struct {
	Since time.Time
	Game  string
	IP    string
	Port  int
	Limit int
}

// QueryResponse is returned by the live query endpoint. Cached marks data
// served from history instead of a live query.
type QueryResponse struct {
	Data   any  `json:"data"`
	Cached bool `json:"cached"`
}

// DeleteResponse reports removed history records.
type DeleteResponse struct {
	Deleted int64 `json:"deleted"`
}

// ErrorResponse is the JSON body of a failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// NewRecord builds the history record of one query. Exactly one of res and
// queryErr is expected to be set.
func NewRecord(game, ip string, port int, hostname string, res *engine.Result, queryErr error) QueryRecord {
	rec := QueryRecord{
		QueriedAt: time.Now().UTC(),
		Game:      game,
		IP:        ip,
		Port:      port,
		Hostname:  hostname,
	}

	if queryErr != nil {
		rec.Error = queryErr.Error()
		rec.ErrorKind = ErrorKind(queryErr)
		return rec
	}

	c := res.Common
	rec.QueriedAt = res.QueriedAt
	rec.CountryCode = res.Country
	rec.Success = true
	rec.ServerName = c.Name
	rec.MapName = c.Map
	rec.GameMode = c.GameMode
	rec.GameVersion = c.Version
	rec.Players = c.PlayersOnline
	rec.MaxPlayers = c.PlayersMaximum
	rec.HasPassword = c.HasPassword
	rec.PingMs = c.Ping.Milliseconds()

	return rec
}

// ErrorKind names the failure class of a query error.
func ErrorKind(err error) string {
	if k := quake.KindOf(err); k != 0 {
		return k.String()
	}
	if engine.IsTimeout(err) {
		return quake.KindTimeout.String()
	}
	if errors.Is(err, engine.ErrUnsupportedProtocol) {
		return "unsupported"
	}

	return "other"
}

// Result rebuilds a generic result from a stored successful record.
func (r QueryRecord) Result(address string) *engine.Result {
	return &engine.Result{
		QueriedAt: r.QueriedAt,
		Game:      r.Game,
		Address:   address,
		Country:   r.CountryCode,
		Common: engine.Common{
			Name:           r.ServerName,
			Map:            r.MapName,
			GameMode:       r.GameMode,
			Version:        r.GameVersion,
			Ping:           time.Duration(r.PingMs) * time.Millisecond,
			PlayersOnline:  r.Players,
			PlayersMaximum: r.MaxPlayers,
			HasPassword:    r.HasPassword,
		},
	}
}
