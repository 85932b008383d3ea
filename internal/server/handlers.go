package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/gamequery/internal/games"
	"github.com/woozymasta/gamequery/internal/models"
	"github.com/woozymasta/gamequery/internal/vars"
)

// handleGames lists the games the API may query.
func (s *Server) handleGames(w http.ResponseWriter, _ *http.Request) {
	list := []games.Game{}
	for _, g := range games.All() {
		if s.allowed(g.ID) {
			list = append(list, g)
		}
	}

	respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, vars.Info())
}

// handleHistory returns stored queries, newest first.
// Query params: ?game=quake3&ip=1.2.3.4&port=27960&since=1h&limit=50
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		respondError(w, http.StatusServiceUnavailable, "history disabled", "")
		return
	}

	q := r.URL.Query()
	filter := models.HistoryFilter{
		Game: q.Get("game"),
		IP:   q.Get("ip"),
	}

	var err error
	if v := q.Get("port"); v != "" {
		if filter.Port, err = strconv.Atoi(v); err != nil {
			respondError(w, http.StatusBadRequest, "invalid port", "")
			return
		}
	}
	if v := q.Get("limit"); v != "" {
		if filter.Limit, err = strconv.Atoi(v); err != nil {
			respondError(w, http.StatusBadRequest, "invalid limit", "")
			return
		}
	}
	if v := q.Get("since"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid since", "")
			return
		}
		filter.Since = time.Now().Add(-d)
	}

	records, err := s.storage.GetHistory(filter)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch history")
		respondError(w, http.StatusInternalServerError, "database error", "")
		return
	}

	respondJSON(w, http.StatusOK, records)
}

// handleDeleteHistory removes old or failed records.
// Query params: ?older=720h or ?failed=quake3 (failed without value removes every game)
func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		respondError(w, http.StatusServiceUnavailable, "history disabled", "")
		return
	}

	q := r.URL.Query()

	var (
		deleted int64
		err     error
	)
	switch {
	case q.Get("older") != "":
		d, parseErr := time.ParseDuration(q.Get("older"))
		if parseErr != nil || d <= 0 {
			respondError(w, http.StatusBadRequest, "invalid older", "")
			return
		}
		deleted, err = s.storage.DeleteOlderThan(time.Now().Add(-d))
	case q.Has("failed"):
		deleted, err = s.storage.DeleteFailed(q.Get("failed"))
	default:
		respondError(w, http.StatusBadRequest, "missing older or failed", "")
		return
	}

	if err != nil {
		log.Error().Err(err).Msg("Failed to delete history")
		respondError(w, http.StatusInternalServerError, "database error", "")
		return
	}

	log.Info().
		Int64("deleted", deleted).
		Str("query", r.URL.RawQuery).
		Msg("History deleted manually")

	respondJSON(w, http.StatusOK, models.DeleteResponse{Deleted: deleted})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg, kind string) {
	respondJSON(w, status, models.ErrorResponse{Error: msg, Kind: kind})
}
