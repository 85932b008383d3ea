package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/gamequery/internal/config"
	"github.com/woozymasta/gamequery/internal/games"
	"github.com/woozymasta/gamequery/internal/models"
	"github.com/woozymasta/gamequery/internal/resolve"
	"github.com/woozymasta/gamequery/internal/storage"
	"github.com/woozymasta/gamequery/pkg/quake/quaketest"
)

const testToken = "secret"

type testEnv struct {
	srv   *Server
	store *storage.Repository
	http  http.Handler
	stop  func()
}

func newEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.AuthToken = testToken
	cfg.Server.Workers = 2
	cfg.Timeouts = config.Timeouts{Read: 100 * time.Millisecond, Write: time.Second, Attempts: 1}
	cfg.RateLimit.SoftLimitDur = time.Minute
	if mutate != nil {
		mutate(cfg)
	}

	store, err := storage.New(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)

	s := New(cfg, store, nil, nil, resolve.New(time.Second))
	s.StartWorkers()

	var once sync.Once
	stop := func() { once.Do(s.StopWorkers) }
	t.Cleanup(func() {
		stop()
		_ = store.Close()
	})

	return &testEnv{srv: s, store: store, http: s.Run(), stop: stop}
}

func (e *testEnv) get(path string, header ...string) *httptest.ResponseRecorder {
	return e.do(http.MethodGet, path, header...)
}

func (e *testEnv) do(method, path string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	e.http.ServeHTTP(rec, req)

	return rec
}

func startQuake2(t *testing.T) *quaketest.Server {
	t.Helper()

	qs, err := quaketest.NewServer(quaketest.Reply("status", "print", "\\hostname\\Live\\maxclients\\8\n7 20 \"one\"\n"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = qs.Close() })

	return qs
}

func queryPath(game string, port uint16, extra string) string {
	return "/api/query?game=" + game + "&host=127.0.0.1&port=" + strconv.Itoa(int(port)) + extra
}

func TestQueryLive(t *testing.T) {
	env := newEnv(t, nil)
	qs := startQuake2(t)

	rec := env.get(queryPath("quake2", qs.Addr().Port(), ""))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Data struct {
			Game   string `json:"game"`
			Server struct {
				Name           string `json:"name"`
				PlayersOnline  int    `json:"players_online"`
				PlayersMaximum int    `json:"players_maximum"`
			} `json:"server"`
		} `json:"data"`
		Cached bool `json:"cached"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Cached)
	assert.Equal(t, "quake2", body.Data.Game)
	assert.Equal(t, "Live", body.Data.Server.Name)
	assert.Equal(t, 1, body.Data.Server.PlayersOnline)
	assert.Equal(t, 8, body.Data.Server.PlayersMaximum)

	env.stop()
	history, err := env.store.GetHistory(models.HistoryFilter{Game: "quake2"})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Success)
	assert.Equal(t, int(qs.Addr().Port()), history[0].Port)
}

func TestQueryProtocolMode(t *testing.T) {
	env := newEnv(t, nil)
	qs := startQuake2(t)

	rec := env.get(queryPath("quake2", qs.Addr().Port(), "&mode=protocol"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Data struct {
			Response struct {
				Info    map[string]string `json:"info"`
				Players []struct {
					Ping int `json:"ping"`
				} `json:"players"`
			} `json:"response"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "8", body.Data.Response.Info["maxclients"])
	require.Len(t, body.Data.Response.Players, 1)
	assert.Equal(t, 20, body.Data.Response.Players[0].Ping)
}

func TestQuerySoftLimitServesHistory(t *testing.T) {
	env := newEnv(t, nil)
	qs := startQuake2(t)

	_, err := env.store.InsertRecord(models.QueryRecord{
		QueriedAt:  time.Now().UTC(),
		Game:       "quake2",
		IP:         "127.0.0.1",
		Port:       int(qs.Addr().Port()),
		Success:    true,
		ServerName: "Stored",
	})
	require.NoError(t, err)

	rec := env.get(queryPath("quake2", qs.Addr().Port(), ""))
	require.Equal(t, http.StatusOK, rec.Code)

	var body models.QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Cached)
	assert.Contains(t, rec.Body.String(), "Stored")
	assert.Zero(t, qs.Count())
}

func TestQueryTimeout(t *testing.T) {
	env := newEnv(t, nil)

	silent, err := quaketest.NewServer(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = silent.Close() })

	rec := env.get(queryPath("quake3", silent.Addr().Port(), ""))
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)

	var body models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "timeout", body.Kind)

	env.stop()
	history, err := env.store.GetHistory(models.HistoryFilter{Game: "quake3"})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.False(t, history[0].Success)
}

func TestQueryInFlightDuringShutdown(t *testing.T) {
	env := newEnv(t, nil)

	silent, err := quaketest.NewServer(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = silent.Close() })

	type outcome struct {
		rec      *httptest.ResponseRecorder
		panicked any
	}
	done := make(chan outcome, 1)
	go func() {
		var out outcome
		defer func() {
			out.panicked = recover()
			done <- out
		}()
		out.rec = env.get(queryPath("quake3-challenge", silent.Addr().Port(), ""))
	}()

	// workers stop while the challenge exchange is still waiting
	require.Eventually(t, func() bool { return silent.Count() > 0 }, time.Second, 5*time.Millisecond)
	env.stop()

	var out outcome
	select {
	case out = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("query did not finish")
	}
	require.Nil(t, out.panicked)
	assert.Equal(t, http.StatusGatewayTimeout, out.rec.Code)

	history, err := env.store.GetHistory(models.HistoryFilter{Game: "quake3-challenge"})
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestQueryBadRequests(t *testing.T) {
	env := newEnv(t, func(cfg *config.Config) {
		cfg.Server.AllowedGames = []string{"quake2", "quake3"}
	})

	tests := []struct {
		name string
		path string
		code int
	}{
		{"unknown game", "/api/query?game=nope&host=127.0.0.1", http.StatusNotFound},
		{"not allowed", "/api/query?game=cod4&host=127.0.0.1", http.StatusForbidden},
		{"bad port", "/api/query?game=quake2&host=127.0.0.1&port=70000", http.StatusBadRequest},
		{"zero port", "/api/query?game=quake2&host=127.0.0.1&port=0", http.StatusBadRequest},
		{"bad host", "/api/query?game=quake2&host=bad%20host", http.StatusBadRequest},
		{"missing host", "/api/query?game=quake2", http.StatusBadRequest},
		{"bad mode", "/api/query?game=quake2&host=127.0.0.1&mode=raw", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, env.get(tt.path).Code)
		})
	}
}

func TestRateLimit(t *testing.T) {
	env := newEnv(t, func(cfg *config.Config) {
		cfg.RateLimit.HardLimitCount = 2
		cfg.RateLimit.HardLimitWin = time.Hour
	})

	path := "/api/query?game=nope&host=127.0.0.1"
	assert.Equal(t, http.StatusNotFound, env.get(path).Code)
	assert.Equal(t, http.StatusNotFound, env.get(path).Code)
	assert.Equal(t, http.StatusTooManyRequests, env.get(path).Code)
}

func TestGamesAndVersion(t *testing.T) {
	env := newEnv(t, func(cfg *config.Config) {
		cfg.Server.AllowedGames = []string{"quake3", "minecraft"}
	})

	rec := env.get("/api/games")
	require.Equal(t, http.StatusOK, rec.Code)

	var list []games.Game
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "minecraft", list[0].ID)

	rec = env.get("/api/version")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name"`)
}

func TestHistoryEndpoints(t *testing.T) {
	env := newEnv(t, nil)
	auth := []string{"Authorization", "Bearer " + testToken}

	for _, rec := range []models.QueryRecord{
		{QueriedAt: time.Now().Add(-48 * time.Hour), Game: "quake3", IP: "10.0.0.1", Port: 27960, Success: true},
		{QueriedAt: time.Now(), Game: "quake3", IP: "10.0.0.1", Port: 27960, ErrorKind: "timeout"},
	} {
		_, err := env.store.InsertRecord(rec)
		require.NoError(t, err)
	}

	assert.Equal(t, http.StatusUnauthorized, env.get("/api/history").Code)
	assert.Equal(t, http.StatusUnauthorized, env.get("/api/history", "Authorization", "Bearer wrong").Code)

	rec := env.get("/api/history?game=quake3&limit=10", auth...)
	require.Equal(t, http.StatusOK, rec.Code)
	var records []models.QueryRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	assert.Len(t, records, 2)

	assert.Equal(t, http.StatusBadRequest, env.get("/api/history?port=x", auth...).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodDelete, "/api/history", auth...).Code)

	rec = env.do(http.MethodDelete, "/api/history?older=24h", auth...)
	require.Equal(t, http.StatusOK, rec.Code)
	var deleted models.DeleteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &deleted))
	assert.Equal(t, int64(1), deleted.Deleted)

	rec = env.do(http.MethodDelete, "/api/history?failed=", auth...)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &deleted))
	assert.Equal(t, int64(1), deleted.Deleted)
}

func TestGetRealIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	assert.Equal(t, "192.0.2.1", GetRealIP(req, false))
	assert.Equal(t, "203.0.113.9", GetRealIP(req, true))

	req.Header.Set("CF-Connecting-IP", "198.51.100.4")
	assert.Equal(t, "198.51.100.4", GetRealIP(req, true))
}
