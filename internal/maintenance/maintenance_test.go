package maintenance

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/gamequery/internal/config"
	"github.com/woozymasta/gamequery/internal/engine"
	"github.com/woozymasta/gamequery/internal/models"
	"github.com/woozymasta/gamequery/internal/storage"
	"github.com/woozymasta/gamequery/pkg/quake"
	"github.com/woozymasta/gamequery/pkg/quake/quaketest"
)

func newStore(t *testing.T) *storage.Repository {
	t.Helper()

	store, err := storage.New(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestRunPrunes(t *testing.T) {
	store := newStore(t)
	now := time.Now().UTC()

	for _, rec := range []models.QueryRecord{
		{QueriedAt: now.Add(-72 * time.Hour), Game: "quake3", IP: "10.0.0.1", Port: 27960, Success: true},
		{QueriedAt: now, Game: "quake3", IP: "10.0.0.1", Port: 27960},
		{QueriedAt: now, Game: "quake2", IP: "10.0.0.2", Port: 27910, Success: true},
	} {
		_, err := store.InsertRecord(rec)
		require.NoError(t, err)
	}

	cfg := &config.Config{}
	assert.False(t, Run(cfg, store, nil))

	cfg.Storage.PruneOlder = 24 * time.Hour
	cfg.Storage.PruneFailed = config.AnyGame
	assert.True(t, Run(cfg, store, nil))

	left, err := store.GetHistory(models.HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "quake2", left[0].Game)
}

func TestRecheck(t *testing.T) {
	store := newStore(t)

	srv, err := quaketest.NewServer(quaketest.Reply("status", "print", "\\hostname\\alive\n"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	dead, err := quaketest.NewServer(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dead.Close() })

	for _, rec := range []models.QueryRecord{
		{Game: "quake2", IP: "127.0.0.1", Port: int(srv.Addr().Port()), Success: true},
		{Game: "quake2", IP: "127.0.0.1", Port: int(dead.Addr().Port()), Success: true},
		{Game: "retired", IP: "127.0.0.1", Port: 1},
	} {
		_, err := store.InsertRecord(rec)
		require.NoError(t, err)
	}

	opts := engine.Options{Timeouts: quake.TimeoutSettings{Read: 50 * time.Millisecond, Attempts: 1}}
	up, down, err := Recheck(store, nil, opts, "")
	require.NoError(t, err)
	assert.Equal(t, 1, up)
	assert.Equal(t, 2, down)

	latest, err := store.GetLatest("quake2", "127.0.0.1", int(srv.Addr().Port()))
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "alive", latest.ServerName)

	history, err := store.GetHistory(models.HistoryFilter{Game: "quake2", Port: int(dead.Addr().Port())})
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.False(t, history[0].Success)
	assert.Equal(t, "timeout", history[0].ErrorKind)
}

func TestParseGame(t *testing.T) {
	assert.Empty(t, parseGame(config.AnyGame))
	assert.Equal(t, "quake3", parseGame("quake3"))
}
