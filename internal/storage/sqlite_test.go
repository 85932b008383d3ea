package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/gamequery/internal/models"
)

func newRepo(t *testing.T) *Repository {
	t.Helper()

	repo, err := New(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	return repo
}

func record(game, ip string, port int, ok bool, at time.Time) models.QueryRecord {
	rec := models.QueryRecord{QueriedAt: at, Game: game, IP: ip, Port: port, Success: ok}
	if ok {
		rec.ServerName = game + " server"
		rec.Players = 3
		rec.MaxPlayers = 16
		rec.PingMs = 42
	} else {
		rec.ErrorKind = "timeout"
		rec.Error = "no reply"
	}

	return rec
}

func TestMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	repo, err := New(path)
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	repo, err = New(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	var applied int
	require.NoError(t, repo.db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&applied))
	assert.Equal(t, 2, applied)
}

func TestInsertAndHistory(t *testing.T) {
	repo := newRepo(t)
	now := time.Now().UTC().Truncate(time.Second)

	for i, rec := range []models.QueryRecord{
		record("quake3", "10.0.0.1", 27960, true, now.Add(-3*time.Minute)),
		record("quake3", "10.0.0.1", 27960, false, now.Add(-2*time.Minute)),
		record("quake2", "10.0.0.2", 27910, true, now.Add(-time.Minute)),
	} {
		id, err := repo.InsertRecord(rec)
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), id)
	}

	all, err := repo.GetHistory(models.HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "quake2", all[0].Game)
	assert.True(t, all[0].QueriedAt.Equal(now.Add(-time.Minute)))

	q3, err := repo.GetHistory(models.HistoryFilter{Game: "quake3", IP: "10.0.0.1", Port: 27960})
	require.NoError(t, err)
	require.Len(t, q3, 2)
	assert.False(t, q3[0].Success)
	assert.Equal(t, "timeout", q3[0].ErrorKind)
	assert.Equal(t, 16, q3[1].MaxPlayers)
	assert.Equal(t, int64(42), q3[1].PingMs)

	limited, err := repo.GetHistory(models.HistoryFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	empty, err := repo.GetHistory(models.HistoryFilter{Game: "nope"})
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestGetLatestSkipsFailures(t *testing.T) {
	repo := newRepo(t)
	now := time.Now().UTC()

	_, err := repo.InsertRecord(record("quake3", "10.0.0.1", 27960, true, now.Add(-time.Hour)))
	require.NoError(t, err)
	_, err = repo.InsertRecord(record("quake3", "10.0.0.1", 27960, false, now))
	require.NoError(t, err)

	latest, err := repo.GetLatest("quake3", "10.0.0.1", 27960)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, latest.Success)
	assert.Equal(t, "quake3 server", latest.ServerName)

	missing, err := repo.GetLatest("quake3", "10.0.0.9", 27960)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDeletes(t *testing.T) {
	repo := newRepo(t)
	now := time.Now().UTC()

	for _, rec := range []models.QueryRecord{
		record("quake3", "10.0.0.1", 27960, true, now.Add(-48*time.Hour)),
		record("quake3", "10.0.0.1", 27960, false, now),
		record("quake2", "10.0.0.2", 27910, false, now),
		record("quake2", "10.0.0.2", 27910, true, now),
	} {
		_, err := repo.InsertRecord(rec)
		require.NoError(t, err)
	}

	n, err := repo.DeleteOlderThan(now.Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.DeleteFailed("quake2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.DeleteFailed("")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	left, err := repo.GetHistory(models.HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "quake2", left[0].Game)
}

func TestGetServers(t *testing.T) {
	repo := newRepo(t)
	now := time.Now().UTC()

	for _, rec := range []models.QueryRecord{
		record("quake3", "10.0.0.1", 27960, true, now),
		record("quake3", "10.0.0.1", 27960, false, now),
		record("quake3", "10.0.0.3", 27961, true, now),
		record("quake2", "10.0.0.2", 27910, true, now),
	} {
		_, err := repo.InsertRecord(rec)
		require.NoError(t, err)
	}

	all, err := repo.GetServers("")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	q3, err := repo.GetServers("quake3")
	require.NoError(t, err)
	require.Len(t, q3, 2)
	assert.Equal(t, models.ServerRef{Game: "quake3", IP: "10.0.0.1", Port: 27960}, q3[0])
}
