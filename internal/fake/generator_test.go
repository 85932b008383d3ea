package fake

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/gamequery/internal/models"
	"github.com/woozymasta/gamequery/internal/storage"
)

func TestGenerate(t *testing.T) {
	store, err := storage.New(filepath.Join(t.TempDir(), "fake.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	n := generate(store, 50, rand.New(rand.NewSource(7)))
	assert.Equal(t, 50, n)

	records, err := store.GetHistory(models.HistoryFilter{Limit: 100})
	require.NoError(t, err)
	require.Len(t, records, 50)

	for _, r := range records {
		if r.Success {
			assert.LessOrEqual(t, r.Players, r.MaxPlayers)
			assert.NotEmpty(t, r.ServerName)
		} else {
			assert.NotEmpty(t, r.ErrorKind)
		}
	}
}
