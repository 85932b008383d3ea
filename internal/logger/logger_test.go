package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupFileJSON(t *testing.T) {
	old, oldLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = old
		zerolog.SetGlobalLevel(oldLevel)
	})

	path := filepath.Join(t.TempDir(), "app.log")
	closer := Setup(Config{Level: "debug", Format: "json", Output: path})

	log.Debug().Str("game", "quake3").Msg("hello")
	log.Trace().Msg("hidden")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"game":"quake3"`)
	assert.NotContains(t, string(data), "hidden")
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

func TestSetupBadLevel(t *testing.T) {
	old, oldLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = old
		zerolog.SetGlobalLevel(oldLevel)
	})

	closer := Setup(Config{Level: "loud", Output: "stderr"})
	assert.NoError(t, closer.Close())
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
