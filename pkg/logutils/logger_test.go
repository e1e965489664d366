package logutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tagHook struct{}

func (tagHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	e.Str("tag", "hooked")
}

func TestNew_WritesToFileWithHooks(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "erpsync.log")

	l, closer, err := New("debug", file, tagHook{})
	require.NoError(t, err)

	l.Debug().Msg("poll ok")
	closer()

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"poll ok"`)
	assert.Contains(t, string(data), `"tag":"hooked"`)
}

func TestNew_RespectsLevel(t *testing.T) {
	file := filepath.Join(t.TempDir(), "erpsync.log")

	l, closer, err := New("warn", file)
	require.NoError(t, err)

	l.Info().Msg("hidden")
	l.Warn().Msg("shown")
	closer()

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	_, _, err := New("loud", "")
	assert.Error(t, err)
}
