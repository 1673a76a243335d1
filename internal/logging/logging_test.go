package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]zerolog.Level{
		"":      zerolog.InfoLevel,
		"debug": zerolog.DebugLevel,
		"INFO":  zerolog.InfoLevel,
		"warn":  zerolog.WarnLevel,
		"error": zerolog.ErrorLevel,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("trace")
	assert.Error(t, err)
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "json", zerolog.InfoLevel)
	require.NoError(t, err)

	logger.Debug().Msg("hidden")
	logger.Info().Str("component", "server").Msg("ready")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "ready", entry["message"])
	assert.Equal(t, "server", entry["component"])
	assert.Equal(t, "info", entry["level"])
	assert.Contains(t, entry, "time")
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "console", zerolog.DebugLevel)
	require.NoError(t, err)

	logger.Debug().Str("file", "a.go").Msg("file reverted")

	assert.Contains(t, buf.String(), "file reverted")
	assert.Contains(t, buf.String(), "file=a.go")
}

func TestNew_UnknownFormat(t *testing.T) {
	_, err := New(&bytes.Buffer{}, "xml", zerolog.InfoLevel)
	assert.Error(t, err)
}

func TestSetup_File(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })
	path := filepath.Join(t.TempDir(), "logs", "devbridge.log")
	logger, closer, err := Setup(Config{Level: "info", Format: "json", Output: "file", FilePath: path})
	require.NoError(t, err)

	logger.Info().Msg("to file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"to file"`)
}

func TestSetup_Errors(t *testing.T) {
	_, _, err := Setup(Config{Output: "file"})
	assert.Error(t, err)

	_, _, err = Setup(Config{Output: "syslog"})
	assert.Error(t, err)

	_, _, err = Setup(Config{Level: "loud"})
	assert.Error(t, err)
}
