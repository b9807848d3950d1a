package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"assetbook/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	app := config.AppConfig{Name: "assetbook", Environment: "test", Version: "1.0.0"}

	t.Run("Stdout", func(t *testing.T) {
		logger, closer, err := New(config.LoggingConfig{Level: "info"}, app)
		require.NoError(t, err)
		assert.NotNil(t, logger)
		assert.Nil(t, closer)
		assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
	})

	t.Run("StderrConsole", func(t *testing.T) {
		logger, closer, err := New(config.LoggingConfig{Level: "debug", Output: "stderr", Format: "console"}, app)
		require.NoError(t, err)
		assert.Nil(t, closer)
		assert.Equal(t, zerolog.DebugLevel, logger.GetLevel())
	})

	t.Run("File", func(t *testing.T) {
		logPath := filepath.Join(t.TempDir(), "logs", "app.log")
		logger, closer, err := New(config.LoggingConfig{Level: "warn", Output: "file", FilePath: logPath}, app)
		require.NoError(t, err)
		require.NotNil(t, closer)

		logger.Warn().Msg("disk is getting full")
		require.NoError(t, closer.Close())

		data, err := os.ReadFile(logPath)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"app":"assetbook"`)
		assert.Contains(t, string(data), "disk is getting full")
	})

	t.Run("FileMissingPath", func(t *testing.T) {
		_, _, err := New(config.LoggingConfig{Output: "file"}, app)
		assert.Error(t, err)
	})

	t.Run("UnknownOutput", func(t *testing.T) {
		_, _, err := New(config.LoggingConfig{Output: "syslog"}, app)
		assert.Error(t, err)
	})
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("nonsense"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel(" ERROR "))
	assert.Equal(t, zerolog.TraceLevel, ParseLevel("trace"))
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	Component(&base, "scheduler").Info().Msg("tick")
	assert.Contains(t, buf.String(), `"component":"scheduler"`)
}
