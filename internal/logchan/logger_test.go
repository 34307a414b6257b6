package logchan_test

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/signalnine/netscore/internal/logchan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFor(t *testing.T) {
	assert.Greater(t, logchan.LevelFor(0), slog.LevelError)
	assert.Equal(t, slog.LevelInfo, logchan.LevelFor(1))
	assert.Equal(t, slog.LevelDebug, logchan.LevelFor(2))
	assert.Equal(t, slog.LevelDebug, logchan.LevelFor(7))
}

func TestNewLoggerWritesOneLinePerRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	ch := logchan.Open(path, logchan.Options{})
	logger := logchan.NewLogger(ch, 1)
	logger.Info("metric failed", "metric", "license", "task", "https://github.com/a/b")
	logger.Debug("hidden at info")
	ch.Close()

	lines := readLines(t, path)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "msg=\"metric failed\"")
	assert.Contains(t, lines[0], "metric=license")
}

func TestNewLoggerSilent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	ch := logchan.Open(path, logchan.Options{})
	logger := logchan.NewLogger(ch, 0)
	logger.Error("not written")
	ch.Close()
	assert.Empty(t, readLines(t, path))
}

func TestNewLoggerNilChannel(t *testing.T) {
	logger := logchan.NewLogger(nil, 2)
	logger.Info("goes nowhere")
}
