package logchan

import (
	"io"
	"log/slog"
)

// levelSilent is above every level slog emits.
const levelSilent = slog.Level(100)

// LevelFor maps the LOG_LEVEL verbosity: 0 silent, 1 info, 2 and above debug.
func LevelFor(verbosity int) slog.Level {
	switch {
	case verbosity <= 0:
		return levelSilent
	case verbosity == 1:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// NewLogger returns a text logger writing through the channel.
func NewLogger(c *Channel, verbosity int) *slog.Logger {
	var w io.Writer = io.Discard
	if c != nil {
		w = c.Writer()
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: LevelFor(verbosity)}))
}
