// internal/config/logger.go
package config

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Logger builds the root logger. Call after Normalize.
func (l LogConfig) Logger(w io.Writer) zerolog.Logger {
	name, ok := levelName(l.Level)
	if !ok {
		name = "info"
	}
	level, err := zerolog.ParseLevel(name)
	if err != nil {
		level = zerolog.InfoLevel
	}

	if l.Format != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
