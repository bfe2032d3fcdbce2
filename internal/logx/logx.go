// Package logx wires the process-wide structured logger.
package logx

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds a zerolog.Logger writing human-readable console output at
// the given level (debug, info, warn, error). Unknown levels default to
// info.
func New(level string) zerolog.Logger {
	w := zerolog.ConsoleWriter{Out: io.Writer(os.Stderr), TimeFormat: time.RFC3339}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// Component returns a child logger tagged with a component name, used at
// every package boundary (ingest, parser, executor, ...) so log lines are
// filterable by stage.
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
