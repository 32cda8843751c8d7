// Package logtrace sets up the process-wide zerolog logger.
package logtrace

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger initializes the global logger with Unix timestamp format on
// stderr. An unknown level falls back to info.
func InitLogger(level string) zerolog.Logger {
	return initLogger(os.Stderr, level)
}

func initLogger(w io.Writer, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	log.Logger = zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	return log.Logger
}
