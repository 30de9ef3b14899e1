package logging

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process logger. Format "json" writes raw zerolog JSON;
// anything else uses the human readable console writer. An unknown level
// falls back to info.
func New(out io.Writer, level, format string) zerolog.Logger {
	logLevel, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		logLevel = zerolog.InfoLevel
	}

	writer := out
	if !strings.EqualFold(format, "json") {
		writer = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	return zerolog.New(writer).Level(logLevel).With().Timestamp().Logger()
}
