package logging

import (
	"io"
	"os"
	"strings"

	"pawshop-economy/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var output io.Writer = os.Stdout

// Init configures the global zerolog logger. When cfg.File is set, logs go to
// a size-capped file instead of stdout; the same writer feeds the HTTP request
// logger via Writer.
func Init(cfg config.LogConfig) {
	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level))); err == nil && cfg.Level != "" {
		level = parsed
	}

	output = os.Stdout
	if cfg.File != "" {
		if w, err := newCappedFileWriter(cfg.File, cfg.MaxMB); err == nil {
			output = w
		} else {
			log.Error().Err(err).Str("path", cfg.File).Msg("log file unavailable, falling back to stdout")
		}
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// Writer returns the destination Init selected, for handing to non-zerolog
// log consumers (the slog-based request logger).
func Writer() io.Writer {
	return output
}
