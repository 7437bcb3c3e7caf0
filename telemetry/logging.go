package telemetry

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

func newLogger(out io.Writer, level zerolog.Level, format LogFormat) zerolog.Logger {
	if format == LogFormatPretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
