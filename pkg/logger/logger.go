// backend-go/pkg/logger/logger.go
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"

	serviceName = "rxstock"
)

// Log is the global logger instance. It is mirrored into zerolog/log so
// packages can log through log.Info() without importing this one.
var Log zerolog.Logger

func init() {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = time.RFC3339Nano

	Setup(Writer(FormatConsole, os.Stdout))
}

// Writer returns the sink for a log format. Unknown formats use the console.
func Writer(format string, out io.Writer) io.Writer {
	if strings.EqualFold(strings.TrimSpace(format), FormatJSON) {
		return out
	}
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "2006-01-02 15:04:05",
	}
}

// Setup points the global logger at w at info level.
func Setup(w io.Writer) {
	Log = zerolog.New(w).
		Level(zerolog.InfoLevel).
		With().
		Timestamp().
		Caller().
		Str("service", serviceName).
		Logger()
	log.Logger = Log
}

// Configure applies the level and output format from configuration.
func Configure(level, format string) {
	Setup(Writer(format, os.Stdout))
	SetLevel(level)
}

// SetLevel sets the log level, falling back to info on anything unparseable.
func SetLevel(levelStr string) {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(levelStr)))
	if err != nil || levelStr == "" {
		Log.Warn().Str("level", levelStr).Msg("invalid log level, defaulting to info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	Log = Log.Level(level)
	log.Logger = Log
}
