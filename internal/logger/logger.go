package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

const service = "account-service"

var Logger zerolog.Logger

func Init() {
	InitWithWriter(os.Stdout)
}

// InitWithWriter configures Logger (and the zerolog global) from LOG_LEVEL and
// LOG_FORMAT.
func InitWithWriter(w io.Writer) {
	Logger = New(w, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	zlog.Logger = Logger
}

// New builds a logger. level falls back to info; format is "json" or
// "console" (default).
func New(w io.Writer, level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	if strings.EqualFold(format, "json") {
		return zerolog.New(w).With().Timestamp().Str("service", service).Logger().Level(lvl)
	}
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Str("service", service).Logger().Level(lvl)
}
