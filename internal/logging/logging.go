// Package logging holds the global logger shared by the app and the sandbox
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

var L = zerolog.New(zerolog.ConsoleWriter{
	Out:        os.Stderr,
	TimeFormat: time.RFC3339,
}).With().Timestamp().Caller().Logger()

// SetLogLevel sets the global level for every logger derived from L.
func SetLogLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

// Component returns a child logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return L.With().Str("component", name).Logger()
}
