package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// New builds the process-wide logger at the given level. Callers thread
// the returned Logger through constructors explicitly; there is no
// package-level global.
func New(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger().Level(lvl)
}
