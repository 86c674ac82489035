// Package observability provides logging, metrics and tracing for bundle builds.
package observability

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// SetupLogger configures the global zerolog logger to write human readable
// output to w. Colors are only used when w is a terminal.
func SetupLogger(w io.Writer, debug bool) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !term.IsTerminal(int(f.Fd()))
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, NoColor: noColor})

	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	return log.Logger
}
