// Package logger builds charmbracelet/log loggers for components. Everything
// goes to stderr since stdout carries msgpack frames in serve mode.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

var out io.Writer = os.Stderr

// New creates a component logger that follows the global log level.
func New(prefix string) *log.Logger {
	return log.NewWithOptions(out, log.Options{
		Prefix:          prefix,
		ReportCaller:    false,
		ReportTimestamp: log.GetLevel() <= log.DebugLevel,
		TimeFormat:      time.TimeOnly,
		Formatter:       log.TextFormatter,
		Level:           log.GetLevel(),
	})
}

// Setup points the package-level logger at stderr. debug turns on
// timestamps and DebugLevel; otherwise only warnings and up are shown.
func Setup(debug bool) {
	log.SetOutput(out)
	if debug {
		log.SetLevel(log.DebugLevel)
		log.SetReportTimestamp(true)
		log.SetTimeFormat(time.TimeOnly)
		return
	}
	log.SetLevel(log.WarnLevel)
	log.SetReportTimestamp(false)
}
