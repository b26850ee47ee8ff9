package logging

import (
	"io"

	"github.com/phuslu/log"
)

// NewDebugLogger returns a console logger which emits everything down to debug level.
// This is intended for interactive debugging of the storage layer.
func NewDebugLogger() log.Logger {
	return log.Logger{
		Level:  log.DebugLevel,
		Caller: 0,
		Writer: &log.ConsoleWriter{
			ColorOutput:    false,
			EndWithMessage: true,
		},
	}
}

// Discard returns a logger which drops every record. Tests use this.
func Discard() log.Logger {
	return log.Logger{
		Level:  log.ErrorLevel,
		Writer: &log.IOWriter{Writer: io.Discard},
	}
}
