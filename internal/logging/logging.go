// internal/logging/logging.go
// Package logging provides the operation-level diagnostic logger used by
// cmd/linhashctl. The teacher corpus never reaches for a structured
// logging framework; it writes directly to os.Stderr with fmt/log, so
// this does the same.
package logging

import (
	"io"
	"log"
	"os"
)

// Logger wraps the stdlib log.Logger with the put/get/update/contains
// vocabulary linhashctl reports against.
type Logger struct {
	*log.Logger
}

// New returns a Logger writing to w with a "linhashctl: " prefix and a
// microsecond timestamp, matching log.LstdFlags|log.Lmicroseconds.
func New(w io.Writer) *Logger {
	return &Logger{log.New(w, "linhashctl: ", log.LstdFlags|log.Lmicroseconds)}
}

// Default returns a Logger writing to os.Stderr.
func Default() *Logger {
	return New(os.Stderr)
}

// Op logs the outcome of a single store operation.
func (l *Logger) Op(name string, err error) {
	if err != nil {
		l.Printf("%s failed: %v", name, err)
		return
	}
	l.Printf("%s ok", name)
}
