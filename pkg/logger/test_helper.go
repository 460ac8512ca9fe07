package logger

import (
	"io"

	"github.com/rs/zerolog"
)

// NewTestLogger discards everything.
func NewTestLogger() Logger {
	return Logger{Logger: zerolog.Nop()}
}

// NewBufferedTestLogger writes JSON at debug level to w, for tests that
// assert on log fields.
func NewBufferedTestLogger(w io.Writer) Logger {
	return Logger{Logger: zerolog.New(w).Level(zerolog.DebugLevel)}
}
