package output

import (
	"fmt"
	"io"
)

// Progress messages go to a side channel (stderr) so that stdout carries
// only the command result.

// Info prints an informational message with an info prefix.
func Info(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintln(w, "ℹ️  "+fmt.Sprintf(format, args...))
}

// Warn prints a warning message with a warning prefix.
func Warn(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintln(w, "⚠️  "+fmt.Sprintf(format, args...))
}

// Success prints a success message with a success prefix.
func Success(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintln(w, "✅ "+fmt.Sprintf(format, args...))
}
