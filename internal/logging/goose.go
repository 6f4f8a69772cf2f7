package logging

import (
	"context"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"
)

// GooseLogger routes goose migration output through a Logger.
type GooseLogger struct {
	l Logger
}

var _ goose.Logger = GooseLogger{}

// NewGooseLogger returns a goose.Logger writing through l. A nil l discards
// everything.
func NewGooseLogger(l Logger) goose.Logger {
	if l == nil {
		return goose.NopLogger()
	}
	return GooseLogger{l: l.With("component", "migrations")}
}

func (g GooseLogger) Printf(format string, v ...any) {
	g.l.Info(context.Background(), strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// Fatalf logs at error level and panics instead of exiting the process.
func (g GooseLogger) Fatalf(format string, v ...any) {
	msg := strings.TrimSpace(fmt.Sprintf(format, v...))
	g.l.Error(context.Background(), msg)
	panic(msg)
}
