package remote

import (
	"errors"
	"fmt"
)

// Kind classifies a remote failure for the retry policy.
type Kind string

const (
	// KindUnavailable covers timeouts, connectivity loss and throttling.
	KindUnavailable Kind = "unavailable"
	// KindTerminal covers rejections that retrying will not fix.
	KindTerminal Kind = "terminal"
)

// Error is returned by every Store operation that reached, or tried to
// reach, the remote side.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("remote %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a remote failure worth retrying.
func IsRetryable(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == KindUnavailable
}

// IsTerminal reports whether err is a remote rejection.
func IsTerminal(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == KindTerminal
}

func unavailable(op string, err error) error {
	return &Error{Op: op, Kind: KindUnavailable, Err: err}
}

func terminal(op string, err error) error {
	return &Error{Op: op, Kind: KindTerminal, Err: err}
}
