package motion

import (
	"context"
	"errors"
	"fmt"
)

// PreconditionError rejects an activity before it has any side effect.
// The console reports it as a notice, not a failure.
type PreconditionError struct {
	msg string
}

func (e *PreconditionError) Error() string { return e.msg }

// Precondition returns a new precondition error with the given message.
func Precondition(msg string) error {
	return &PreconditionError{msg: msg}
}

// IsPrecondition reports whether err is, or wraps, a precondition error.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

var (
	ErrBusy         = Precondition("another motion activity is running")
	ErrNotConnected = Precondition("link not connected")
	ErrTooFewPoints = Precondition("sequence needs at least 2 points")

	// ErrStopped reports an activity that ended because it was cancelled.
	ErrStopped = errors.New("stopped")

	// ErrLinkClosed is the cause of a TransportError raised when the link
	// was detached while an activity was running.
	ErrLinkClosed = errors.New("link closed")
)

// TransportError reports a line the link failed to send. It aborts the
// activity that produced the line.
type TransportError struct {
	Line string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("send %q: %v", e.Line, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// stopped returns an ErrStopped-wrapping error if ctx is done.
func stopped(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrStopped, context.Cause(ctx))
}
