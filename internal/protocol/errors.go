package protocol

import (
	"errors"
	"fmt"
)

// Failure kinds. Every *Error unwraps to exactly one of these, so callers
// classify with errors.Is(err, protocol.ErrTruncated) and friends.
var (
	ErrTransport = errors.New("transport error")
	ErrTruncated = errors.New("truncated transfer")
	ErrFile      = errors.New("file error")
	ErrFrame     = errors.New("frame error")
)

var kinds = []error{ErrTransport, ErrTruncated, ErrFile, ErrFrame}

// Error is a failure at one step of a transfer. Any Error is terminal for the
// session that produced it.
type Error struct {
	Kind error  // one of the Err* kinds above
	Op   string // step that failed, e.g. "write header"
	Err  error  // underlying cause, may be nil
}

// Fail builds an *Error of the given kind.
func Fail(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the failure kind carried by err, or nil when err is not a
// classified transfer failure.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
