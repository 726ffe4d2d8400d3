// Package errors defines the closed set of error kinds produced by probing,
// planning, splitting, and stitching, and a wrapping type that carries one.
package errors

import "fmt"

// Kind is a closed classification of failure. The CLI's exit code depends on
// which stage failed, not on the Kind.
type Kind int

const (
	KindFFmpeg Kind = iota
	KindNoStream
	KindOpen
	KindOutput
	KindStream
	KindWrite
	KindSeek
	KindLayout
	KindNoMem
	KindInval
	KindInput
)

func (k Kind) String() string {
	switch k {
	case KindFFmpeg:
		return "ffmpeg"
	case KindNoStream:
		return "no_stream"
	case KindOpen:
		return "open"
	case KindOutput:
		return "output"
	case KindStream:
		return "stream"
	case KindWrite:
		return "write"
	case KindSeek:
		return "seek"
	case KindLayout:
		return "layout"
	case KindNoMem:
		return "no_mem"
	case KindInval:
		return "inval"
	case KindInput:
		return "input"
	default:
		return "unknown"
	}
}

// Error wraps an underlying failure with a Kind and the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error for op failing with kind, wrapping err (which may be nil).
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the Kind from err if it (or something it wraps) is *Error.
// Returns KindInval and false if no Kind could be found.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if As(err, &e) {
		return e.Kind, true
	}
	return KindInval, false
}

// As walks err's single-error Unwrap chain and stores the first *Error it
// finds in target, so callers that only import internal/errors need not use
// the standard errors.As. Errors that unwrap to several errors are not searched.
func As(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
