package dtf

import (
	"errors"
	"fmt"

	apperrors "github.com/muhammadchandra19/tickstore/pkg/errors"
)

// Sentinel error kinds. Every error returned by this package wraps exactly one
// of them, so callers can match with errors.Is.
var (
	ErrUnsortedInput      = errors.New("unsorted input")
	ErrEmptyInput         = errors.New("empty input")
	ErrInvalidRecord      = errors.New("invalid record")
	ErrBadMagic           = errors.New("bad magic")
	ErrUnsupportedVersion = errors.New("unsupported version")
	ErrTruncated          = errors.New("truncated")
	ErrCorrupt            = errors.New("corrupt")
	ErrOrderingViolation  = errors.New("ordering violation")
	ErrMetadataMismatch   = errors.New("metadata mismatch")
)

// Error is a codec error. Offset is the byte offset the problem was found at,
// or -1 when it does not apply.
type Error struct {
	Kind   error
	Offset int64
	Msg    string

	// Details lists one entry per mismatching metadata field.
	Details *apperrors.BaseError
}

func newError(kind error, offset int64, format string, args ...any) *Error {
	return &Error{Kind: kind, Offset: offset, Msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	msg := "dtf: " + e.Kind.Error()
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Offset >= 0 {
		msg += fmt.Sprintf(" (offset %d)", e.Offset)
	}
	if e.Details != nil && e.Details.HasDetails() {
		msg += "\n" + e.Details.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Kind
}
