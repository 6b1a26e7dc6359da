// internal/status/errors.go
package status

import (
	"errors"
	"fmt"
)

// Code is the status taxonomy returned across the management surface.
type Code uint16

const (
	Ok Code = iota
	NotOk
	HardwareError
	InvalidParameters
	NotFound
)

func (c Code) String() string {
	switch c {
	case Ok:
		return "ok"
	case NotOk:
		return "not ok"
	case HardwareError:
		return "hardware error"
	case InvalidParameters:
		return "invalid parameters"
	case NotFound:
		return "not found"
	default:
		return fmt.Sprintf("code(%d)", uint16(c))
	}
}

// Sentinels for errors.Is. Any *Error matches the sentinel of its code.
var (
	ErrNotOk             = &Error{Code: NotOk}
	ErrHardware          = &Error{Code: HardwareError}
	ErrInvalidParameters = &Error{Code: InvalidParameters}
	ErrNotFound          = &Error{Code: NotFound}
)

// Error carries a status code, the failing operation and an optional cause.
type Error struct {
	Code Code
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op == "" && e.Err == nil:
		return e.Code.String()
	case e.Err == nil:
		return e.Op + ": " + e.Code.String()
	case e.Op == "":
		return e.Code.String() + ": " + e.Err.Error()
	default:
		return e.Op + ": " + e.Code.String() + ": " + e.Err.Error()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// ErrorCode exposes the raw code for generic error-code extraction.
func (e *Error) ErrorCode() uint16 { return uint16(e.Code) }

// Errorf builds an *Error for op with a formatted cause.
func Errorf(code Code, op, format string, args ...any) error {
	return &Error{Code: code, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches a code to err. A nil err yields nil.
func Wrap(code Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Op: op, Err: err}
}

// CodeOf maps err to its status code. nil is Ok; errors without a code are NotOk.
func CodeOf(err error) Code {
	if err == nil {
		return Ok
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return NotOk
}
