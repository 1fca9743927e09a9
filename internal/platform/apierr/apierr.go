// Package apierr is the contract between the engine's usecases and the HTTP
// layer: usecases classify failures with a status and a stable machine code,
// handlers translate them onto the wire without re-deriving either.
package apierr

import "fmt"

// Error carries the HTTP status and machine-readable code for a failed
// operation alongside the underlying cause.
type Error struct {
	Status int
	Code   string
	Err    error
}

// New wraps err with the given status and code.
func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Err != nil:
		return e.Err.Error()
	case e.Code != "":
		return e.Code
	case e.Status != 0:
		return fmt.Sprintf("request failed (%d)", e.Status)
	default:
		return "request failed"
	}
}

func (e *Error) Unwrap() error { return e.Err }
