package errs

import (
	"errors"
)

// Code is a scenario error code.
type Code string

const (
	InvalidArgument   Code = "invalid_argument"
	NavigationFailed  Code = "navigation_failed"
	InteractionFailed Code = "interaction_failed"
	AssertionFailed   Code = "assertion_failed"
	Unavailable       Code = "unavailable"
	Canceled          Code = "canceled"
	Internal          Code = "internal"
)

// Process exit statuses reported by the CLI.
const (
	ExitOK          = 0
	ExitFailed      = 1
	ExitInvalid     = 2
	ExitUnavailable = 3
)

// Error is a coded scenario error.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a coded error with message.
func New(code Code, message string) error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a coded error with message and cause.
func Wrap(code Code, message string, cause error) error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     cause,
	}
}

// CodeOf returns the error code, defaulting to internal.
func CodeOf(err error) Code {
	if err == nil {
		return Internal
	}
	var coded *Error
	if errors.As(err, &coded) {
		if coded.Code == "" {
			return Internal
		}
		return coded.Code
	}
	return Internal
}

// MessageOf returns the human-readable explanation of a failure.
// Uncoded errors fall back to their own text so a failed scenario never
// reports an empty reason.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var coded *Error
	if errors.As(err, &coded) && coded.Message != "" {
		return coded.Message
	}
	return err.Error()
}

// ExitCode maps an error code to the CLI exit status.
func ExitCode(code Code) int {
	switch code {
	case InvalidArgument:
		return ExitInvalid
	case Unavailable:
		return ExitUnavailable
	default:
		return ExitFailed
	}
}
