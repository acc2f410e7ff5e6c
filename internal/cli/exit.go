package cli

import (
	"context"
	stderrors "errors"

	"github.com/sariayt/LGC-EQTY/pkg/errors"
)

// Process exit statuses.
const (
	ExitFailure     = 1
	ExitUsage       = 2
	ExitInterrupted = 130
)

// ExitCode maps a command error to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case stderrors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, errors.ErrCodeInvalidInput):
		return ExitUsage
	}
	return ExitFailure
}

// ErrorMessage renders err for the terminal. Structured errors show their
// message and cause, followed by the code as a dimmed tag.
func ErrorMessage(err error) string {
	code := errors.GetCode(err)
	if code == "" {
		return "Error: " + err.Error()
	}
	msg := errors.UserMessage(err)
	var e *errors.Error
	if stderrors.As(err, &e) && e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return "Error: " + msg + " " + styleTag.Render("["+string(code)+"]")
}
