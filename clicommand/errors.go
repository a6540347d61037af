package clicommand

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kvenv/kvenv/internal/actions"
)

// Exit codes for the failures kvenv can tell apart.
const (
	ExitCodeError  = 1
	ExitCodeConfig = 2
)

// ExitError is used to signal that the command should exit with the exit code
// in `code`. It also wraps an error, which can be used to provide more context.
type ExitError struct {
	code  int
	inner error
}

// NewExitError returns ExitError with the given code and wrapped error.
func NewExitError(code int, err error) *ExitError {
	return &ExitError{code: code, inner: err}
}

// Code returns the exit code.
func (e *ExitError) Code() int {
	return e.code
}

// Error prints the message of the wrapped error. It ignores the exit code.
func (e *ExitError) Error() string {
	return e.inner.Error()
}

// Unwrap returns the wrapped error.
func (e *ExitError) Unwrap() error {
	return e.inner
}

// Is will return true if the target is an ExitError with the same code.
func (e *ExitError) Is(target error) bool {
	terr, ok := target.(*ExitError)
	return ok && e.code == terr.code
}

// PrintMessageAndReturnExitCode prints the error message to stderr, preceded
// by "kvenv: fatal: ", surfaces it to the workflow as a ::error:: command on
// stdout, and returns the exit code for the given error. If `err` is an
// ExitError it returns the code from that. Otherwise it returns 0 for nil
// errors and 1 for all other errors.
func PrintMessageAndReturnExitCode(err error) int {
	return printMessageAndReturnExitCode(os.Stderr, os.Stdout, err)
}

func printMessageAndReturnExitCode(stderr, stdout io.Writer, err error) int {
	if err == nil {
		return 0
	}

	fmt.Fprintf(stderr, "kvenv: fatal: %s\n", err)
	actions.New(stdout).Error("%s", err)

	if eerr := new(ExitError); errors.As(err, &eerr) {
		return eerr.Code()
	}

	return ExitCodeError
}
