package main

import (
	"errors"
	"fmt"
)

// Process exit codes.
const (
	exitOK       = 0
	exitFailure  = 1
	exitNotClean = 2
	exitConfig   = 3
)

// exitError carries the exit code of a failed command. A nil err means
// the failure was already reported to the user.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// ExitCode returns the process exit code.
func (e *exitError) ExitCode() int {
	return e.code
}

func newExitError(code int, err error) *exitError {
	return &exitError{code: code, err: err}
}

func configError(err error) *exitError {
	return newExitError(exitConfig, fmt.Errorf("configuration error: %w", err))
}

// exitCodeFor maps an error returned by a command to an exit code.
func exitCodeFor(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitFailure
}
