package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/c360studio/greeting-e2e/client"
	"github.com/c360studio/greeting-e2e/config"
	"github.com/c360studio/greeting-e2e/verify"
)

// Exit codes.
const (
	ExitSuccess      = 0
	ExitFailed       = 1 // verification failed or the run was interrupted
	ExitConfigError  = 2 // invalid configuration or parameters
	ExitServiceError = 3 // a service could not be reached or answered badly
)

// ExitError carries the process exit code of a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func newExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func wrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// exitCode extracts the exit code from err. Errors that carry no code are
// usage errors from the command line parser.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitConfigError
}

// classifyRunError maps an engine error onto an exit code.
func classifyRunError(err error) *ExitError {
	var (
		cfgErr     *config.Error
		invalidErr *config.ValidationError
	)
	switch {
	case verify.IsTimeout(err):
		return wrapExitError(ExitFailed, "verification failed", err)
	case errors.Is(err, verify.ErrInvalidParams),
		errors.As(err, &cfgErr),
		errors.As(err, &invalidErr):
		return wrapExitError(ExitConfigError, "invalid configuration", err)
	case client.IsTransport(err):
		return wrapExitError(ExitServiceError, "service error", err)
	case errors.Is(err, context.Canceled):
		return wrapExitError(ExitFailed, "run interrupted", err)
	default:
		return wrapExitError(ExitFailed, "run failed", err)
	}
}
