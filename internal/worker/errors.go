package worker

import (
	"errors"
	"fmt"

	"lightning-worker/go-backend/internal/contracts"
)

type lifecycleError struct {
	msg string
}

func (e *lifecycleError) Error() string         { return e.msg }
func (e *lifecycleError) ErrorCategory() string { return contracts.CategoryLifecycle }

var (
	ErrNotReady                  error = &lifecycleError{msg: "wallet session not ready"}
	ErrSessionStopped            error = &lifecycleError{msg: "wallet session stopped"}
	ErrSessionAlreadyConstructed error = &lifecycleError{msg: "wallet session already constructed"}
	ErrBridgeClosed              error = &lifecycleError{msg: "session bridge closed"}
)

// ErrOutcomeUnknown is matched by errors returned from Pending.Await when the
// caller stopped waiting before the operation completed. The operation may
// still take effect.
var ErrOutcomeUnknown = errors.New("operation outcome unknown")

type OutcomeUnknownError struct {
	Op  Op
	ID  string
	Err error
}

func (e *OutcomeUnknownError) Error() string {
	return fmt.Sprintf("%s (%s %s): %v", ErrOutcomeUnknown.Error(), e.Op, e.ID, e.Err)
}

func (e *OutcomeUnknownError) Unwrap() error { return e.Err }

func (e *OutcomeUnknownError) Is(target error) bool { return target == ErrOutcomeUnknown }

// SessionFailedError is returned for every operation after session
// construction or a restart failed. It unwraps to the recorded cause.
type SessionFailedError struct {
	Cause error
}

func (e *SessionFailedError) Error() string {
	return "wallet session failed: " + e.Cause.Error()
}

func (e *SessionFailedError) Unwrap() error         { return e.Cause }
func (e *SessionFailedError) ErrorCategory() string { return contracts.CategoryLifecycle }

// ModuleLoadError reports that the capability module could not be loaded.
type ModuleLoadError struct {
	Cause error
}

func (e *ModuleLoadError) Error() string {
	return "load capability module: " + e.Cause.Error()
}

func (e *ModuleLoadError) Unwrap() error         { return e.Cause }
func (e *ModuleLoadError) ErrorCategory() string { return contracts.CategoryModule }
