package capability

import (
	"errors"

	"lightning-worker/go-backend/internal/contracts"
)

// Module error codes. The set is open: modules may raise codes not listed
// here and callers must treat them opaquely.
const (
	CodeNotInitialized        = "NotInitialized"
	CodeInvalidMnemonic       = "InvalidMnemonic"
	CodeIncorrectPassword     = "IncorrectPassword"
	CodeNetworkMismatch       = "NetworkMismatch"
	CodeInvoiceInvalid        = "InvoiceInvalid"
	CodeInsufficientBalance   = "InsufficientBalance"
	CodeNotFound              = "NotFound"
	CodePeerConnectionError   = "PeerConnectionError"
	CodeLspGenericError       = "LspGenericError"
	CodeLspFundingError       = "LspFundingError"
	CodeLspAmountTooHighError = "LspAmountTooHighError"
	CodeLspConnectionError    = "LspConnectionError"
	CodeChannelClosingFailed  = "ChannelClosingFailed"
	CodeAlreadyRunning        = "AlreadyRunning"
	CodeNotRunning            = "NotRunning"
	CodeDeviceLocked          = "DeviceLocked"
	CodeInvalidArgument       = "InvalidArgumentsError"
)

// Error is a structured failure raised by the module.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// Is matches another *Error by code so sentinels like ErrNotLoaded work with
// errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) || other == nil || e == nil {
		return false
	}
	return e.Code == other.Code
}

func (e *Error) ErrorCategory() string {
	return contracts.CategoryModule
}

func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// ErrNotLoaded is raised by module calls made before Load completed.
var ErrNotLoaded = &Error{Code: CodeNotInitialized, Message: "capability module not loaded"}
