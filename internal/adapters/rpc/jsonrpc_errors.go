package rpc

import (
	"errors"

	"lightning-worker/go-backend/internal/capability"
	"lightning-worker/go-backend/internal/contracts"
	"lightning-worker/go-backend/internal/worker"
)

const (
	rpcCodeParse              = -32700
	rpcCodeInvalidRequest     = -32600
	rpcCodeMethodNotFound     = -32601
	rpcCodeInvalidParams      = -32602
	rpcCodeInternal           = -32603
	rpcCodeNotReady           = -32010
	rpcCodeStopped            = -32011
	rpcCodeFailed             = -32012
	rpcCodeAlreadyConstructed = -32013
	rpcCodeConfiguration      = -32020
	rpcCodeModule             = -32030
	rpcCodeOutcomeUnknown     = -32040
	rpcCodeIdempotencyClash   = -32041
	rpcCodeVersionTooNew      = -32080
	rpcCodeVersionTooOld      = -32081
	rpcCodeNoBridge           = -32099
)

var errInvalidParams = errors.New("invalid params")

func rpcInvalidParams() *rpcError {
	return &rpcError{Code: rpcCodeInvalidParams, Message: "invalid params"}
}

type moduleErrorData struct {
	Category string `json:"category"`
	Code     string `json:"code,omitempty"`
}

// mapRPCError turns a bridge error into a JSON-RPC error. Module errors keep
// their message and code so callers can branch on them.
func mapRPCError(err error) *rpcError {
	var (
		failed  *worker.SessionFailedError
		modErr  *capability.Error
		loadErr *worker.ModuleLoadError
	)
	switch {
	case errors.Is(err, errInvalidParams):
		return rpcInvalidParams()
	case errors.Is(err, worker.ErrOutcomeUnknown):
		return &rpcError{Code: rpcCodeOutcomeUnknown, Message: err.Error()}
	case errors.Is(err, worker.ErrNotReady):
		return &rpcError{Code: rpcCodeNotReady, Message: err.Error()}
	case errors.Is(err, worker.ErrSessionStopped), errors.Is(err, worker.ErrBridgeClosed):
		return &rpcError{Code: rpcCodeStopped, Message: err.Error()}
	case errors.As(err, &failed):
		rpcErr := &rpcError{Code: rpcCodeFailed, Message: err.Error()}
		if errors.As(failed.Cause, &modErr) {
			rpcErr.Data = moduleErrorData{Category: contracts.CategoryModule, Code: modErr.Code}
		}
		return rpcErr
	case errors.Is(err, worker.ErrSessionAlreadyConstructed):
		return &rpcError{Code: rpcCodeAlreadyConstructed, Message: err.Error()}
	case contracts.ErrorCategory(err) == contracts.CategoryConfiguration:
		return &rpcError{Code: rpcCodeConfiguration, Message: err.Error()}
	case errors.As(err, &modErr):
		return &rpcError{
			Code:    rpcCodeModule,
			Message: modErr.Message,
			Data:    moduleErrorData{Category: contracts.CategoryModule, Code: modErr.Code},
		}
	case errors.As(err, &loadErr):
		return &rpcError{
			Code:    rpcCodeModule,
			Message: err.Error(),
			Data:    moduleErrorData{Category: contracts.CategoryModule},
		}
	default:
		return &rpcError{
			Code:    rpcCodeInternal,
			Message: err.Error(),
			Data:    moduleErrorData{Category: contracts.ErrorCategory(err)},
		}
	}
}
