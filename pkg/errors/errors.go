package errors

import (
	"context"
	"errors"
	"fmt"

	"github.com/meshforge/conduit/pkg/types"
)

// ConnError is the coded error returned by connection and transport
// construction paths. Send/disconnect are fire-and-forget and never
// return errors; the codes here cover everything else.
type ConnError struct {
	Code         string
	Message      string
	Cause        error
	ConnectionID types.ConnectionID
}

func (e *ConnError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ConnError) Unwrap() error { return e.Cause }

const (
	ErrCodeDialFailed      = "DIAL_FAILED"
	ErrCodeListenFailed    = "LISTEN_FAILED"
	ErrCodeTransportClosed = "TRANSPORT_CLOSED"
	ErrCodeTLSConfig       = "TLS_CONFIG"
	ErrCodeInvalidConfig   = "INVALID_CONFIG"
	ErrCodeHistoryStore    = "HISTORY_STORE"
)

func ErrDialFailed(addr string, cause error) *ConnError {
	return &ConnError{
		Code:    ErrCodeDialFailed,
		Message: fmt.Sprintf("dial %s", addr),
		Cause:   cause,
	}
}

func ErrListenFailed(addr string, cause error) *ConnError {
	return &ConnError{
		Code:    ErrCodeListenFailed,
		Message: fmt.Sprintf("listen %s", addr),
		Cause:   cause,
	}
}

func ErrTransportClosed() *ConnError {
	return &ConnError{
		Code:    ErrCodeTransportClosed,
		Message: "transport closed",
	}
}

func ErrTLSConfig(msg string, cause error) *ConnError {
	return &ConnError{
		Code:    ErrCodeTLSConfig,
		Message: msg,
		Cause:   cause,
	}
}

func ErrInvalidConfig(msg string, cause error) *ConnError {
	return &ConnError{
		Code:    ErrCodeInvalidConfig,
		Message: msg,
		Cause:   cause,
	}
}

func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
