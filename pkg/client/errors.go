package client

import (
	"errors"
	"fmt"
)

// ErrType classifies client failures
type ErrType string

const (
	ErrTypeInvalidConfig ErrType = "INVALID_CONFIG"
	ErrTypeNetworkError  ErrType = "NETWORK_ERROR"
	ErrTypeBufferFull    ErrType = "BUFFER_FULL"
	ErrTypeServerError   ErrType = "SERVER_ERROR"
	ErrTypeRequestError  ErrType = "REQUEST_ERROR"
	ErrTypeCircuitOpen   ErrType = "CIRCUIT_OPEN"
	ErrTypeClosed        ErrType = "CLOSED"
)

// Error is returned by every Client and Shipper operation.
// StatusCode and Code are set when the server answered with an error envelope.
type Error struct {
	Type       ErrType `json:"type"`
	Message    string  `json:"message"`
	StatusCode int     `json:"status_code,omitempty"`
	Code       string  `json:"code,omitempty"`
	Details    any     `json:"details,omitempty"`
	Err        error   `json:"-"`
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Code != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Code)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s - %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the request may succeed
func (e *Error) Retryable() bool {
	return e.Type == ErrTypeNetworkError || e.Type == ErrTypeServerError
}

// IsRetryable reports whether err is a client Error worth retrying
func IsRetryable(err error) bool {
	var clientErr *Error
	return errors.As(err, &clientErr) && clientErr.Retryable()
}

// IsType reports whether err is a client Error of type t
func IsType(err error, t ErrType) bool {
	var clientErr *Error
	return errors.As(err, &clientErr) && clientErr.Type == t
}

func ErrInvalidConfig(message string) *Error {
	return &Error{Type: ErrTypeInvalidConfig, Message: message}
}

func ErrNetworkError(message string, err error) *Error {
	return &Error{Type: ErrTypeNetworkError, Message: message, Err: err}
}

func ErrBufferFull(message string) *Error {
	return &Error{Type: ErrTypeBufferFull, Message: message}
}

func ErrServerError(message string, err error) *Error {
	return &Error{Type: ErrTypeServerError, Message: message, Err: err}
}

func ErrClosed(message string) *Error {
	return &Error{Type: ErrTypeClosed, Message: message}
}
