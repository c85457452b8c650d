package domain

import (
	"errors"
	"fmt"
)

// PositionErrorCode classifies a location service failure.
type PositionErrorCode int

const (
	PermissionDenied PositionErrorCode = iota + 1
	PositionUnavailable
	Timeout
)

func (c PositionErrorCode) String() string {
	switch c {
	case PermissionDenied:
		return "permission_denied"
	case PositionUnavailable:
		return "position_unavailable"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// PositionError is reported by a position stream when it can no longer
// deliver fixes. It matches the sentinels below with errors.Is by code.
type PositionError struct {
	Code    PositionErrorCode
	Message string
	Err     error
}

func (e *PositionError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *PositionError) Unwrap() error { return e.Err }

// Is matches any PositionError with the same code.
func (e *PositionError) Is(target error) bool {
	t, ok := target.(*PositionError)
	return ok && t.Code == e.Code
}

var (
	ErrPermissionDenied    = &PositionError{Code: PermissionDenied, Message: "location permission denied"}
	ErrPositionUnavailable = &PositionError{Code: PositionUnavailable, Message: "position unavailable"}
	ErrTimeout             = &PositionError{Code: Timeout, Message: "no position fix within timeout"}
)

// NewPositionError builds a PositionError of the given code wrapping cause.
func NewPositionError(code PositionErrorCode, message string, cause error) *PositionError {
	return &PositionError{Code: code, Message: message, Err: cause}
}

// ErrRouteIndexOutOfRange is returned by Select for an index outside the route list.
var ErrRouteIndexOutOfRange = errors.New("route index out of range")
