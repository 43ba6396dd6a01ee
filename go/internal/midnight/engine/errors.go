package engine

import (
	"context"
	"errors"
	"fmt"

	"connectrpc.com/connect"
)

// NetworkError is a failed or timed-out remote call. It is retryable.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ValidationError is the engine refusing a request, e.g. a wrong target
// count. State is unchanged and the participant may retry.
type ValidationError struct {
	Op     string
	Reason string
	// Err is the local sentinel behind the rejection, if any.
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: rejected: %s", e.Op, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Reject builds a ValidationError for engine implementations.
func Reject(op, format string, args ...any) error {
	return &ValidationError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

// IsRetryable reports whether err is a transport failure.
func IsRetryable(err error) bool {
	var n *NetworkError
	return errors.As(err, &n)
}

// UserMessage turns a failed participant action into an inline message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var v *ValidationError
	if errors.As(err, &v) {
		return v.Reason
	}
	var n *NetworkError
	if errors.As(err, &n) {
		if errors.Is(n.Err, context.DeadlineExceeded) {
			return "The server took too long to respond. Please try again."
		}
		return "Connection problem. Please try again."
	}
	return "Something went wrong. Please try again."
}

// fromConnect classifies an error returned by a connect client call.
func fromConnect(op string, err error) error {
	switch connect.CodeOf(err) {
	case connect.CodeInvalidArgument, connect.CodeFailedPrecondition,
		connect.CodePermissionDenied, connect.CodeNotFound, connect.CodeAlreadyExists:
		var ce *connect.Error
		if errors.As(err, &ce) {
			return &ValidationError{Op: op, Reason: ce.Message()}
		}
		return &ValidationError{Op: op, Reason: err.Error()}
	}
	return &NetworkError{Op: op, Err: err}
}

// toConnect maps an engine error onto a connect status for the wire.
func toConnect(err error) error {
	var v *ValidationError
	if errors.As(err, &v) {
		return connect.NewError(connect.CodeFailedPrecondition, errors.New(v.Reason))
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	}
	if errors.Is(err, context.Canceled) {
		return connect.NewError(connect.CodeCanceled, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}
