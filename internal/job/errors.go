package job

import (
	"errors"
	"fmt"

	"github.com/laserline/engraver/internal/orders"
)

// ProcessError represents a failure of a side production job.
//
// The Code separates the four failure families callers react to
// differently:
//
//   - configuration: missing rule/template setup; retrying without an
//     administrative fix cannot succeed
//   - transient: renderer or verification fault; eligible for retry while
//     the attempt ceiling is not reached
//   - conflict: the side is already processing; back off and re-check
//   - not found: order or side does not exist / does not apply
type ProcessError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// OrderID identifies the affected order.
	OrderID string

	// Side identifies the affected production side.
	Side orders.Side

	// Err is the underlying cause, when one exists.
	Err error
}

// ErrorCode categorizes production job errors.
type ErrorCode string

const (
	// ErrCodeConfiguration indicates missing template/rule setup (permanent).
	ErrCodeConfiguration ErrorCode = "CONFIGURATION_ERROR"

	// ErrCodeTransient indicates a renderer or verification fault (retryable).
	ErrCodeTransient ErrorCode = "TRANSIENT_ERROR"

	// ErrCodeConflict indicates the side is already processing.
	ErrCodeConflict ErrorCode = "ALREADY_PROCESSING"

	// ErrCodeNotFound indicates the order does not exist.
	ErrCodeNotFound ErrorCode = "ORDER_NOT_FOUND"

	// ErrCodeSideNotRequired indicates the side does not apply to the order.
	ErrCodeSideNotRequired ErrorCode = "SIDE_NOT_REQUIRED"
)

// Error implements the error interface.
func (e *ProcessError) Error() string {
	if e.OrderID != "" && e.Side != "" {
		return fmt.Sprintf("%s: %s (order=%s, side=%s)", e.Code, e.Message, e.OrderID, e.Side)
	}
	if e.OrderID != "" {
		return fmt.Sprintf("%s: %s (order=%s)", e.Code, e.Message, e.OrderID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProcessError) Unwrap() error { return e.Err }

// IsConfiguration reports whether err is a configuration error.
// Uses errors.As to handle wrapped errors.
func IsConfiguration(err error) bool { return hasCode(err, ErrCodeConfiguration) }

// IsTransient reports whether err is a transient production error.
func IsTransient(err error) bool { return hasCode(err, ErrCodeTransient) }

// IsConflict reports whether err is an already-processing conflict.
func IsConflict(err error) bool { return hasCode(err, ErrCodeConflict) }

// IsNotFound reports whether err is an order-not-found error.
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsSideNotRequired reports whether err is a side-not-required error.
func IsSideNotRequired(err error) bool { return hasCode(err, ErrCodeSideNotRequired) }

func hasCode(err error, code ErrorCode) bool {
	var pe *ProcessError
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

func newProcessError(code ErrorCode, orderID string, side orders.Side, message string, err error) *ProcessError {
	return &ProcessError{
		Code:    code,
		Message: message,
		OrderID: orderID,
		Side:    side,
		Err:     err,
	}
}
