package feed

import (
	"errors"
	"fmt"
)

// UnreachableError indicates the feed location could not be fetched or read
// (network failure, non-2xx response, missing file). The feed content was
// never seen; retrying may succeed.
type UnreachableError struct {
	Location string
	Err      error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("feed unreachable: %s: %v", e.Location, e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// MalformedError indicates the feed content was fetched but could not be
// decoded for its content kind. Retrying without a source-side fix will
// fail again.
type MalformedError struct {
	Location string
	Err      error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("feed malformed: %s: %v", e.Location, e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

// IsUnreachable reports whether err is an UnreachableError.
// Uses errors.As to handle wrapped errors.
func IsUnreachable(err error) bool {
	var ue *UnreachableError
	return errors.As(err, &ue)
}

// IsMalformed reports whether err is a MalformedError.
// Uses errors.As to handle wrapped errors.
func IsMalformed(err error) bool {
	var me *MalformedError
	return errors.As(err, &me)
}
