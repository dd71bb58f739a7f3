package models

import (
	"errors"
	"fmt"
)

// Sentinel outcomes. ErrExhausted is a legitimate selector result, not a
// failure.
var (
	ErrExhausted = errors.New("no eligible titles remain")
	ErrNotFound  = errors.New("not found")
)

// ValidationError reports a bad filter input. It is recoverable: the state
// machine surfaces it in place and the user re-prompts.
type ValidationError struct {
	Field  FilterField
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvalidTransitionError reports an event that is not valid in the current
// state. The state machine turns it into a no-op notice; it never escapes
// as a failure.
type InvalidTransitionError struct {
	Node  Node
	Event EventType
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("event %s is not valid in state %s", e.Event, e.Node)
}

// StoreError wraps a transient infrastructure failure from a backing store.
// The pending transition fails closed and the caller may safely retry the
// same event.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store failure during %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsStoreError reports whether err originates from an unreachable or failing
// backing store.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
