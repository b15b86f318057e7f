package utils

import (
	"errors"
	"fmt"
)

var ErrorRecordNotFound = errors.New("record not found")

// ValidationError is a rejected input: missing required field, empty scope
// list, unknown enum value. Always safe to show to the operator.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func NewValidationError(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// StateConflictError is an action that is illegal for the resource's current
// status (starting a non-pending task, deleting an active one, ...). The
// current status travels with the error so handlers can render a precise
// message.
type StateConflictError struct {
	CurrentStatus string
	Reason        string
}

func (e *StateConflictError) Error() string { return e.Reason }

func NewStateConflict(currentStatus string, format string, args ...interface{}) error {
	return &StateConflictError{
		CurrentStatus: currentStatus,
		Reason:        fmt.Sprintf(format, args...),
	}
}

// DuplicateCheckError signals that the (task, asset) pair already has a
// reconciliation record. Raised from the unique index, never from a
// read-then-write check.
type DuplicateCheckError struct {
	TaskId  int
	AssetId int
}

func (e *DuplicateCheckError) Error() string {
	return fmt.Sprintf("asset %d has already been checked in task %d", e.AssetId, e.TaskId)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsStateConflict(err error) bool {
	var sc *StateConflictError
	return errors.As(err, &sc)
}

func IsDuplicateCheck(err error) bool {
	var dc *DuplicateCheckError
	return errors.As(err, &dc)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrorRecordNotFound)
}

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
