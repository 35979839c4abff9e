package entity

import (
	"errors"
	"fmt"
)

var (
	// Message errors
	ErrMessageNotFound    = errors.New("message not found")
	ErrMessageAlreadySent = errors.New("message already sent")
	ErrMessageNotEditable = errors.New("message is not editable in its current status")

	// Group / member errors
	ErrGroupNotFound  = errors.New("group not found")
	ErrMemberNotFound = errors.New("group member not found")
	ErrNoRecipients   = errors.New("message has no usable recipients")

	// Dispatch errors
	ErrNoChannelsEnabled = errors.New("no channels enabled for user")
	ErrReminderNotFound  = errors.New("reminder not found")
	ErrReminderFired     = errors.New("reminder already fired")

	// General errors
	ErrInvalidInput     = errors.New("invalid input")
	ErrDatabaseError    = errors.New("database error")
	ErrConcurrentUpdate = errors.New("concurrent update detected")
	ErrBadSignature     = errors.New("callback signature verification failed")
)

// ValidationError reports a scheduling input the calculator rejected.
// Field names the offending input field so the caller can surface it
// next to the form control.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}
