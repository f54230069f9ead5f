package status

import (
	"errors"
	"fmt"
	"strings"

	"guestlist/models"
)

var (
	ErrMissingField         = errors.New("validation: missing required field")
	ErrInvalidField         = errors.New("validation: invalid field")
	ErrEventMismatch        = errors.New("validation: enrollment belongs to another event")
	ErrCheckInRevert        = errors.New("validation: check-in cannot be reverted")
	ErrEventNotFound        = errors.New("event: event not found")
	ErrGuestListUnavailable = errors.New("event: guest list not available")
	ErrEnrollmentNotFound   = errors.New("enrollment: enrollment not found")
	ErrCapacityReached      = errors.New("capacity: guest list is full")
	ErrDuplicateEnrollment  = errors.New("enrollment: phone already on guest list")
	ErrCredentialIssuance   = errors.New("credential: could not issue credential")
)

// WindowError rejects an enrollment outside an OPEN admission window.
type WindowError struct {
	Status models.ListStatus
}

func (e *WindowError) Error() string {
	return fmt.Sprintf("window: guest list is %s", e.Status)
}

// MissingFieldsError lists the required request fields that were empty.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingField, strings.Join(e.Fields, ", "))
}

func (e *MissingFieldsError) Unwrap() error {
	return ErrMissingField
}
