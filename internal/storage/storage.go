// Package storage holds every place an enrollment can live. Targets are
// tried in order by the enrollment writer; stores are searched in the same
// order by check-in and listing.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"guestlist/models"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	TargetPrimary    = "primary"
	TargetPrimarySQL = "primary-sql"
	TargetLegacy     = "legacy"
	TargetKV         = "fallback-kv"

	EventsCollection  = "events"
	EntriesCollection = "guest_list_entries"
	LegacyCollection  = "guests"
)

// Target is a destination the enrollment writer can insert into.
type Target interface {
	Name() string

	// Insert stores e under e.ID. A uniqueness violation on (event, phone)
	// must be reported as status.ErrDuplicateEnrollment.
	Insert(ctx context.Context, e *models.Enrollment) error

	// Verify re-reads a record written by Insert.
	Verify(ctx context.Context, id string) (*models.Enrollment, error)
}

// Store is a readable enrollment location. Lookups that find nothing
// return status.ErrEnrollmentNotFound.
type Store interface {
	Name() string
	Find(ctx context.Context, id string) (*models.Enrollment, error)
	FindByPhone(ctx context.Context, eventID, phone string) (*models.Enrollment, error)
	Count(ctx context.Context, eventID string) (int, error)
	ListByEvent(ctx context.Context, eventID string) ([]*models.Enrollment, error)

	// MarkCheckedIn flips checked_in to true only if it is still false.
	// changed is false when another request got there first.
	MarkCheckedIn(ctx context.Context, id string, at time.Time) (changed bool, err error)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return true
	}

	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			var ve validation.Error
			if errors.As(fe, &ve) && ve.Code() == "validation_not_unique" {
				return true
			}
		}
	}
	return false
}
