package services

import (
	"errors"
	"strings"
	"time"

	"guestlist/models"

	"github.com/pocketbase/pocketbase/tools/types"
)

var errWindowUnset = errors.New("window timestamp missing")

// EvaluateWindow maps an event and an instant to the guest list status. The
// window is [open, close): OPEN starts exactly at open and CLOSED starts
// exactly at close. A nil event is NOT_FOUND.
func EvaluateWindow(event *models.Event, now time.Time) models.ListStatus {
	if event == nil {
		return models.ListNotFound
	}
	if !event.IsPublished() {
		return models.ListInactive
	}

	opensAt, err := parseWindowTime(event.OpensAt)
	if err != nil {
		return models.ListError
	}
	closesAt, err := parseWindowTime(event.ClosesAt)
	if err != nil {
		return models.ListError
	}

	switch {
	case now.Before(opensAt):
		return models.ListNotYetOpen
	case !now.Before(closesAt):
		return models.ListClosed
	default:
		return models.ListOpen
	}
}

// parseWindowTime accepts the record datetime layout and RFC 3339.
func parseWindowTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errWindowUnset
	}

	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}

	dt, err := types.ParseDateTime(value)
	if err != nil {
		return time.Time{}, err
	}
	if dt.IsZero() {
		return time.Time{}, errors.New("window timestamp unparsable: " + value)
	}
	return dt.Time(), nil
}
