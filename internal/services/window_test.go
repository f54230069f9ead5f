package services

import (
	"testing"
	"time"

	"guestlist/models"

	"github.com/stretchr/testify/assert"
)

func windowEvent() *models.Event {
	return &models.Event{
		ID:       "evt",
		Status:   models.EventStatusPublish,
		ListType: models.ListTypeGuestList,
		OpensAt:  "2024-01-01T20:00:00Z",
		ClosesAt: "2024-01-02T02:00:00Z",
	}
}

func TestEvaluateWindow(t *testing.T) {
	at := func(s string) time.Time {
		v, err := time.Parse(time.RFC3339, s)
		if err != nil {
			t.Fatal(err)
		}
		return v
	}

	unpublished := windowEvent()
	unpublished.Status = models.EventStatusUnpublish

	missingClose := windowEvent()
	missingClose.ClosesAt = ""

	garbage := windowEvent()
	garbage.OpensAt = "next friday"

	recordLayout := windowEvent()
	recordLayout.OpensAt = "2024-01-01 20:00:00.000Z"
	recordLayout.ClosesAt = "2024-01-02 02:00:00.000Z"

	tests := []struct {
		name  string
		event *models.Event
		now   time.Time
		want  models.ListStatus
	}{
		{"absent event", nil, at("2024-01-01T21:00:00Z"), models.ListNotFound},
		{"unpublished wins over window", unpublished, at("2024-01-01T21:00:00Z"), models.ListInactive},
		{"missing close", missingClose, at("2024-01-01T21:00:00Z"), models.ListError},
		{"unparsable open", garbage, at("2024-01-01T21:00:00Z"), models.ListError},
		{"one minute before open", windowEvent(), at("2024-01-01T19:59:00Z"), models.ListNotYetOpen},
		{"one nanosecond before open", windowEvent(), at("2024-01-01T20:00:00Z").Add(-time.Nanosecond), models.ListNotYetOpen},
		{"exactly at open", windowEvent(), at("2024-01-01T20:00:00Z"), models.ListOpen},
		{"inside window", windowEvent(), at("2024-01-01T23:30:00Z"), models.ListOpen},
		{"just before close", windowEvent(), at("2024-01-02T02:00:00Z").Add(-time.Nanosecond), models.ListOpen},
		{"exactly at close", windowEvent(), at("2024-01-02T02:00:00Z"), models.ListClosed},
		{"after close", windowEvent(), at("2024-01-03T00:00:00Z"), models.ListClosed},
		{"record datetime layout", recordLayout, at("2024-01-01T20:00:00Z"), models.ListOpen},
		{"other timezone offset", windowEvent(), time.Date(2024, 1, 1, 21, 0, 0, 0, time.FixedZone("CET", 3600)), models.ListOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EvaluateWindow(tt.event, tt.now))
		})
	}
}
