package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_GuestListFlags(t *testing.T) {
	tests := []struct {
		name        string
		event       Event
		published   bool
		guestList   bool
		hasCapacity bool
	}{
		{"published guest list", Event{Status: EventStatusPublish, ListType: ListTypeGuestList, Capacity: 10}, true, true, true},
		{"missing list type defaults to guest list", Event{Status: EventStatusPublish}, true, true, false},
		{"ticketed", Event{Status: EventStatusPublish, ListType: ListTypeTicketed}, true, false, false},
		{"unpublished", Event{Status: EventStatusUnpublish, ListType: ListTypeGuestList}, false, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.published, tt.event.IsPublished())
			assert.Equal(t, tt.guestList, tt.event.HasGuestList())
			assert.Equal(t, tt.hasCapacity, tt.event.HasCapacity())
		})
	}
}

func TestEnrollment_CloneDetachesCheckInTime(t *testing.T) {
	at := time.Date(2024, 1, 1, 21, 0, 0, 0, time.UTC)
	original := &Enrollment{ID: "abc", CheckedIn: true, CheckInTime: &at}

	clone := original.Clone()
	*clone.CheckInTime = at.Add(time.Hour)

	assert.Equal(t, at, *original.CheckInTime)
}

func TestEnrollment_UncheckedSerializesNullCheckInTime(t *testing.T) {
	e := Enrollment{ID: "abc", EventID: "evt", Name: "Ana", Phone: "+351911111111"}

	data, err := json.Marshal(e)
	require.NoError(t, err)

	assert.Contains(t, string(data), `"check_in_time":null`)
	assert.Contains(t, string(data), `"checked_in":false`)
	assert.NotContains(t, string(data), "promoter_id")
}

func TestCredentialPayload_WireNames(t *testing.T) {
	p := CredentialPayload{EventID: "evt", GuestID: "g1", Name: "Ana", Phone: "+351911111111", Timestamp: 1704139200000}

	data, err := json.Marshal(p)
	require.NoError(t, err)

	assert.JSONEq(t, `{"eventId":"evt","guestId":"g1","name":"Ana","phone":"+351911111111","timestamp":1704139200000}`, string(data))
}
