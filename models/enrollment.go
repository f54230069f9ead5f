package models

import (
	"time"
)

type Enrollment struct {
	ID                string     `json:"id"`
	EventID           string     `json:"event_id"`
	Name              string     `json:"name"`
	Phone             string     `json:"phone"`
	PromoterID        string     `json:"promoter_id,omitempty"`
	TeamID            string     `json:"team_id,omitempty"`
	CheckedIn         bool       `json:"checked_in"`
	CheckInTime       *time.Time `json:"check_in_time"`
	Created           time.Time  `json:"created"`
	CredentialPayload string     `json:"credential_payload,omitempty"`
	Source            string     `json:"source,omitempty"` // storage target holding the record
}

func (e *Enrollment) Clone() *Enrollment {
	c := *e
	if e.CheckInTime != nil {
		t := *e.CheckInTime
		c.CheckInTime = &t
	}
	return &c
}

type EnrollRequest struct {
	EventID    string `json:"event_id"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	PromoterID string `json:"promoter_id"`
	TeamID     string `json:"team_id"`
}

type CheckInRequest struct {
	ID        string `json:"id"`
	EventID   string `json:"event_id"`
	CheckedIn *bool  `json:"checked_in"`
}

// CredentialPayload is the identity encoded into an admission credential.
// Timestamp is the issuance time in unix milliseconds.
type CredentialPayload struct {
	EventID   string `json:"eventId"`
	GuestID   string `json:"guestId"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Timestamp int64  `json:"timestamp"`
}

const (
	CredentialImage    = "image"
	CredentialExternal = "external"
)

type Credential struct {
	URL     string `json:"url"`
	Kind    string `json:"kind"` // image, external
	Payload string `json:"payload"`
}
