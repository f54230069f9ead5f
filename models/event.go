package models

const (
	EventStatusPublish   = "publish"
	EventStatusUnpublish = "unpublish"

	ListTypeGuestList = "guest_list"
	ListTypeTicketed  = "ticketed"
)

// ListStatus is the admission window state of a guest list at a given instant.
type ListStatus string

const (
	ListNotFound   ListStatus = "NOT_FOUND"
	ListError      ListStatus = "ERROR"
	ListInactive   ListStatus = "INACTIVE"
	ListNotYetOpen ListStatus = "NOT_YET_OPEN"
	ListOpen       ListStatus = "OPEN"
	ListClosed     ListStatus = "CLOSED"
)

// Event is the read-only view of an event's guest list configuration.
// OpensAt and ClosesAt are kept as stored so a malformed value can be
// reported instead of silently treated as zero.
type Event struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Status   string `json:"status"`    // publish, unpublish
	ListType string `json:"list_type"` // guest_list, ticketed
	OpensAt  string `json:"guest_list_opens_at"`
	ClosesAt string `json:"guest_list_closes_at"`
	Capacity int    `json:"guest_list_capacity"` // 0 = unbounded
}

func (e *Event) IsPublished() bool {
	return e.Status == EventStatusPublish
}

// HasGuestList reports whether the event admits guests by list rather than by ticket.
func (e *Event) HasGuestList() bool {
	return e.ListType == "" || e.ListType == ListTypeGuestList
}

func (e *Event) HasCapacity() bool {
	return e.Capacity > 0
}
