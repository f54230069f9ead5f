package services

import (
	"context"
	"fmt"
	"time"

	"guestlist/models"

	pubnub "github.com/pubnub/go/v7"
	"github.com/sirupsen/logrus"
)

// CheckInNotifier tells door staff screens about fresh check-ins.
type CheckInNotifier interface {
	NotifyCheckIn(ctx context.Context, e *models.Enrollment) error
}

// Publisher is the part of the realtime client the notifier needs.
type Publisher interface {
	Publish(channel string, message any) error
}

type CheckInNotice struct {
	Type        string    `json:"type"`
	EventID     string    `json:"eventId"`
	GuestID     string    `json:"guestId"`
	Name        string    `json:"name"`
	CheckInTime time.Time `json:"checkInTime"`
}

func CheckInChannel(eventID string) string {
	return fmt.Sprintf("guestlist-%s", eventID)
}

// RealtimeNotifier publishes a notice per check-in on the event channel.
type RealtimeNotifier struct {
	publisher Publisher
	log       logrus.FieldLogger
}

func NewRealtimeNotifier(publisher Publisher, log logrus.FieldLogger) *RealtimeNotifier {
	return &RealtimeNotifier{publisher: publisher, log: log}
}

func (n *RealtimeNotifier) NotifyCheckIn(ctx context.Context, e *models.Enrollment) error {
	if n.publisher == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	notice := CheckInNotice{
		Type:    "guest_checked_in",
		EventID: e.EventID,
		GuestID: e.ID,
		Name:    e.Name,
	}
	if e.CheckInTime != nil {
		notice.CheckInTime = *e.CheckInTime
	}

	if err := n.publisher.Publish(CheckInChannel(e.EventID), notice); err != nil {
		return fmt.Errorf("publish check-in: %w", err)
	}
	n.log.WithFields(logrus.Fields{"event_id": e.EventID, "enrollment_id": e.ID}).Debug("check-in published")
	return nil
}

// PubNubPublisher adapts the PubNub client to Publisher.
type PubNubPublisher struct {
	pn *pubnub.PubNub
}

// NewPubNubPublisher returns nil when no publish key is configured, which
// turns notifications off.
func NewPubNubPublisher(publishKey, subscribeKey, secretKey, userID string) *PubNubPublisher {
	if publishKey == "" {
		return nil
	}
	cfg := pubnub.NewConfigWithUserId(pubnub.UserId(userID))
	cfg.PublishKey = publishKey
	cfg.SubscribeKey = subscribeKey
	cfg.SecretKey = secretKey
	return &PubNubPublisher{pn: pubnub.NewPubNub(cfg)}
}

func (p *PubNubPublisher) Publish(channel string, message any) error {
	if p == nil || p.pn == nil {
		return nil
	}
	_, _, err := p.pn.Publish().Channel(channel).Message(message).Execute()
	return err
}
