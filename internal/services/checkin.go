package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"guestlist/internal/clock"
	"guestlist/internal/status"
	"guestlist/internal/storage"
	"guestlist/models"
	"guestlist/monitoring"

	"github.com/sirupsen/logrus"
)

type CheckInResult struct {
	Enrollment       *models.Enrollment
	AlreadyCheckedIn bool
}

// CheckInProcessor moves an enrollment from enrolled to checked in. Repeat
// check-ins succeed without touching the first check-in time.
type CheckInProcessor struct {
	stores   []storage.Store
	clock    clock.Clock
	notifier CheckInNotifier
	log      logrus.FieldLogger
	metrics  *monitoring.Metrics
}

func NewCheckInProcessor(stores []storage.Store, clk clock.Clock, notifier CheckInNotifier, log logrus.FieldLogger, metrics *monitoring.Metrics) *CheckInProcessor {
	return &CheckInProcessor{stores: stores, clock: clk, notifier: notifier, log: log, metrics: metrics}
}

func (p *CheckInProcessor) CheckIn(ctx context.Context, req models.CheckInRequest) (*CheckInResult, error) {
	req.ID = strings.TrimSpace(req.ID)
	req.EventID = strings.TrimSpace(req.EventID)

	var missing []string
	if req.ID == "" {
		missing = append(missing, "id")
	}
	if req.EventID == "" {
		missing = append(missing, "event_id")
	}
	if len(missing) > 0 {
		return nil, &status.MissingFieldsError{Fields: missing}
	}
	if req.CheckedIn != nil && !*req.CheckedIn {
		return nil, status.ErrCheckInRevert
	}

	log := p.log.WithFields(logrus.Fields{"enrollment_id": req.ID, "event_id": req.EventID})

	enrollment, store, err := p.locate(ctx, req.ID)
	if err != nil {
		if errors.Is(err, status.ErrEnrollmentNotFound) {
			p.metrics.TrackCheckIn("not_found")
		}
		return nil, err
	}

	if enrollment.EventID != req.EventID {
		p.metrics.TrackCheckIn("event_mismatch")
		log.WithField("enrollment_event_id", enrollment.EventID).Warn("check-in for another event rejected")
		return nil, status.ErrEventMismatch
	}

	if enrollment.CheckedIn {
		p.metrics.TrackCheckIn("already_checked_in")
		return &CheckInResult{Enrollment: enrollment, AlreadyCheckedIn: true}, nil
	}

	now := p.clock.Now()
	changed, err := store.MarkCheckedIn(ctx, enrollment.ID, now)
	if err != nil {
		return nil, fmt.Errorf("check-in %s: %w", enrollment.ID, err)
	}

	if !changed {
		// Lost the race to another scanner: report its timestamp.
		current, err := store.Find(ctx, enrollment.ID)
		if err != nil {
			return nil, fmt.Errorf("check-in %s: reread: %w", enrollment.ID, err)
		}
		p.metrics.TrackCheckIn("already_checked_in")
		return &CheckInResult{Enrollment: current, AlreadyCheckedIn: true}, nil
	}

	enrollment.CheckedIn = true
	enrollment.CheckInTime = &now
	p.metrics.TrackCheckIn("checked_in")
	log.WithField("store", store.Name()).Info("guest checked in")

	if p.notifier != nil {
		if err := p.notifier.NotifyCheckIn(ctx, enrollment); err != nil {
			log.WithError(err).Warn("check-in notification failed")
		}
	}

	return &CheckInResult{Enrollment: enrollment}, nil
}

// locate searches the stores in write-chain order. A store that errors is
// skipped. Not found is only reported when every store answered, since the
// guest may live in the store that failed.
func (p *CheckInProcessor) locate(ctx context.Context, id string) (*models.Enrollment, storage.Store, error) {
	var lastErr error

	for _, s := range p.stores {
		e, err := s.Find(ctx, id)
		switch {
		case err == nil:
			return e, s, nil
		case errors.Is(err, status.ErrEnrollmentNotFound):
		default:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, nil, ctxErr
			}
			lastErr = err
			p.log.WithError(err).WithFields(logrus.Fields{"store": s.Name(), "enrollment_id": id}).Warn("check-in lookup skipped store")
		}
	}

	if lastErr != nil {
		return nil, nil, fmt.Errorf("locate enrollment: %w", lastErr)
	}
	return nil, nil, status.ErrEnrollmentNotFound
}
