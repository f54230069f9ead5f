package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"guestlist/internal/clock"
	"guestlist/internal/status"
	"guestlist/internal/storage"
	"guestlist/models"
	"guestlist/monitoring"
	"guestlist/utils"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/sirupsen/logrus"
)

// EventProvider returns nil, nil for an unknown event.
type EventProvider interface {
	FindEvent(ctx context.Context, id string) (*models.Event, error)
}

type EnrollResult struct {
	Enrollment *models.Enrollment
	Outcome    Outcome
	Source     string
	Credential *models.Credential
}

type WindowReport struct {
	EventID   string            `json:"event_id"`
	Name      string            `json:"name,omitempty"`
	Status    models.ListStatus `json:"status"`
	OpensAt   string            `json:"opens_at,omitempty"`
	ClosesAt  string            `json:"closes_at,omitempty"`
	Capacity  int               `json:"capacity"`
	Count     int               `json:"count"`
	Remaining int               `json:"remaining"` // -1 when unbounded
}

type GuestListDeps struct {
	Events   EventProvider
	Stores   []storage.Store
	Capacity *CapacityGuard
	Writer   *EnrollmentWriter
	Issuer   *CredentialIssuer
	Clock    clock.Clock
	Hasher   *utils.PhoneHasher
	Log      logrus.FieldLogger
	Metrics  *monitoring.Metrics
	NewID    func() (string, error)
}

// GuestListService runs an enrollment through the window, duplicate and
// capacity gates before handing it to the writer and credential issuer.
type GuestListService struct {
	events   EventProvider
	stores   []storage.Store
	capacity *CapacityGuard
	writer   *EnrollmentWriter
	issuer   *CredentialIssuer
	clock    clock.Clock
	hasher   *utils.PhoneHasher
	log      logrus.FieldLogger
	metrics  *monitoring.Metrics
	newID    func() (string, error)
}

func NewGuestListService(deps GuestListDeps) *GuestListService {
	s := &GuestListService{
		events:   deps.Events,
		stores:   deps.Stores,
		capacity: deps.Capacity,
		writer:   deps.Writer,
		issuer:   deps.Issuer,
		clock:    deps.Clock,
		hasher:   deps.Hasher,
		log:      deps.Log,
		metrics:  deps.Metrics,
		newID:    deps.NewID,
	}
	if s.clock == nil {
		s.clock = clock.NewSystem()
	}
	if s.newID == nil {
		s.newID = utils.NewEnrollmentID
	}
	return s
}

func normalizeEnroll(req models.EnrollRequest) models.EnrollRequest {
	req.EventID = strings.TrimSpace(req.EventID)
	req.Name = strings.Join(strings.Fields(req.Name), " ")
	req.Phone = utils.NormalizePhone(req.Phone)
	req.PromoterID = strings.TrimSpace(req.PromoterID)
	req.TeamID = strings.TrimSpace(req.TeamID)
	return req
}

func validateEnroll(req models.EnrollRequest) error {
	err := validation.ValidateStruct(&req,
		validation.Field(&req.EventID, validation.Required),
		validation.Field(&req.Name, validation.Required, validation.RuneLength(1, 200)),
		validation.Field(&req.Phone, validation.Required, validation.Length(6, 20)),
	)
	if err == nil {
		return nil
	}

	var fieldErrs validation.Errors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", status.ErrInvalidField, err)
	}

	var missing []string
	for field, fe := range fieldErrs {
		var ve validation.Error
		if errors.As(fe, &ve) && ve.Code() == validation.ErrRequired.Code() {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &status.MissingFieldsError{Fields: missing}
	}
	return fmt.Errorf("%w: %v", status.ErrInvalidField, err)
}

func (s *GuestListService) Enroll(ctx context.Context, req models.EnrollRequest) (*EnrollResult, error) {
	req = normalizeEnroll(req)
	if err := validateEnroll(req); err != nil {
		s.metrics.TrackEnrollment("invalid")
		return nil, err
	}

	log := s.log.WithFields(logrus.Fields{
		"event_id":   req.EventID,
		"phone_hash": s.hasher.Hash(req.Phone),
	})

	event, err := s.events.FindEvent(ctx, req.EventID)
	if err != nil {
		return nil, fmt.Errorf("load event: %w", err)
	}
	if event == nil {
		return nil, status.ErrEventNotFound
	}
	if !event.HasGuestList() {
		return nil, status.ErrGuestListUnavailable
	}

	now := s.clock.Now()
	listStatus := EvaluateWindow(event, now)
	s.metrics.TrackWindow(string(listStatus))
	if listStatus != models.ListOpen {
		s.metrics.TrackEnrollment("window_" + strings.ToLower(string(listStatus)))
		return nil, &status.WindowError{Status: listStatus}
	}

	if err := s.checkDuplicate(ctx, event.ID, req.Phone); err != nil {
		s.metrics.TrackEnrollment("duplicate")
		return nil, err
	}

	reserved, err := s.admit(ctx, log, event)
	if err != nil {
		return nil, err
	}

	id, err := s.newID()
	if err != nil {
		s.release(ctx, event.ID, reserved)
		return nil, fmt.Errorf("generate enrollment id: %w", err)
	}

	encoded, err := EncodePayload(models.CredentialPayload{
		EventID:   event.ID,
		GuestID:   id,
		Name:      req.Name,
		Phone:     req.Phone,
		Timestamp: now.UnixMilli(),
	})
	if err != nil {
		s.release(ctx, event.ID, reserved)
		return nil, fmt.Errorf("encode credential payload: %w", err)
	}

	result := s.writer.Write(ctx, &models.Enrollment{
		ID:                id,
		EventID:           event.ID,
		Name:              req.Name,
		Phone:             req.Phone,
		PromoterID:        req.PromoterID,
		TeamID:            req.TeamID,
		Created:           now,
		CredentialPayload: encoded,
	})
	if result.Outcome == OutcomeFailed {
		s.release(ctx, event.ID, reserved)
		if errors.Is(result.Err, status.ErrDuplicateEnrollment) {
			s.metrics.TrackEnrollment("duplicate")
		} else {
			s.metrics.TrackEnrollment("failed")
		}
		return nil, result.Err
	}

	// The record exists from here on, so the slot stays taken even if the
	// credential cannot be drawn.
	credential, err := s.issuer.Issue(encoded)
	if err != nil {
		s.metrics.TrackEnrollment("credential_failed")
		log.WithError(err).WithField("enrollment_id", id).Error("enrollment stored but credential issuance failed")
		return nil, err
	}

	s.metrics.TrackEnrollment(result.Outcome.String())
	return &EnrollResult{
		Enrollment: result.Enrollment,
		Outcome:    result.Outcome,
		Source:     result.Source,
		Credential: credential,
	}, nil
}

// admit applies the capacity gate. reserved reports whether a slot was
// taken in Redis and must be given back if the write fails.
func (s *GuestListService) admit(ctx context.Context, log logrus.FieldLogger, event *models.Event) (reserved bool, err error) {
	if !event.HasCapacity() || s.capacity == nil {
		return false, nil
	}

	decision, err := s.capacity.Check(ctx, event.ID, event.Capacity)
	if err != nil {
		return false, err
	}
	if !decision.Accept {
		s.metrics.TrackCapacityRejected()
		s.metrics.TrackEnrollment("capacity_reached")
		return false, status.ErrCapacityReached
	}

	ok, err := s.capacity.Reserve(ctx, event.ID, event.Capacity, decision.Count)
	switch {
	case err != nil:
		log.WithError(err).Warn("capacity reservation unavailable, relying on count")
		return false, nil
	case !ok:
		s.metrics.TrackCapacityRejected()
		s.metrics.TrackEnrollment("capacity_reached")
		return false, status.ErrCapacityReached
	default:
		return true, nil
	}
}

func (s *GuestListService) release(ctx context.Context, eventID string, reserved bool) {
	if reserved {
		s.capacity.Release(context.WithoutCancel(ctx), eventID)
	}
}

func (s *GuestListService) checkDuplicate(ctx context.Context, eventID, phone string) error {
	for _, store := range s.stores {
		_, err := store.FindByPhone(ctx, eventID, phone)
		switch {
		case err == nil:
			return status.ErrDuplicateEnrollment
		case errors.Is(err, status.ErrEnrollmentNotFound):
		default:
			s.log.WithError(err).WithFields(logrus.Fields{
				"event_id": eventID,
				"store":    store.Name(),
			}).Warn("duplicate check skipped store")
		}
	}
	return nil
}

// List merges the event's enrollments from every store, newest first. An
// id found in more than one store is reported from the earliest store.
func (s *GuestListService) List(ctx context.Context, eventID string) ([]*models.Enrollment, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, &status.MissingFieldsError{Fields: []string{"event_id"}}
	}

	seen := make(map[string]struct{})
	out := make([]*models.Enrollment, 0)
	answered := 0
	var lastErr error

	for _, store := range s.stores {
		list, err := store.ListByEvent(ctx, eventID)
		if err != nil {
			lastErr = err
			s.log.WithError(err).WithFields(logrus.Fields{
				"event_id": eventID,
				"store":    store.Name(),
			}).Warn("listing skipped store")
			continue
		}
		answered++
		for _, e := range list {
			if _, dup := seen[e.ID]; dup {
				continue
			}
			seen[e.ID] = struct{}{}
			out = append(out, e)
		}
	}

	if answered == 0 && lastErr != nil {
		return nil, fmt.Errorf("list enrollments: %w", lastErr)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Created.After(out[j].Created)
	})
	return out, nil
}

// Window reports the current admission state of an event together with
// capacity usage.
func (s *GuestListService) Window(ctx context.Context, eventID string) (*WindowReport, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, &status.MissingFieldsError{Fields: []string{"event_id"}}
	}

	event, err := s.events.FindEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("load event: %w", err)
	}

	report := &WindowReport{EventID: eventID, Remaining: -1}
	if event == nil || !event.HasGuestList() {
		report.Status = models.ListNotFound
		return report, nil
	}

	report.Name = event.Name
	report.Status = EvaluateWindow(event, s.clock.Now())
	report.OpensAt = event.OpensAt
	report.ClosesAt = event.ClosesAt
	report.Capacity = event.Capacity

	if s.capacity != nil {
		decision, err := s.capacity.Check(ctx, event.ID, event.Capacity)
		if err != nil {
			return nil, err
		}
		report.Count = decision.Count
		report.Remaining = decision.Remaining
	}
	return report, nil
}
