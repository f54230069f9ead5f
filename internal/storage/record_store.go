package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"guestlist/internal/status"
	"guestlist/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
)

// RecordStore keeps enrollments in a pocketbase collection. The primary
// store goes through app.Save so collection validators and hooks run.
type RecordStore struct {
	app        core.App
	name       string
	collection string
	reduced    bool // legacy layout without attribution or credential columns
}

func NewEntryStore(app core.App) *RecordStore {
	return &RecordStore{app: app, name: TargetPrimary, collection: EntriesCollection}
}

func NewLegacyStore(app core.App) *RecordStore {
	return &RecordStore{app: app, name: TargetLegacy, collection: LegacyCollection, reduced: true}
}

func (s *RecordStore) Name() string {
	return s.name
}

func (s *RecordStore) Insert(ctx context.Context, e *models.Enrollment) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	col, err := s.app.FindCachedCollectionByNameOrId(s.collection)
	if err != nil {
		return fmt.Errorf("%s: find collection %s: %w", s.name, s.collection, err)
	}

	record := core.NewRecord(col)
	record.Set("id", e.ID)
	record.Set("event", e.EventID)
	record.Set("name", e.Name)
	record.Set("phone", e.Phone)
	record.Set("checked_in", e.CheckedIn)
	if e.CheckInTime != nil {
		record.Set("check_in_time", *e.CheckInTime)
	}
	if !e.Created.IsZero() {
		// autodate fields ignore Set; SetRaw keeps the enrollment's own time
		created, err := types.ParseDateTime(e.Created)
		if err != nil {
			return fmt.Errorf("%s: created: %w", s.name, err)
		}
		record.SetRaw("created", created)
	}
	if !s.reduced {
		record.Set("promoter_id", e.PromoterID)
		record.Set("team_id", e.TeamID)
		record.Set("credential_payload", e.CredentialPayload)
	}

	if err := s.app.SaveWithContext(ctx, record); err != nil {
		if isUniqueViolation(err) {
			return status.ErrDuplicateEnrollment
		}
		return fmt.Errorf("%s: save: %w", s.name, err)
	}
	return nil
}

func (s *RecordStore) Verify(ctx context.Context, id string) (*models.Enrollment, error) {
	return s.Find(ctx, id)
}

func (s *RecordStore) Find(ctx context.Context, id string) (*models.Enrollment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	record, err := s.app.FindRecordById(s.collection, id)
	if err != nil {
		return nil, s.lookupErr(err)
	}
	return s.toEnrollment(record), nil
}

func (s *RecordStore) FindByPhone(ctx context.Context, eventID, phone string) (*models.Enrollment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	record, err := s.app.FindFirstRecordByFilter(
		s.collection,
		"event = {:event} && phone = {:phone}",
		dbx.Params{"event": eventID, "phone": phone},
	)
	if err != nil {
		return nil, s.lookupErr(err)
	}
	return s.toEnrollment(record), nil
}

func (s *RecordStore) Count(ctx context.Context, eventID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	total, err := s.app.CountRecords(s.collection, dbx.HashExp{"event": eventID})
	if err != nil {
		return 0, fmt.Errorf("%s: count: %w", s.name, err)
	}
	return int(total), nil
}

func (s *RecordStore) ListByEvent(ctx context.Context, eventID string) ([]*models.Enrollment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records, err := s.app.FindRecordsByFilter(
		s.collection,
		"event = {:event}",
		"-created",
		0,
		0,
		dbx.Params{"event": eventID},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: list: %w", s.name, err)
	}

	out := make([]*models.Enrollment, 0, len(records))
	for _, r := range records {
		out = append(out, s.toEnrollment(r))
	}
	return out, nil
}

// MarkCheckedIn uses a conditional update so two scanners racing on the
// same guest produce exactly one check-in time.
func (s *RecordStore) MarkCheckedIn(ctx context.Context, id string, at time.Time) (bool, error) {
	stamp := at.UTC().Format(types.DefaultDateLayout)

	res, err := s.app.NonconcurrentDB().NewQuery(fmt.Sprintf(
		"UPDATE {{%s}} SET [[checked_in]] = TRUE, [[check_in_time]] = {:at}, [[updated]] = {:at} WHERE [[id]] = {:id} AND [[checked_in]] = FALSE",
		s.collection,
	)).Bind(dbx.Params{"at": stamp, "id": id}).WithContext(ctx).Execute()
	if err != nil {
		return false, fmt.Errorf("%s: check-in: %w", s.name, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: check-in: %w", s.name, err)
	}
	return n == 1, nil
}

func (s *RecordStore) lookupErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return status.ErrEnrollmentNotFound
	}
	return fmt.Errorf("%s: lookup: %w", s.name, err)
}

func (s *RecordStore) toEnrollment(r *core.Record) *models.Enrollment {
	e := &models.Enrollment{
		ID:        r.Id,
		EventID:   r.GetString("event"),
		Name:      r.GetString("name"),
		Phone:     r.GetString("phone"),
		CheckedIn: r.GetBool("checked_in"),
		Created:   r.GetDateTime("created").Time(),
		Source:    s.name,
	}
	if !s.reduced {
		e.PromoterID = r.GetString("promoter_id")
		e.TeamID = r.GetString("team_id")
		e.CredentialPayload = r.GetString("credential_payload")
	}
	if at := r.GetDateTime("check_in_time"); !at.IsZero() {
		t := at.Time()
		e.CheckInTime = &t
	}
	return e
}

// SQLTarget writes to the primary collection with a plain insert, skipping
// the record validators. It is the second attempt when app.Save fails for
// reasons other than a duplicate.
type SQLTarget struct {
	store *RecordStore
}

func NewSQLTarget(store *RecordStore) *SQLTarget {
	return &SQLTarget{store: store}
}

func (t *SQLTarget) Name() string {
	return TargetPrimarySQL
}

func (t *SQLTarget) Insert(ctx context.Context, e *models.Enrollment) error {
	created := e.Created
	if created.IsZero() {
		created = time.Now()
	}
	stamp := created.UTC().Format(types.DefaultDateLayout)

	checkInTime := ""
	if e.CheckInTime != nil {
		checkInTime = e.CheckInTime.UTC().Format(types.DefaultDateLayout)
	}

	params := dbx.Params{
		"id":            e.ID,
		"event":         e.EventID,
		"name":          e.Name,
		"phone":         e.Phone,
		"checked_in":    e.CheckedIn,
		"check_in_time": checkInTime,
		"created":       stamp,
		"updated":       stamp,
	}
	if !t.store.reduced {
		params["promoter_id"] = e.PromoterID
		params["team_id"] = e.TeamID
		params["credential_payload"] = e.CredentialPayload
	}

	_, err := t.store.app.NonconcurrentDB().Insert(t.store.collection, params).WithContext(ctx).Execute()
	if err != nil {
		if isUniqueViolation(err) {
			return status.ErrDuplicateEnrollment
		}
		return fmt.Errorf("%s: insert: %w", TargetPrimarySQL, err)
	}
	return nil
}

func (t *SQLTarget) Verify(ctx context.Context, id string) (*models.Enrollment, error) {
	e, err := t.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	e.Source = TargetPrimarySQL
	return e, nil
}
