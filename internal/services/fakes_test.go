package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"guestlist/internal/status"
	"guestlist/models"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// memoryStore is an in-memory storage target and store with switchable
// failure modes.
type memoryStore struct {
	mu      sync.Mutex
	name    string
	entries map[string]*models.Enrollment

	insertErr error
	verifyErr error
	readErr   error
	inserts   int
}

func newMemoryStore(name string) *memoryStore {
	return &memoryStore{name: name, entries: make(map[string]*models.Enrollment)}
}

func (m *memoryStore) Name() string { return m.name }

func (m *memoryStore) Insert(ctx context.Context, e *models.Enrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if m.insertErr != nil {
		return m.insertErr
	}
	for _, existing := range m.entries {
		if existing.EventID == e.EventID && existing.Phone == e.Phone {
			return status.ErrDuplicateEnrollment
		}
	}
	m.entries[e.ID] = e.Clone()
	return nil
}

func (m *memoryStore) Verify(ctx context.Context, id string) (*models.Enrollment, error) {
	if m.verifyErr != nil {
		return nil, m.verifyErr
	}
	return m.Find(ctx, id)
}

func (m *memoryStore) Find(ctx context.Context, id string) (*models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	e, ok := m.entries[id]
	if !ok {
		return nil, status.ErrEnrollmentNotFound
	}
	return e.Clone(), nil
}

func (m *memoryStore) FindByPhone(ctx context.Context, eventID, phone string) (*models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	for _, e := range m.entries {
		if e.EventID == eventID && e.Phone == phone {
			return e.Clone(), nil
		}
	}
	return nil, status.ErrEnrollmentNotFound
}

func (m *memoryStore) Count(ctx context.Context, eventID string) (int, error) {
	list, err := m.ListByEvent(ctx, eventID)
	return len(list), err
}

func (m *memoryStore) ListByEvent(ctx context.Context, eventID string) ([]*models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	var out []*models.Enrollment
	for _, e := range m.entries {
		if e.EventID == eventID {
			c := e.Clone()
			c.Source = m.name
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created.After(out[j].Created) })
	return out, nil
}

func (m *memoryStore) MarkCheckedIn(ctx context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return false, status.ErrEnrollmentNotFound
	}
	if e.CheckedIn {
		return false, nil
	}
	e.CheckedIn = true
	e.CheckInTime = &at
	return true, nil
}

func (m *memoryStore) put(e *models.Enrollment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.ID] = e.Clone()
}

func (m *memoryStore) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// eventTable serves events by id.
type eventTable map[string]*models.Event

func (t eventTable) FindEvent(ctx context.Context, id string) (*models.Event, error) {
	return t[id], nil
}

func quietLogger() logrus.FieldLogger {
	log, _ := test.NewNullLogger()
	return log
}
