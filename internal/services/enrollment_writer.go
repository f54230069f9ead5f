package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"guestlist/internal/status"
	"guestlist/internal/storage"
	"guestlist/models"
	"guestlist/monitoring"
	"guestlist/utils"

	"github.com/sirupsen/logrus"
)

// Outcome tags what the writer achieved. Degraded is never a durable write.
type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomePersisted
	OutcomeDegraded
)

func (o Outcome) String() string {
	switch o {
	case OutcomePersisted:
		return "persisted"
	case OutcomeDegraded:
		return "degraded"
	default:
		return "failed"
	}
}

// SourceDegraded marks an enrollment that exists only in the response.
const SourceDegraded = "degraded"

type Attempt struct {
	Target   string
	Err      error
	Duration time.Duration
}

type WriteResult struct {
	Outcome    Outcome
	Source     string
	Enrollment *models.Enrollment
	Attempts   []Attempt
	Err        error // set when Outcome is OutcomeFailed
}

var errVerifyFailed = errors.New("write not readable after insert")

// EnrollmentWriter tries each storage target in order until one insert is
// verified by a re-read. A duplicate stops the chain at once.
type EnrollmentWriter struct {
	targets        []storage.Target
	breakers       map[string]*utils.CircuitBreaker
	attemptTimeout time.Duration
	hasher         *utils.PhoneHasher
	log            logrus.FieldLogger
	metrics        *monitoring.Metrics
}

type WriterOption func(*EnrollmentWriter)

func WithAttemptTimeout(d time.Duration) WriterOption {
	return func(w *EnrollmentWriter) { w.attemptTimeout = d }
}

func WithWriterMetrics(m *monitoring.Metrics) WriterOption {
	return func(w *EnrollmentWriter) { w.metrics = m }
}

func WithPhoneHasher(h *utils.PhoneHasher) WriterOption {
	return func(w *EnrollmentWriter) { w.hasher = h }
}

func WithBreakerOptions(opts ...utils.BreakerOption) WriterOption {
	return func(w *EnrollmentWriter) {
		for _, t := range w.targets {
			w.breakers[t.Name()] = utils.NewCircuitBreaker(t.Name(), opts...)
		}
	}
}

func NewEnrollmentWriter(targets []storage.Target, log logrus.FieldLogger, opts ...WriterOption) *EnrollmentWriter {
	w := &EnrollmentWriter{
		targets:        targets,
		breakers:       make(map[string]*utils.CircuitBreaker, len(targets)),
		attemptTimeout: 5 * time.Second,
		log:            log,
	}
	for _, t := range targets {
		w.breakers[t.Name()] = utils.NewCircuitBreaker(t.Name())
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write persists e. The returned result is never nil.
func (w *EnrollmentWriter) Write(ctx context.Context, e *models.Enrollment) *WriteResult {
	result := &WriteResult{}
	log := w.log.WithFields(logrus.Fields{
		"event_id":      e.EventID,
		"enrollment_id": e.ID,
		"phone_hash":    w.hasher.Hash(e.Phone),
	})

	for _, target := range w.targets {
		if err := ctx.Err(); err != nil {
			return w.fail(result, fmt.Errorf("enrollment write abandoned: %w", err))
		}

		start := time.Now()
		stored, err := w.attempt(ctx, target, e)
		elapsed := time.Since(start)
		result.Attempts = append(result.Attempts, Attempt{Target: target.Name(), Err: err, Duration: elapsed})

		entry := log.WithFields(logrus.Fields{"target": target.Name(), "duration": elapsed})

		switch {
		case err == nil:
			w.metrics.TrackPersistAttempt(target.Name(), "success", elapsed)
			entry.Info("enrollment persisted")
			stored.Source = target.Name()
			result.Outcome = OutcomePersisted
			result.Source = target.Name()
			result.Enrollment = stored
			return result

		case errors.Is(err, status.ErrDuplicateEnrollment):
			w.metrics.TrackPersistAttempt(target.Name(), "duplicate", elapsed)
			entry.Info("duplicate enrollment, chain stopped")
			return w.fail(result, status.ErrDuplicateEnrollment)

		default:
			w.metrics.TrackPersistAttempt(target.Name(), "error", elapsed)
			entry.WithError(err).Warn("storage target failed, trying next")
		}
	}

	if err := ctx.Err(); err != nil {
		return w.fail(result, fmt.Errorf("enrollment write abandoned: %w", err))
	}

	degraded := e.Clone()
	degraded.Source = SourceDegraded
	result.Outcome = OutcomeDegraded
	result.Source = SourceDegraded
	result.Enrollment = degraded
	log.WithField("attempts", len(result.Attempts)).Error("every storage target failed, enrollment is not durable")
	return result
}

func (w *EnrollmentWriter) fail(result *WriteResult, err error) *WriteResult {
	result.Outcome = OutcomeFailed
	result.Err = err
	return result
}

// attempt inserts then re-reads through the target's breaker. Duplicates
// are a business answer, not a target fault, so they leave the breaker
// untouched.
func (w *EnrollmentWriter) attempt(ctx context.Context, target storage.Target, e *models.Enrollment) (*models.Enrollment, error) {
	var duplicate bool

	out, err := w.breakers[target.Name()].Execute(ctx, func() (any, error) {
		actx, cancel := context.WithTimeout(ctx, w.attemptTimeout)
		defer cancel()

		if err := target.Insert(actx, e.Clone()); err != nil {
			if !errors.Is(err, status.ErrDuplicateEnrollment) {
				return nil, err
			}
			// An earlier target may have written this same row before its
			// re-read failed. That row is ours, not a conflict.
			existing, ferr := target.Verify(actx, e.ID)
			switch {
			case ferr == nil && ownsRow(existing, e):
				return existing, nil
			case ferr == nil || errors.Is(ferr, status.ErrEnrollmentNotFound):
				duplicate = true
				return nil, nil
			default:
				return nil, fmt.Errorf("%w: %v", errVerifyFailed, ferr)
			}
		}

		stored, err := target.Verify(actx, e.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errVerifyFailed, err)
		}
		return stored, nil
	})
	if duplicate {
		return nil, status.ErrDuplicateEnrollment
	}
	if err != nil {
		return nil, err
	}

	stored, ok := out.(*models.Enrollment)
	if !ok || stored == nil {
		return nil, errVerifyFailed
	}
	return stored, nil
}

func ownsRow(existing, e *models.Enrollment) bool {
	return existing != nil &&
		existing.ID == e.ID &&
		existing.EventID == e.EventID &&
		existing.Phone == e.Phone
}
