package monitoring

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Metrics collects guest list counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	enrollments       *prometheus.CounterVec
	persistAttempts   *prometheus.CounterVec
	persistDuration   *prometheus.HistogramVec
	checkIns          *prometheus.CounterVec
	credentials       *prometheus.CounterVec
	windowEvaluations *prometheus.CounterVec
	capacityRejected  prometheus.Counter
	fallbackEntries   *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		enrollments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guestlist_enrollments_total",
				Help: "Enrollment requests by final outcome",
			},
			[]string{"outcome"},
		),
		persistAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guestlist_persist_attempts_total",
				Help: "Storage target attempts by target and result",
			},
			[]string{"target", "result"},
		),
		persistDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "guestlist_persist_duration_seconds",
				Help:    "Duration of a single storage target attempt",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
			},
			[]string{"target"},
		),
		checkIns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guestlist_checkins_total",
				Help: "Check-in requests by result",
			},
			[]string{"result"},
		),
		credentials: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guestlist_credentials_total",
				Help: "Issued credentials by render path",
			},
			[]string{"kind"},
		),
		windowEvaluations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guestlist_window_evaluations_total",
				Help: "Admission window evaluations by status",
			},
			[]string{"status"},
		),
		capacityRejected: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "guestlist_capacity_rejections_total",
				Help: "Enrollments rejected because the guest list was full",
			},
		),
		fallbackEntries: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "guestlist_fallback_entries",
				Help: "Enrollments held by the key-value fallback store per event",
			},
			[]string{"event_id"},
		),
	}
}

func (m *Metrics) TrackEnrollment(outcome string) {
	if m == nil {
		return
	}
	m.enrollments.WithLabelValues(outcome).Inc()
}

func (m *Metrics) TrackPersistAttempt(target, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.persistAttempts.WithLabelValues(target, result).Inc()
	m.persistDuration.WithLabelValues(target).Observe(d.Seconds())
}

func (m *Metrics) TrackCheckIn(result string) {
	if m == nil {
		return
	}
	m.checkIns.WithLabelValues(result).Inc()
}

func (m *Metrics) TrackCredential(kind string) {
	if m == nil {
		return
	}
	m.credentials.WithLabelValues(kind).Inc()
}

func (m *Metrics) TrackWindow(status string) {
	if m == nil {
		return
	}
	m.windowEvaluations.WithLabelValues(status).Inc()
}

func (m *Metrics) TrackCapacityRejected() {
	if m == nil {
		return
	}
	m.capacityRejected.Inc()
}

const fallbackIndexPattern = "guestlist:event:*"

// Monitor periodically samples the key-value fallback store so operators can
// see enrollments that still need to be moved to the primary store.
type Monitor struct {
	redis   redis.Cmdable
	metrics *Metrics
	log     logrus.FieldLogger
}

func NewMonitor(redisClient redis.Cmdable, metrics *Metrics, log logrus.FieldLogger) *Monitor {
	return &Monitor{redis: redisClient, metrics: metrics, log: log}
}

// Run samples every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.CollectFallbackMetrics(ctx); err != nil {
				m.log.WithError(err).Debug("fallback metrics collection failed")
			}
		}
	}
}

func (m *Monitor) CollectFallbackMetrics(ctx context.Context) error {
	if m.metrics == nil {
		return nil
	}

	iter := m.redis.Scan(ctx, 0, fallbackIndexPattern, 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		eventID := strings.TrimPrefix(key, "guestlist:event:")
		length, err := m.redis.SCard(ctx, key).Result()
		if err != nil {
			return err
		}
		m.metrics.fallbackEntries.WithLabelValues(eventID).Set(float64(length))
	}
	return iter.Err()
}
