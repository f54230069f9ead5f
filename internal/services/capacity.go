package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// reserveSlotScript seeds the counter from the stored count the first time,
// then increments it only while it is below the maximum.
// KEYS[1] counter, ARGV[1] max, ARGV[2] stored count, ARGV[3] ttl seconds.
const reserveSlotScript = `
local current = redis.call('GET', KEYS[1])
if not current then
	current = tonumber(ARGV[2])
	redis.call('SET', KEYS[1], current, 'EX', ARGV[3])
else
	current = tonumber(current)
end
if current >= tonumber(ARGV[1]) then
	return 0
end
redis.call('INCR', KEYS[1])
redis.call('EXPIRE', KEYS[1], ARGV[3])
return 1
`

const releaseSlotScript = `
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current > 0 then
	return redis.call('DECR', KEYS[1])
end
return 0
`

// Counter is anything that can count an event's enrollments.
type Counter interface {
	Name() string
	Count(ctx context.Context, eventID string) (int, error)
}

type CapacityDecision struct {
	Accept    bool
	Count     int
	Remaining int // -1 when the list is unbounded
}

// CapacityGuard decides whether an event still has room. Check is an
// advisory read; Reserve closes the race between concurrent enrollments.
type CapacityGuard struct {
	counters []Counter
	redis    redis.Cmdable
	ttl      time.Duration
	log      logrus.FieldLogger
}

func NewCapacityGuard(counters []Counter, redisClient redis.Cmdable, ttl time.Duration, log logrus.FieldLogger) *CapacityGuard {
	switch {
	case ttl <= 0:
		ttl = 10 * time.Minute
	case ttl < time.Second:
		// EX takes whole seconds and rejects 0
		ttl = time.Second
	}
	return &CapacityGuard{counters: counters, redis: redisClient, ttl: ttl, log: log}
}

func capacityKey(eventID string) string {
	return fmt.Sprintf("guestlist:capacity:%s", eventID)
}

// Count sums enrollments across every store. Stores that fail are skipped;
// the count is an error only when no store answered.
func (g *CapacityGuard) Count(ctx context.Context, eventID string) (int, error) {
	total := 0
	answered := 0
	var lastErr error

	for _, c := range g.counters {
		n, err := c.Count(ctx, eventID)
		if err != nil {
			lastErr = err
			g.log.WithError(err).WithFields(logrus.Fields{
				"event_id": eventID,
				"store":    c.Name(),
			}).Warn("capacity count skipped store")
			continue
		}
		answered++
		total += n
	}

	if answered == 0 && lastErr != nil {
		return 0, fmt.Errorf("count enrollments: %w", lastErr)
	}
	return total, nil
}

func (g *CapacityGuard) Check(ctx context.Context, eventID string, max int) (CapacityDecision, error) {
	count, err := g.Count(ctx, eventID)
	if err != nil {
		return CapacityDecision{}, err
	}
	if max <= 0 {
		return CapacityDecision{Accept: true, Count: count, Remaining: -1}, nil
	}

	remaining := max - count
	if remaining < 0 {
		remaining = 0
	}
	return CapacityDecision{Accept: count < max, Count: count, Remaining: remaining}, nil
}

// Reserve atomically takes one slot. ok is false when the list is full. An
// error means the reservation could not be made at all and the caller may
// fall back to the advisory decision.
func (g *CapacityGuard) Reserve(ctx context.Context, eventID string, max, count int) (bool, error) {
	if max <= 0 {
		return true, nil
	}
	if g.redis == nil {
		return false, fmt.Errorf("reserve slot: no redis client")
	}

	ttl := int(g.ttl / time.Second)
	res, err := g.redis.Eval(ctx, reserveSlotScript, []string{capacityKey(eventID)}, max, count, ttl).Int()
	if err != nil {
		return false, fmt.Errorf("reserve slot: %w", err)
	}
	return res == 1, nil
}

// Release gives a slot back after a write that did not create an enrollment.
func (g *CapacityGuard) Release(ctx context.Context, eventID string) {
	if g.redis == nil {
		return
	}
	if err := g.redis.Eval(ctx, releaseSlotScript, []string{capacityKey(eventID)}).Err(); err != nil {
		g.log.WithError(err).WithField("event_id", eventID).Warn("failed to release capacity slot")
	}
}

// Reset drops the reservation counter so the next Reserve reseeds it from
// the stored count. Used when an event's capacity is edited or removed.
func (g *CapacityGuard) Reset(ctx context.Context, eventID string) error {
	if g.redis == nil {
		return nil
	}
	return g.redis.Del(ctx, capacityKey(eventID)).Err()
}
