package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"guestlist/internal/status"
	"guestlist/models"

	"github.com/redis/go-redis/v9"
)

// markCheckedInScript flips checked_in inside the stored JSON in one step.
// Returns -1 when the entry is missing, 0 when it was already checked in.
const markCheckedInScript = `
local raw = redis.call('GET', KEYS[1])
if not raw then
	return -1
end
local entry = cjson.decode(raw)
if entry.checked_in then
	return 0
end
entry.checked_in = true
entry.check_in_time = ARGV[1]
redis.call('SET', KEYS[1], cjson.encode(entry), 'KEEPTTL')
return 1
`

// KVStore is the last durable stop of the enrollment chain. It uses one
// stable key layout for every event:
//
//	guestlist:entry:{id}              JSON enrollment
//	guestlist:phone:{event}:{phone}   id, claimed with SETNX
//	guestlist:event:{event}           set of ids
type KVStore struct {
	redis redis.Cmdable
}

func NewKVStore(redisClient redis.Cmdable) *KVStore {
	return &KVStore{redis: redisClient}
}

func (s *KVStore) Name() string {
	return TargetKV
}

func entryKey(id string) string {
	return fmt.Sprintf("guestlist:entry:%s", id)
}

func phoneKey(eventID, phone string) string {
	return fmt.Sprintf("guestlist:phone:%s:%s", eventID, phone)
}

func eventIndexKey(eventID string) string {
	return fmt.Sprintf("guestlist:event:%s", eventID)
}

func (s *KVStore) Insert(ctx context.Context, e *models.Enrollment) error {
	pk := phoneKey(e.EventID, e.Phone)

	claimed, err := s.redis.SetNX(ctx, pk, e.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("%s: claim phone: %w", TargetKV, err)
	}
	if !claimed {
		return status.ErrDuplicateEnrollment
	}

	stored := e.Clone()
	stored.Source = ""
	data, err := json.Marshal(stored)
	if err != nil {
		s.redis.Del(ctx, pk)
		return fmt.Errorf("%s: encode: %w", TargetKV, err)
	}

	if err := s.redis.Set(ctx, entryKey(e.ID), string(data), 0).Err(); err != nil {
		s.redis.Del(ctx, pk)
		return fmt.Errorf("%s: write entry: %w", TargetKV, err)
	}

	if err := s.redis.SAdd(ctx, eventIndexKey(e.EventID), e.ID).Err(); err != nil {
		s.redis.Del(ctx, entryKey(e.ID), pk)
		return fmt.Errorf("%s: index entry: %w", TargetKV, err)
	}
	return nil
}

func (s *KVStore) Verify(ctx context.Context, id string) (*models.Enrollment, error) {
	return s.Find(ctx, id)
}

func (s *KVStore) Find(ctx context.Context, id string) (*models.Enrollment, error) {
	raw, err := s.redis.Get(ctx, entryKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, status.ErrEnrollmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: get: %w", TargetKV, err)
	}
	return decodeEntry(raw)
}

func (s *KVStore) FindByPhone(ctx context.Context, eventID, phone string) (*models.Enrollment, error) {
	id, err := s.redis.Get(ctx, phoneKey(eventID, phone)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, status.ErrEnrollmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: get phone: %w", TargetKV, err)
	}
	return s.Find(ctx, id)
}

func (s *KVStore) Count(ctx context.Context, eventID string) (int, error) {
	n, err := s.redis.SCard(ctx, eventIndexKey(eventID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%s: count: %w", TargetKV, err)
	}
	return int(n), nil
}

func (s *KVStore) ListByEvent(ctx context.Context, eventID string) ([]*models.Enrollment, error) {
	ids, err := s.redis.SMembers(ctx, eventIndexKey(eventID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: list: %w", TargetKV, err)
	}
	if len(ids) == 0 {
		return []*models.Enrollment{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = entryKey(id)
	}

	values, err := s.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: list: %w", TargetKV, err)
	}

	out := make([]*models.Enrollment, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		e, err := decodeEntry(raw)
		if err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *KVStore) MarkCheckedIn(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := s.redis.Eval(ctx, markCheckedInScript, []string{entryKey(id)}, at.UTC().Format(time.RFC3339Nano)).Int()
	if err != nil {
		return false, fmt.Errorf("%s: check-in: %w", TargetKV, err)
	}

	switch res {
	case -1:
		return false, status.ErrEnrollmentNotFound
	case 0:
		return false, nil
	default:
		return true, nil
	}
}

func decodeEntry(raw string) (*models.Enrollment, error) {
	var e models.Enrollment
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", TargetKV, err)
	}
	e.Source = TargetKV
	return &e, nil
}
