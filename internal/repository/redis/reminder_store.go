package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"occasio/internal/domain"
)

// remindersKey holds pending reminders: member is the event ID, score the
// fire time in Unix milliseconds. Fired and canceled reminders are removed.
const remindersKey = "occasio:reminders"

// claimScript removes the member only while its score still equals the
// expected fire time, so a rescheduled reminder cannot be claimed early.
var claimScript = redis.NewScript(`
if tonumber(redis.call("ZSCORE", KEYS[1], ARGV[1])) == tonumber(ARGV[2]) then
	return redis.call("ZREM", KEYS[1], ARGV[1])
end
return 0
`)

type reminderStore struct {
	client *Client
}

// NewReminderStore returns a domain.ReminderStore backed by a sorted set.
func NewReminderStore(client *Client) domain.ReminderStore {
	return &reminderStore{client: client}
}

func score(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func (s *reminderStore) Upsert(ctx context.Context, eventID string, fireAt time.Time) error {
	return s.client.ZAdd(ctx, remindersKey, &redis.Z{
		Score:  float64(fireAt.UnixMilli()),
		Member: eventID,
	}).Err()
}

func (s *reminderStore) Claim(ctx context.Context, eventID string, fireAt time.Time) (bool, error) {
	n, err := claimScript.Run(ctx, s.client, []string{remindersKey}, eventID, score(fireAt)).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *reminderStore) Cancel(ctx context.Context, eventID string) error {
	return s.client.ZRem(ctx, remindersKey, eventID).Err()
}

func (s *reminderStore) ListDue(ctx context.Context, now time.Time) ([]domain.Reminder, error) {
	zs, err := s.client.ZRangeByScoreWithScores(ctx, remindersKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: score(now),
	}).Result()
	if err != nil {
		return nil, err
	}
	return toReminders(zs), nil
}

func (s *reminderStore) ListPending(ctx context.Context) ([]domain.Reminder, error) {
	zs, err := s.client.ZRangeWithScores(ctx, remindersKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	return toReminders(zs), nil
}

func toReminders(zs []redis.Z) []domain.Reminder {
	reminders := make([]domain.Reminder, 0, len(zs))
	for _, z := range zs {
		id, ok := z.Member.(string)
		if !ok {
			continue
		}
		reminders = append(reminders, domain.Reminder{
			EventID: id,
			FireAt:  time.UnixMilli(int64(z.Score)).UTC(),
		})
	}
	return reminders
}
