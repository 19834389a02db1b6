package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultStream is the Redis stream payment events are appended to.
const DefaultStream = "cbhub:events"

// RedisStream records events in a capped Redis stream for later inspection.
type RedisStream struct {
	Client redis.UniversalClient
	Stream string
	MaxLen int64
}

func (s RedisStream) stream() string {
	if s.Stream == "" {
		return DefaultStream
	}
	return s.Stream
}

// Record implements EventStore.
func (s RedisStream) Record(ctx context.Context, ev Event) error {
	if s.Client == nil {
		return errors.New("events: stream client not configured")
	}
	maxLen := s.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}
	return s.Client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream(),
		MaxLen: maxLen,
		Approx: true,
		Values: map[string]any{
			"id":          ev.ID.String(),
			"topic":       ev.Topic,
			"reference":   ev.Reference,
			"payload":     string(ev.Payload),
			"occurred_at": ev.OccurredAt.Format(time.RFC3339Nano),
		},
	}).Err()
}

// Recent returns up to count of the newest events, newest first.
func (s RedisStream) Recent(ctx context.Context, count int64) ([]Event, error) {
	if s.Client == nil {
		return nil, errors.New("events: stream client not configured")
	}
	msgs, err := s.Client.XRevRangeN(ctx, s.stream(), "+", "-", count).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Event, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, decodeStreamEvent(msg.Values))
	}
	return out, nil
}

func decodeStreamEvent(values map[string]any) Event {
	str := func(k string) string {
		v, _ := values[k].(string)
		return v
	}
	ev := Event{Topic: str("topic"), Reference: str("reference")}
	if payload := str("payload"); payload != "" {
		ev.Payload = json.RawMessage(payload)
	}
	if at, err := time.Parse(time.RFC3339Nano, str("occurred_at")); err == nil {
		ev.OccurredAt = at
	}
	_ = ev.ID.UnmarshalText([]byte(str("id")))
	return ev
}
