package redis

import (
	"context"
	"time"

	redislib "github.com/redis/go-redis/v9"
)

// EventDeduper remembers recently seen event IDs so duplicate webhook
// deliveries do not dispatch the same command twice.
type EventDeduper struct {
	client *redislib.Client
	ttl    time.Duration
}

func NewEventDeduper(client *redislib.Client, ttl time.Duration) *EventDeduper {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &EventDeduper{client: client, ttl: ttl}
}

// Seen marks the event ID and reports whether it was already recorded.
// Redis being unavailable degrades to "not seen": a duplicate dispatch is
// preferable to dropping a live event.
func (d *EventDeduper) Seen(ctx context.Context, eventID string) bool {
	if d == nil || d.client == nil || eventID == "" {
		return false
	}
	set, err := d.client.SetNX(ctx, "event:"+eventID, 1, d.ttl).Result()
	if err != nil {
		return false
	}
	return !set
}
