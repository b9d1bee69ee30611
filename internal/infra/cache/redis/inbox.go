package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"rentalhub/internal/app/notifications"
)

// Inbox records delivered event ids per consumer with SET NX.
type Inbox struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

func NewInbox(client *goredis.Client, consumer string, ttl time.Duration) *Inbox {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Inbox{client: client, prefix: "rentalhub:inbox:" + consumer + ":", ttl: ttl}
}

func (i *Inbox) Seen(ctx context.Context, eventID string) (bool, error) {
	fresh, err := i.client.SetNX(ctx, i.prefix+eventID, time.Now().UTC().Format(time.RFC3339), i.ttl).Result()
	if err != nil {
		return false, err
	}
	return !fresh, nil
}

func (i *Inbox) Forget(ctx context.Context, eventID string) error {
	return i.client.Del(ctx, i.prefix+eventID).Err()
}

var _ notifications.Inbox = (*Inbox)(nil)
