package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"rentalhub/internal/app/uow"
)

var ErrLockTimeout = errors.New("redis: listing lock not acquired in time")

// releaseScript deletes the key only while it still holds our token.
var releaseScript = goredis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// Locker is a SET NX PX mutex shared by every process using the same
// redis. TTL bounds how long a crashed holder blocks others.
type Locker struct {
	Client *goredis.Client
	Prefix string
	TTL    time.Duration
	Wait   time.Duration
	Poll   time.Duration
}

func NewLocker(client *goredis.Client) *Locker {
	return &Locker{Client: client, Prefix: "rentalhub:lock:", TTL: 10 * time.Second, Wait: 5 * time.Second, Poll: 25 * time.Millisecond}
}

func (l *Locker) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	token := uuid.NewString()
	full := l.Prefix + key
	deadline := time.Now().Add(l.Wait)
	for {
		ok, err := l.Client.SetNX(ctx, full, token, l.TTL).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func(ctx context.Context) error {
				return releaseScript.Run(ctx, l.Client, []string{full}, token).Err()
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.Poll):
		}
	}
}

var _ uow.ListingLocker = (*Locker)(nil)
