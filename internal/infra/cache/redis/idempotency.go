package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"rentalhub/internal/app/middleware"
)

// IdempotencyStore keeps command results as JSON values with a TTL. A claim
// is the same key holding claimMarker under SET NX, so a result and a claim
// can never coexist. Lease bounds how long a crashed holder blocks retries.
type IdempotencyStore struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
	lease  time.Duration
}

const claimMarker = `{"pending":true}`

func NewIdempotencyStore(client *goredis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{client: client, prefix: "rentalhub:idem:", ttl: ttl, lease: time.Minute}
}

type idempotencyValue struct {
	Pending    bool      `json:"pending,omitempty"`
	Payload    []byte    `json:"payload"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return middleware.IdempotencyRecord{}, false, nil
	}
	if err != nil {
		return middleware.IdempotencyRecord{}, false, err
	}
	var v idempotencyValue
	if err := json.Unmarshal(raw, &v); err != nil {
		return middleware.IdempotencyRecord{}, false, err
	}
	if v.Pending {
		return middleware.IdempotencyRecord{}, false, nil
	}
	return middleware.IdempotencyRecord{Key: key, Payload: v.Payload, OccurredAt: v.OccurredAt}, true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	raw, err := json.Marshal(idempotencyValue{Payload: rec.Payload, OccurredAt: rec.OccurredAt})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.prefix+rec.Key, raw, s.ttl).Err()
}

func (s *IdempotencyStore) Reserve(ctx context.Context, key string) (bool, error) {
	return s.client.SetNX(ctx, s.prefix+key, claimMarker, s.lease).Result()
}

// Release leaves a stored result alone.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return releaseScript.Run(ctx, s.client, []string{s.prefix + key}, claimMarker).Err()
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
