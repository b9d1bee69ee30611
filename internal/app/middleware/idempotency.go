package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"time"

	"rentalhub/internal/app/commands"
)

// IdempotentCommand must be implemented by commands that want idempotency guarantees.
type IdempotentCommand interface {
	commands.Command
	IdempotencyKey() string
	ResultPrototype() any // should match the handler result type
}

type IdempotencyRecord struct {
	Key        string
	Payload    []byte
	OccurredAt time.Time
}

// IdempotencyStore keeps finished results. Reserve claims a key for a single
// running attempt and reports false when another attempt holds it or a result
// is already stored; Save replaces the claim with the result and Release drops
// an unfinished claim.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (IdempotencyRecord, bool, error)
	Reserve(ctx context.Context, key string) (bool, error)
	Save(ctx context.Context, rec IdempotencyRecord) error
	Release(ctx context.Context, key string) error
}

type ResultCodec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

type JSONResultCodec struct{}

func (JSONResultCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONResultCodec) Decode(data []byte, out any) error {
	return json.Unmarshal(data, out)
}

var errMissingPrototype = errors.New("middleware: idempotent command requires result prototype")

// ErrIdempotencyInFlight is returned to a duplicate that arrives while the
// first attempt with the same key is still running.
var ErrIdempotencyInFlight = errors.New("middleware: request with this idempotency key is still in progress")

// Idempotency replays the stored result of a previously successful command
// with the same key. Failed attempts are not stored so the caller may retry.
// Only one attempt per key runs at a time; a concurrent duplicate gets the
// stored result if the winner already finished, ErrIdempotencyInFlight if not.
func Idempotency(store IdempotencyStore, codec ResultCodec) CommandMiddleware {
	if store == nil {
		panic("middleware: idempotency store required")
	}
	if codec == nil {
		codec = JSONResultCodec{}
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			idCmd, ok := cmd.(IdempotentCommand)
			if !ok {
				return nextFn(ctx, cmd)
			}
			key := idCmd.IdempotencyKey()
			if key == "" {
				return nextFn(ctx, cmd)
			}
			key = cmd.Key() + ":" + key
			rec, found, err := store.Get(ctx, key)
			if err != nil {
				return nil, err
			}
			if found {
				return replay(idCmd, codec, rec)
			}
			claimed, err := store.Reserve(ctx, key)
			if err != nil {
				return nil, err
			}
			if !claimed {
				// lost the race: either the winner finished or it is still running
				rec, found, err := store.Get(ctx, key)
				if err != nil {
					return nil, err
				}
				if found {
					return replay(idCmd, codec, rec)
				}
				return nil, ErrIdempotencyInFlight
			}
			result, err := nextFn(ctx, cmd)
			if err == nil {
				var record IdempotencyRecord
				record, err = encodeRecord(codec, key, result)
				if err == nil {
					err = store.Save(ctx, record)
				}
			}
			if err != nil {
				if relErr := store.Release(context.WithoutCancel(ctx), key); relErr != nil {
					return nil, errors.Join(err, relErr)
				}
				return nil, err
			}
			return result, nil
		})
	}
}

func replay(cmd IdempotentCommand, codec ResultCodec, rec IdempotencyRecord) (any, error) {
	proto := cmd.ResultPrototype()
	if proto == nil {
		return nil, errMissingPrototype
	}
	if err := codec.Decode(rec.Payload, proto); err != nil {
		return nil, err
	}
	return normalizePrototype(proto), nil
}

func encodeRecord(codec ResultCodec, key string, result any) (IdempotencyRecord, error) {
	record := IdempotencyRecord{Key: key, OccurredAt: time.Now().UTC()}
	if result != nil {
		payload, err := codec.Encode(result)
		if err != nil {
			return IdempotencyRecord{}, err
		}
		record.Payload = payload
	}
	return record, nil
}

func normalizePrototype(proto any) any {
	rv := reflect.ValueOf(proto)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() {
		return rv.Interface()
	}
	return proto
}
