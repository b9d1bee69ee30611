package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rentalhub/internal/app/commands"
	"rentalhub/internal/app/uow"
	domainbooking "rentalhub/internal/domain/booking"
	domainlistings "rentalhub/internal/domain/listings"
)

type fakeUnit struct {
	factory *fakeFactory
}

func (u *fakeUnit) Listings() domainlistings.Catalog   { return nil }
func (u *fakeUnit) Bookings() domainbooking.Repository { return nil }
func (u *fakeUnit) LockListing(context.Context, domainlistings.ListingID) error {
	return nil
}

func (u *fakeUnit) Commit(context.Context) error {
	u.factory.mu.Lock()
	defer u.factory.mu.Unlock()
	u.factory.commits++
	if u.factory.commits <= u.factory.conflicts {
		return uow.ErrWriteConflict
	}
	return nil
}

func (u *fakeUnit) Rollback(context.Context) error {
	u.factory.mu.Lock()
	defer u.factory.mu.Unlock()
	u.factory.rollbacks++
	return nil
}

type fakeFactory struct {
	mu        sync.Mutex
	conflicts int
	begins    int
	commits   int
	rollbacks int
	beginErr  error
}

func (f *fakeFactory) Begin(context.Context, uow.TxOptions) (uow.UnitOfWork, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	f.begins++
	return &fakeUnit{factory: f}, nil
}

type pingCommand struct {
	Actor   string
	IdemKey string
}

func (c pingCommand) Key() string            { return "test.ping" }
func (c pingCommand) ActorID() string        { return c.Actor }
func (c pingCommand) IdempotencyKey() string { return c.IdemKey }
func (c pingCommand) ResultPrototype() any   { return new(string) }

func pingBus(t *testing.T, calls *int, result func(n int) (*string, error)) *commands.InMemoryBus {
	t.Helper()
	bus := commands.NewInMemoryBus()
	commands.RegisterHandler(bus, "test.ping", commands.HandlerFunc[pingCommand, *string](func(ctx context.Context, cmd pingCommand) (*string, error) {
		_, ok := uow.FromContext(ctx)
		require.True(t, ok)
		*calls++
		return result(*calls)
	}))
	return bus
}

func pong() (*string, error) {
	s := "pong"
	return &s, nil
}

func TestTransactionRetriesWriteConflicts(t *testing.T) {
	factory := &fakeFactory{conflicts: 2}
	calls := 0
	bus := ChainCommands(pingBus(t, &calls, func(int) (*string, error) { return pong() }),
		Transaction(factory, TxConfig{Retries: 3, Backoff: time.Millisecond}))

	res, err := commands.Dispatch[pingCommand, *string](context.Background(), bus, pingCommand{Actor: "a"})
	require.NoError(t, err)
	require.Equal(t, "pong", *res)
	require.Equal(t, 3, calls)
	require.Equal(t, 3, factory.begins)
	require.Equal(t, 2, factory.rollbacks)
}

func TestTransactionGivesUpAfterRetries(t *testing.T) {
	factory := &fakeFactory{conflicts: 10}
	calls := 0
	bus := ChainCommands(pingBus(t, &calls, func(int) (*string, error) { return pong() }),
		Transaction(factory, TxConfig{Retries: 2, Backoff: time.Millisecond}))

	_, err := commands.Dispatch[pingCommand, *string](context.Background(), bus, pingCommand{Actor: "a"})
	require.ErrorIs(t, err, uow.ErrTemporarilyUnavailable)
	require.ErrorIs(t, err, uow.ErrWriteConflict)
	require.Equal(t, 3, calls)
}

func TestTransactionDoesNotRetryDomainErrors(t *testing.T) {
	factory := &fakeFactory{}
	calls := 0
	bus := ChainCommands(pingBus(t, &calls, func(int) (*string, error) { return nil, domainbooking.ErrConflict }),
		Transaction(factory, TxConfig{Retries: 3}))

	_, err := commands.Dispatch[pingCommand, *string](context.Background(), bus, pingCommand{Actor: "a"})
	require.ErrorIs(t, err, domainbooking.ErrConflict)
	require.Equal(t, 1, calls)
	require.Equal(t, 0, factory.commits)
	require.Equal(t, 1, factory.rollbacks)
}

func TestTransactionMapsBeginFailure(t *testing.T) {
	factory := &fakeFactory{beginErr: errors.New("connection refused")}
	calls := 0
	bus := ChainCommands(pingBus(t, &calls, func(int) (*string, error) { return pong() }),
		Transaction(factory, TxConfig{}))

	_, err := commands.Dispatch[pingCommand, *string](context.Background(), bus, pingCommand{Actor: "a"})
	require.ErrorIs(t, err, uow.ErrTemporarilyUnavailable)
	require.Zero(t, calls)
}

type mapIdempotencyStore struct {
	mu     sync.Mutex
	recs   map[string]IdempotencyRecord
	claims map[string]bool
}

func newMapIdempotencyStore() *mapIdempotencyStore {
	return &mapIdempotencyStore{recs: map[string]IdempotencyRecord{}, claims: map[string]bool{}}
}

func (s *mapIdempotencyStore) Reserve(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, done := s.recs[key]; done || s.claims[key] {
		return false, nil
	}
	s.claims[key] = true
	return true, nil
}

func (s *mapIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claims, key)
	return nil
}

func (s *mapIdempotencyStore) Get(_ context.Context, key string) (IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, found := s.recs[key]
	return rec, found, nil
}

func (s *mapIdempotencyStore) Save(_ context.Context, rec IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[rec.Key] = rec
	delete(s.claims, rec.Key)
	return nil
}

func TestIdempotencyReplaysOnlySuccesses(t *testing.T) {
	store := newMapIdempotencyStore()
	calls := 0
	bus := ChainCommands(pingBus(t, &calls, func(n int) (*string, error) {
		if n == 1 {
			return nil, errors.New("boom")
		}
		return pong()
	}), Idempotency(store, nil), Transaction(&fakeFactory{}, TxConfig{}))

	cmd := pingCommand{Actor: "a", IdemKey: "k1"}
	_, err := commands.Dispatch[pingCommand, *string](context.Background(), bus, cmd)
	require.Error(t, err)
	require.Empty(t, store.recs)
	require.Empty(t, store.claims)

	first, err := commands.Dispatch[pingCommand, *string](context.Background(), bus, cmd)
	require.NoError(t, err)
	second, err := commands.Dispatch[pingCommand, *string](context.Background(), bus, cmd)
	require.NoError(t, err)
	require.Equal(t, *first, *second)
	require.Equal(t, 2, calls)
	require.Contains(t, store.recs, "test.ping:k1")
	require.Empty(t, store.claims)
}

func TestIdempotencyRunsOneAttemptPerKey(t *testing.T) {
	store := newMapIdempotencyStore()
	started := make(chan struct{})
	unblock := make(chan struct{})
	calls := 0
	bus := ChainCommands(pingBus(t, &calls, func(int) (*string, error) {
		close(started)
		<-unblock
		return pong()
	}), Idempotency(store, nil), Transaction(&fakeFactory{}, TxConfig{}))

	cmd := pingCommand{Actor: "a", IdemKey: "k1"}
	type outcome struct {
		res *string
		err error
	}
	first := make(chan outcome, 1)
	go func() {
		res, err := commands.Dispatch[pingCommand, *string](context.Background(), bus, cmd)
		first <- outcome{res, err}
	}()
	<-started

	_, err := commands.Dispatch[pingCommand, *string](context.Background(), bus, cmd)
	require.ErrorIs(t, err, ErrIdempotencyInFlight)

	close(unblock)
	won := <-first
	require.NoError(t, won.err)

	replayed, err := commands.Dispatch[pingCommand, *string](context.Background(), bus, cmd)
	require.NoError(t, err)
	require.Equal(t, *won.res, *replayed)
	require.Equal(t, 1, calls)
}

func TestIdempotencyReplaysWhenClaimLostToFinishedAttempt(t *testing.T) {
	store := newMapIdempotencyStore()
	calls := 0
	bus := ChainCommands(pingBus(t, &calls, func(int) (*string, error) { return pong() }),
		Idempotency(&lateStore{mapIdempotencyStore: store}, nil), Transaction(&fakeFactory{}, TxConfig{}))

	// first Get misses, the key is finished before Reserve
	store.recs["test.ping:k1"] = IdempotencyRecord{Key: "test.ping:k1", Payload: []byte(`"earlier"`)}
	res, err := commands.Dispatch[pingCommand, *string](context.Background(), bus, pingCommand{Actor: "a", IdemKey: "k1"})
	require.NoError(t, err)
	require.Equal(t, "earlier", *res)
	require.Zero(t, calls)
}

// lateStore hides stored results from the first Get.
type lateStore struct {
	*mapIdempotencyStore
	gets int
}

func (s *lateStore) Get(ctx context.Context, key string) (IdempotencyRecord, bool, error) {
	s.gets++
	if s.gets == 1 {
		return IdempotencyRecord{}, false, nil
	}
	return s.mapIdempotencyStore.Get(ctx, key)
}

func TestAuthorizationRequiresActor(t *testing.T) {
	calls := 0
	bus := ChainCommands(pingBus(t, &calls, func(int) (*string, error) { return pong() }),
		Authorization(RequireActor{}), Transaction(&fakeFactory{}, TxConfig{}))

	_, err := commands.Dispatch[pingCommand, *string](context.Background(), bus, pingCommand{Actor: "  "})
	require.ErrorIs(t, err, ErrUnauthenticated)
	require.Zero(t, calls)
}
