package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carhire/internal/app/commands"
	"carhire/internal/app/outbox"
	"carhire/internal/app/uow"
	"carhire/internal/domain/booking"
	"carhire/internal/domain/fleet"
	"carhire/internal/domain/pricing"
)

type bookCar struct {
	CarID   string `json:"car_id" validate:"required"`
	Days    int    `json:"days" validate:"min=1,max=90"`
	IdemKey string `json:"-"`
}

func (bookCar) Key() string              { return "test.book" }
func (c bookCar) IdempotencyKey() string { return c.IdemKey }
func (bookCar) ResultPrototype() any     { return &bookResult{} }

type bookResult struct {
	Reference string `json:"reference"`
}

type memStore struct {
	mu    sync.Mutex
	items map[string]IdempotencyRecord
}

func (m *memStore) Get(_ context.Context, key string) (IdempotencyRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.items[key]
	return rec, ok, nil
}

func (m *memStore) Save(_ context.Context, rec IdempotencyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[rec.Key] = rec
	return nil
}

func countingBus(calls *int, err error) commands.Bus {
	bus := commands.NewInMemoryBus()
	commands.RegisterHandler[bookCar, *bookResult](bus, "test.book", commands.HandlerFunc[bookCar, *bookResult](func(context.Context, bookCar) (*bookResult, error) {
		*calls++
		if err != nil {
			return nil, err
		}
		return &bookResult{Reference: "CR-0000000" + string(rune('0'+*calls))}, nil
	}))
	return bus
}

func TestIdempotencyReplaysResult(t *testing.T) {
	var calls int
	store := &memStore{items: map[string]IdempotencyRecord{}}
	bus := ChainCommands(countingBus(&calls, nil), Idempotency(store, IdempotencyOptions{}))

	first, err := commands.Dispatch[bookCar, *bookResult](context.Background(), bus, bookCar{CarID: "c1", Days: 2, IdemKey: "k1"})
	require.NoError(t, err)
	second, err := commands.Dispatch[bookCar, *bookResult](context.Background(), bus, bookCar{CarID: "c1", Days: 2, IdemKey: "k1"})
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first.Reference, second.Reference)

	_, err = commands.Dispatch[bookCar, *bookResult](context.Background(), bus, bookCar{CarID: "c1", Days: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "commands without a key are not deduplicated")
}

func TestIdempotencyDoesNotStoreFailures(t *testing.T) {
	var calls int
	store := &memStore{items: map[string]IdempotencyRecord{}}
	bus := ChainCommands(countingBus(&calls, errors.New("car unavailable")), Idempotency(store, IdempotencyOptions{}))

	_, err := bus.Dispatch(context.Background(), bookCar{CarID: "c1", Days: 1, IdemKey: "k"})
	require.EqualError(t, err, "car unavailable")
	_, err = bus.Dispatch(context.Background(), bookCar{CarID: "c1", Days: 1, IdemKey: "k"})
	require.EqualError(t, err, "car unavailable")
	assert.Equal(t, 2, calls)
	assert.Empty(t, store.items)
}

func TestIdempotencyRecordsExpire(t *testing.T) {
	var calls int
	now := time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)
	store := &memStore{items: map[string]IdempotencyRecord{}}
	bus := ChainCommands(countingBus(&calls, nil), Idempotency(store, IdempotencyOptions{
		TTL: time.Hour,
		Now: func() time.Time { return now },
	}))

	_, err := bus.Dispatch(context.Background(), bookCar{CarID: "c1", Days: 1, IdemKey: "k"})
	require.NoError(t, err)
	_, err = bus.Dispatch(context.Background(), bookCar{CarID: "c1", Days: 1, IdemKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	now = now.Add(2 * time.Hour)
	_, err = bus.Dispatch(context.Background(), bookCar{CarID: "c1", Days: 1, IdemKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestIdempotencySerializesSameKey(t *testing.T) {
	var calls int
	store := &memStore{items: map[string]IdempotencyRecord{}}
	bus := ChainCommands(countingBus(&calls, nil), Idempotency(store, IdempotencyOptions{}))

	var wg sync.WaitGroup
	refs := make([]string, 8)
	for i := range refs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := commands.Dispatch[bookCar, *bookResult](context.Background(), bus, bookCar{CarID: "c1", Days: 1, IdemKey: "same"})
			if assert.NoError(t, err) {
				refs[i] = res.Reference
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, calls)
	for _, ref := range refs {
		assert.Equal(t, refs[0], ref)
	}
}

func TestIdempotencyConflict(t *testing.T) {
	var calls int
	store := &memStore{items: map[string]IdempotencyRecord{
		"k": {Key: "k", Command: "other.command", OccurredAt: time.Now()},
	}}
	bus := ChainCommands(countingBus(&calls, nil), Idempotency(store, IdempotencyOptions{}))
	_, err := bus.Dispatch(context.Background(), bookCar{CarID: "c1", Days: 1, IdemKey: "k"})
	assert.ErrorIs(t, err, ErrIdempotencyConflict)
}

func TestValidation(t *testing.T) {
	var calls int
	bus := ChainCommands(countingBus(&calls, nil), Validation(NewStructValidator()))

	_, err := bus.Dispatch(context.Background(), bookCar{Days: 0})
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "car_id: required")
	assert.Contains(t, err.Error(), "days: min")
	assert.Zero(t, calls)

	_, err = bus.Dispatch(context.Background(), bookCar{CarID: "c1", Days: 3})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

type fakeUnit struct {
	committed  bool
	rolledBack bool
}

func (u *fakeUnit) Cars() fleet.Repository                  { return nil }
func (u *fakeUnit) Bookings() booking.Repository            { return nil }
func (u *fakeUnit) PriceTable() pricing.TableRepository     { return nil }
func (u *fakeUnit) PricingConfig() pricing.ConfigRepository { return nil }

func (u *fakeUnit) Commit(context.Context) error {
	u.committed = true
	return nil
}

func (u *fakeUnit) Rollback(context.Context) error {
	u.rolledBack = true
	return nil
}

type fakeFactory struct{ units []*fakeUnit }

func (f *fakeFactory) Begin(context.Context, uow.TxOptions) (uow.UnitOfWork, error) {
	u := &fakeUnit{}
	f.units = append(f.units, u)
	return u, nil
}

func TestTransactionCommitsOrRollsBack(t *testing.T) {
	factory := &fakeFactory{}
	var calls int
	var sawUnit bool
	bus := commands.NewInMemoryBus()
	commands.RegisterHandler[bookCar, *bookResult](bus, "test.book", commands.HandlerFunc[bookCar, *bookResult](func(ctx context.Context, cmd bookCar) (*bookResult, error) {
		calls++
		_, sawUnit = uow.FromContext(ctx)
		if cmd.Days > 10 {
			return nil, errors.New("too long")
		}
		return &bookResult{}, nil
	}))
	wrapped := ChainCommands(bus, Transaction(factory, nil))

	_, err := wrapped.Dispatch(context.Background(), bookCar{CarID: "c1", Days: 2})
	require.NoError(t, err)
	assert.True(t, sawUnit)
	_, err = wrapped.Dispatch(context.Background(), bookCar{CarID: "c1", Days: 20})
	require.Error(t, err)

	require.Len(t, factory.units, 2)
	assert.True(t, factory.units[0].committed)
	assert.False(t, factory.units[0].rolledBack)
	assert.False(t, factory.units[1].committed)
	assert.True(t, factory.units[1].rolledBack)
}

type countingOutbox struct {
	flushes int
	err     error
}

func (o *countingOutbox) Add(context.Context, outbox.EventRecord) error { return nil }
func (o *countingOutbox) Flush(context.Context) error {
	o.flushes++
	return o.err
}

func TestOutboxFlushOnlyOnSuccess(t *testing.T) {
	box := &countingOutbox{}
	var calls int
	ok := ChainCommands(countingBus(&calls, nil), OutboxFlush(box, nil))
	_, err := ok.Dispatch(context.Background(), bookCar{CarID: "c1", Days: 1})
	require.NoError(t, err)

	failing := ChainCommands(countingBus(&calls, errors.New("boom")), OutboxFlush(box, nil))
	_, err = failing.Dispatch(context.Background(), bookCar{CarID: "c1", Days: 1})
	require.Error(t, err)
	assert.Equal(t, 1, box.flushes)
}

func TestOutboxFlushFailureKeepsCommittedResult(t *testing.T) {
	box := &countingOutbox{err: errors.New("broker down")}
	var calls int
	bus := ChainCommands(countingBus(&calls, nil), OutboxFlush(box, nil))
	res, err := bus.Dispatch(context.Background(), bookCar{CarID: "c1", Days: 1})
	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Equal(t, 1, box.flushes)
}
