package pricing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"carhire/internal/domain/fleet"
)

const tolerance = 1e-9

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type fakeExact struct {
	mu     sync.Mutex
	prices map[CacheKey]float64
	down   bool
	calls  []ExactQuery
}

func (f *fakeExact) ExactPrice(_ context.Context, q ExactQuery) (ExactPrice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, q)
	if f.down {
		return ExactPrice{}, ErrLookupUnavailable
	}
	if price, ok := f.prices[q.Key()]; ok {
		return ExactPrice{Price: price, Source: "fake"}, nil
	}
	return ExactPrice{}, ErrNoMatch
}

type fakeCalculated struct {
	price CalculatedPrice
	err   error
}

func (f fakeCalculated) CalculatePrice(context.Context, CalculatedQuery) (CalculatedPrice, error) {
	return f.price, f.err
}

type mockExact struct {
	mock.Mock
}

func (m *mockExact) ExactPrice(ctx context.Context, q ExactQuery) (ExactPrice, error) {
	args := m.Called(ctx, q)
	return args.Get(0).(ExactPrice), args.Error(1)
}

type failingConfig struct{}

func (failingConfig) PricingConfig(context.Context) (Config, error) {
	return Config{}, errors.New("backend unreachable")
}

func ptr(v float64) *float64 { return &v }

func carWithRates(rates map[time.Month]float64) *fleet.Car {
	return &fleet.Car{ID: "fiat-500", Name: "Fiat 500", MonthlyPricing: rates}
}

func TestCrossMonthProrationWithRemoteDown(t *testing.T) {
	engine := &Engine{
		Exact:      &fakeExact{down: true},
		Calculated: fakeCalculated{err: ErrLookupUnavailable},
	}
	car := carWithRates(map[time.Month]float64{time.January: 35, time.February: 38})

	q, err := engine.Quote(context.Background(), Request{Car: car, Pickup: date(2024, time.January, 30), Return: date(2024, time.February, 2)})
	require.NoError(t, err)

	assert.Equal(t, TierProrated, q.Tier)
	assert.Equal(t, 3, q.Duration)
	assert.InDelta(t, 108, q.BasePrice, tolerance)
	assert.InDelta(t, 36, q.DailyRate, tolerance)
	require.Len(t, q.Slices, 2)
	assert.Equal(t, Slice{Year: 2024, Month: time.January, Days: 2, Rate: 35, Source: TierStatic}, q.Slices[0])
	assert.Equal(t, Slice{Year: 2024, Month: time.February, Days: 1, Rate: 38, Source: TierStatic}, q.Slices[1])
}

func TestProrationUsesLookedUpMonthRate(t *testing.T) {
	exact := &fakeExact{prices: map[CacheKey]float64{
		{CarID: "fiat-500", Month: time.February, Duration: 3}: 120,
	}}
	engine := &Engine{Exact: exact}
	car := carWithRates(map[time.Month]float64{time.January: 35, time.February: 38})

	q, err := engine.Quote(context.Background(), Request{Car: car, Pickup: date(2024, time.January, 30), Return: date(2024, time.February, 2)})
	require.NoError(t, err)
	assert.Equal(t, TierProrated, q.Tier)
	assert.InDelta(t, 2*35+1*40, q.BasePrice, tolerance)
	assert.Equal(t, TierExact, q.Slices[1].Source)
}

func TestDurationDiscountOnStaticFallback(t *testing.T) {
	engine := &Engine{}
	car := carWithRates(map[time.Month]float64{time.June: 40})

	q, err := engine.Quote(context.Background(), Request{Car: car, Pickup: date(2024, time.June, 1), Return: date(2024, time.June, 8)})
	require.NoError(t, err)
	assert.Equal(t, TierStatic, q.Tier)
	assert.Equal(t, 7, q.Duration)
	assert.InDelta(t, 0.85, q.Multiplier, tolerance)
	assert.InDelta(t, 238, q.BasePrice, tolerance)
}

func TestExactPriceIsAuthoritative(t *testing.T) {
	exact := &fakeExact{prices: map[CacheKey]float64{
		{CarID: "fiat-500", Month: time.June, Duration: 3}: 300,
	}}
	engine := &Engine{Exact: exact, Calculated: fakeCalculated{price: CalculatedPrice{TotalPrice: ptr(999)}}}
	car := carWithRates(map[time.Month]float64{time.June: 40})

	q, err := engine.Quote(context.Background(), Request{Car: car, Pickup: date(2024, time.June, 1), Return: date(2024, time.June, 4)})
	require.NoError(t, err)
	assert.Equal(t, TierExact, q.Tier)
	assert.InDelta(t, 300, q.BasePrice, tolerance)
	assert.InDelta(t, 100, q.DailyRate, tolerance)
	assert.InDelta(t, 300, q.TotalPrice, tolerance)
}

func TestCalculatedTotalWinsOverStaticTable(t *testing.T) {
	engine := &Engine{
		Exact:      &fakeExact{down: true},
		Calculated: fakeCalculated{price: CalculatedPrice{TotalPrice: ptr(500), Source: "server"}},
	}
	car := carWithRates(map[time.Month]float64{time.June: 40})
	req := Request{Car: car, Pickup: date(2024, time.June, 1), Return: date(2024, time.June, 4), Extras: Extras{AdditionalDriver: true}}

	q, err := engine.Quote(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, TierCalculated, q.Tier)
	assert.InDelta(t, 500, q.TotalPrice, tolerance)
	assert.InDelta(t, 30, q.ExtrasTotal, tolerance)
	assert.InDelta(t, 470, q.BasePrice, tolerance)
}

func TestCalculatedExtrasFromServer(t *testing.T) {
	engine := &Engine{Calculated: fakeCalculated{price: CalculatedPrice{BasePrice: ptr(200), ExtrasTotal: ptr(12), DailyRate: ptr(66)}}}
	car := carWithRates(nil)

	q, err := engine.Quote(context.Background(), Request{Car: car, Pickup: date(2024, time.June, 1), Return: date(2024, time.June, 4), Extras: Extras{FullInsurance: true}})
	require.NoError(t, err)
	assert.Equal(t, TierCalculated, q.Tier)
	assert.InDelta(t, 212, q.TotalPrice, tolerance)
	assert.InDelta(t, 66, q.DailyRate, tolerance)
}

func TestBothLookupsFailUsesStaticTimesMultiplier(t *testing.T) {
	engine := &Engine{
		Exact:      &fakeExact{down: true},
		Calculated: fakeCalculated{err: ErrLookupUnavailable},
	}
	car := carWithRates(map[time.Month]float64{time.June: 40})

	q, err := engine.Quote(context.Background(), Request{Car: car, Pickup: date(2024, time.June, 1), Return: date(2024, time.June, 6)})
	require.NoError(t, err)
	assert.Equal(t, TierStatic, q.Tier)
	assert.InDelta(t, 40*5*0.95, q.BasePrice, tolerance)
}

func TestMissingMonthUsesDefaultRate(t *testing.T) {
	engine := &Engine{}
	q, err := engine.Quote(context.Background(), Request{Car: carWithRates(nil), Pickup: date(2024, time.June, 1), Return: date(2024, time.June, 3)})
	require.NoError(t, err)
	assert.Equal(t, TierDefault, q.Tier)
	assert.InDelta(t, DefaultDailyRate*2, q.BasePrice, tolerance)
}

func TestLongSingleMonthRentalUsesWeeklyRate(t *testing.T) {
	exact := &fakeExact{prices: map[CacheKey]float64{
		{CarID: "fiat-500", Month: time.July, Duration: 7}: 280,
	}}
	engine := &Engine{Exact: exact}

	q, err := engine.Quote(context.Background(), Request{Car: carWithRates(nil), Pickup: date(2024, time.July, 1), Return: date(2024, time.July, 11)})
	require.NoError(t, err)
	assert.Equal(t, TierMonthlyRate, q.Tier)
	assert.InDelta(t, 40, q.DailyRate, tolerance)
	assert.InDelta(t, 400, q.BasePrice, tolerance)
}

func TestShortRentalSkipsWeeklyLookup(t *testing.T) {
	exact := &mockExact{}
	exact.On("ExactPrice", mock.Anything, ExactQuery{CarID: "fiat-500", CarName: "Fiat 500", Month: time.July, Duration: 3}).
		Return(ExactPrice{}, ErrNoMatch).Once()
	engine := &Engine{Exact: exact}

	q, err := engine.Quote(context.Background(), Request{Car: carWithRates(map[time.Month]float64{time.July: 50}), Pickup: date(2024, time.July, 1), Return: date(2024, time.July, 4)})
	require.NoError(t, err)
	assert.Equal(t, TierStatic, q.Tier)
	exact.AssertExpectations(t)
}

func TestLastDayOfMonthIsSingleMonth(t *testing.T) {
	engine := &Engine{}
	car := carWithRates(map[time.Month]float64{time.January: 35, time.February: 38})

	for _, ret := range []time.Time{date(2024, time.January, 31), date(2024, time.February, 1)} {
		q, err := engine.Quote(context.Background(), Request{Car: car, Pickup: date(2024, time.January, 31), Return: ret})
		require.NoError(t, err)
		assert.Equal(t, 1, q.Duration)
		assert.Equal(t, TierStatic, q.Tier)
		assert.InDelta(t, 35, q.BasePrice, tolerance)
		assert.Empty(t, q.Slices)
	}
}

type slowExact struct {
	sawDeadline bool
}

func (s *slowExact) ExactPrice(ctx context.Context, _ ExactQuery) (ExactPrice, error) {
	_, s.sawDeadline = ctx.Deadline()
	<-ctx.Done()
	return ExactPrice{}, ctx.Err()
}

func TestTimeoutFallsThroughToNextTier(t *testing.T) {
	slow := &slowExact{}
	engine := &Engine{
		Exact:         slow,
		Calculated:    fakeCalculated{price: CalculatedPrice{TotalPrice: ptr(321)}},
		LookupTimeout: 20 * time.Millisecond,
	}

	q, err := engine.Quote(context.Background(), Request{Car: carWithRates(nil), Pickup: date(2024, time.June, 1), Return: date(2024, time.June, 2)})
	require.NoError(t, err)
	assert.True(t, slow.sawDeadline)
	assert.Equal(t, TierCalculated, q.Tier)
	assert.InDelta(t, 321, q.TotalPrice, tolerance)
}

func TestConfigFailureIsTheOnlyError(t *testing.T) {
	engine := &Engine{Config: failingConfig{}, Exact: &fakeExact{down: true}}
	_, err := engine.Quote(context.Background(), Request{Car: carWithRates(nil), Pickup: date(2024, time.June, 1), Return: date(2024, time.June, 2)})
	assert.ErrorIs(t, err, ErrConfigUnavailable)

	engine.Config = ConfigChain{failingConfig{}, StaticConfig(DefaultConfig())}
	_, err = engine.Quote(context.Background(), Request{Car: carWithRates(nil), Pickup: date(2024, time.June, 1), Return: date(2024, time.June, 2)})
	assert.NoError(t, err)
}

func TestInvalidRequest(t *testing.T) {
	engine := &Engine{}
	_, err := engine.Quote(context.Background(), Request{Pickup: date(2024, time.June, 1), Return: date(2024, time.June, 2)})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = engine.Quote(context.Background(), Request{Car: carWithRates(nil)})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestReturnBeforePickupClampsToOneDay(t *testing.T) {
	engine := &Engine{}
	q, err := engine.Quote(context.Background(), Request{Car: carWithRates(map[time.Month]float64{time.June: 40}), Pickup: date(2024, time.June, 5), Return: date(2024, time.June, 1)})
	require.NoError(t, err)
	assert.Equal(t, 1, q.Duration)
	assert.True(t, q.Clamped)
	assert.InDelta(t, 40, q.BasePrice, tolerance)
}

func TestExtrasAdditivity(t *testing.T) {
	engine := &Engine{}
	car := carWithRates(map[time.Month]float64{time.June: 40})
	base := Request{Car: car, Pickup: date(2024, time.June, 1), Return: date(2024, time.June, 5)}

	none, err := engine.Quote(context.Background(), base)
	require.NoError(t, err)
	assert.Zero(t, none.ExtrasTotal)

	seat := base
	seat.Extras = Extras{ChildSeat: true}
	withSeat, err := engine.Quote(context.Background(), seat)
	require.NoError(t, err)
	assert.InDelta(t, 20, withSeat.ExtrasTotal, tolerance)

	longer := seat
	longer.Return = date(2024, time.June, 15)
	withSeatLonger, err := engine.Quote(context.Background(), longer)
	require.NoError(t, err)
	assert.InDelta(t, 20, withSeatLonger.ExtrasTotal, tolerance)

	driver := base
	driver.Extras = Extras{AdditionalDriver: true}
	withDriver, err := engine.Quote(context.Background(), driver)
	require.NoError(t, err)
	assert.InDelta(t, 10*4, withDriver.ExtrasTotal, tolerance)
	assert.InDelta(t, withDriver.BasePrice+withDriver.ExtrasTotal, withDriver.TotalPrice, tolerance)
}

func TestMissingExtrasEntryPricesAtZero(t *testing.T) {
	cfg := DefaultConfig()
	delete(cfg.Extras, ExtraGPSNavigation)
	engine := &Engine{Config: StaticConfig(cfg)}

	q, err := engine.Quote(context.Background(), Request{
		Car:    carWithRates(nil),
		Pickup: date(2024, time.June, 1), Return: date(2024, time.June, 3),
		Extras: Extras{GPSNavigation: true},
	})
	require.NoError(t, err)
	assert.Zero(t, q.ExtrasTotal)
	assert.Empty(t, q.ExtrasLines)
}

func TestPrepaymentSplitInvariant(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PrepaymentPercentage = 30
	engine := &Engine{Config: StaticConfig(cfg)}

	for days := 1; days <= 20; days++ {
		q, err := engine.Quote(context.Background(), Request{
			Car:    carWithRates(map[time.Month]float64{time.March: 33.33}),
			Pickup: date(2024, time.March, 1), Return: date(2024, time.March, 1+days),
			Extras: Extras{FullInsurance: true, ChildSeat: true},
		})
		require.NoError(t, err)
		assert.InDelta(t, q.TotalPrice, q.PrepaymentAmount+q.RemainingAmount, 1e-6)
		assert.InDelta(t, q.TotalPrice*0.30, q.PrepaymentAmount, 1e-6)
		assert.InDelta(t, q.BasePrice+q.ExtrasTotal, q.TotalPrice, 1e-6)
	}
}
