package pricing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"carhire/internal/domain/shared/daterange"
	"carhire/internal/domain/shared/money"
)

const DefaultLookupTimeout = 2 * time.Second

// Engine prices a rental by trying an ordered list of strategies until one
// produces a base price. Remote tiers never fail the quote; they fall through.
type Engine struct {
	Exact         ExactLookup
	Calculated    CalculatedLookup
	Config        ConfigSource
	LookupTimeout time.Duration
	Logger        *slog.Logger
}

type quoteInput struct {
	req      Request
	cfg      Config
	duration int
	month    time.Month
}

// outcome is the tagged result of a strategy.
type outcome struct {
	tier        Tier
	source      string
	dailyRate   float64
	multiplier  float64
	base        float64
	extrasTotal *float64
	slices      []Slice
}

type strategy struct {
	tier Tier
	run  func(ctx context.Context, in quoteInput) (outcome, bool)
}

func (e *Engine) strategies() []strategy {
	return []strategy{
		{tier: TierExact, run: e.exactTier},
		{tier: TierCalculated, run: e.calculatedTier},
		{tier: TierProrated, run: e.proratedTier},
		{tier: TierMonthlyRate, run: e.monthlyRateTier},
		{tier: TierStatic, run: e.staticTier},
	}
}

func (e *Engine) Quote(ctx context.Context, req Request) (Quote, error) {
	if err := req.Validate(); err != nil {
		return Quote{}, err
	}
	cfg, err := e.loadConfig(ctx)
	if err != nil {
		return Quote{}, err
	}
	in := quoteInput{
		req:      req,
		cfg:      cfg,
		duration: req.Duration(),
		month:    daterange.Day(req.Pickup).Month(),
	}
	for _, s := range e.strategies() {
		result, ok := s.run(ctx, in)
		if !ok {
			continue
		}
		return e.finish(in, result), nil
	}
	// staticTier always answers.
	return Quote{}, fmt.Errorf("%w: no pricing strategy answered", ErrLookupUnavailable)
}

// PricingConfig returns the normalized configuration the engine quotes with.
func (e *Engine) PricingConfig(ctx context.Context) (Config, error) {
	return e.loadConfig(ctx)
}

func (e *Engine) loadConfig(ctx context.Context) (Config, error) {
	if e.Config == nil {
		return DefaultConfig(), nil
	}
	lctx, cancel := e.lookupContext(ctx)
	defer cancel()
	cfg, err := e.Config.PricingConfig(lctx)
	if err != nil {
		e.logError("pricing config load failed", err)
		if errors.Is(err, ErrConfigUnavailable) {
			return Config{}, err
		}
		return Config{}, fmt.Errorf("%w: %w", ErrConfigUnavailable, err)
	}
	return cfg.Normalized(), nil
}

func (e *Engine) finish(in quoteInput, o outcome) Quote {
	lines := in.cfg.Extras.Lines(in.req.Extras, in.duration)
	extras := 0.0
	for _, line := range lines {
		extras += line.Amount
	}
	if o.extrasTotal != nil {
		extras = *o.extrasTotal
	}
	total := o.base + extras
	split := money.SplitPrepayment(total, in.cfg.PrepaymentPercentage)
	return Quote{
		CarID:                string(in.req.Car.ID),
		Tier:                 o.tier,
		Source:               o.source,
		Currency:             in.cfg.Currency,
		Month:                in.month,
		Duration:             in.duration,
		DailyRate:            o.dailyRate,
		Multiplier:           o.multiplier,
		BasePrice:            o.base,
		ExtrasTotal:          extras,
		ExtrasLines:          lines,
		TotalPrice:           total,
		PrepaymentPercentage: split.Percentage,
		PrepaymentAmount:     split.Prepayment,
		RemainingAmount:      split.Remaining,
		Slices:               o.slices,
		Clamped:              in.req.Clamped(),
	}
}

func (e *Engine) exactTier(ctx context.Context, in quoteInput) (outcome, bool) {
	price, ok := e.exactPrice(ctx, TierExact, ExactQuery{
		CarID:    string(in.req.Car.ID),
		CarName:  in.req.Car.DisplayName(),
		Month:    in.month,
		Duration: in.duration,
	})
	if !ok {
		return outcome{}, false
	}
	return outcome{
		tier:       TierExact,
		source:     price.Source,
		dailyRate:  price.Price / float64(in.duration),
		multiplier: 1,
		base:       price.Price,
	}, true
}

func (e *Engine) calculatedTier(ctx context.Context, in quoteInput) (outcome, bool) {
	if e.Calculated == nil {
		return outcome{}, false
	}
	lctx, cancel := e.lookupContext(ctx)
	defer cancel()
	calc, err := e.Calculated.CalculatePrice(lctx, QueryFor(in.req))
	if err != nil {
		e.logFallthrough(TierCalculated, in.req.Car.ID, err)
		return outcome{}, false
	}

	var extras float64
	var serverExtras *float64
	if calc.ExtrasTotal != nil && *calc.ExtrasTotal >= 0 {
		extras = *calc.ExtrasTotal
		serverExtras = calc.ExtrasTotal
	} else {
		extras = in.cfg.Extras.Total(in.req.Extras, in.duration)
	}

	var base float64
	switch {
	case calc.TotalPrice != nil && *calc.TotalPrice > 0:
		base = *calc.TotalPrice - extras
	case calc.BasePrice != nil && *calc.BasePrice > 0:
		base = *calc.BasePrice
	default:
		e.logFallthrough(TierCalculated, in.req.Car.ID, ErrNoMatch)
		return outcome{}, false
	}
	if base < 0 {
		e.logFallthrough(TierCalculated, in.req.Car.ID, fmt.Errorf("%w: extras exceed total", ErrNoMatch))
		return outcome{}, false
	}

	daily := base / float64(in.duration)
	if calc.DailyRate != nil && *calc.DailyRate > 0 {
		daily = *calc.DailyRate
	}
	return outcome{
		tier:        TierCalculated,
		source:      calc.Source,
		dailyRate:   daily,
		multiplier:  1,
		base:        base,
		extrasTotal: serverExtras,
	}, true
}

// proratedTier prices rentals that touch more than one calendar month, each
// month at its own rate.
func (e *Engine) proratedTier(ctx context.Context, in quoteInput) (outcome, bool) {
	months := daterange.SplitByMonth(in.req.Pickup, in.duration)
	if len(months) < 2 {
		return outcome{}, false
	}
	lookupDays := min(in.duration, MaxMultiplierDays)
	slices := make([]Slice, 0, len(months))
	var base float64
	for _, m := range months {
		rate, source := e.monthRate(ctx, in, m.Month, lookupDays)
		slices = append(slices, Slice{Year: m.Year, Month: m.Month, Days: m.Days, Rate: rate, Source: source})
		base += float64(m.Days) * rate
	}
	return outcome{
		tier:       TierProrated,
		dailyRate:  base / float64(in.duration),
		multiplier: 1,
		base:       base,
		slices:     slices,
	}, true
}

// monthlyRateTier prices single-month rentals longer than a week from the
// month's 7-day price. Shorter rentals were already asked for exactly.
func (e *Engine) monthlyRateTier(ctx context.Context, in quoteInput) (outcome, bool) {
	if in.duration <= MaxMultiplierDays {
		return outcome{}, false
	}
	price, ok := e.exactPrice(ctx, TierMonthlyRate, ExactQuery{
		CarID:    string(in.req.Car.ID),
		CarName:  in.req.Car.DisplayName(),
		Month:    in.month,
		Duration: MaxMultiplierDays,
	})
	if !ok {
		return outcome{}, false
	}
	daily := price.Price / MaxMultiplierDays
	return outcome{
		tier:       TierMonthlyRate,
		source:     price.Source,
		dailyRate:  daily,
		multiplier: 1,
		base:       daily * float64(in.duration),
	}, true
}

func (e *Engine) staticTier(_ context.Context, in quoteInput) (outcome, bool) {
	tier := TierStatic
	rate, ok := in.req.Car.MonthlyRate(in.month)
	if !ok {
		tier = TierDefault
		rate = in.cfg.DefaultDailyRate
	}
	multiplier := in.cfg.Multiplier(in.duration)
	return outcome{
		tier:       tier,
		source:     "local",
		dailyRate:  rate,
		multiplier: multiplier,
		base:       rate * float64(in.duration) * multiplier,
	}, true
}

// monthRate resolves the daily rate of one month: looked-up price, then the
// car's static rate, then the configured default.
func (e *Engine) monthRate(ctx context.Context, in quoteInput, month time.Month, lookupDays int) (float64, Tier) {
	price, ok := e.exactPrice(ctx, TierProrated, ExactQuery{
		CarID:    string(in.req.Car.ID),
		CarName:  in.req.Car.DisplayName(),
		Month:    month,
		Duration: lookupDays,
	})
	if ok {
		return price.Price / float64(lookupDays), TierExact
	}
	if rate, ok := in.req.Car.MonthlyRate(month); ok {
		return rate, TierStatic
	}
	return in.cfg.DefaultDailyRate, TierDefault
}

func (e *Engine) exactPrice(ctx context.Context, tier Tier, q ExactQuery) (ExactPrice, bool) {
	if e.Exact == nil {
		return ExactPrice{}, false
	}
	lctx, cancel := e.lookupContext(ctx)
	defer cancel()
	price, err := e.Exact.ExactPrice(lctx, q)
	if err != nil {
		e.logFallthrough(tier, q.CarID, err)
		return ExactPrice{}, false
	}
	if price.Price <= 0 {
		e.logFallthrough(tier, q.CarID, ErrNoMatch)
		return ExactPrice{}, false
	}
	return price, true
}

func (e *Engine) lookupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := e.LookupTimeout
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

func (e *Engine) logFallthrough(tier Tier, carID any, err error) {
	if e.Logger == nil {
		return
	}
	if errors.Is(err, ErrNoMatch) {
		e.Logger.Debug("pricing tier has no match", "tier", tier, "car_id", carID)
		return
	}
	e.Logger.Warn("pricing tier failed", "tier", tier, "car_id", carID, "error", err)
}

func (e *Engine) logError(msg string, err error) {
	if e.Logger == nil {
		return
	}
	e.Logger.Error(msg, "error", err)
}
