package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"carhire/internal/domain/shared/money"
)

const (
	DefaultCurrency  = "EUR"
	DefaultDailyRate = 45.0
	// MaxMultiplierDays caps the duration used to pick a multiplier or a rate lookup.
	MaxMultiplierDays = 7
)

var ErrInvalidConfig = errors.New("pricing: invalid pricing configuration")

// DurationPricing maps a rental duration in days (1..7) to a price multiplier.
type DurationPricing map[int]float64

func DefaultDurationPricing() DurationPricing {
	return DurationPricing{1: 1.0, 2: 1.0, 3: 1.0, 4: 0.95, 5: 0.95, 6: 0.95, 7: 0.85}
}

// UnmarshalJSON accepts single-day keys ("3"), buckets ("4-6") and open
// buckets ("7+").
func (d *DurationPricing) UnmarshalJSON(data []byte) error {
	var raw map[string]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(DurationPricing, MaxMultiplierDays)
	for key, multiplier := range raw {
		from, to, err := parseBucket(key)
		if err != nil {
			return fmt.Errorf("pricing: duration bucket %q: %w", key, err)
		}
		for day := from; day <= to; day++ {
			out[day] = multiplier
		}
	}
	*d = out
	return nil
}

func parseBucket(key string) (int, int, error) {
	key = strings.TrimSpace(key)
	if strings.HasSuffix(key, "+") {
		from, err := strconv.Atoi(strings.TrimSuffix(key, "+"))
		if err != nil {
			return 0, 0, err
		}
		return clampDay(from), MaxMultiplierDays, nil
	}
	if lo, hi, ok := strings.Cut(key, "-"); ok {
		from, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return 0, 0, err
		}
		to, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return 0, 0, err
		}
		return clampDay(from), clampDay(to), nil
	}
	day, err := strconv.Atoi(key)
	if err != nil {
		return 0, 0, err
	}
	return clampDay(day), clampDay(day), nil
}

func clampDay(day int) int {
	if day < 1 {
		return 1
	}
	if day > MaxMultiplierDays {
		return MaxMultiplierDays
	}
	return day
}

// Config is the pricing configuration document.
type Config struct {
	Currency             string          `json:"currency"`
	DefaultDailyRate     float64         `json:"defaultDailyRate"`
	PrepaymentPercentage float64         `json:"prepaymentPercentage"`
	Extras               Catalog         `json:"extras"`
	DurationPricing      DurationPricing `json:"durationPricing"`
}

func DefaultConfig() Config {
	return Config{
		Currency:             DefaultCurrency,
		DefaultDailyRate:     DefaultDailyRate,
		PrepaymentPercentage: money.DefaultPrepaymentPercentage,
		Extras:               DefaultCatalog(),
		DurationPricing:      DefaultDurationPricing(),
	}
}

// Normalized fills unset fields with defaults. A missing extras catalog stays
// empty: unknown extras cost nothing.
func (c Config) Normalized() Config {
	if code, err := money.NormalizeCurrency(c.Currency); err == nil {
		c.Currency = code
	} else {
		c.Currency = DefaultCurrency
	}
	if c.DefaultDailyRate <= 0 || math.IsNaN(c.DefaultDailyRate) {
		c.DefaultDailyRate = DefaultDailyRate
	}
	if c.PrepaymentPercentage <= 0 || c.PrepaymentPercentage > 100 || math.IsNaN(c.PrepaymentPercentage) {
		c.PrepaymentPercentage = money.DefaultPrepaymentPercentage
	}
	if len(c.DurationPricing) == 0 {
		c.DurationPricing = DefaultDurationPricing()
	}
	if c.Extras == nil {
		c.Extras = Catalog{}
	}
	return c
}

// Validate rejects documents an admin must not be able to store.
func (c Config) Validate() error {
	if c.Currency != "" {
		if _, err := money.NormalizeCurrency(c.Currency); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	if c.DefaultDailyRate < 0 {
		return fmt.Errorf("%w: default daily rate is negative", ErrInvalidConfig)
	}
	if c.PrepaymentPercentage <= 0 || c.PrepaymentPercentage > 100 || math.IsNaN(c.PrepaymentPercentage) {
		return fmt.Errorf("%w: prepayment percentage must be in (0, 100]", ErrInvalidConfig)
	}
	for name, price := range c.Extras {
		if price.Amount < 0 {
			return fmt.Errorf("%w: extra %s has a negative price", ErrInvalidConfig, name)
		}
	}
	for day, multiplier := range c.DurationPricing {
		if day < 1 || day > MaxMultiplierDays || multiplier <= 0 || multiplier > 2 {
			return fmt.Errorf("%w: duration multiplier for %d days", ErrInvalidConfig, day)
		}
	}
	return nil
}

// Multiplier returns the duration discount for a rental of duration days,
// keyed by min(duration, 7). A missing key uses the closest shorter bucket.
func (c Config) Multiplier(duration int) float64 {
	key := clampDay(duration)
	for day := key; day >= 1; day-- {
		if m, ok := c.DurationPricing[day]; ok && m > 0 {
			return m
		}
	}
	return 1.0
}

// Buckets returns the configured multipliers ordered by day.
func (c Config) Buckets() []int {
	days := make([]int, 0, len(c.DurationPricing))
	for day := range c.DurationPricing {
		days = append(days, day)
	}
	sort.Ints(days)
	return days
}

// ConfigSource supplies the pricing configuration.
type ConfigSource interface {
	PricingConfig(ctx context.Context) (Config, error)
}

// ConfigRepository persists the pricing configuration edited by admins.
type ConfigRepository interface {
	ConfigSource
	SavePricingConfig(ctx context.Context, cfg Config) error
}

// StaticConfig serves a fixed configuration.
type StaticConfig Config

func (s StaticConfig) PricingConfig(context.Context) (Config, error) {
	return Config(s), nil
}

// ConfigChain tries each source in order and fails only when none answers.
type ConfigChain []ConfigSource

func (c ConfigChain) PricingConfig(ctx context.Context) (Config, error) {
	var errs []error
	for _, source := range c {
		if source == nil {
			continue
		}
		cfg, err := source.PricingConfig(ctx)
		if err == nil {
			return cfg, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return Config{}, ErrConfigUnavailable
	}
	return Config{}, fmt.Errorf("%w: %w", ErrConfigUnavailable, errors.Join(errs...))
}
