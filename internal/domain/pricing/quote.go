package pricing

import (
	"fmt"
	"time"

	"carhire/internal/domain/fleet"
	"carhire/internal/domain/shared/daterange"
)

// Tier names the strategy that produced a quote's base price.
type Tier string

const (
	TierExact       Tier = "exact"
	TierCalculated  Tier = "calculated"
	TierProrated    Tier = "prorated"
	TierMonthlyRate Tier = "monthly_rate"
	TierStatic      Tier = "static"
	TierDefault     Tier = "default"
)

type Request struct {
	Car    *fleet.Car
	Pickup time.Time
	Return time.Time
	Extras Extras
}

func (r Request) Validate() error {
	if r.Car == nil {
		return fmt.Errorf("%w: car required", ErrInvalidRequest)
	}
	if r.Pickup.IsZero() || r.Return.IsZero() {
		return fmt.Errorf("%w: pickup and return dates required", ErrInvalidRequest)
	}
	return nil
}

// Duration is the number of billable days. A return before the pickup is
// clamped to one day.
func (r Request) Duration() int {
	return daterange.RentalDays(r.Pickup, r.Return)
}

// Clamped reports whether the return date precedes the pickup date.
func (r Request) Clamped() bool {
	return daterange.Day(r.Return).Before(daterange.Day(r.Pickup))
}

// Slice is the share of a prorated rental falling into one month.
type Slice struct {
	Year   int
	Month  time.Month
	Days   int
	Rate   float64
	Source Tier
}

// Quote is an unrounded price breakdown. Amounts are rounded only when presented.
type Quote struct {
	CarID                string
	Tier                 Tier
	Source               string
	Currency             string
	Month                time.Month
	Duration             int
	DailyRate            float64
	Multiplier           float64
	BasePrice            float64
	ExtrasTotal          float64
	ExtrasLines          []ExtraLine
	TotalPrice           float64
	PrepaymentPercentage float64
	PrepaymentAmount     float64
	RemainingAmount      float64
	Slices               []Slice
	Clamped              bool
}
