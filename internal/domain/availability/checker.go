package availability

import (
	"log/slog"
	"time"

	"carhire/internal/domain/fleet"
	"carhire/internal/domain/shared/daterange"
)

type Reason string

const (
	ReasonFree              Reason = "free"
	ReasonManualUnavailable Reason = "manual_unavailable"
	ReasonManualBlock       Reason = "manual_block"
	ReasonBooking           Reason = "booking"
)

// Decision is the outcome of an availability check. Conflict is set when a
// block or booking caused the refusal.
type Decision struct {
	Available bool
	Reason    Reason
	Conflict  *daterange.Range
	Reference string
	Skipped   int
}

// Checker decides whether a car can be rented for a range. It holds no state
// and is safe for concurrent use.
type Checker struct {
	Logger *slog.Logger
}

func NewChecker(logger *slog.Logger) *Checker {
	return &Checker{Logger: logger}
}

// IsAvailable checks the inclusive range [pickup, ret]. A return before the
// pickup is treated as the pickup day alone.
func (c *Checker) IsAvailable(car *fleet.Car, pickup, ret time.Time) bool {
	return c.Check(car, RequestedRange(pickup, ret)).Available
}

// RequestedRange builds the inclusive range checked for a rental.
func RequestedRange(pickup, ret time.Time) daterange.Range {
	r := daterange.Range{Start: daterange.Day(pickup), End: daterange.Day(ret)}
	if r.End.Before(r.Start) {
		r.End = r.Start
	}
	return r
}

func (c *Checker) Check(car *fleet.Car, requested daterange.Range) Decision {
	if car == nil {
		return Decision{Reason: ReasonManualUnavailable}
	}
	if car.ManualStatus == fleet.StatusUnavailable {
		return Decision{Reason: ReasonManualUnavailable}
	}

	var skipped int
	for i, block := range car.ManualBlocks {
		if !block.Range.Valid() {
			skipped++
			c.skip(car, "manual_block", i, block.Range)
			continue
		}
		if block.Range.Overlaps(requested) {
			conflict := block.Range
			return Decision{Reason: ReasonManualBlock, Conflict: &conflict, Reference: block.ID, Skipped: skipped}
		}
	}

	if car.ManualStatus != fleet.StatusAvailable {
		for i, booked := range car.BookedRanges {
			if !booked.Range.Valid() {
				skipped++
				c.skip(car, "booked_range", i, booked.Range)
				continue
			}
			if booked.Range.Overlaps(requested) {
				conflict := booked.Range
				return Decision{Reason: ReasonBooking, Conflict: &conflict, Reference: booked.Reference, Skipped: skipped}
			}
		}
	}
	return Decision{Available: true, Reason: ReasonFree, Skipped: skipped}
}

// Overlaps reports whether two inclusive calendar ranges share a day.
func Overlaps(a, b daterange.Range) bool {
	return a.Overlaps(b)
}

func (c *Checker) skip(car *fleet.Car, kind string, index int, r daterange.Range) {
	if c == nil || c.Logger == nil {
		return
	}
	c.Logger.Warn("malformed range ignored", "car_id", car.ID, "kind", kind, "index", index, "range", r.String())
}
