package fleet

import (
	"context"
	"errors"
	"strings"
	"time"

	"carhire/internal/domain/shared/daterange"
	"carhire/internal/domain/shared/events"
)

var (
	ErrCarNotFound      = errors.New("fleet: car not found")
	ErrBlockNotFound    = errors.New("fleet: manual block not found")
	ErrInvalidRate      = errors.New("fleet: daily rate must be positive")
	ErrInvalidStatus    = errors.New("fleet: unknown manual status")
	ErrCarIDRequired    = errors.New("fleet: car id required")
	ErrConcurrentUpdate = errors.New("fleet: concurrent update detected")
	ErrPhotoRequired    = errors.New("fleet: photo url required")
)

type CarID string

// ManualStatus is the admin override of automatic availability.
type ManualStatus string

const (
	StatusAutomatic   ManualStatus = "automatic"
	StatusAvailable   ManualStatus = "available"
	StatusUnavailable ManualStatus = "unavailable"
)

// ParseManualStatus maps external values onto a ManualStatus. Empty input,
// "auto" and "none" mean no override.
func ParseManualStatus(raw string) (ManualStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "automatic", "auto", "none", "null":
		return StatusAutomatic, nil
	case "available":
		return StatusAvailable, nil
	case "unavailable", "blocked":
		return StatusUnavailable, nil
	default:
		return StatusAutomatic, ErrInvalidStatus
	}
}

type Specs struct {
	Engine     string
	Passengers int
	Doors      int
	Gearbox    string
	Fuel       string
	Luggage    int
}

// Block is an admin-defined inclusive range during which the car cannot be rented.
type Block struct {
	ID     string
	Range  daterange.Range
	Reason string
}

// BookedRange is the inclusive range occupied by an existing booking.
type BookedRange struct {
	Reference string
	Range     daterange.Range
	Status    string
}

type Car struct {
	ID             CarID
	Name           string
	Make           string
	Model          string
	Category       string
	Features       []string
	Specs          Specs
	MonthlyPricing map[time.Month]float64
	ManualStatus   ManualStatus
	ManualBlocks   []Block
	BookedRanges   []BookedRange
	PhotoURL       string
	UpdatedAt      time.Time
	Version        int64
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id CarID) (*Car, error)
	List(ctx context.Context) ([]*Car, error)
	Save(ctx context.Context, car *Car) error
}

// DisplayName prefers the explicit name and falls back to make and model.
func (c *Car) DisplayName() string {
	if c == nil {
		return ""
	}
	if name := strings.TrimSpace(c.Name); name != "" {
		return name
	}
	return strings.TrimSpace(c.Make + " " + c.Model)
}

// MonthlyRate returns the static daily rate configured for month, if any.
func (c *Car) MonthlyRate(month time.Month) (float64, bool) {
	if c == nil || c.MonthlyPricing == nil {
		return 0, false
	}
	rate, ok := c.MonthlyPricing[month]
	if !ok || rate <= 0 {
		return 0, false
	}
	return rate, true
}

// MissingMonths lists months without a configured rate.
func (c *Car) MissingMonths() []time.Month {
	var missing []time.Month
	for m := time.January; m <= time.December; m++ {
		if _, ok := c.MonthlyRate(m); !ok {
			missing = append(missing, m)
		}
	}
	return missing
}

// SetMonthlyRates replaces the rates of the given months.
func (c *Car) SetMonthlyRates(rates map[time.Month]float64, now time.Time) error {
	for month, rate := range rates {
		if month < time.January || month > time.December {
			return ErrInvalidRate
		}
		if rate <= 0 {
			return ErrInvalidRate
		}
	}
	if c.MonthlyPricing == nil {
		c.MonthlyPricing = make(map[time.Month]float64, 12)
	}
	changed := make(map[string]float64, len(rates))
	for month, rate := range rates {
		c.MonthlyPricing[month] = rate
		changed[month.String()] = rate
	}
	c.touch(now)
	c.Record(PricingUpdated{CarID: string(c.ID), Rates: changed, At: c.UpdatedAt})
	return nil
}

func (c *Car) SetManualStatus(status ManualStatus, now time.Time) error {
	switch status {
	case StatusAutomatic, StatusAvailable, StatusUnavailable:
	default:
		return ErrInvalidStatus
	}
	c.ManualStatus = status
	c.touch(now)
	c.Record(AvailabilityChanged{CarID: string(c.ID), Change: ChangeStatus, Status: string(status), At: c.UpdatedAt})
	return nil
}

func (c *Car) AddBlock(block Block, now time.Time) error {
	if err := block.Range.Validate(); err != nil {
		return err
	}
	c.ManualBlocks = append(c.ManualBlocks, block)
	c.touch(now)
	c.Record(AvailabilityChanged{
		CarID:  string(c.ID),
		Change: ChangeBlockAdded,
		Status: string(c.ManualStatus),
		From:   daterange.Format(block.Range.Start),
		To:     daterange.Format(block.Range.End),
		At:     c.UpdatedAt,
	})
	return nil
}

func (c *Car) RemoveBlock(id string, now time.Time) error {
	idx := -1
	for i, b := range c.ManualBlocks {
		if b.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return ErrBlockNotFound
	}
	removed := c.ManualBlocks[idx]
	c.ManualBlocks = append(c.ManualBlocks[:idx], c.ManualBlocks[idx+1:]...)
	c.touch(now)
	c.Record(AvailabilityChanged{
		CarID:  string(c.ID),
		Change: ChangeBlockRemoved,
		Status: string(c.ManualStatus),
		From:   daterange.Format(removed.Range.Start),
		To:     daterange.Format(removed.Range.End),
		At:     c.UpdatedAt,
	})
	return nil
}

// SetPhoto replaces the car's photo URL.
func (c *Car) SetPhoto(url string, now time.Time) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return ErrPhotoRequired
	}
	c.PhotoURL = url
	c.touch(now)
	return nil
}

// WithBookedRanges returns a shallow copy of the car carrying the given booked ranges.
func (c *Car) WithBookedRanges(ranges []BookedRange) *Car {
	clone := c.Clone()
	clone.BookedRanges = append([]BookedRange(nil), ranges...)
	return clone
}

// Clone copies the car without its pending events.
func (c *Car) Clone() *Car {
	if c == nil {
		return nil
	}
	clone := &Car{
		ID:           c.ID,
		Name:         c.Name,
		Make:         c.Make,
		Model:        c.Model,
		Category:     c.Category,
		Features:     append([]string(nil), c.Features...),
		Specs:        c.Specs,
		ManualStatus: c.ManualStatus,
		ManualBlocks: append([]Block(nil), c.ManualBlocks...),
		BookedRanges: append([]BookedRange(nil), c.BookedRanges...),
		PhotoURL:     c.PhotoURL,
		UpdatedAt:    c.UpdatedAt,
		Version:      c.Version,
	}
	if c.MonthlyPricing != nil {
		clone.MonthlyPricing = make(map[time.Month]float64, len(c.MonthlyPricing))
		for m, rate := range c.MonthlyPricing {
			clone.MonthlyPricing[m] = rate
		}
	}
	return clone
}

func (c *Car) touch(now time.Time) {
	c.UpdatedAt = now.UTC()
}
