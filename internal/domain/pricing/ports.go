package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carhire/internal/domain/shared/daterange"
)

var (
	ErrConfigUnavailable = errors.New("pricing: configuration unavailable")
	ErrLookupUnavailable = errors.New("pricing: lookup unavailable")
	ErrNoMatch           = errors.New("pricing: no matching price")
	ErrInvalidRequest    = errors.New("pricing: invalid request")
)

// ExactQuery asks for the total price of renting a car for Duration days
// starting in Month.
type ExactQuery struct {
	CarID    string
	CarName  string
	Month    time.Month
	Duration int
}

func (q ExactQuery) Key() CacheKey {
	return CacheKey{CarID: q.CarID, Month: q.Month, Duration: q.Duration}
}

type ExactPrice struct {
	Price  float64
	Source string
}

// ExactLookup returns ErrNoMatch when no price exists for the query and
// ErrLookupUnavailable when the source could not be asked.
type ExactLookup interface {
	ExactPrice(ctx context.Context, q ExactQuery) (ExactPrice, error)
}

type CalculatedQuery struct {
	CarID   string
	CarName string
	Pickup  time.Time
	Return  time.Time
	Extras  Extras
}

// CalculatedPrice is a breakdown computed by a pricing server. Unset fields
// were not provided.
type CalculatedPrice struct {
	DailyRate   *float64
	BasePrice   *float64
	ExtrasTotal *float64
	TotalPrice  *float64
	Source      string
}

type CalculatedLookup interface {
	CalculatePrice(ctx context.Context, q CalculatedQuery) (CalculatedPrice, error)
}

// TableEntry is the exact total price of a car for a month and duration.
type TableEntry struct {
	CarID     string
	Month     time.Month
	Duration  int
	Price     float64
	UpdatedAt time.Time
}

func (e TableEntry) Validate() error {
	if e.CarID == "" {
		return fmt.Errorf("%w: car id required", ErrInvalidRequest)
	}
	if e.Month < time.January || e.Month > time.December {
		return fmt.Errorf("%w: month out of range", ErrInvalidRequest)
	}
	if e.Duration < 1 {
		return fmt.Errorf("%w: duration must be positive", ErrInvalidRequest)
	}
	if e.Price <= 0 {
		return fmt.Errorf("%w: price must be positive", ErrInvalidRequest)
	}
	return nil
}

type TableRepository interface {
	Price(ctx context.Context, carID string, month time.Month, duration int) (TableEntry, error)
	ListByCar(ctx context.Context, carID string) ([]TableEntry, error)
	Upsert(ctx context.Context, entries []TableEntry) error
}

// TableLookup answers exact lookups from a local price table.
type TableLookup struct {
	Table TableRepository
}

func (t TableLookup) ExactPrice(ctx context.Context, q ExactQuery) (ExactPrice, error) {
	if t.Table == nil {
		return ExactPrice{}, ErrLookupUnavailable
	}
	entry, err := t.Table.Price(ctx, q.CarID, q.Month, q.Duration)
	if err != nil {
		return ExactPrice{}, err
	}
	if entry.Price <= 0 {
		return ExactPrice{}, ErrNoMatch
	}
	return ExactPrice{Price: entry.Price, Source: "table"}, nil
}

// QueryFor builds the calculated query for a request.
func QueryFor(req Request) CalculatedQuery {
	return CalculatedQuery{
		CarID:   string(req.Car.ID),
		CarName: req.Car.DisplayName(),
		Pickup:  daterange.Day(req.Pickup),
		Return:  daterange.Day(req.Return),
		Extras:  req.Extras,
	}
}
