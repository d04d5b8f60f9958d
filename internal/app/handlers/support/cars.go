package support

import (
	"context"
	"errors"
	"log/slog"

	"carhire/internal/app/uow"
	"carhire/internal/domain/booking"
	"carhire/internal/domain/fleet"
	"carhire/internal/domain/pricing"
)

// CarSource yields cars with their booked ranges populated.
type CarSource interface {
	Car(ctx context.Context, id fleet.CarID) (*fleet.Car, error)
	Cars(ctx context.Context) ([]*fleet.Car, error)
}

// Quoter prices a rental request.
type Quoter interface {
	Quote(ctx context.Context, req pricing.Request) (pricing.Quote, error)
}

// RepositoryCars reads cars through the unit of work and derives booked
// ranges from the stored bookings.
type RepositoryCars struct {
	Factory uow.Factory
}

func (s RepositoryCars) Car(ctx context.Context, id fleet.CarID) (*fleet.Car, error) {
	unit, execCtx, _, finish, err := uow.Begin(ctx, s.Factory, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer finish()
	return CarInUnit(execCtx, unit, id)
}

// CarInUnit loads a car and its booked ranges through an open unit of work.
func CarInUnit(ctx context.Context, unit uow.UnitOfWork, id fleet.CarID) (*fleet.Car, error) {
	car, err := unit.Cars().ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	bookings, err := unit.Bookings().List(ctx, booking.Filter{CarID: id})
	if err != nil {
		return nil, err
	}
	return withBookings(car, bookings), nil
}

func (s RepositoryCars) Cars(ctx context.Context) ([]*fleet.Car, error) {
	unit, execCtx, _, finish, err := uow.Begin(ctx, s.Factory, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer finish()

	cars, err := unit.Cars().List(execCtx)
	if err != nil {
		return nil, err
	}
	bookings, err := unit.Bookings().List(execCtx, booking.Filter{})
	if err != nil {
		return nil, err
	}
	byCar := make(map[fleet.CarID][]*booking.Booking, len(cars))
	for _, b := range bookings {
		byCar[b.CarID] = append(byCar[b.CarID], b)
	}
	out := make([]*fleet.Car, 0, len(cars))
	for _, car := range cars {
		out = append(out, withBookings(car, byCar[car.ID]))
	}
	return out, nil
}

func withBookings(car *fleet.Car, bookings []*booking.Booking) *fleet.Car {
	ranges := append([]fleet.BookedRange(nil), car.BookedRanges...)
	ranges = append(ranges, booking.BookedRanges(bookings)...)
	return car.WithBookedRanges(ranges)
}

// FallbackCars asks Primary first and uses Secondary when it fails.
// ErrCarNotFound from Primary is returned as is.
type FallbackCars struct {
	Primary   CarSource
	Secondary CarSource
	Logger    *slog.Logger
}

func (f FallbackCars) Car(ctx context.Context, id fleet.CarID) (*fleet.Car, error) {
	car, err := f.Primary.Car(ctx, id)
	if err == nil || errors.Is(err, fleet.ErrCarNotFound) || f.Secondary == nil {
		return car, err
	}
	f.warn("car source degraded", err)
	return f.Secondary.Car(ctx, id)
}

func (f FallbackCars) Cars(ctx context.Context) ([]*fleet.Car, error) {
	cars, err := f.Primary.Cars(ctx)
	if err == nil || f.Secondary == nil {
		return cars, err
	}
	f.warn("car source degraded", err)
	return f.Secondary.Cars(ctx)
}

func (f FallbackCars) warn(msg string, err error) {
	if f.Logger != nil {
		f.Logger.Warn(msg, "error", err)
	}
}
