package quotes

import (
	"context"
	"errors"
	"strings"

	"carhire/internal/app/dto"
	"carhire/internal/app/handlers/support"
	"carhire/internal/app/queries"
	"carhire/internal/domain/availability"
	"carhire/internal/domain/fleet"
	"carhire/internal/domain/shared/daterange"
)

const (
	listCarsKey        = "cars.list"
	getCarKey          = "cars.get"
	carAvailabilityKey = "cars.availability"
)

var ErrDatesRequired = errors.New("quotes: pickup and return dates required")

type ListCarsQuery struct {
	Category string
}

func (q ListCarsQuery) Key() string { return listCarsKey }

type ListCarsHandler struct {
	Cars support.CarSource
}

func (h *ListCarsHandler) Handle(ctx context.Context, q ListCarsQuery) (dto.CarCollection, error) {
	cars, err := h.Cars.Cars(ctx)
	if err != nil {
		return dto.CarCollection{}, err
	}
	out := dto.CarCollection{Items: make([]dto.Car, 0, len(cars))}
	for _, car := range cars {
		if !matchesCategory(car, q.Category) {
			continue
		}
		out.Items = append(out.Items, dto.MapCar(car))
	}
	return out, nil
}

type GetCarQuery struct {
	CarID string `validate:"required"`
}

func (q GetCarQuery) Key() string { return getCarKey }

type GetCarHandler struct {
	Cars support.CarSource
}

func (h *GetCarHandler) Handle(ctx context.Context, q GetCarQuery) (dto.Car, error) {
	car, err := h.Cars.Car(ctx, fleet.CarID(q.CarID))
	if err != nil {
		return dto.Car{}, err
	}
	return dto.MapCar(car), nil
}

type CarAvailabilityQuery struct {
	CarID  string `validate:"required"`
	Pickup string
	Return string
}

func (q CarAvailabilityQuery) Key() string { return carAvailabilityKey }

type CarAvailabilityHandler struct {
	Cars    support.CarSource
	Checker *availability.Checker
}

func (h *CarAvailabilityHandler) Handle(ctx context.Context, q CarAvailabilityQuery) (dto.Availability, error) {
	dates, err := ParseDates(q.Pickup, q.Return)
	if err != nil {
		return dto.Availability{}, err
	}
	car, err := h.Cars.Car(ctx, fleet.CarID(q.CarID))
	if err != nil {
		return dto.Availability{}, err
	}
	requested := availability.RequestedRange(dates.Start, dates.End)
	return dto.MapAvailability(car.ID, requested, h.Checker.Check(car, requested)), nil
}

// ParseDates parses a pickup and return date pair. The order of the two is
// not checked here; pricing and availability each clamp an inverted pair.
func ParseDates(pickup, ret string) (daterange.Range, error) {
	if strings.TrimSpace(pickup) == "" || strings.TrimSpace(ret) == "" {
		return daterange.Range{}, ErrDatesRequired
	}
	p, err := daterange.Parse(pickup)
	if err != nil {
		return daterange.Range{}, err
	}
	r, err := daterange.Parse(ret)
	if err != nil {
		return daterange.Range{}, err
	}
	return daterange.Range{Start: p, End: r}, nil
}

func matchesCategory(car *fleet.Car, category string) bool {
	category = strings.TrimSpace(category)
	return category == "" || strings.EqualFold(car.Category, category)
}

var (
	_ queries.Handler[ListCarsQuery, dto.CarCollection]       = (*ListCarsHandler)(nil)
	_ queries.Handler[GetCarQuery, dto.Car]                   = (*GetCarHandler)(nil)
	_ queries.Handler[CarAvailabilityQuery, dto.Availability] = (*CarAvailabilityHandler)(nil)
)
