package quotes

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"carhire/internal/app/dto"
	"carhire/internal/app/handlers/support"
	"carhire/internal/app/queries"
	"carhire/internal/domain/fleet"
	"carhire/internal/domain/pricing"
)

const (
	exactPriceKey           = "backend.pricing.exact"
	calculatePriceKey       = "backend.pricing.calculate"
	pricingConfigKey        = "backend.pricing.config"
	availabilitySnapshotKey = "backend.cars.availability"
)

// ExactPriceQuery is answered from the local price table. Month accepts a
// month name or number.
type ExactPriceQuery struct {
	CarID    string `validate:"required"`
	Month    string `validate:"required"`
	Duration int    `validate:"min=1"`
}

func (q ExactPriceQuery) Key() string { return exactPriceKey }

type ExactPriceHandler struct {
	Lookup pricing.ExactLookup
}

func (h *ExactPriceHandler) Handle(ctx context.Context, q ExactPriceQuery) (dto.ExactPriceResponse, error) {
	month, ok := fleet.ParseMonth(q.Month)
	if !ok {
		return dto.ExactPriceResponse{}, fmt.Errorf("%w: month %q", pricing.ErrInvalidRequest, q.Month)
	}
	price, err := h.Lookup.ExactPrice(ctx, pricing.ExactQuery{CarID: q.CarID, Month: month, Duration: q.Duration})
	if errors.Is(err, pricing.ErrNoMatch) {
		return dto.ExactPriceResponse{Success: false}, nil
	}
	if err != nil {
		return dto.ExactPriceResponse{}, err
	}
	return dto.ExactPriceResponse{Success: true, Price: &price.Price, Source: price.Source}, nil
}

// CalculatePriceQuery prices a car with the local engine. The engine wired
// here must not itself call a remote calculator.
type CalculatePriceQuery struct {
	CarID  string         `json:"carId" validate:"required"`
	Pickup string         `json:"pickupDate" validate:"required"`
	Return string         `json:"returnDate" validate:"required"`
	Extras pricing.Extras `json:"extras"`
}

func (q CalculatePriceQuery) Key() string { return calculatePriceKey }

type CalculatePriceHandler struct {
	Cars    support.CarSource
	Pricing support.Quoter
}

func (h *CalculatePriceHandler) Handle(ctx context.Context, q CalculatePriceQuery) (dto.CalculatedPriceResponse, error) {
	dates, err := ParseDates(q.Pickup, q.Return)
	if err != nil {
		return dto.CalculatedPriceResponse{}, err
	}
	car, err := h.Cars.Car(ctx, fleet.CarID(q.CarID))
	if err != nil {
		return dto.CalculatedPriceResponse{}, err
	}
	quote, err := h.Pricing.Quote(ctx, pricing.Request{Car: car, Pickup: dates.Start, Return: dates.End, Extras: q.Extras})
	if err != nil {
		return dto.CalculatedPriceResponse{}, err
	}
	out := dto.MapQuote(quote)
	return dto.CalculatedPriceResponse{
		Success:     true,
		DailyRate:   &out.DailyRate,
		BasePrice:   &out.BasePrice,
		ExtrasTotal: &out.ExtrasTotal,
		TotalPrice:  &out.TotalPrice,
		Source:      string(quote.Tier),
	}, nil
}

type PricingConfigQuery struct{}

func (PricingConfigQuery) Key() string { return pricingConfigKey }

type PricingConfigHandler struct {
	Source pricing.ConfigSource
}

func (h *PricingConfigHandler) Handle(ctx context.Context, _ PricingConfigQuery) (pricing.Config, error) {
	cfg, err := h.Source.PricingConfig(ctx)
	if err != nil {
		return pricing.Config{}, err
	}
	return cfg.Normalized(), nil
}

// AvailabilitySnapshotQuery lists the availability inputs of one car, or of
// all cars when CarID is empty.
type AvailabilitySnapshotQuery struct {
	CarID string
}

func (q AvailabilitySnapshotQuery) Key() string { return availabilitySnapshotKey }

type AvailabilitySnapshotHandler struct {
	Cars support.CarSource
}

func (h *AvailabilitySnapshotHandler) Handle(ctx context.Context, q AvailabilitySnapshotQuery) ([]dto.AvailabilitySnapshot, error) {
	var cars []*fleet.Car
	if q.CarID != "" {
		car, err := h.Cars.Car(ctx, fleet.CarID(q.CarID))
		if err != nil {
			return nil, err
		}
		cars = []*fleet.Car{car}
	} else {
		var err error
		if cars, err = h.Cars.Cars(ctx); err != nil {
			return nil, err
		}
	}
	out := make([]dto.AvailabilitySnapshot, 0, len(cars))
	for _, car := range cars {
		out = append(out, dto.MapSnapshot(car))
	}
	return out, nil
}

// ParseDuration reads a positive day count from a query string.
func ParseDuration(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: duration %q", pricing.ErrInvalidRequest, raw)
	}
	return n, nil
}

var (
	_ queries.Handler[ExactPriceQuery, dto.ExactPriceResponse]               = (*ExactPriceHandler)(nil)
	_ queries.Handler[CalculatePriceQuery, dto.CalculatedPriceResponse]      = (*CalculatePriceHandler)(nil)
	_ queries.Handler[PricingConfigQuery, pricing.Config]                    = (*PricingConfigHandler)(nil)
	_ queries.Handler[AvailabilitySnapshotQuery, []dto.AvailabilitySnapshot] = (*AvailabilitySnapshotHandler)(nil)
)
