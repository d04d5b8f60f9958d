package quotes

import (
	"context"
	"log/slog"

	"carhire/internal/app/dto"
	"carhire/internal/app/handlers/support"
	"carhire/internal/app/queries"
	"carhire/internal/domain/availability"
	"carhire/internal/domain/fleet"
	"carhire/internal/domain/pricing"
)

const quoteCarKey = "quotes.car"

type QuoteCarQuery struct {
	CarID  string `json:"car_id" validate:"required"`
	Pickup string `json:"pickup" validate:"required"`
	Return string `json:"return" validate:"required"`
	Extras pricing.Extras
}

func (q QuoteCarQuery) Key() string { return quoteCarKey }

// QuoteCarHandler prices one car. The quote is returned even when the car is
// not free; the availability part says so.
type QuoteCarHandler struct {
	Logger  *slog.Logger
	Cars    support.CarSource
	Pricing support.Quoter
	Checker *availability.Checker
}

func (h *QuoteCarHandler) Handle(ctx context.Context, q QuoteCarQuery) (dto.QuoteResult, error) {
	dates, err := ParseDates(q.Pickup, q.Return)
	if err != nil {
		return dto.QuoteResult{}, err
	}
	car, err := h.Cars.Car(ctx, fleet.CarID(q.CarID))
	if err != nil {
		return dto.QuoteResult{}, err
	}
	quote, err := h.Pricing.Quote(ctx, pricing.Request{Car: car, Pickup: dates.Start, Return: dates.End, Extras: q.Extras})
	if err != nil {
		return dto.QuoteResult{}, err
	}
	requested := availability.RequestedRange(dates.Start, dates.End)
	decision := h.Checker.Check(car, requested)
	if h.Logger != nil {
		h.Logger.Debug("car quoted", "car_id", car.ID, "tier", quote.Tier, "total", quote.TotalPrice, "available", decision.Available)
	}
	return dto.QuoteResult{
		Quote:        dto.MapQuote(quote),
		Availability: dto.MapAvailability(car.ID, requested, decision),
	}, nil
}

var _ queries.Handler[QuoteCarQuery, dto.QuoteResult] = (*QuoteCarHandler)(nil)
