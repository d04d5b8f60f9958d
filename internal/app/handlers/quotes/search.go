package quotes

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"carhire/internal/app/dto"
	"carhire/internal/app/handlers/support"
	"carhire/internal/app/queries"
	"carhire/internal/domain/availability"
	"carhire/internal/domain/fleet"
	"carhire/internal/domain/pricing"
	"carhire/internal/domain/shared/daterange"
)

const searchCarsKey = "quotes.search"

const DefaultSearchConcurrency = 8

type SearchCarsQuery struct {
	Pickup   string `validate:"required"`
	Return   string `validate:"required"`
	Category string
	Extras   pricing.Extras
}

func (q SearchCarsQuery) Key() string { return searchCarsKey }

// SearchCarsHandler checks and prices every car concurrently and returns the
// available ones cheapest first.
type SearchCarsHandler struct {
	Logger      *slog.Logger
	Cars        support.CarSource
	Pricing     support.Quoter
	Checker     *availability.Checker
	Concurrency int
}

type searchSlot struct {
	car      *fleet.Car
	decision availability.Decision
	quote    pricing.Quote
	priced   bool
}

func (h *SearchCarsHandler) Handle(ctx context.Context, q SearchCarsQuery) (dto.SearchResult, error) {
	dates, err := ParseDates(q.Pickup, q.Return)
	if err != nil {
		return dto.SearchResult{}, err
	}
	cars, err := h.Cars.Cars(ctx)
	if err != nil {
		return dto.SearchResult{}, err
	}
	requested := availability.RequestedRange(dates.Start, dates.End)

	slots := make([]searchSlot, 0, len(cars))
	for _, car := range cars {
		if matchesCategory(car, q.Category) {
			slots = append(slots, searchSlot{car: car})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.concurrency())
	for i := range slots {
		slot := &slots[i]
		g.Go(func() error {
			slot.decision = h.Checker.Check(slot.car, requested)
			if !slot.decision.Available {
				return nil
			}
			quote, err := h.Pricing.Quote(gctx, pricing.Request{Car: slot.car, Pickup: dates.Start, Return: dates.End, Extras: q.Extras})
			if err != nil {
				return err
			}
			slot.quote = quote
			slot.priced = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return dto.SearchResult{}, err
	}

	out := dto.SearchResult{
		Pickup:      daterange.Format(requested.Start),
		Return:      daterange.Format(requested.End),
		Items:       make([]dto.SearchItem, 0, len(slots)),
		Unavailable: []dto.Unavailable{},
	}
	for _, slot := range slots {
		if !slot.priced {
			out.Unavailable = append(out.Unavailable, dto.Unavailable{CarID: string(slot.car.ID), Reason: string(slot.decision.Reason)})
			continue
		}
		out.Items = append(out.Items, dto.SearchItem{Car: dto.MapCar(slot.car), Quote: dto.MapQuote(slot.quote)})
	}
	sort.SliceStable(out.Items, func(i, j int) bool {
		if out.Items[i].Quote.TotalPrice != out.Items[j].Quote.TotalPrice {
			return out.Items[i].Quote.TotalPrice < out.Items[j].Quote.TotalPrice
		}
		return out.Items[i].Car.ID < out.Items[j].Car.ID
	})
	if h.Logger != nil {
		h.Logger.Info("cars searched", "pickup", out.Pickup, "return", out.Return, "available", len(out.Items), "unavailable", len(out.Unavailable))
	}
	return out, nil
}

func (h *SearchCarsHandler) concurrency() int {
	if h.Concurrency > 0 {
		return h.Concurrency
	}
	return DefaultSearchConcurrency
}

var _ queries.Handler[SearchCarsQuery, dto.SearchResult] = (*SearchCarsHandler)(nil)
