package fleet

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"carhire/internal/app/commands"
	"carhire/internal/app/dto"
	"carhire/internal/app/outbox"
	"carhire/internal/app/uow"
	domainfleet "carhire/internal/domain/fleet"
	"carhire/internal/domain/shared/daterange"
)

const (
	updateMonthlyPricingKey = "fleet.pricing.update"
	setManualStatusKey      = "fleet.status.set"
	addBlockKey             = "fleet.blocks.add"
	removeBlockKey          = "fleet.blocks.remove"
)

// PriceCache is the invalidation side of the exact price cache.
type PriceCache interface {
	Invalidate(ctx context.Context, carID string) error
	Flush(ctx context.Context) error
}

// carMutation loads a car from the unit in ctx, applies fn, saves it and
// moves its events to the outbox.
func carMutation(ctx context.Context, recorder outbox.Recorder, carID string, fn func(car *domainfleet.Car) error) (*domainfleet.Car, error) {
	unit, ok := uow.FromContext(ctx)
	if !ok {
		return nil, uow.ErrUnitOfWorkMissing
	}
	car, err := unit.Cars().ByID(ctx, domainfleet.CarID(carID))
	if err != nil {
		return nil, err
	}
	if err := fn(car); err != nil {
		return nil, err
	}
	if err := unit.Cars().Save(ctx, car); err != nil {
		return nil, err
	}
	if err := recorder.Drain(ctx, car); err != nil {
		return nil, err
	}
	return car, nil
}

type UpdateMonthlyPricingCommand struct {
	CarID string             `json:"-" validate:"required"`
	Rates map[string]float64 `json:"rates" validate:"required,min=1"`
}

func (c UpdateMonthlyPricingCommand) Key() string { return updateMonthlyPricingKey }

type UpdateMonthlyPricingHandler struct {
	Logger   *slog.Logger
	Recorder outbox.Recorder
	Cache    PriceCache
	Now      func() time.Time
}

func (h *UpdateMonthlyPricingHandler) Handle(ctx context.Context, cmd UpdateMonthlyPricingCommand) (*dto.Car, error) {
	rates := make(map[time.Month]float64, len(cmd.Rates))
	for key, rate := range cmd.Rates {
		month, ok := domainfleet.ParseMonth(key)
		if !ok {
			return nil, fmt.Errorf("%w: month %q", domainfleet.ErrInvalidRate, key)
		}
		rates[month] = rate
	}
	car, err := carMutation(ctx, h.Recorder, cmd.CarID, func(car *domainfleet.Car) error {
		return car.SetMonthlyRates(rates, now(h.Now))
	})
	if err != nil {
		return nil, err
	}
	invalidate(ctx, h.Cache, h.Logger, cmd.CarID)
	if h.Logger != nil {
		h.Logger.Info("monthly pricing updated", "car_id", car.ID, "months", len(rates))
	}
	out := dto.MapCar(car)
	return &out, nil
}

type SetManualStatusCommand struct {
	CarID  string `json:"-" validate:"required"`
	Status string `json:"status" validate:"required"`
}

func (c SetManualStatusCommand) Key() string { return setManualStatusKey }

type SetManualStatusHandler struct {
	Logger   *slog.Logger
	Recorder outbox.Recorder
	Now      func() time.Time
}

func (h *SetManualStatusHandler) Handle(ctx context.Context, cmd SetManualStatusCommand) (*dto.Car, error) {
	status, err := domainfleet.ParseManualStatus(cmd.Status)
	if err != nil {
		return nil, err
	}
	car, err := carMutation(ctx, h.Recorder, cmd.CarID, func(car *domainfleet.Car) error {
		return car.SetManualStatus(status, now(h.Now))
	})
	if err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.Info("manual status set", "car_id", car.ID, "status", status)
	}
	out := dto.MapCar(car)
	return &out, nil
}

type AddBlockCommand struct {
	CarID  string `json:"-" validate:"required"`
	Start  string `json:"start" validate:"required"`
	End    string `json:"end" validate:"required"`
	Reason string `json:"reason"`
}

func (c AddBlockCommand) Key() string { return addBlockKey }

type AddBlockHandler struct {
	Recorder outbox.Recorder
	Now      func() time.Time
}

func (h *AddBlockHandler) Handle(ctx context.Context, cmd AddBlockCommand) (*dto.DateRange, error) {
	r, err := daterange.ParseRange(cmd.Start, cmd.End)
	if err != nil {
		return nil, err
	}
	block := domainfleet.Block{ID: uuid.NewString(), Range: r, Reason: strings.TrimSpace(cmd.Reason)}
	if _, err := carMutation(ctx, h.Recorder, cmd.CarID, func(car *domainfleet.Car) error {
		return car.AddBlock(block, now(h.Now))
	}); err != nil {
		return nil, err
	}
	out := dto.MapBlock(block)
	return &out, nil
}

type RemoveBlockCommand struct {
	CarID   string `validate:"required"`
	BlockID string `validate:"required"`
}

func (c RemoveBlockCommand) Key() string { return removeBlockKey }

type RemoveBlockHandler struct {
	Recorder outbox.Recorder
	Now      func() time.Time
}

func (h *RemoveBlockHandler) Handle(ctx context.Context, cmd RemoveBlockCommand) (*dto.Car, error) {
	car, err := carMutation(ctx, h.Recorder, cmd.CarID, func(car *domainfleet.Car) error {
		return car.RemoveBlock(cmd.BlockID, now(h.Now))
	})
	if err != nil {
		return nil, err
	}
	out := dto.MapCar(car)
	return &out, nil
}

func invalidate(ctx context.Context, cache PriceCache, logger *slog.Logger, carID string) {
	if cache == nil {
		return
	}
	if err := cache.Invalidate(ctx, carID); err != nil && logger != nil {
		logger.Warn("price cache invalidation failed", "car_id", carID, "error", err)
	}
}

func now(fn func() time.Time) time.Time {
	if fn != nil {
		return fn()
	}
	return time.Now().UTC()
}

var (
	_ commands.Handler[UpdateMonthlyPricingCommand, *dto.Car] = (*UpdateMonthlyPricingHandler)(nil)
	_ commands.Handler[SetManualStatusCommand, *dto.Car]      = (*SetManualStatusHandler)(nil)
	_ commands.Handler[AddBlockCommand, *dto.DateRange]       = (*AddBlockHandler)(nil)
	_ commands.Handler[RemoveBlockCommand, *dto.Car]          = (*RemoveBlockHandler)(nil)
)
