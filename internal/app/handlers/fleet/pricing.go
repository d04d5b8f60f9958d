package fleet

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"carhire/internal/app/commands"
	"carhire/internal/app/dto"
	"carhire/internal/app/outbox"
	"carhire/internal/app/uow"
	domainfleet "carhire/internal/domain/fleet"
	"carhire/internal/domain/pricing"
)

const (
	updatePricingConfigKey = "pricing.config.update"
	upsertPriceTableKey    = "pricing.table.upsert"
	invalidatePriceCache   = "pricing.cache.invalidate"
)

type UpdatePricingConfigCommand struct {
	Config pricing.Config
}

func (c UpdatePricingConfigCommand) Key() string { return updatePricingConfigKey }

type UpdatePricingConfigHandler struct {
	Logger *slog.Logger
}

func (h *UpdatePricingConfigHandler) Handle(ctx context.Context, cmd UpdatePricingConfigCommand) (*pricing.Config, error) {
	unit, ok := uow.FromContext(ctx)
	if !ok {
		return nil, uow.ErrUnitOfWorkMissing
	}
	if err := cmd.Config.Validate(); err != nil {
		return nil, err
	}
	cfg := cmd.Config.Normalized()
	if err := unit.PricingConfig().SavePricingConfig(ctx, cfg); err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.Info("pricing config updated", "currency", cfg.Currency, "default_rate", cfg.DefaultDailyRate, "extras", len(cfg.Extras))
	}
	return &cfg, nil
}

// PriceTableRow is one exact price as edited by an admin.
type PriceTableRow struct {
	CarID    string  `json:"car_id" validate:"required"`
	Month    string  `json:"month" validate:"required"`
	Duration int     `json:"duration" validate:"min=1"`
	Price    float64 `json:"price" validate:"gt=0"`
}

type UpsertPriceTableCommand struct {
	Rows []PriceTableRow `json:"rows" validate:"required,min=1,dive"`
}

func (c UpsertPriceTableCommand) Key() string { return upsertPriceTableKey }

// UpsertPriceTableHandler writes exact prices and invalidates the cache of
// every touched car.
type UpsertPriceTableHandler struct {
	Logger *slog.Logger
	Cache  PriceCache
	Now    func() time.Time
}

func (h *UpsertPriceTableHandler) Handle(ctx context.Context, cmd UpsertPriceTableCommand) (*dto.PriceTableResult, error) {
	unit, ok := uow.FromContext(ctx)
	if !ok {
		return nil, uow.ErrUnitOfWorkMissing
	}
	at := now(h.Now)
	entries := make([]pricing.TableEntry, 0, len(cmd.Rows))
	touched := map[string]struct{}{}
	for i, row := range cmd.Rows {
		month, ok := domainfleet.ParseMonth(row.Month)
		if !ok {
			return nil, fmt.Errorf("%w: row %d month %q", pricing.ErrInvalidRequest, i, row.Month)
		}
		if _, err := unit.Cars().ByID(ctx, domainfleet.CarID(row.CarID)); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		entries = append(entries, pricing.TableEntry{CarID: row.CarID, Month: month, Duration: row.Duration, Price: row.Price, UpdatedAt: at})
		touched[row.CarID] = struct{}{}
	}
	if err := unit.PriceTable().Upsert(ctx, entries); err != nil {
		return nil, err
	}
	out := &dto.PriceTableResult{Upserted: len(entries), Cars: make([]string, 0, len(touched))}
	for carID := range touched {
		out.Cars = append(out.Cars, carID)
		invalidate(ctx, h.Cache, h.Logger, carID)
	}
	sort.Strings(out.Cars)
	if h.Logger != nil {
		h.Logger.Info("price table updated", "entries", out.Upserted, "cars", out.Cars)
	}
	return out, nil
}

// InvalidatePriceCacheCommand drops one car's cached prices, or everything
// when CarID is empty.
type InvalidatePriceCacheCommand struct {
	CarID string `json:"car_id"`
}

func (c InvalidatePriceCacheCommand) Key() string { return invalidatePriceCache }

type InvalidatePriceCacheHandler struct {
	Cache PriceCache
}

func (h *InvalidatePriceCacheHandler) Handle(ctx context.Context, cmd InvalidatePriceCacheCommand) (*dto.CacheInvalidated, error) {
	if h.Cache == nil {
		return &dto.CacheInvalidated{CarID: cmd.CarID}, nil
	}
	if cmd.CarID == "" {
		if err := h.Cache.Flush(ctx); err != nil {
			return nil, err
		}
		return &dto.CacheInvalidated{Flushed: true}, nil
	}
	if err := h.Cache.Invalidate(ctx, cmd.CarID); err != nil {
		return nil, err
	}
	return &dto.CacheInvalidated{CarID: cmd.CarID}, nil
}

// CacheInvalidator reacts to pricing events published by any instance.
type CacheInvalidator struct {
	Cache  PriceCache
	Logger *slog.Logger
}

// HandleEvent invalidates the car named by a fleet.pricing_updated event and
// ignores every other event.
func (c CacheInvalidator) HandleEvent(ctx context.Context, evt outbox.CloudEvent) error {
	if evt.Name() != domainfleet.EventPricingUpdated || c.Cache == nil {
		return nil
	}
	carID := evt.Subject
	if carID == "" {
		var data domainfleet.PricingUpdated
		if err := json.Unmarshal(evt.Data, &data); err != nil {
			return fmt.Errorf("decode %s: %w", evt.Type, err)
		}
		carID = data.CarID
	}
	if carID == "" {
		return nil
	}
	if err := c.Cache.Invalidate(ctx, carID); err != nil {
		return err
	}
	if c.Logger != nil {
		c.Logger.Debug("price cache invalidated", "car_id", carID, "event_id", evt.ID)
	}
	return nil
}

var (
	_ commands.Handler[UpdatePricingConfigCommand, *pricing.Config]        = (*UpdatePricingConfigHandler)(nil)
	_ commands.Handler[UpsertPriceTableCommand, *dto.PriceTableResult]     = (*UpsertPriceTableHandler)(nil)
	_ commands.Handler[InvalidatePriceCacheCommand, *dto.CacheInvalidated] = (*InvalidatePriceCacheHandler)(nil)
)
