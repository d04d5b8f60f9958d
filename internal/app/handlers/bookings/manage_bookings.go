package bookings

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"carhire/internal/app/commands"
	"carhire/internal/app/dto"
	"carhire/internal/app/outbox"
	"carhire/internal/app/queries"
	"carhire/internal/app/uow"
	domainbooking "carhire/internal/domain/booking"
	"carhire/internal/domain/fleet"
)

const (
	getBookingKey          = "bookings.get"
	listBookingsKey        = "bookings.list"
	updateBookingStatusKey = "bookings.status.update"
	deleteBookingKey       = "bookings.delete"
)

// GetBookingQuery finds a booking by reference code, then by id.
type GetBookingQuery struct {
	Reference string `validate:"required"`
}

func (q GetBookingQuery) Key() string { return getBookingKey }

type GetBookingHandler struct {
	Factory uow.Factory
}

func (h *GetBookingHandler) Handle(ctx context.Context, q GetBookingQuery) (dto.Booking, error) {
	unit, ctx, _, finish, err := uow.Begin(ctx, h.Factory, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return dto.Booking{}, err
	}
	defer finish()

	b, err := lookup(ctx, unit.Bookings(), q.Reference)
	if err != nil {
		return dto.Booking{}, err
	}
	return dto.MapBooking(b), nil
}

type ListBookingsQuery struct {
	Status string
	CarID  string
}

func (q ListBookingsQuery) Key() string { return listBookingsKey }

type ListBookingsHandler struct {
	Factory uow.Factory
}

func (h *ListBookingsHandler) Handle(ctx context.Context, q ListBookingsQuery) (dto.BookingCollection, error) {
	filter := domainbooking.Filter{CarID: fleet.CarID(q.CarID)}
	if q.Status != "" {
		status, err := domainbooking.ParseStatus(q.Status)
		if err != nil {
			return dto.BookingCollection{}, err
		}
		filter.Status = status
	}
	unit, ctx, _, finish, err := uow.Begin(ctx, h.Factory, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return dto.BookingCollection{}, err
	}
	defer finish()

	items, err := unit.Bookings().List(ctx, filter)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	out := dto.BookingCollection{Items: make([]dto.Booking, 0, len(items))}
	for _, b := range items {
		out.Items = append(out.Items, dto.MapBooking(b))
	}
	return out, nil
}

type UpdateBookingStatusCommand struct {
	BookingID string `json:"-" validate:"required"`
	Status    string `json:"status" validate:"required"`
}

func (c UpdateBookingStatusCommand) Key() string { return updateBookingStatusKey }

type UpdateBookingStatusHandler struct {
	Logger   *slog.Logger
	Recorder outbox.Recorder
	Now      func() time.Time
}

func (h *UpdateBookingStatusHandler) Handle(ctx context.Context, cmd UpdateBookingStatusCommand) (*dto.Booking, error) {
	unit, ok := uow.FromContext(ctx)
	if !ok {
		return nil, uow.ErrUnitOfWorkMissing
	}
	status, err := domainbooking.ParseStatus(cmd.Status)
	if err != nil {
		return nil, err
	}
	b, err := lookup(ctx, unit.Bookings(), cmd.BookingID)
	if err != nil {
		return nil, err
	}
	from := b.Status
	if err := b.ChangeStatus(status, now(h.Now)); err != nil {
		return nil, err
	}
	if from != status {
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return nil, err
		}
		if err := h.Recorder.Drain(ctx, b); err != nil {
			return nil, err
		}
		if h.Logger != nil {
			h.Logger.Info("booking status changed", "reference", b.Reference, "from", from, "to", status)
		}
	}
	out := dto.MapBooking(b)
	return &out, nil
}

type DeleteBookingCommand struct {
	BookingID string `validate:"required"`
}

func (c DeleteBookingCommand) Key() string { return deleteBookingKey }

type DeleteBookingHandler struct {
	Logger   *slog.Logger
	Recorder outbox.Recorder
	Now      func() time.Time
}

func (h *DeleteBookingHandler) Handle(ctx context.Context, cmd DeleteBookingCommand) (*dto.BookingDeleted, error) {
	unit, ok := uow.FromContext(ctx)
	if !ok {
		return nil, uow.ErrUnitOfWorkMissing
	}
	b, err := lookup(ctx, unit.Bookings(), cmd.BookingID)
	if err != nil {
		return nil, err
	}
	b.MarkDeleted(now(h.Now))
	if err := unit.Bookings().Delete(ctx, b.ID); err != nil {
		return nil, err
	}
	if err := h.Recorder.Drain(ctx, b); err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.Info("booking deleted", "reference", b.Reference)
	}
	return &dto.BookingDeleted{ID: string(b.ID), Reference: b.Reference, Deleted: true}, nil
}

func lookup(ctx context.Context, repo domainbooking.Repository, ref string) (*domainbooking.Booking, error) {
	b, err := repo.ByReference(ctx, ref)
	if errors.Is(err, domainbooking.ErrBookingNotFound) {
		return repo.ByID(ctx, domainbooking.BookingID(ref))
	}
	return b, err
}

func now(fn func() time.Time) time.Time {
	if fn != nil {
		return fn()
	}
	return time.Now().UTC()
}

var (
	_ queries.Handler[GetBookingQuery, dto.Booking]               = (*GetBookingHandler)(nil)
	_ queries.Handler[ListBookingsQuery, dto.BookingCollection]   = (*ListBookingsHandler)(nil)
	_ commands.Handler[UpdateBookingStatusCommand, *dto.Booking]  = (*UpdateBookingStatusHandler)(nil)
	_ commands.Handler[DeleteBookingCommand, *dto.BookingDeleted] = (*DeleteBookingHandler)(nil)
)
