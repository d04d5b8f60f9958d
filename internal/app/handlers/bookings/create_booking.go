package bookings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"carhire/internal/app/commands"
	"carhire/internal/app/dto"
	"carhire/internal/app/handlers/support"
	"carhire/internal/app/middleware"
	"carhire/internal/app/outbox"
	"carhire/internal/app/uow"
	"carhire/internal/domain/availability"
	domainbooking "carhire/internal/domain/booking"
	"carhire/internal/domain/fleet"
	"carhire/internal/domain/pricing"
	"carhire/internal/domain/shared/daterange"
)

const createBookingKey = "bookings.create"

var (
	ErrCarUnavailable = errors.New("bookings: car not available for the requested dates")
	ErrPickupInPast   = errors.New("bookings: pickup date is in the past")
)

type CustomerInput struct {
	FirstName     string `json:"first_name" validate:"required"`
	LastName      string `json:"last_name" validate:"required"`
	Email         string `json:"email" validate:"required,email"`
	Phone         string `json:"phone"`
	DateOfBirth   string `json:"date_of_birth"`
	LicenceNumber string `json:"licence_number"`
	Notes         string `json:"notes"`
}

type TripInput struct {
	PickupLocation string `json:"pickup_location"`
	ReturnLocation string `json:"return_location"`
	PickupTime     string `json:"pickup_time"`
	ReturnTime     string `json:"return_time"`
}

type CreateBookingCommand struct {
	CarID         string         `json:"car_id" validate:"required"`
	Pickup        string         `json:"pickup_date" validate:"required"`
	Return        string         `json:"return_date" validate:"required"`
	Customer      CustomerInput  `json:"customer"`
	Trip          TripInput      `json:"trip"`
	Extras        pricing.Extras `json:"extras"`
	PaymentMethod string         `json:"payment_method"`
	IdemKey       string         `json:"-"`
}

func (c CreateBookingCommand) Key() string { return createBookingKey }

func (c CreateBookingCommand) IdempotencyKey() string { return c.IdemKey }

func (c CreateBookingCommand) ResultPrototype() any { return &dto.Booking{} }

// CreateBookingHandler re-checks availability and re-prices on the server
// before persisting; client-side prices are never trusted.
type CreateBookingHandler struct {
	Logger   *slog.Logger
	Factory  uow.Factory
	Pricing  support.Quoter
	Checker  *availability.Checker
	Recorder outbox.Recorder
	Now      func() time.Time
}

func (h *CreateBookingHandler) Handle(ctx context.Context, cmd CreateBookingCommand) (*dto.Booking, error) {
	unit, ctx, commit, finish, err := uow.Begin(ctx, h.Factory, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer finish()

	pickup, err := daterange.Parse(cmd.Pickup)
	if err != nil {
		return nil, err
	}
	ret, err := daterange.Parse(cmd.Return)
	if err != nil {
		return nil, err
	}
	dr, err := daterange.New(pickup, ret)
	if err != nil {
		return nil, err
	}
	now := h.now()
	if dr.Start.Before(daterange.Day(now)) {
		return nil, ErrPickupInPast
	}

	car, err := support.CarInUnit(ctx, unit, fleet.CarID(cmd.CarID))
	if err != nil {
		return nil, err
	}
	decision := h.Checker.Check(car, dr)
	if !decision.Available {
		return nil, fmt.Errorf("%w: %s", ErrCarUnavailable, decision.Reason)
	}

	quote, err := h.Pricing.Quote(ctx, pricing.Request{Car: car, Pickup: dr.Start, Return: dr.End, Extras: cmd.Extras})
	if err != nil {
		return nil, err
	}

	customer, err := customerFrom(cmd.Customer)
	if err != nil {
		return nil, err
	}
	b, err := domainbooking.NewBooking(domainbooking.CreateParams{
		Car:           car,
		Range:         dr,
		Customer:      customer,
		Trip:          domainbooking.Trip(cmd.Trip),
		Extras:        cmd.Extras,
		Quote:         quote,
		PaymentMethod: domainbooking.PaymentMethod(cmd.PaymentMethod),
		CreatedAt:     now,
	})
	if err != nil {
		return nil, err
	}
	if err := unit.Bookings().Save(ctx, b); err != nil {
		return nil, err
	}
	if err := h.Recorder.Drain(ctx, b); err != nil {
		return nil, err
	}
	if err := commit(); err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.Info("booking created", "reference", b.Reference, "car_id", b.CarID, "tier", quote.Tier, "total", quote.TotalPrice)
	}
	out := dto.MapBooking(b)
	return &out, nil
}

func customerFrom(in CustomerInput) (domainbooking.Customer, error) {
	c := domainbooking.Customer{
		FirstName:     strings.TrimSpace(in.FirstName),
		LastName:      strings.TrimSpace(in.LastName),
		Email:         strings.TrimSpace(in.Email),
		Phone:         strings.TrimSpace(in.Phone),
		LicenceNumber: strings.TrimSpace(in.LicenceNumber),
		Notes:         strings.TrimSpace(in.Notes),
	}
	if strings.TrimSpace(in.DateOfBirth) != "" {
		dob, err := daterange.Parse(in.DateOfBirth)
		if err != nil {
			return domainbooking.Customer{}, fmt.Errorf("date of birth: %w", err)
		}
		c.DateOfBirth = dob
	}
	return c, nil
}

func (h *CreateBookingHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now().UTC()
}

var (
	_ commands.Handler[CreateBookingCommand, *dto.Booking] = (*CreateBookingHandler)(nil)
	_ middleware.IdempotentCommand                         = CreateBookingCommand{}
)
