package booking

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"carhire/internal/domain/fleet"
	"carhire/internal/domain/pricing"
	"carhire/internal/domain/shared/daterange"
	"carhire/internal/domain/shared/events"
)

var (
	ErrBookingNotFound   = errors.New("booking: not found")
	ErrInvalidTransition = errors.New("booking: invalid status transition")
	ErrInvalidStatus     = errors.New("booking: unknown status")
	ErrCustomerRequired  = errors.New("booking: customer name and email required")
	ErrInvalidEmail      = errors.New("booking: invalid email")
	ErrInvalidTotal      = errors.New("booking: total must be positive")
	ErrInvalidPayment    = errors.New("booking: unknown payment method")
	ErrConcurrentUpdate  = errors.New("booking: concurrent update detected")
)

type BookingID string

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func ParseStatus(raw string) (Status, error) {
	if fleet.IsCancelledStatus(raw) {
		return StatusCancelled, nil
	}
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusPending, StatusConfirmed, StatusCompleted:
		return s, nil
	default:
		return "", ErrInvalidStatus
	}
}

var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether a booking in status from may move to to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type PaymentMethod string

const (
	PaymentCard         PaymentMethod = "card"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentCash         PaymentMethod = "cash"
)

func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	switch m := PaymentMethod(strings.ToLower(strings.TrimSpace(raw))); m {
	case "":
		return PaymentCard, nil
	case PaymentCard, PaymentBankTransfer, PaymentCash:
		return m, nil
	default:
		return "", ErrInvalidPayment
	}
}

type Customer struct {
	FirstName     string
	LastName      string
	Email         string
	Phone         string
	DateOfBirth   time.Time
	LicenceNumber string
	Notes         string
}

func (c Customer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Trip carries the pickup and return logistics chosen by the customer.
type Trip struct {
	PickupLocation string
	ReturnLocation string
	PickupTime     string
	ReturnTime     string
}

// PriceSnapshot freezes the quote a booking was created with.
type PriceSnapshot struct {
	Tier                 string
	Currency             string
	DailyRate            float64
	Duration             int
	BasePrice            float64
	ExtrasTotal          float64
	TotalPrice           float64
	PrepaymentPercentage float64
	PrepaymentAmount     float64
	RemainingAmount      float64
}

func SnapshotFrom(q pricing.Quote) PriceSnapshot {
	return PriceSnapshot{
		Tier:                 string(q.Tier),
		Currency:             q.Currency,
		DailyRate:            q.DailyRate,
		Duration:             q.Duration,
		BasePrice:            q.BasePrice,
		ExtrasTotal:          q.ExtrasTotal,
		TotalPrice:           q.TotalPrice,
		PrepaymentPercentage: q.PrepaymentPercentage,
		PrepaymentAmount:     q.PrepaymentAmount,
		RemainingAmount:      q.RemainingAmount,
	}
}

type Booking struct {
	ID            BookingID
	Reference     string
	CarID         fleet.CarID
	CarName       string
	Range         daterange.Range
	Customer      Customer
	Trip          Trip
	Extras        pricing.Extras
	Price         PriceSnapshot
	PaymentMethod PaymentMethod
	Status        Status
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Version       int64
	events.EventRecorder
}

type Filter struct {
	Status Status
	CarID  fleet.CarID
}

func (f Filter) Match(b *Booking) bool {
	if f.Status != "" && b.Status != f.Status {
		return false
	}
	if f.CarID != "" && b.CarID != f.CarID {
		return false
	}
	return true
}

type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	ByReference(ctx context.Context, reference string) (*Booking, error)
	List(ctx context.Context, filter Filter) ([]*Booking, error)
	Save(ctx context.Context, booking *Booking) error
	Delete(ctx context.Context, id BookingID) error
}

type CreateParams struct {
	ID            BookingID
	Reference     string
	Car           *fleet.Car
	Range         daterange.Range
	Customer      Customer
	Trip          Trip
	Extras        pricing.Extras
	Quote         pricing.Quote
	PaymentMethod PaymentMethod
	CreatedAt     time.Time
}

func NewBooking(params CreateParams) (*Booking, error) {
	if params.Car == nil || params.Car.ID == "" {
		return nil, fleet.ErrCarIDRequired
	}
	if err := params.Range.Validate(); err != nil {
		return nil, err
	}
	customer := params.Customer
	customer.Email = strings.TrimSpace(customer.Email)
	if customer.FullName() == "" || customer.Email == "" {
		return nil, ErrCustomerRequired
	}
	if _, err := mail.ParseAddress(customer.Email); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidEmail, customer.Email)
	}
	if params.Quote.TotalPrice <= 0 {
		return nil, ErrInvalidTotal
	}
	payment, err := ParsePaymentMethod(string(params.PaymentMethod))
	if err != nil {
		return nil, err
	}
	id := params.ID
	if id == "" {
		id = BookingID(uuid.NewString())
	}
	reference := params.Reference
	if reference == "" {
		reference = NewReference()
	}
	now := params.CreatedAt.UTC()
	b := &Booking{
		ID:            id,
		Reference:     reference,
		CarID:         params.Car.ID,
		CarName:       params.Car.DisplayName(),
		Range:         params.Range,
		Customer:      customer,
		Trip:          params.Trip,
		Extras:        params.Extras,
		Price:         SnapshotFrom(params.Quote),
		PaymentMethod: payment,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	b.Record(Created{
		BookingID: string(b.ID),
		Reference: b.Reference,
		CarID:     string(b.CarID),
		From:      daterange.Format(b.Range.Start),
		To:        daterange.Format(b.Range.End),
		Total:     b.Price.TotalPrice,
		Currency:  b.Price.Currency,
		At:        now,
	})
	return b, nil
}

// NewReference returns a customer-facing booking code such as CR-1A2B3C4D.
func NewReference() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "CR-" + strings.ToUpper(id[:8])
}

// ChangeStatus moves the booking along pending -> confirmed -> completed,
// with cancellation allowed from pending and confirmed. Setting the current
// status again is a no-op.
func (b *Booking) ChangeStatus(to Status, now time.Time) error {
	if b.Status == to {
		return nil
	}
	if !CanTransition(b.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, to)
	}
	from := b.Status
	b.Status = to
	b.UpdatedAt = now.UTC()
	b.Record(StatusChanged{BookingID: string(b.ID), Reference: b.Reference, CarID: string(b.CarID), From: string(from), To: string(to), At: b.UpdatedAt})
	return nil
}

// MarkDeleted records the deletion so it is published before the row goes away.
func (b *Booking) MarkDeleted(now time.Time) {
	b.Record(Deleted{BookingID: string(b.ID), Reference: b.Reference, CarID: string(b.CarID), At: now.UTC()})
}

// Blocks reports whether the booking occupies its car.
func (b *Booking) Blocks() bool {
	return b.Status != StatusCancelled
}

func (b *Booking) BookedRange() fleet.BookedRange {
	return fleet.BookedRange{Reference: b.Reference, Range: b.Range, Status: string(b.Status)}
}

// BookedRanges derives the occupied ranges of a car from its bookings.
func BookedRanges(bookings []*Booking) []fleet.BookedRange {
	out := make([]fleet.BookedRange, 0, len(bookings))
	for _, b := range bookings {
		if b == nil || !b.Blocks() {
			continue
		}
		out = append(out, b.BookedRange())
	}
	return out
}
