package dto

import (
	"time"

	"carhire/internal/domain/booking"
	"carhire/internal/domain/pricing"
	"carhire/internal/domain/shared/daterange"
	"carhire/internal/domain/shared/money"
)

type Customer struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Email         string `json:"email"`
	Phone         string `json:"phone,omitempty"`
	DateOfBirth   string `json:"date_of_birth,omitempty"`
	LicenceNumber string `json:"licence_number,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

type Trip struct {
	PickupLocation string `json:"pickup_location,omitempty"`
	ReturnLocation string `json:"return_location,omitempty"`
	PickupTime     string `json:"pickup_time,omitempty"`
	ReturnTime     string `json:"return_time,omitempty"`
}

type PriceSnapshot struct {
	Tier                 string  `json:"tier"`
	Currency             string  `json:"currency"`
	DailyRate            float64 `json:"daily_rate"`
	Duration             int     `json:"duration"`
	BasePrice            float64 `json:"base_price"`
	ExtrasTotal          float64 `json:"extras_total"`
	TotalPrice           float64 `json:"total_price"`
	PrepaymentPercentage float64 `json:"prepayment_percentage"`
	PrepaymentAmount     float64 `json:"prepayment_amount"`
	RemainingAmount      float64 `json:"remaining_amount"`
}

type Booking struct {
	ID            string         `json:"id"`
	Reference     string         `json:"reference"`
	Status        string         `json:"status"`
	CarID         string         `json:"car_id"`
	CarName       string         `json:"car_name"`
	PickupDate    string         `json:"pickup_date"`
	ReturnDate    string         `json:"return_date"`
	Customer      Customer       `json:"customer"`
	Trip          Trip           `json:"trip"`
	Extras        pricing.Extras `json:"extras"`
	Price         PriceSnapshot  `json:"price"`
	PaymentMethod string         `json:"payment_method"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

type BookingCollection struct {
	Items []Booking `json:"items"`
}

type BookingDeleted struct {
	ID        string `json:"id"`
	Reference string `json:"reference"`
	Deleted   bool   `json:"deleted"`
}

func MapBooking(b *booking.Booking) Booking {
	p := b.Price
	prepayment := money.Round(p.PrepaymentAmount)
	total := money.Round(p.TotalPrice)
	return Booking{
		ID:         string(b.ID),
		Reference:  b.Reference,
		Status:     string(b.Status),
		CarID:      string(b.CarID),
		CarName:    b.CarName,
		PickupDate: daterange.Format(b.Range.Start),
		ReturnDate: daterange.Format(b.Range.End),
		Customer: Customer{
			FirstName:     b.Customer.FirstName,
			LastName:      b.Customer.LastName,
			Email:         b.Customer.Email,
			Phone:         b.Customer.Phone,
			DateOfBirth:   daterange.Format(b.Customer.DateOfBirth),
			LicenceNumber: b.Customer.LicenceNumber,
			Notes:         b.Customer.Notes,
		},
		Trip:   Trip(b.Trip),
		Extras: b.Extras,
		Price: PriceSnapshot{
			Tier:                 p.Tier,
			Currency:             p.Currency,
			DailyRate:            money.Round(p.DailyRate),
			Duration:             p.Duration,
			BasePrice:            money.Round(p.BasePrice),
			ExtrasTotal:          money.Round(p.ExtrasTotal),
			TotalPrice:           total,
			PrepaymentPercentage: p.PrepaymentPercentage,
			PrepaymentAmount:     prepayment,
			RemainingAmount:      money.Round(total - prepayment),
		},
		PaymentMethod: string(b.PaymentMethod),
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}
