package booking

import "time"

const (
	EventCreated       = "booking.created"
	EventStatusChanged = "booking.status_changed"
	EventDeleted       = "booking.deleted"
)

type Created struct {
	BookingID string    `json:"booking_id"`
	Reference string    `json:"reference"`
	CarID     string    `json:"car_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Total     float64   `json:"total"`
	Currency  string    `json:"currency"`
	At        time.Time `json:"at"`
}

func (e Created) EventName() string     { return EventCreated }
func (e Created) AggregateID() string   { return e.BookingID }
func (e Created) OccurredAt() time.Time { return e.At }

type StatusChanged struct {
	BookingID string    `json:"booking_id"`
	Reference string    `json:"reference"`
	CarID     string    `json:"car_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	At        time.Time `json:"at"`
}

func (e StatusChanged) EventName() string     { return EventStatusChanged }
func (e StatusChanged) AggregateID() string   { return e.BookingID }
func (e StatusChanged) OccurredAt() time.Time { return e.At }

type Deleted struct {
	BookingID string    `json:"booking_id"`
	Reference string    `json:"reference"`
	CarID     string    `json:"car_id"`
	At        time.Time `json:"at"`
}

func (e Deleted) EventName() string     { return EventDeleted }
func (e Deleted) AggregateID() string   { return e.BookingID }
func (e Deleted) OccurredAt() time.Time { return e.At }
