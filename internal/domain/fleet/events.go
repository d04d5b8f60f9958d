package fleet

import "time"

const (
	EventPricingUpdated      = "fleet.pricing_updated"
	EventAvailabilityChanged = "fleet.availability_changed"
)

const (
	ChangeStatus       = "status"
	ChangeBlockAdded   = "block_added"
	ChangeBlockRemoved = "block_removed"
)

// PricingUpdated is emitted when monthly rates change; price caches keyed by
// this car must be invalidated.
type PricingUpdated struct {
	CarID string             `json:"car_id"`
	Rates map[string]float64 `json:"rates"`
	At    time.Time          `json:"at"`
}

func (e PricingUpdated) EventName() string     { return EventPricingUpdated }
func (e PricingUpdated) AggregateID() string   { return e.CarID }
func (e PricingUpdated) OccurredAt() time.Time { return e.At }

type AvailabilityChanged struct {
	CarID  string    `json:"car_id"`
	Change string    `json:"change"`
	Status string    `json:"status"`
	From   string    `json:"from,omitempty"`
	To     string    `json:"to,omitempty"`
	At     time.Time `json:"at"`
}

func (e AvailabilityChanged) EventName() string     { return EventAvailabilityChanged }
func (e AvailabilityChanged) AggregateID() string   { return e.CarID }
func (e AvailabilityChanged) OccurredAt() time.Time { return e.At }
