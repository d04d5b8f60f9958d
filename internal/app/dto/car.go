package dto

import (
	"time"

	"carhire/internal/domain/availability"
	"carhire/internal/domain/fleet"
	"carhire/internal/domain/shared/daterange"
)

type Specs struct {
	Engine     string `json:"engine,omitempty"`
	Passengers int    `json:"passengers,omitempty"`
	Doors      int    `json:"doors,omitempty"`
	Gearbox    string `json:"gearbox,omitempty"`
	Fuel       string `json:"fuel,omitempty"`
	Luggage    int    `json:"luggage,omitempty"`
}

type DateRange struct {
	ID        string `json:"id,omitempty"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Reason    string `json:"reason,omitempty"`
	Status    string `json:"status,omitempty"`
	Reference string `json:"reference,omitempty"`
}

type Car struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	Make           string             `json:"make,omitempty"`
	Model          string             `json:"model,omitempty"`
	Category       string             `json:"category,omitempty"`
	Features       []string           `json:"features"`
	Specs          Specs              `json:"specs"`
	MonthlyPricing map[string]float64 `json:"monthly_pricing"`
	ManualStatus   string             `json:"manual_status"`
	ManualBlocks   []DateRange        `json:"manual_blocks"`
	PhotoURL       string             `json:"photo_url,omitempty"`
	UpdatedAt      *time.Time         `json:"updated_at,omitempty"`
}

type CarCollection struct {
	Items []Car `json:"items"`
}

func MapCar(car *fleet.Car) Car {
	out := Car{
		ID:             string(car.ID),
		Name:           car.DisplayName(),
		Make:           car.Make,
		Model:          car.Model,
		Category:       car.Category,
		Features:       append([]string{}, car.Features...),
		Specs:          Specs(car.Specs),
		MonthlyPricing: MonthlyPricing(car),
		ManualStatus:   string(car.ManualStatus),
		ManualBlocks:   make([]DateRange, 0, len(car.ManualBlocks)),
		PhotoURL:       car.PhotoURL,
	}
	if out.ManualStatus == "" {
		out.ManualStatus = string(fleet.StatusAutomatic)
	}
	if !car.UpdatedAt.IsZero() {
		updated := car.UpdatedAt
		out.UpdatedAt = &updated
	}
	for _, b := range car.ManualBlocks {
		out.ManualBlocks = append(out.ManualBlocks, MapBlock(b))
	}
	return out
}

func MapBlock(b fleet.Block) DateRange {
	return DateRange{ID: b.ID, Start: daterange.Format(b.Range.Start), End: daterange.Format(b.Range.End), Reason: b.Reason}
}

// MonthlyPricing renders rates keyed by English month name.
func MonthlyPricing(car *fleet.Car) map[string]float64 {
	out := make(map[string]float64, len(car.MonthlyPricing))
	for m, rate := range car.MonthlyPricing {
		out[m.String()] = rate
	}
	return out
}

type Availability struct {
	CarID     string     `json:"car_id"`
	Pickup    string     `json:"pickup"`
	Return    string     `json:"return"`
	Available bool       `json:"available"`
	Reason    string     `json:"reason"`
	Conflict  *DateRange `json:"conflict,omitempty"`
	Skipped   int        `json:"skipped_entries,omitempty"`
}

func MapAvailability(carID fleet.CarID, requested daterange.Range, d availability.Decision) Availability {
	out := Availability{
		CarID:     string(carID),
		Pickup:    daterange.Format(requested.Start),
		Return:    daterange.Format(requested.End),
		Available: d.Available,
		Reason:    string(d.Reason),
		Skipped:   d.Skipped,
	}
	if d.Conflict != nil {
		out.Conflict = &DateRange{
			Start:     daterange.Format(d.Conflict.Start),
			End:       daterange.Format(d.Conflict.End),
			Reference: d.Reference,
		}
	}
	return out
}

type SearchItem struct {
	Car   Car   `json:"car"`
	Quote Quote `json:"quote"`
}

type Unavailable struct {
	CarID  string `json:"car_id"`
	Reason string `json:"reason"`
}

type SearchResult struct {
	Pickup      string        `json:"pickup"`
	Return      string        `json:"return"`
	Items       []SearchItem  `json:"items"`
	Unavailable []Unavailable `json:"unavailable"`
}

// AvailabilitySnapshot is one car of the backend availability snapshot.
type AvailabilitySnapshot struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	ManualStatus   string             `json:"manual_status"`
	ManualBlocks   []DateRange        `json:"manual_blocks"`
	BookedRanges   []DateRange        `json:"booked_ranges"`
	MonthlyPricing map[string]float64 `json:"monthly_pricing,omitempty"`
}

func MapSnapshot(car *fleet.Car) AvailabilitySnapshot {
	out := AvailabilitySnapshot{
		ID:             string(car.ID),
		Name:           car.DisplayName(),
		ManualStatus:   string(car.ManualStatus),
		ManualBlocks:   make([]DateRange, 0, len(car.ManualBlocks)),
		BookedRanges:   make([]DateRange, 0, len(car.BookedRanges)),
		MonthlyPricing: MonthlyPricing(car),
	}
	for _, b := range car.ManualBlocks {
		out.ManualBlocks = append(out.ManualBlocks, MapBlock(b))
	}
	for _, r := range car.BookedRanges {
		out.BookedRanges = append(out.BookedRanges, DateRange{
			Start:     daterange.Format(r.Range.Start),
			End:       daterange.Format(r.Range.End),
			Status:    r.Status,
			Reference: r.Reference,
		})
	}
	return out
}
