package dto

import (
	"carhire/internal/domain/pricing"
	"carhire/internal/domain/shared/money"
)

type ExtraLine struct {
	Name     string  `json:"name"`
	Basis    string  `json:"basis"`
	Unit     float64 `json:"unit_price"`
	Quantity int     `json:"quantity"`
	Amount   float64 `json:"amount"`
}

type MonthSlice struct {
	Year   int     `json:"year"`
	Month  string  `json:"month"`
	Days   int     `json:"days"`
	Rate   float64 `json:"daily_rate"`
	Source string  `json:"source"`
}

// Quote is the presented price breakdown. Amounts are rounded to cents here
// and nowhere earlier.
type Quote struct {
	CarID                string       `json:"car_id"`
	Tier                 string       `json:"tier"`
	Source               string       `json:"source,omitempty"`
	Currency             string       `json:"currency"`
	Month                string       `json:"month"`
	Duration             int          `json:"duration"`
	DailyRate            float64      `json:"daily_rate"`
	Multiplier           float64      `json:"multiplier,omitempty"`
	BasePrice            float64      `json:"base_price"`
	ExtrasTotal          float64      `json:"extras_total"`
	Extras               []ExtraLine  `json:"extras,omitempty"`
	TotalPrice           float64      `json:"total_price"`
	PrepaymentPercentage float64      `json:"prepayment_percentage"`
	PrepaymentAmount     float64      `json:"prepayment_amount"`
	RemainingAmount      float64      `json:"remaining_amount"`
	Slices               []MonthSlice `json:"slices,omitempty"`
	Clamped              bool         `json:"clamped,omitempty"`
}

func MapQuote(q pricing.Quote) Quote {
	out := Quote{
		CarID:                q.CarID,
		Tier:                 string(q.Tier),
		Source:               q.Source,
		Currency:             q.Currency,
		Month:                q.Month.String(),
		Duration:             q.Duration,
		DailyRate:            money.Round(q.DailyRate),
		Multiplier:           q.Multiplier,
		BasePrice:            money.Round(q.BasePrice),
		ExtrasTotal:          money.Round(q.ExtrasTotal),
		TotalPrice:           money.Round(q.TotalPrice),
		PrepaymentPercentage: q.PrepaymentPercentage,
		PrepaymentAmount:     money.Round(q.PrepaymentAmount),
		Clamped:              q.Clamped,
	}
	// Remaining is derived from the rounded figures so the two parts always add up.
	out.RemainingAmount = money.Round(out.TotalPrice - out.PrepaymentAmount)
	for _, line := range q.ExtrasLines {
		out.Extras = append(out.Extras, ExtraLine{
			Name:     line.Name,
			Basis:    string(line.Basis),
			Unit:     money.Round(line.Unit),
			Quantity: line.Quantity,
			Amount:   money.Round(line.Amount),
		})
	}
	for _, s := range q.Slices {
		out.Slices = append(out.Slices, MonthSlice{
			Year:   s.Year,
			Month:  s.Month.String(),
			Days:   s.Days,
			Rate:   money.Round(s.Rate),
			Source: string(s.Source),
		})
	}
	return out
}

// QuoteResult pairs a quote with the availability of the requested range.
type QuoteResult struct {
	Quote        Quote        `json:"quote"`
	Availability Availability `json:"availability"`
}
