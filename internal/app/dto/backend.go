package dto

// ExactPriceResponse is the wire shape of an exact price lookup.
type ExactPriceResponse struct {
	Success bool     `json:"success"`
	Price   *float64 `json:"price,omitempty"`
	Source  string   `json:"source,omitempty"`
}

// CalculatedPriceResponse is the wire shape of a server-side calculation.
type CalculatedPriceResponse struct {
	Success     bool     `json:"success"`
	DailyRate   *float64 `json:"dailyRate,omitempty"`
	BasePrice   *float64 `json:"basePrice,omitempty"`
	ExtrasTotal *float64 `json:"extrasTotal,omitempty"`
	TotalPrice  *float64 `json:"totalPrice,omitempty"`
	Source      string   `json:"source,omitempty"`
}

type PriceTableResult struct {
	Upserted int      `json:"upserted"`
	Cars     []string `json:"cars"`
}

type CacheInvalidated struct {
	CarID   string `json:"car_id,omitempty"`
	Flushed bool   `json:"flushed"`
}
