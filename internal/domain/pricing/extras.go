package pricing

import (
	"encoding/json"
	"errors"
	"strings"
)

const (
	ExtraAdditionalDriver = "additionalDriver"
	ExtraFullInsurance    = "fullInsurance"
	ExtraGPSNavigation    = "gpsNavigation"
	ExtraChildSeat        = "childSeat"
)

// ChargeBasis tells whether an extra is charged per rental day or once.
type ChargeBasis string

const (
	PerDay    ChargeBasis = "per_day"
	PerRental ChargeBasis = "per_rental"
)

type ExtraPrice struct {
	Basis  ChargeBasis `json:"basis"`
	Amount float64     `json:"amount"`
}

// UnmarshalJSON accepts {"basis":"per_day","amount":5}, {"pricePerDay":5},
// {"pricePerRental":20} and a bare number. A bare number is charged per day.
func (p *ExtraPrice) UnmarshalJSON(data []byte) error {
	var amount float64
	if err := json.Unmarshal(data, &amount); err == nil {
		*p = ExtraPrice{Basis: PerDay, Amount: amount}
		return nil
	}
	var doc struct {
		Basis          string   `json:"basis"`
		Amount         *float64 `json:"amount"`
		Price          *float64 `json:"price"`
		PricePerDay    *float64 `json:"pricePerDay"`
		PricePerRental *float64 `json:"pricePerRental"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	switch {
	case doc.PricePerRental != nil:
		*p = ExtraPrice{Basis: PerRental, Amount: *doc.PricePerRental}
	case doc.PricePerDay != nil:
		*p = ExtraPrice{Basis: PerDay, Amount: *doc.PricePerDay}
	case doc.Amount != nil:
		*p = ExtraPrice{Basis: ParseChargeBasis(doc.Basis), Amount: *doc.Amount}
	case doc.Price != nil:
		*p = ExtraPrice{Basis: ParseChargeBasis(doc.Basis), Amount: *doc.Price}
	default:
		return errors.New("pricing: extra price without amount")
	}
	return nil
}

func ParseChargeBasis(raw string) ChargeBasis {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "per_rental", "perrental", "rental", "once", "flat":
		return PerRental
	default:
		return PerDay
	}
}

// Catalog maps extra names to their price. Extras absent from the catalog cost nothing.
type Catalog map[string]ExtraPrice

func DefaultCatalog() Catalog {
	return Catalog{
		ExtraAdditionalDriver: {Basis: PerDay, Amount: 10},
		ExtraFullInsurance:    {Basis: PerDay, Amount: 15},
		ExtraGPSNavigation:    {Basis: PerDay, Amount: 5},
		ExtraChildSeat:        {Basis: PerRental, Amount: 20},
	}
}

// Extras is the customer's add-on selection.
type Extras struct {
	AdditionalDriver bool `json:"additionalDriver"`
	FullInsurance    bool `json:"fullInsurance"`
	GPSNavigation    bool `json:"gpsNavigation"`
	ChildSeat        bool `json:"childSeat"`
}

// Selected lists the chosen extras in catalog naming.
func (e Extras) Selected() []string {
	var out []string
	if e.AdditionalDriver {
		out = append(out, ExtraAdditionalDriver)
	}
	if e.FullInsurance {
		out = append(out, ExtraFullInsurance)
	}
	if e.GPSNavigation {
		out = append(out, ExtraGPSNavigation)
	}
	if e.ChildSeat {
		out = append(out, ExtraChildSeat)
	}
	return out
}

// ExtraLine is one priced add-on of a quote.
type ExtraLine struct {
	Name     string
	Basis    ChargeBasis
	Unit     float64
	Quantity int
	Amount   float64
}

// Lines prices the selected extras for a rental of duration days. childSeat is
// always charged once, whatever the catalog basis says.
func (c Catalog) Lines(selected Extras, duration int) []ExtraLine {
	if duration < 1 {
		duration = 1
	}
	var lines []ExtraLine
	for _, name := range selected.Selected() {
		price, ok := c[name]
		if !ok || price.Amount <= 0 {
			continue
		}
		basis := price.Basis
		if name == ExtraChildSeat {
			basis = PerRental
		}
		qty := duration
		if basis == PerRental {
			qty = 1
		}
		lines = append(lines, ExtraLine{
			Name:     name,
			Basis:    basis,
			Unit:     price.Amount,
			Quantity: qty,
			Amount:   price.Amount * float64(qty),
		})
	}
	return lines
}

func (c Catalog) Total(selected Extras, duration int) float64 {
	var total float64
	for _, line := range c.Lines(selected, duration) {
		total += line.Amount
	}
	return total
}
