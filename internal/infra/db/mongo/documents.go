package mongo

import (
	"strconv"
	"strings"
	"time"

	domainbooking "carhire/internal/domain/booking"
	domainfleet "carhire/internal/domain/fleet"
	domainpricing "carhire/internal/domain/pricing"
	"carhire/internal/domain/shared/daterange"
)

type rangeDocument struct {
	Start string `bson:"start"`
	End   string `bson:"end"`
}

func newRangeDocument(r daterange.Range) rangeDocument {
	return rangeDocument{Start: daterange.Format(r.Start), End: daterange.Format(r.End)}
}

// toRange keeps unparseable bounds as zero times so the checker skips them.
func (d rangeDocument) toRange() daterange.Range {
	start, _ := daterange.Parse(d.Start)
	end, _ := daterange.Parse(d.End)
	return daterange.Range{Start: start, End: end}
}

type specsDocument struct {
	Engine     string `bson:"engine,omitempty"`
	Passengers int    `bson:"passengers,omitempty"`
	Doors      int    `bson:"doors,omitempty"`
	Gearbox    string `bson:"gearbox,omitempty"`
	Fuel       string `bson:"fuel,omitempty"`
	Luggage    int    `bson:"luggage,omitempty"`
}

type blockDocument struct {
	ID     string        `bson:"id"`
	Range  rangeDocument `bson:"range"`
	Reason string        `bson:"reason,omitempty"`
}

type carDocument struct {
	ID             string             `bson:"_id"`
	Name           string             `bson:"name"`
	Make           string             `bson:"make,omitempty"`
	Model          string             `bson:"model,omitempty"`
	Category       string             `bson:"category,omitempty"`
	Features       []string           `bson:"features,omitempty"`
	Specs          specsDocument      `bson:"specs"`
	MonthlyPricing map[string]float64 `bson:"monthly_pricing"`
	ManualStatus   string             `bson:"manual_status"`
	ManualBlocks   []blockDocument    `bson:"manual_blocks"`
	PhotoURL       string             `bson:"photo_url,omitempty"`
	UpdatedAt      int64              `bson:"updated_at"`
	Version        int64              `bson:"version"`
}

func newCarDocument(c *domainfleet.Car) carDocument {
	doc := carDocument{
		ID:             string(c.ID),
		Name:           c.Name,
		Make:           c.Make,
		Model:          c.Model,
		Category:       c.Category,
		Features:       c.Features,
		Specs:          specsDocument(c.Specs),
		MonthlyPricing: make(map[string]float64, len(c.MonthlyPricing)),
		ManualStatus:   string(c.ManualStatus),
		ManualBlocks:   make([]blockDocument, 0, len(c.ManualBlocks)),
		PhotoURL:       c.PhotoURL,
		UpdatedAt:      c.UpdatedAt.UnixMilli(),
		Version:        c.Version,
	}
	for month, rate := range c.MonthlyPricing {
		doc.MonthlyPricing[month.String()] = rate
	}
	for _, b := range c.ManualBlocks {
		doc.ManualBlocks = append(doc.ManualBlocks, blockDocument{ID: b.ID, Range: newRangeDocument(b.Range), Reason: b.Reason})
	}
	return doc
}

func (d carDocument) toAggregate() *domainfleet.Car {
	status, _ := domainfleet.ParseManualStatus(d.ManualStatus)
	car := &domainfleet.Car{
		ID:             domainfleet.CarID(d.ID),
		Name:           d.Name,
		Make:           d.Make,
		Model:          d.Model,
		Category:       d.Category,
		Features:       d.Features,
		Specs:          domainfleet.Specs(d.Specs),
		MonthlyPricing: make(map[time.Month]float64, len(d.MonthlyPricing)),
		ManualStatus:   status,
		PhotoURL:       d.PhotoURL,
		UpdatedAt:      timestampToTime(d.UpdatedAt),
		Version:        d.Version,
	}
	for name, rate := range d.MonthlyPricing {
		if month, ok := domainfleet.ParseMonth(name); ok {
			car.MonthlyPricing[month] = rate
		}
	}
	for _, b := range d.ManualBlocks {
		car.ManualBlocks = append(car.ManualBlocks, domainfleet.Block{ID: b.ID, Range: b.Range.toRange(), Reason: b.Reason})
	}
	return car
}

type customerDocument struct {
	FirstName     string `bson:"first_name"`
	LastName      string `bson:"last_name"`
	Email         string `bson:"email"`
	Phone         string `bson:"phone,omitempty"`
	DateOfBirth   int64  `bson:"date_of_birth,omitempty"`
	LicenceNumber string `bson:"licence_number,omitempty"`
	Notes         string `bson:"notes,omitempty"`
}

type tripDocument struct {
	PickupLocation string `bson:"pickup_location,omitempty"`
	ReturnLocation string `bson:"return_location,omitempty"`
	PickupTime     string `bson:"pickup_time,omitempty"`
	ReturnTime     string `bson:"return_time,omitempty"`
}

type extrasDocument struct {
	AdditionalDriver bool `bson:"additional_driver"`
	FullInsurance    bool `bson:"full_insurance"`
	GPSNavigation    bool `bson:"gps_navigation"`
	ChildSeat        bool `bson:"child_seat"`
}

type priceDocument struct {
	Tier                 string  `bson:"tier"`
	Currency             string  `bson:"currency"`
	DailyRate            float64 `bson:"daily_rate"`
	Duration             int     `bson:"duration"`
	BasePrice            float64 `bson:"base_price"`
	ExtrasTotal          float64 `bson:"extras_total"`
	TotalPrice           float64 `bson:"total_price"`
	PrepaymentPercentage float64 `bson:"prepayment_percentage"`
	PrepaymentAmount     float64 `bson:"prepayment_amount"`
	RemainingAmount      float64 `bson:"remaining_amount"`
}

type bookingDocument struct {
	ID            string           `bson:"_id"`
	Reference     string           `bson:"reference"`
	ReferenceKey  string           `bson:"reference_key"`
	CarID         string           `bson:"car_id"`
	CarName       string           `bson:"car_name"`
	Range         rangeDocument    `bson:"range"`
	Customer      customerDocument `bson:"customer"`
	Trip          tripDocument     `bson:"trip"`
	Extras        extrasDocument   `bson:"extras"`
	Price         priceDocument    `bson:"price"`
	PaymentMethod string           `bson:"payment_method"`
	Status        string           `bson:"status"`
	CreatedAt     int64            `bson:"created_at"`
	UpdatedAt     int64            `bson:"updated_at"`
	Version       int64            `bson:"version"`
}

func referenceKey(ref string) string {
	return strings.ToUpper(strings.TrimSpace(ref))
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	doc := bookingDocument{
		ID:           string(b.ID),
		Reference:    b.Reference,
		ReferenceKey: referenceKey(b.Reference),
		CarID:        string(b.CarID),
		CarName:      b.CarName,
		Range:        newRangeDocument(b.Range),
		Customer: customerDocument{
			FirstName:     b.Customer.FirstName,
			LastName:      b.Customer.LastName,
			Email:         b.Customer.Email,
			Phone:         b.Customer.Phone,
			LicenceNumber: b.Customer.LicenceNumber,
			Notes:         b.Customer.Notes,
		},
		Trip:          tripDocument(b.Trip),
		Extras:        extrasDocument(b.Extras),
		Price:         priceDocument(b.Price),
		PaymentMethod: string(b.PaymentMethod),
		Status:        string(b.Status),
		CreatedAt:     b.CreatedAt.UnixMilli(),
		UpdatedAt:     b.UpdatedAt.UnixMilli(),
		Version:       b.Version,
	}
	if !b.Customer.DateOfBirth.IsZero() {
		doc.Customer.DateOfBirth = b.Customer.DateOfBirth.UnixMilli()
	}
	return doc
}

func (d bookingDocument) toAggregate() *domainbooking.Booking {
	b := &domainbooking.Booking{
		ID:        domainbooking.BookingID(d.ID),
		Reference: d.Reference,
		CarID:     domainfleet.CarID(d.CarID),
		CarName:   d.CarName,
		Range:     d.Range.toRange(),
		Customer: domainbooking.Customer{
			FirstName:     d.Customer.FirstName,
			LastName:      d.Customer.LastName,
			Email:         d.Customer.Email,
			Phone:         d.Customer.Phone,
			LicenceNumber: d.Customer.LicenceNumber,
			Notes:         d.Customer.Notes,
		},
		Trip:          domainbooking.Trip(d.Trip),
		Extras:        domainpricing.Extras(d.Extras),
		Price:         domainbooking.PriceSnapshot(d.Price),
		PaymentMethod: domainbooking.PaymentMethod(d.PaymentMethod),
		Status:        domainbooking.Status(d.Status),
		CreatedAt:     timestampToTime(d.CreatedAt),
		UpdatedAt:     timestampToTime(d.UpdatedAt),
		Version:       d.Version,
	}
	if d.Customer.DateOfBirth != 0 {
		b.Customer.DateOfBirth = timestampToTime(d.Customer.DateOfBirth)
	}
	return b
}

type tableDocument struct {
	ID        string  `bson:"_id"`
	CarID     string  `bson:"car_id"`
	Month     int     `bson:"month"`
	Duration  int     `bson:"duration"`
	Price     float64 `bson:"price"`
	UpdatedAt int64   `bson:"updated_at"`
}

func tableID(carID string, month time.Month, duration int) string {
	return domainpricing.CacheKey{CarID: carID, Month: month, Duration: duration}.String()
}

func newTableDocument(e domainpricing.TableEntry) tableDocument {
	return tableDocument{
		ID:        tableID(e.CarID, e.Month, e.Duration),
		CarID:     e.CarID,
		Month:     int(e.Month),
		Duration:  e.Duration,
		Price:     e.Price,
		UpdatedAt: e.UpdatedAt.UnixMilli(),
	}
}

func (d tableDocument) toEntry() domainpricing.TableEntry {
	return domainpricing.TableEntry{
		CarID:     d.CarID,
		Month:     time.Month(d.Month),
		Duration:  d.Duration,
		Price:     d.Price,
		UpdatedAt: timestampToTime(d.UpdatedAt),
	}
}

type extraPriceDocument struct {
	Basis  string  `bson:"basis"`
	Amount float64 `bson:"amount"`
}

type configDocument struct {
	ID                   string                        `bson:"_id"`
	Currency             string                        `bson:"currency"`
	DefaultDailyRate     float64                       `bson:"default_daily_rate"`
	PrepaymentPercentage float64                       `bson:"prepayment_percentage"`
	Extras               map[string]extraPriceDocument `bson:"extras"`
	DurationPricing      map[string]float64            `bson:"duration_pricing"`
	UpdatedAt            int64                         `bson:"updated_at"`
}

func newConfigDocument(cfg domainpricing.Config, now time.Time) configDocument {
	doc := configDocument{
		ID:                   configID,
		Currency:             cfg.Currency,
		DefaultDailyRate:     cfg.DefaultDailyRate,
		PrepaymentPercentage: cfg.PrepaymentPercentage,
		Extras:               make(map[string]extraPriceDocument, len(cfg.Extras)),
		DurationPricing:      make(map[string]float64, len(cfg.DurationPricing)),
		UpdatedAt:            now.UnixMilli(),
	}
	for name, price := range cfg.Extras {
		doc.Extras[name] = extraPriceDocument{Basis: string(price.Basis), Amount: price.Amount}
	}
	for day, multiplier := range cfg.DurationPricing {
		doc.DurationPricing[strconv.Itoa(day)] = multiplier
	}
	return doc
}

func (d configDocument) toConfig() domainpricing.Config {
	cfg := domainpricing.Config{
		Currency:             d.Currency,
		DefaultDailyRate:     d.DefaultDailyRate,
		PrepaymentPercentage: d.PrepaymentPercentage,
		Extras:               make(domainpricing.Catalog, len(d.Extras)),
		DurationPricing:      make(domainpricing.DurationPricing, len(d.DurationPricing)),
	}
	for name, price := range d.Extras {
		cfg.Extras[name] = domainpricing.ExtraPrice{Basis: domainpricing.ParseChargeBasis(price.Basis), Amount: price.Amount}
	}
	for key, multiplier := range d.DurationPricing {
		if day, err := strconv.Atoi(key); err == nil {
			cfg.DurationPricing[day] = multiplier
		}
	}
	return cfg
}

func timestampToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
