package fleet

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"carhire/internal/domain/shared/daterange"
)

// RawRange is a date range as received from an external source, before parsing.
type RawRange struct {
	ID        string
	Start     string
	End       string
	Status    string
	Reason    string
	Reference string
}

// RawCar accepts every field spelling seen in external payloads
// (snake_case, camelCase, nested car.make) so that the rest of the code only
// ever sees a canonical Car.
type RawCar struct {
	ID             string
	Name           string
	Make           string
	Model          string
	Category       string
	Features       []string
	Specs          map[string]string
	MonthlyPricing map[string]string
	ManualStatus   string
	ManualBlocks   []RawRange
	BookedRanges   []RawRange
	PhotoURL       string
}

// MalformedEntry describes an input element dropped during normalization.
type MalformedEntry struct {
	Kind  string
	Index int
	Value string
	Err   error
}

const (
	EntryManualBlock  = "manual_block"
	EntryBookedRange  = "booked_range"
	EntryMonthlyRate  = "monthly_rate"
	EntryManualStatus = "manual_status"
)

func (r *RawRange) UnmarshalJSON(data []byte) error {
	fields, err := decodeFields(data)
	if err != nil {
		return err
	}
	r.ID = firstString(fields, "id", "_id", "block_id", "blockId")
	r.Start = firstString(fields, "start", "start_date", "startDate", "from", "pickup_date", "pickupDate")
	r.End = firstString(fields, "end", "end_date", "endDate", "to", "return_date", "returnDate")
	r.Status = firstString(fields, "status", "state")
	r.Reason = firstString(fields, "reason", "note", "notes")
	r.Reference = firstString(fields, "reference", "booking_reference", "bookingReference", "ref")
	return nil
}

func (c *RawCar) UnmarshalJSON(data []byte) error {
	fields, err := decodeFields(data)
	if err != nil {
		return err
	}
	c.ID = firstString(fields, "id", "_id", "car_id", "carId")
	c.Name = firstString(fields, "name", "car_name", "carName", "title")
	c.Make = firstString(fields, "make", "car_make", "carMake", "car.make")
	c.Model = firstString(fields, "model", "car_model", "carModel", "car.model")
	c.Category = firstString(fields, "category", "car_category", "type", "class")
	c.ManualStatus = firstString(fields, "manual_status", "manualStatus", "status_override")
	c.PhotoURL = firstString(fields, "photo_url", "photoUrl", "image_url", "imageUrl", "image")

	if raw, ok := firstRaw(fields, "features"); ok {
		_ = json.Unmarshal(raw, &c.Features)
	}
	if raw, ok := firstRaw(fields, "specs", "specifications"); ok {
		c.Specs = decodeStringMap(raw)
	}
	if raw, ok := firstRaw(fields, "monthly_pricing", "monthlyPricing", "monthly_rates", "pricing"); ok {
		c.MonthlyPricing = decodeStringMap(raw)
	}
	if raw, ok := firstRaw(fields, "manual_blocks", "manualBlocks", "blocks"); ok {
		if err := json.Unmarshal(raw, &c.ManualBlocks); err != nil {
			return err
		}
	}
	if raw, ok := firstRaw(fields, "booked_ranges", "bookedRanges", "bookings"); ok {
		if err := json.Unmarshal(raw, &c.BookedRanges); err != nil {
			return err
		}
	}
	return nil
}

// Normalize converts a RawCar into a canonical Car. Entries that cannot be
// parsed are dropped and reported; they never count as blocking or free.
func Normalize(raw RawCar, logger *slog.Logger) (*Car, []MalformedEntry, error) {
	id := strings.TrimSpace(raw.ID)
	if id == "" {
		return nil, nil, ErrCarIDRequired
	}
	var issues []MalformedEntry
	report := func(entry MalformedEntry) {
		issues = append(issues, entry)
		if logger != nil {
			logger.Warn("car entry skipped", "car_id", id, "kind", entry.Kind, "index", entry.Index, "value", entry.Value, "error", entry.Err)
		}
	}

	status, err := ParseManualStatus(raw.ManualStatus)
	if err != nil {
		report(MalformedEntry{Kind: EntryManualStatus, Index: -1, Value: raw.ManualStatus, Err: err})
	}

	car := &Car{
		ID:             CarID(id),
		Name:           strings.TrimSpace(raw.Name),
		Make:           strings.TrimSpace(raw.Make),
		Model:          strings.TrimSpace(raw.Model),
		Category:       strings.TrimSpace(raw.Category),
		Features:       compactStrings(raw.Features),
		Specs:          normalizeSpecs(raw.Specs),
		MonthlyPricing: make(map[time.Month]float64, 12),
		ManualStatus:   status,
		PhotoURL:       strings.TrimSpace(raw.PhotoURL),
	}

	for key, value := range raw.MonthlyPricing {
		month, ok := ParseMonth(key)
		if !ok {
			report(MalformedEntry{Kind: EntryMonthlyRate, Index: -1, Value: key, Err: ErrInvalidRate})
			continue
		}
		rate, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || rate <= 0 {
			report(MalformedEntry{Kind: EntryMonthlyRate, Index: int(month), Value: value, Err: ErrInvalidRate})
			continue
		}
		car.MonthlyPricing[month] = rate
	}

	for i, rb := range raw.ManualBlocks {
		r, err := daterange.ParseRange(rb.Start, rb.End)
		if err != nil {
			report(MalformedEntry{Kind: EntryManualBlock, Index: i, Value: rb.Start + ".." + rb.End, Err: err})
			continue
		}
		blockID := strings.TrimSpace(rb.ID)
		if blockID == "" {
			blockID = "block-" + strconv.Itoa(i+1)
		}
		car.ManualBlocks = append(car.ManualBlocks, Block{ID: blockID, Range: r, Reason: rb.Reason})
	}

	for i, rr := range raw.BookedRanges {
		if IsCancelledStatus(rr.Status) {
			continue
		}
		r, err := daterange.ParseRange(rr.Start, rr.End)
		if err != nil {
			report(MalformedEntry{Kind: EntryBookedRange, Index: i, Value: rr.Start + ".." + rr.End, Err: err})
			continue
		}
		car.BookedRanges = append(car.BookedRanges, BookedRange{Reference: rr.Reference, Range: r, Status: strings.ToLower(strings.TrimSpace(rr.Status))})
	}
	return car, issues, nil
}

// IsCancelledStatus reports whether a booking status means the dates are
// released. Both spellings of cancelled are accepted.
func IsCancelledStatus(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "cancelled", "canceled":
		return true
	}
	return false
}

// ParseMonth accepts full English month names, three-letter abbreviations and 1..12.
func ParseMonth(raw string) (time.Month, bool) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(value); err == nil {
		if n >= 1 && n <= 12 {
			return time.Month(n), true
		}
		return 0, false
	}
	for m := time.January; m <= time.December; m++ {
		name := strings.ToLower(m.String())
		if value == name || value == name[:3] {
			return m, true
		}
	}
	return 0, false
}

func normalizeSpecs(raw map[string]string) Specs {
	if len(raw) == 0 {
		return Specs{}
	}
	get := func(keys ...string) string {
		for _, k := range keys {
			if v, ok := raw[k]; ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
		return ""
	}
	atoi := func(v string) int {
		n, _ := strconv.Atoi(v)
		return n
	}
	return Specs{
		Engine:     get("engine"),
		Passengers: atoi(get("passengers", "seats")),
		Doors:      atoi(get("doors")),
		Gearbox:    get("gearbox", "transmission"),
		Fuel:       get("fuel", "fuel_type", "fuelType"),
		Luggage:    atoi(get("luggage", "bags")),
	}
}

func compactStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func decodeFields(data []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// firstRaw returns the first present, non-null field. Dotted keys descend into
// nested objects.
func firstRaw(fields map[string]json.RawMessage, keys ...string) (json.RawMessage, bool) {
	for _, key := range keys {
		raw, ok := lookupPath(fields, key)
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			continue
		}
		return raw, true
	}
	return nil, false
}

func lookupPath(fields map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	head, rest, nested := strings.Cut(key, ".")
	raw, ok := fields[head]
	if !ok || !nested {
		return raw, ok
	}
	inner, err := decodeFields(raw)
	if err != nil {
		return nil, false
	}
	return lookupPath(inner, rest)
}

func firstString(fields map[string]json.RawMessage, keys ...string) string {
	raw, ok := firstRaw(fields, keys...)
	if !ok {
		return ""
	}
	return scalarString(raw)
}

func scalarString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return ""
	}
	return trimmed
}

func decodeStringMap(raw json.RawMessage) map[string]string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		if s := scalarString(v); s != "" {
			out[k] = s
		}
	}
	return out
}
