package daterange

import (
	"errors"
	"math"
	"strings"
	"time"
)

var (
	ErrInvalidRange = errors.New("daterange: end must not be before start")
	ErrUnparseable  = errors.New("daterange: unparseable date")
)

const (
	ISOLayout = "2006-01-02"
	day       = 24 * time.Hour
)

var legacyLayouts = []string{
	ISOLayout,
	"01/02/2006",
	"1/2/2006",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Day truncates t to its calendar date at UTC midnight. The calendar date is
// taken in t's own location so a local midnight never shifts to the previous day.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Parse accepts YYYY-MM-DD, MM/DD/YYYY and RFC3339 input and returns the calendar day.
func Parse(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, ErrUnparseable
	}
	for _, layout := range legacyLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return Day(t), nil
		}
	}
	return time.Time{}, ErrUnparseable
}

// Format renders a calendar day as YYYY-MM-DD.
func Format(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return Day(t).Format(ISOLayout)
}

// Range is an inclusive interval of calendar days [Start, End].
type Range struct {
	Start time.Time
	End   time.Time
}

func New(start, end time.Time) (Range, error) {
	r := Range{Start: Day(start), End: Day(end)}
	if err := r.Validate(); err != nil {
		return Range{}, err
	}
	return r, nil
}

// ParseRange parses both bounds with Parse and validates the result.
func ParseRange(start, end string) (Range, error) {
	s, err := Parse(start)
	if err != nil {
		return Range{}, err
	}
	e, err := Parse(end)
	if err != nil {
		return Range{}, err
	}
	return New(s, e)
}

func (r Range) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return ErrUnparseable
	}
	if r.End.Before(r.Start) {
		return ErrInvalidRange
	}
	return nil
}

func (r Range) Valid() bool {
	return r.Validate() == nil
}

// Overlaps reports whether two inclusive ranges share at least one day.
// A pickup on the day another range ends counts as overlapping.
func (r Range) Overlaps(other Range) bool {
	a, b := r.normalized(), other.normalized()
	return !a.Start.After(b.End) && !a.End.Before(b.Start)
}

func (r Range) ContainsDay(t time.Time) bool {
	d := Day(t)
	n := r.normalized()
	return !d.Before(n.Start) && !d.After(n.End)
}

// Days is the inclusive number of calendar days covered by the range.
func (r Range) Days() int {
	n := r.normalized()
	if n.End.Before(n.Start) {
		return 0
	}
	return int(n.End.Sub(n.Start)/day) + 1
}

func (r Range) String() string {
	return Format(r.Start) + ".." + Format(r.End)
}

func (r Range) normalized() Range {
	return Range{Start: Day(r.Start), End: Day(r.End)}
}

// RentalDays is the billable duration between pickup and return:
// ceil((return - pickup) / 24h) with a minimum of one day. A return before
// the pickup clamps to one day instead of failing.
func RentalDays(pickup, ret time.Time) int {
	diff := Day(ret).Sub(Day(pickup))
	days := int(math.Ceil(diff.Hours() / 24))
	if days < 1 {
		return 1
	}
	return days
}

// MonthSlice is the number of rental days falling into one calendar month.
type MonthSlice struct {
	Year  int
	Month time.Month
	Days  int
}

// SplitByMonth groups the rental days pickup, pickup+1, ..., pickup+days-1 by
// calendar month, in chronological order.
func SplitByMonth(pickup time.Time, days int) []MonthSlice {
	if days < 1 {
		days = 1
	}
	start := Day(pickup)
	var slices []MonthSlice
	for remaining, cursor := days, start; remaining > 0; {
		firstOfNext := time.Date(cursor.Year(), cursor.Month()+1, 1, 0, 0, 0, 0, time.UTC)
		inMonth := int(firstOfNext.Sub(cursor) / day)
		if inMonth > remaining {
			inMonth = remaining
		}
		slices = append(slices, MonthSlice{Year: cursor.Year(), Month: cursor.Month(), Days: inMonth})
		remaining -= inMonth
		cursor = firstOfNext
	}
	return slices
}
