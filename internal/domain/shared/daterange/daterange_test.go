package daterange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParse(t *testing.T) {
	cases := map[string]time.Time{
		"2024-06-01":                date(2024, time.June, 1),
		"06/01/2024":                date(2024, time.June, 1),
		"6/1/2024":                  date(2024, time.June, 1),
		" 2024-07-05 ":              date(2024, time.July, 5),
		"2024-07-05T23:30:00+02:00": date(2024, time.July, 5),
	}
	for raw, want := range cases {
		got, err := Parse(raw)
		require.NoError(t, err, raw)
		assert.True(t, want.Equal(got), "%s: got %s", raw, got)
	}

	for _, raw := range []string{"", "not-a-date", "2024-13-01", "31/31/2024"} {
		_, err := Parse(raw)
		assert.ErrorIs(t, err, ErrUnparseable, raw)
	}
}

func TestDayKeepsCalendarDateOfLocalMidnight(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	local := time.Date(2024, time.March, 10, 0, 0, 0, 0, loc)
	assert.Equal(t, date(2024, time.March, 10), Day(local))
}

func TestRentalDays(t *testing.T) {
	assert.Equal(t, 3, RentalDays(date(2024, time.June, 1), date(2024, time.June, 4)))
	assert.Equal(t, 1, RentalDays(date(2024, time.June, 1), date(2024, time.June, 1)))
	assert.Equal(t, 1, RentalDays(date(2024, time.June, 1), date(2024, time.June, 2)))
	assert.Equal(t, 3, RentalDays(date(2024, time.January, 30), date(2024, time.February, 2)))
	// return before pickup clamps instead of failing
	assert.Equal(t, 1, RentalDays(date(2024, time.June, 4), date(2024, time.June, 1)))
	// time of day is ignored
	assert.Equal(t, 2, RentalDays(
		time.Date(2024, time.June, 1, 18, 0, 0, 0, time.UTC),
		time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC),
	))
}

func TestOverlaps(t *testing.T) {
	a, err := New(date(2024, time.July, 1), date(2024, time.July, 5))
	require.NoError(t, err)
	b, err := New(date(2024, time.July, 5), date(2024, time.July, 10))
	require.NoError(t, err)
	c, err := New(date(2024, time.July, 6), date(2024, time.July, 10))
	require.NoError(t, err)
	inner, err := New(date(2024, time.July, 2), date(2024, time.July, 3))
	require.NoError(t, err)

	assert.True(t, a.Overlaps(b), "shared boundary day conflicts")
	assert.True(t, b.Overlaps(a))
	assert.False(t, a.Overlaps(c))
	assert.False(t, c.Overlaps(a))
	assert.True(t, a.Overlaps(inner))
	assert.True(t, inner.Overlaps(a))

	ranges := []Range{a, b, c, inner}
	for _, x := range ranges {
		for _, y := range ranges {
			assert.Equal(t, x.Overlaps(y), y.Overlaps(x), "%s vs %s", x, y)
		}
	}
}

func TestNewRejectsInvertedRange(t *testing.T) {
	_, err := New(date(2024, time.July, 5), date(2024, time.July, 1))
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = ParseRange("not-a-date", "2024-07-01")
	assert.ErrorIs(t, err, ErrUnparseable)

	r, err := ParseRange("07/01/2024", "2024-07-03")
	require.NoError(t, err)
	assert.Equal(t, 3, r.Days())
	assert.True(t, r.ContainsDay(date(2024, time.July, 3)))
	assert.False(t, r.ContainsDay(date(2024, time.July, 4)))
}

func TestSplitByMonth(t *testing.T) {
	slices := SplitByMonth(date(2024, time.January, 30), 3)
	assert.Equal(t, []MonthSlice{
		{Year: 2024, Month: time.January, Days: 2},
		{Year: 2024, Month: time.February, Days: 1},
	}, slices)

	single := SplitByMonth(date(2024, time.January, 31), 1)
	assert.Equal(t, []MonthSlice{{Year: 2024, Month: time.January, Days: 1}}, single)

	long := SplitByMonth(date(2023, time.December, 20), 45)
	require.Len(t, long, 3)
	assert.Equal(t, 12, long[0].Days)
	assert.Equal(t, 31, long[1].Days)
	assert.Equal(t, 2, long[2].Days)
	assert.Equal(t, 2024, long[2].Year)
	assert.Equal(t, time.February, long[2].Month)
}
