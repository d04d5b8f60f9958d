package availability

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carhire/internal/domain/fleet"
	"carhire/internal/domain/shared/daterange"
)

func day(m time.Month, d int) time.Time {
	return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC)
}

func rng(t *testing.T, start, end string) daterange.Range {
	t.Helper()
	r, err := daterange.ParseRange(start, end)
	require.NoError(t, err)
	return r
}

func TestUnavailableAlwaysRefuses(t *testing.T) {
	car := &fleet.Car{ID: "c1", ManualStatus: fleet.StatusUnavailable}
	checker := NewChecker(nil)

	d := checker.Check(car, RequestedRange(day(time.June, 1), day(time.June, 3)))
	assert.False(t, d.Available)
	assert.Equal(t, ReasonManualUnavailable, d.Reason)
}

func TestAvailableIgnoresBookingsButHonoursBlocks(t *testing.T) {
	car := &fleet.Car{
		ID:           "c1",
		ManualStatus: fleet.StatusAvailable,
		ManualBlocks: []fleet.Block{{ID: "b1", Range: rng(t, "2024-07-01", "2024-07-03")}},
		BookedRanges: []fleet.BookedRange{{Reference: "CR-1", Range: rng(t, "2024-08-01", "2024-08-05")}},
	}
	checker := NewChecker(nil)

	assert.True(t, checker.IsAvailable(car, day(time.August, 2), day(time.August, 4)))

	d := checker.Check(car, RequestedRange(day(time.July, 3), day(time.July, 6)))
	assert.False(t, d.Available)
	assert.Equal(t, ReasonManualBlock, d.Reason)
	require.NotNil(t, d.Conflict)
	assert.Equal(t, "b1", d.Reference)
}

func TestAutomaticChecksBlocksBeforeBookings(t *testing.T) {
	shared := rng(t, "2024-07-01", "2024-07-03")
	car := &fleet.Car{
		ID:           "c1",
		ManualStatus: fleet.StatusAutomatic,
		ManualBlocks: []fleet.Block{{ID: "b1", Range: shared}},
		BookedRanges: []fleet.BookedRange{{Reference: "CR-1", Range: shared}, {Reference: "CR-2", Range: rng(t, "2024-07-10", "2024-07-12")}},
	}
	checker := NewChecker(nil)

	d := checker.Check(car, RequestedRange(day(time.July, 2), day(time.July, 2)))
	assert.Equal(t, ReasonManualBlock, d.Reason)

	d = checker.Check(car, RequestedRange(day(time.July, 12), day(time.July, 14)))
	assert.False(t, d.Available)
	assert.Equal(t, ReasonBooking, d.Reason)
	assert.Equal(t, "CR-2", d.Reference)

	d = checker.Check(car, RequestedRange(day(time.July, 4), day(time.July, 9)))
	assert.True(t, d.Available)
	assert.Equal(t, ReasonFree, d.Reason)
}

func TestSameDayTurnoverConflicts(t *testing.T) {
	car := &fleet.Car{
		ID:           "c1",
		BookedRanges: []fleet.BookedRange{{Reference: "CR-1", Range: rng(t, "2024-07-01", "2024-07-05")}},
	}
	checker := NewChecker(nil)
	assert.False(t, checker.IsAvailable(car, day(time.July, 5), day(time.July, 8)))
	assert.True(t, checker.IsAvailable(car, day(time.July, 6), day(time.July, 8)))
}

func TestMalformedEntriesAreSkipped(t *testing.T) {
	car := &fleet.Car{
		ID: "c1",
		ManualBlocks: []fleet.Block{
			{ID: "broken"},
			{ID: "inverted", Range: daterange.Range{Start: day(time.July, 9), End: day(time.July, 1)}},
		},
		BookedRanges: []fleet.BookedRange{{Reference: "CR-1", Range: rng(t, "2024-07-20", "2024-07-22")}},
	}
	checker := NewChecker(nil)

	d := checker.Check(car, RequestedRange(day(time.July, 2), day(time.July, 4)))
	assert.True(t, d.Available)
	assert.Equal(t, 2, d.Skipped)

	d = checker.Check(car, RequestedRange(day(time.July, 21), day(time.July, 21)))
	assert.False(t, d.Available)
	assert.Equal(t, ReasonBooking, d.Reason)
}

func TestInvertedRequestIsPickupDay(t *testing.T) {
	r := RequestedRange(day(time.July, 5), day(time.July, 1))
	assert.Equal(t, 1, r.Days())
	assert.Equal(t, day(time.July, 5), r.Start)
}

func TestOverlapsIsSymmetric(t *testing.T) {
	a := rng(t, "2024-07-01", "2024-07-05")
	b := rng(t, "2024-07-05", "2024-07-07")
	assert.True(t, Overlaps(a, b))
	assert.True(t, Overlaps(b, a))
}

func TestCanceledSnapshotBookingDoesNotBlock(t *testing.T) {
	var raw fleet.RawCar
	require.NoError(t, json.Unmarshal([]byte(`{"id":"c1","manual_status":"automatic",
		"booked_ranges":[{"start":"2024-07-01","end":"2024-07-05","status":"canceled"}]}`), &raw))
	car, _, err := fleet.Normalize(raw, nil)
	require.NoError(t, err)

	assert.True(t, NewChecker(nil).IsAvailable(car, day(time.July, 2), day(time.July, 3)))
}
