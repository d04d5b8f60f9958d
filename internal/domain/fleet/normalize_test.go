package fleet

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawCarAcceptsAliases(t *testing.T) {
	payloads := []string{
		`{"id":"fiat-500","car_make":"Fiat","car_model":"500","manual_status":"available",
		  "manual_blocks":[{"start":"2024-07-01","end":"2024-07-03"}],
		  "booked_ranges":[{"start":"2024-08-01","end":"2024-08-04","status":"confirmed"}],
		  "monthly_pricing":{"January":35,"February":"38"}}`,
		`{"carId":"fiat-500","carMake":"Fiat","carModel":"500","manualStatus":"available",
		  "manualBlocks":[{"startDate":"07/01/2024","endDate":"07/03/2024"}],
		  "bookedRanges":[{"pickupDate":"2024-08-01","returnDate":"2024-08-04","status":"confirmed"}],
		  "monthlyPricing":{"jan":35,"2":38}}`,
		`{"_id":"fiat-500","car":{"make":"Fiat","model":"500"},"manualStatus":"available",
		  "blocks":[{"from":"2024-07-01","to":"2024-07-03"}],
		  "bookings":[{"start":"2024-08-01","end":"2024-08-04","status":"confirmed"}],
		  "pricing":{"1":35,"February":38}}`,
	}
	for _, payload := range payloads {
		var raw RawCar
		require.NoError(t, json.Unmarshal([]byte(payload), &raw))

		car, issues, err := Normalize(raw, nil)
		require.NoError(t, err)
		assert.Empty(t, issues)
		assert.Equal(t, CarID("fiat-500"), car.ID)
		assert.Equal(t, "Fiat 500", car.DisplayName())
		assert.Equal(t, StatusAvailable, car.ManualStatus)
		require.Len(t, car.ManualBlocks, 1)
		assert.Equal(t, 3, car.ManualBlocks[0].Range.Days())
		require.Len(t, car.BookedRanges, 1)
		assert.Equal(t, "confirmed", car.BookedRanges[0].Status)
		rate, ok := car.MonthlyRate(time.January)
		assert.True(t, ok)
		assert.Equal(t, 35.0, rate)
		rate, ok = car.MonthlyRate(time.February)
		assert.True(t, ok)
		assert.Equal(t, 38.0, rate)
	}
}

func TestNormalizeSkipsMalformedEntries(t *testing.T) {
	raw := RawCar{
		ID:           "vw-golf",
		ManualStatus: "sometimes",
		ManualBlocks: []RawRange{
			{Start: "not-a-date", End: "2024-07-03"},
			{Start: "2024-07-10", End: "2024-07-12"},
		},
		BookedRanges: []RawRange{
			{Start: "2024-08-05", End: "2024-08-01", Status: "pending"},
			{Start: "2024-09-01", End: "2024-09-03", Status: "cancelled"},
			{Start: "2024-09-10", End: "2024-09-12", Status: "Confirmed"},
		},
		MonthlyPricing: map[string]string{"Smarch": "40", "March": "-1", "April": "42.5"},
	}
	car, issues, err := Normalize(raw, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusAutomatic, car.ManualStatus)
	require.Len(t, car.ManualBlocks, 1)
	assert.Equal(t, "block-2", car.ManualBlocks[0].ID)
	require.Len(t, car.BookedRanges, 1, "inverted and cancelled ranges are dropped")
	assert.Equal(t, "confirmed", car.BookedRanges[0].Status)
	assert.Equal(t, map[time.Month]float64{time.April: 42.5}, car.MonthlyPricing)

	kinds := map[string]int{}
	for _, issue := range issues {
		kinds[issue.Kind]++
	}
	assert.Equal(t, map[string]int{
		EntryManualStatus: 1,
		EntryManualBlock:  1,
		EntryBookedRange:  1,
		EntryMonthlyRate:  2,
	}, kinds)
}

func TestNormalizeDropsCancelledBookings(t *testing.T) {
	for _, status := range []string{"cancelled", "canceled", " Canceled ", "CANCELLED"} {
		payload := `{"id":"c1","booked_ranges":[
			{"start":"2024-07-01","end":"2024-07-05","status":"` + status + `"},
			{"start":"2024-08-01","end":"2024-08-02","status":"confirmed"}]}`
		var raw RawCar
		require.NoError(t, json.Unmarshal([]byte(payload), &raw))

		car, issues, err := Normalize(raw, nil)
		require.NoError(t, err)
		assert.Empty(t, issues)
		require.Len(t, car.BookedRanges, 1, "status %q", status)
		assert.Equal(t, "confirmed", car.BookedRanges[0].Status)
	}
}

func TestIsCancelledStatus(t *testing.T) {
	assert.True(t, IsCancelledStatus("cancelled"))
	assert.True(t, IsCancelledStatus("Canceled"))
	assert.False(t, IsCancelledStatus("confirmed"))
	assert.False(t, IsCancelledStatus(""))
}

func TestNormalizeRequiresID(t *testing.T) {
	_, _, err := Normalize(RawCar{Name: "nameless"}, nil)
	assert.ErrorIs(t, err, ErrCarIDRequired)
}

func TestParseMonth(t *testing.T) {
	for raw, want := range map[string]time.Month{"January": time.January, "dec": time.December, "7": time.July, " SEPTEMBER ": time.September} {
		got, ok := ParseMonth(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}
	for _, raw := range []string{"", "13", "0", "Juneteenth"} {
		_, ok := ParseMonth(raw)
		assert.False(t, ok, raw)
	}
}
