package pricing

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMultipliers(t *testing.T) {
	cfg := DefaultConfig()
	expected := map[int]float64{1: 1, 2: 1, 3: 1, 4: 0.95, 5: 0.95, 6: 0.95, 7: 0.85, 8: 0.85, 30: 0.85}
	for days, want := range expected {
		assert.InDelta(t, want, cfg.Multiplier(days), tolerance, "days=%d", days)
	}
	assert.InDelta(t, 1.0, Config{}.Multiplier(3), tolerance)
}

func TestConfigDocumentParsing(t *testing.T) {
	doc := `{
		"currency": "eur",
		"prepaymentPercentage": 30,
		"extras": {
			"additionalDriver": {"pricePerDay": 8},
			"childSeat": {"pricePerRental": 25},
			"gpsNavigation": 4,
			"fullInsurance": {"basis": "per_day", "amount": 12}
		},
		"durationPricing": {"1-3": 1, "4-6": 0.9, "7+": 0.8}
	}`
	var cfg Config
	require.NoError(t, json.Unmarshal([]byte(doc), &cfg))
	require.NoError(t, cfg.Validate())
	cfg = cfg.Normalized()

	assert.Equal(t, "EUR", cfg.Currency)
	assert.Equal(t, DefaultDailyRate, cfg.DefaultDailyRate)
	assert.Equal(t, ExtraPrice{Basis: PerDay, Amount: 8}, cfg.Extras[ExtraAdditionalDriver])
	assert.Equal(t, ExtraPrice{Basis: PerRental, Amount: 25}, cfg.Extras[ExtraChildSeat])
	assert.Equal(t, ExtraPrice{Basis: PerDay, Amount: 4}, cfg.Extras[ExtraGPSNavigation])
	assert.Equal(t, ExtraPrice{Basis: PerDay, Amount: 12}, cfg.Extras[ExtraFullInsurance])
	assert.InDelta(t, 0.9, cfg.Multiplier(5), tolerance)
	assert.InDelta(t, 0.8, cfg.Multiplier(12), tolerance)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, cfg.Buckets())
}

func TestNormalizedFillsDefaults(t *testing.T) {
	cfg := Config{PrepaymentPercentage: 150, Currency: "euro"}.Normalized()
	assert.Equal(t, DefaultCurrency, cfg.Currency)
	assert.Equal(t, 45.0, cfg.PrepaymentPercentage)
	assert.NotNil(t, cfg.Extras)
	assert.Empty(t, cfg.Extras)
	assert.Len(t, cfg.DurationPricing, 7)
}

func TestValidateRejectsBadDocuments(t *testing.T) {
	bad := []Config{
		{PrepaymentPercentage: 120},
		{PrepaymentPercentage: 0},
		{PrepaymentPercentage: 45, DefaultDailyRate: -1},
		{PrepaymentPercentage: 45, Extras: Catalog{ExtraGPSNavigation: {Basis: PerDay, Amount: -5}}},
		{PrepaymentPercentage: 45, DurationPricing: DurationPricing{3: 0}},
		{PrepaymentPercentage: 45, Currency: "EURO"},
	}
	for _, cfg := range bad {
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	}
	assert.NoError(t, DefaultConfig().Validate())
}

func TestChildSeatIsAlwaysPerRental(t *testing.T) {
	catalog := Catalog{ExtraChildSeat: {Basis: PerDay, Amount: 7}}
	lines := catalog.Lines(Extras{ChildSeat: true}, 5)
	require.Len(t, lines, 1)
	assert.Equal(t, PerRental, lines[0].Basis)
	assert.Equal(t, 1, lines[0].Quantity)
	assert.InDelta(t, 7, catalog.Total(Extras{ChildSeat: true}, 5), tolerance)
}
