package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitPrepaymentInvariant(t *testing.T) {
	totals := []float64{0, 1, 33.33, 108, 238, 1234.567, 99999.99}
	percentages := []float64{1, 10, 33.3, 45, 50, 99.9, 100}
	for _, total := range totals {
		for _, p := range percentages {
			split := SplitPrepayment(total, p)
			assert.InDelta(t, total, split.Prepayment+split.Remaining, 1e-6)
			assert.InDelta(t, total*p/100, split.Prepayment, 1e-9)
			assert.Equal(t, p, split.Percentage)
		}
	}
}

func TestSplitPrepaymentDefaultsPercentage(t *testing.T) {
	for _, p := range []float64{0, -5, 150} {
		split := SplitPrepayment(200, p)
		assert.Equal(t, DefaultPrepaymentPercentage, split.Percentage)
		assert.InDelta(t, 90, split.Prepayment, 1e-9)
		assert.InDelta(t, 110, split.Remaining, 1e-9)
	}
}

func TestRoundAndFormat(t *testing.T) {
	assert.Equal(t, 33.33, Round(33.333333))
	assert.Equal(t, 0.01, Round(0.005))
	assert.Equal(t, "108.00 EUR", Format(108, "EUR"))

	code, err := NormalizeCurrency(" eur ")
	require.NoError(t, err)
	assert.Equal(t, "EUR", code)
	_, err = NormalizeCurrency("EURO")
	assert.ErrorIs(t, err, ErrInvalidCurrency)
}
