package money

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var ErrInvalidCurrency = errors.New("money: invalid currency code")

// DefaultPrepaymentPercentage is the share of the total paid online at booking time.
const DefaultPrepaymentPercentage = 45.0

// Amounts are kept as float64 currency units through the whole calculation and
// rounded only when presented.

// Round rounds an amount to cents.
func Round(amount float64) float64 {
	return math.Round(amount*100) / 100
}

// NormalizeCurrency validates an ISO-4217 style code and upper-cases it.
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "", ErrInvalidCurrency
	}
	return code, nil
}

// Format renders an amount with two decimals followed by the currency code.
func Format(amount float64, currency string) string {
	return fmt.Sprintf("%.2f %s", Round(amount), currency)
}

// Split is the division of a total into an upfront prepayment and the
// remainder paid at pickup.
type Split struct {
	Percentage float64
	Prepayment float64
	Remaining  float64
}

// SplitPrepayment computes prepayment = total*percentage/100 and remaining =
// total - prepayment. Percentages outside (0, 100] fall back to the default.
func SplitPrepayment(total, percentage float64) Split {
	if percentage <= 0 || percentage > 100 || math.IsNaN(percentage) {
		percentage = DefaultPrepaymentPercentage
	}
	prepayment := total * percentage / 100
	return Split{
		Percentage: percentage,
		Prepayment: prepayment,
		Remaining:  total - prepayment,
	}
}
