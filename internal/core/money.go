// Package core provides money parsing and handling utilities.
//
// Money is carried as decimal dollars during aggregation and as signed
// integer cents across the store boundary. Conversion to float64 only
// happens in the chart renderer.
package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")

	hundred = decimal.NewFromInt(100)
)

// ParseAmount parses a statement amount into an exact decimal.
//
// Surrounding whitespace, a leading currency sign and thousands separators
// are tolerated:
//
//	ParseAmount("-12.34")    -> -12.34
//	ParseAmount("$1,200.00") -> 1200
//	ParseAmount("-$5")       -> -5
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

// RoundHalfUp rounds to two decimal places, halves away from zero.
//
//	RoundHalfUp(1.005)  -> 1.01
//	RoundHalfUp(-1.005) -> -1.01
func RoundHalfUp(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FormatMoney renders a decimal with exactly two places, rounding half-up.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// ToCents converts dollars to signed integer cents, rounding half-up on
// any sub-cent remainder.
func ToCents(d decimal.Decimal) int64 {
	return d.Mul(hundred).Round(0).IntPart()
}

// FromCents converts signed integer cents to dollars, exact to the cent.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// CentsToDollars is the reporting boundary conversion: cents / 100 rounded
// half-up to two places.
func CentsToDollars(cents int64) decimal.Decimal {
	return RoundHalfUp(decimal.NewFromInt(cents).Div(hundred))
}

// Average divides a total by a count. A zero count is a caller bug: groups
// are always built from at least one row.
func Average(total decimal.Decimal, count int) decimal.Decimal {
	if count <= 0 {
		panic("core: average over an empty group")
	}
	return total.Div(decimal.NewFromInt(int64(count)))
}
