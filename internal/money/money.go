// Package money converts catalog prices to integer minor units.
//
// Amounts are carried as int64 minor units everywhere past ingestion; the
// decimal representation only exists while reading catalog rows.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const defaultExponent = 2

// zero-decimal currencies used by the payment provider
var exponents = map[string]int32{
	"BIF": 0, "CLP": 0, "DJF": 0, "GNF": 0, "JPY": 0, "KMF": 0, "KRW": 0,
	"MGA": 0, "PYG": 0, "RWF": 0, "UGX": 0, "VND": 0, "VUV": 0, "XAF": 0,
	"XOF": 0, "XPF": 0,
}

// Exponent returns the number of minor-unit digits for an ISO currency code.
func Exponent(currency string) int32 {
	if e, ok := exponents[strings.ToUpper(currency)]; ok {
		return e
	}
	return defaultExponent
}

// FromDecimal rounds a major-unit amount half away from zero to minor units.
func FromDecimal(amount decimal.Decimal, currency string) int64 {
	return amount.Shift(Exponent(currency)).Round(0).IntPart()
}

func Parse(amount, currency string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("invalid amount %q: negative", amount)
	}
	return FromDecimal(d, currency), nil
}

func ToDecimal(minor int64, currency string) decimal.Decimal {
	return decimal.New(minor, -Exponent(currency))
}

// Format renders minor units as a plain major-unit string, e.g. 5997 -> "59.97".
func Format(minor int64, currency string) string {
	return ToDecimal(minor, currency).StringFixed(Exponent(currency))
}
