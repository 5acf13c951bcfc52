package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Epsilon is the share-count tolerance used when deciding whether a
// position has netted out to zero. Share counts are kept at six decimal
// places, so anything below this is floating-point slop.
const Epsilon = 1e-6

// RoundShares rounds a share count to 6 decimal places.
func RoundShares(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(6).Float64()
	return f
}

// RoundAmount rounds a monetary amount to 2 decimal places.
func RoundAmount(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// IsZeroShares reports whether a share count is zero within Epsilon.
func IsZeroShares(v float64) bool {
	return v <= Epsilon && v >= -Epsilon
}

// ParseDecimal parses a numeric string in either regional convention:
// "1.234,56" (comma decimal) or "1,234.56" (dot decimal), as well as the
// plain forms "1234.56" and "1234,56".
func ParseDecimal(s string) (float64, error) {
	s = strings.TrimSpace(s)

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		// Both present: the rightmost separator is the decimal mark.
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		// Only commas: treat as decimal mark unless it looks like a
		// thousands group ("1,234,567").
		if strings.Count(s, ",") > 1 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	f, _ := d.Float64()
	return f, nil
}
