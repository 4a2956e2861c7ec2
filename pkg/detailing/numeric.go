package detailing

import (
	"math"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseNumber parses a locale-formatted number. Whitespace is removed and
// whichever of comma or dot appears last is the decimal separator; the
// other one is a thousands separator. "1.234,56", "1234,56" and "1234.56"
// all yield 1234.56. Repeated dots without a comma are thousands
// separators when every group after the first has three digits, so
// "1.234.567" is 1234567.
// The boolean is false for empty, unparsable or non-finite input, in which
// case the value is 0.
func ParseNumber(raw string) (float64, bool) {
	s := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)
	if s == "" {
		return 0, false
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma > lastDot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	case lastComma >= 0:
		// "1,234.56": the dot is the decimal separator.
		s = strings.ReplaceAll(s, ",", "")
	case strings.Count(s, ".") > 1:
		if !thousandsGrouped(s, ".") {
			return 0, false
		}
		s = strings.ReplaceAll(s, ".", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	v := d.InexactFloat64()
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

func thousandsGrouped(s, sep string) bool {
	parts := strings.Split(s, sep)
	for i, part := range parts {
		if part == "" || part == "-" || part == "+" {
			return false
		}
		if i > 0 && len(part) != 3 {
			return false
		}
	}
	return true
}

// MaxQuantity is the largest count the piece store accepts.
const MaxQuantity = math.MaxInt32

// ParseQuantity parses a count. Fractions are truncated. Negative values and
// values above MaxQuantity are rejected.
func ParseQuantity(raw string) (int, bool) {
	v, ok := ParseNumber(raw)
	if !ok || v < 0 || v > MaxQuantity {
		return 0, false
	}
	return int(v), true
}
