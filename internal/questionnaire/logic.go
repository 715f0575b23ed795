package questionnaire

import (
	"math"
	"strconv"
	"strings"
)

// ParseNumericRange reads a "min-max" option value such as "0-20". The
// bounds are normalized so min <= max.
func ParseNumericRange(value string) (min, max int, ok bool) {
	parts := strings.SplitN(value, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	lo, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, false
	}
	hi, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, false
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo, hi, true
}

// ResolveNumericDefault picks the starting value of a numeric-range
// question: the server default clamped to the range, or the midpoint when
// no default is given.
func ResolveNumericDefault(min, max int, raw *float64) int {
	midpoint := min + (max-min)/2
	if raw == nil || math.IsNaN(*raw) {
		return midpoint
	}
	rounded := int(math.Round(*raw))
	if rounded < min {
		return min
	}
	if rounded > max {
		return max
	}
	return rounded
}

// ParseDateWindowInDays reads a date option's raw value as a window size
// in days; malformed values mean no window.
func ParseDateWindowInDays(value string) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return n
}

// SelectionsEqual reports whether two selections are identical in content
// and order.
func SelectionsEqual(a, b []SelectedOption) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].OptionID != b[i].OptionID ||
			a[i].Value != b[i].Value ||
			a[i].AnswerKind != b[i].AnswerKind ||
			a[i].NextVariationID != b[i].NextVariationID {
			return false
		}
	}
	return true
}
