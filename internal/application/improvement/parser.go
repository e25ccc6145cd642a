// Package improvement normalizes self-reported improvement figures into a
// single percentage.
package improvement

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	percentPattern    = regexp.MustCompile(`(\d+(?:\.\d+)?)%`)
	multiplierPattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*x`)
)

// Fixed scores for asymptotic rewrites out of quadratic time.
const (
	quadraticToLinearithmic = 50.0
	quadraticToLinear       = 75.0
)

// Parse converts text such as "40% reduction", "2x faster" or
// "O(n^2) to O(n)" into a percentage. Rules are tried in that order and the
// first match wins. Unrecognized text yields 0.
func Parse(text string) (pct float64) {
	defer func() {
		if r := recover(); r != nil {
			pct = 0
		}
	}()

	if m := percentPattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return v
		}
	}

	if m := multiplierPattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return (v - 1) * 100
		}
	}

	lower := strings.ToLower(text)
	if strings.Contains(lower, "o(") && (strings.Contains(lower, "n²") || strings.Contains(lower, "n^2")) {
		switch {
		case strings.Contains(lower, "n log n"):
			return quadraticToLinearithmic
		case strings.Contains(lower, "o(n)"):
			return quadraticToLinear
		}
	}

	return 0
}

// FromValue normalizes a decoded JSON field. Every value goes through Parse
// in its text form, so a bare number such as 40 carries no unit and yields 0,
// the same as the string "40".
func FromValue(v any) float64 {
	switch t := v.(type) {
	case nil:
		return 0
	case string:
		return Parse(t)
	default:
		return Parse(fmt.Sprint(t))
	}
}
