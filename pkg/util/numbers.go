package util

import (
	"math"
	"strconv"
	"strings"
)

// ParsePercent parses strings like "12.5%" or "-3 %" into 12.5 / -3.
// The second result is false when s is not a percent string.
func ParsePercent(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasSuffix(s, "%") {
		return 0, false
	}
	return ParseNumber(strings.TrimSuffix(s, "%"))
}

// ParseNumber parses a plain decimal string, tolerating surrounding spaces
// and thousands separators.
func ParseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
