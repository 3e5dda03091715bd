package results

import (
	"sort"
	"strings"

	"FinScreen/internal/domain/models"
)

// Query selects and orders rows for display.
type Query struct {
	// Recommendations keeps rows whose recommendation is in the set; empty keeps all.
	Recommendations []string
	// SortKey is a column key, matched case-insensitively. Empty keeps backend order.
	SortKey string
	Desc    bool
}

// Apply filters and sorts rows without modifying the input slice.
func Apply(rows []models.ResultRow, q Query) []models.ResultRow {
	out := Filter(rows, q.Recommendations)
	if q.SortKey != "" {
		Sort(out, CanonicalKey(q.SortKey), q.Desc)
	}
	return out
}

// Filter returns the rows whose recommendation is in allowed.
func Filter(rows []models.ResultRow, allowed []string) []models.ResultRow {
	out := make([]models.ResultRow, 0, len(rows))
	if len(allowed) == 0 {
		return append(out, rows...)
	}
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[strings.ToUpper(strings.TrimSpace(a))] = struct{}{}
	}
	for _, r := range rows {
		if _, ok := set[r.Recommendation]; ok {
			out = append(out, r)
		}
	}
	return out
}

// sort groups: usable values, then sentinels, then missing cells
const (
	groupValue = iota
	groupSentinel
	groupMissing
)

func group(v models.Value) int {
	switch v.Kind {
	case models.KindSentinel:
		return groupSentinel
	case models.KindMissing:
		return groupMissing
	default:
		return groupValue
	}
}

// Sort orders rows by key in place, stably. Sentinel and missing cells go to
// the end in both directions; only usable values are reversed by desc.
func Sort(rows []models.ResultRow, key string, desc bool) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].Get(key), rows[j].Get(key)
		ga, gb := group(a), group(b)
		if ga != gb {
			return ga < gb
		}
		if ga != groupValue {
			return false
		}
		c := Compare(a, b)
		if desc {
			c = -c
		}
		return c < 0
	})
}

// Compare orders two usable values: numbers, percents and booleans by
// magnitude, text lexically, and numbers before text.
func Compare(a, b models.Value) int {
	na, aok := magnitude(a)
	nb, bok := magnitude(b)
	switch {
	case aok && bok:
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		}
		return 0
	case aok:
		return -1
	case bok:
		return 1
	}
	if c := strings.Compare(strings.ToLower(a.Text), strings.ToLower(b.Text)); c != 0 {
		return c
	}
	return strings.Compare(a.Text, b.Text)
}

func magnitude(v models.Value) (float64, bool) {
	switch v.Kind {
	case models.KindNumber, models.KindPercent:
		return v.Num, true
	case models.KindBool:
		if v.Bool {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// IndexOf returns the position of the row for stock, or -1.
func IndexOf(rows []models.ResultRow, stock string) int {
	for i, r := range rows {
		if strings.EqualFold(r.Stock, stock) {
			return i
		}
	}
	return -1
}
