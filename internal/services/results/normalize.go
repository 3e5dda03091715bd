package results

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"FinScreen/internal/domain/models"
	"FinScreen/pkg/util"
)

// NormalizeRows converts raw backend rows into typed rows.
func NormalizeRows(raw []map[string]interface{}) []models.ResultRow {
	rows := make([]models.ResultRow, 0, len(raw))
	for _, r := range raw {
		rows = append(rows, NormalizeRow(r))
	}
	return rows
}

// NormalizeRow maps raw keys onto canonical columns case-insensitively and
// classifies every value. Unmatched keys pass through verbatim. When two raw
// keys fold to the same column the exact-case key wins, then the first key
// in byte order.
func NormalizeRow(raw map[string]interface{}) models.ResultRow {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make(map[string]models.Value, len(raw))
	exact := make(map[string]bool, len(raw))
	for _, k := range keys {
		canon := CanonicalKey(k)
		if _, seen := values[canon]; seen && (exact[canon] || k != canon) {
			continue
		}
		values[canon] = Classify(raw[k])
		exact[canon] = k == canon
	}

	row := models.ResultRow{Values: values}
	row.Stock = strings.TrimSpace(row.Get(ColStock).Text)
	row.Recommendation = strings.ToUpper(strings.TrimSpace(row.Get(ColRecommendation).Text))
	row.Converged = truthy(row.Get(ColConverged))
	if e := row.Get(ColError); e.Kind != models.KindMissing {
		row.Error = e.Text
	}
	return row
}

// Classify types a decoded JSON value.
func Classify(v interface{}) models.Value {
	switch t := v.(type) {
	case nil:
		return models.Value{Kind: models.KindMissing}
	case bool:
		text := "false"
		if t {
			text = "true"
		}
		return models.Value{Kind: models.KindBool, Bool: t, Text: text, Raw: t}
	case float64:
		return models.Value{Kind: models.KindNumber, Num: t, Text: trimFloat(t), Raw: t}
	case int:
		return models.Value{Kind: models.KindNumber, Num: float64(t), Text: fmt.Sprint(t), Raw: t}
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return models.Value{Kind: models.KindText, Text: t.String(), Raw: t}
		}
		return models.Value{Kind: models.KindNumber, Num: f, Text: t.String(), Raw: t}
	case string:
		s := strings.TrimSpace(t)
		switch {
		case s == "":
			return models.Value{Kind: models.KindMissing, Raw: t}
		case IsSentinel(s):
			return models.Value{Kind: models.KindSentinel, Text: s, Raw: t}
		}
		if f, ok := util.ParsePercent(s); ok {
			return models.Value{Kind: models.KindPercent, Num: f, Text: s, Raw: t}
		}
		if f, ok := util.ParseNumber(s); ok {
			return models.Value{Kind: models.KindNumber, Num: f, Text: s, Raw: t}
		}
		return models.Value{Kind: models.KindText, Text: s, Raw: t}
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return models.Value{Kind: models.KindText, Text: fmt.Sprint(t), Raw: t}
		}
		return models.Value{Kind: models.KindText, Text: string(b), Raw: t}
	}
}

func truthy(v models.Value) bool {
	switch v.Kind {
	case models.KindBool:
		return v.Bool
	case models.KindNumber:
		return v.Num != 0
	case models.KindText:
		switch strings.ToLower(v.Text) {
		case "true", "yes", "y":
			return true
		}
	}
	return false
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// AutoSelect returns the index of the row to select after a run: the first
// converged row, else the first row, else -1.
func AutoSelect(rows []models.ResultRow) int {
	for i, r := range rows {
		if r.Converged {
			return i
		}
	}
	if len(rows) > 0 {
		return 0
	}
	return -1
}
