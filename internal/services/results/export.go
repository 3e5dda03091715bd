package results

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"

	"FinScreen/internal/domain/models"
)

// ExportColumns returns the canonical columns followed by any pass-through
// keys present in rows, sorted.
func ExportColumns(rows []models.ResultRow) []string {
	cols := make([]string, 0, len(Columns))
	for _, c := range Columns {
		cols = append(cols, c.Key)
	}
	extra := map[string]struct{}{}
	for _, r := range rows {
		for k := range r.Values {
			if _, ok := columnByKey[k]; !ok {
				extra[k] = struct{}{}
			}
		}
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return append(cols, keys...)
}

// FormatCell renders one cell for export: the column formatter for numeric
// values, Yes/No for booleans, the literal text otherwise, "N/A" when absent.
func FormatCell(key string, v models.Value) string {
	switch v.Kind {
	case models.KindMissing:
		return "N/A"
	case models.KindBool:
		if v.Bool {
			return "Yes"
		}
		return "No"
	case models.KindNumber, models.KindPercent:
		if c, ok := columnByKey[key]; ok && c.Format != nil {
			return c.Format(v)
		}
	}
	if v.Text != "" {
		return v.Text
	}
	return fmt.Sprint(v.Raw)
}

// ExportRecords builds the header row and one record per result row.
func ExportRecords(rows []models.ResultRow) (header []string, records [][]string) {
	header = ExportColumns(rows)
	records = make([][]string, 0, len(rows))
	for _, r := range rows {
		rec := make([]string, len(header))
		for i, key := range header {
			rec[i] = FormatCell(key, r.Get(key))
		}
		records = append(records, rec)
	}
	return header, records
}

// WriteCSV writes rows as CSV with a header row.
func WriteCSV(w io.Writer, rows []models.ResultRow) error {
	header, records := ExportRecords(rows)
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}
