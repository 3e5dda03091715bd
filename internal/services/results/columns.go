// Package results turns the backend's loosely keyed screening rows into
// typed rows and builds the filtered, sorted table and its CSV export.
package results

import (
	"fmt"
	"strings"

	"FinScreen/internal/domain/models"
)

// Column keys used by the orchestrator and the table engine.
const (
	ColStock          = "Stock"
	ColRecommendation = "Recommendation"
	ColConverged      = "Converged"
	ColError          = "Error"
)

// Column is one canonical result column.
type Column struct {
	Key    string
	Format func(models.Value) string
}

func percent(v models.Value) string { return fmt.Sprintf("%.2f%%", v.Num) }
func ratio(v models.Value) string   { return fmt.Sprintf("%.2f", v.Num) }
func count(v models.Value) string   { return fmt.Sprintf("%.0f", v.Num) }
func price(v models.Value) string   { return fmt.Sprintf("%.2f", v.Num) }

// Columns is the canonical column list in display order.
var Columns = []Column{
	{Key: ColStock},
	{Key: ColRecommendation},
	{Key: ColConverged},
	{Key: "Current Regime"},
	{Key: "Last Close", Format: price},
	{Key: "Total Return (%)", Format: percent},
	{Key: "Buy & Hold Return (%)", Format: percent},
	{Key: "Annualized Return (%)", Format: percent},
	{Key: "Sharpe Ratio", Format: ratio},
	{Key: "Sortino Ratio", Format: ratio},
	{Key: "Calmar Ratio", Format: ratio},
	{Key: "Max Drawdown (%)", Format: percent},
	{Key: "Win Rate (%)", Format: percent},
	{Key: "Number of Trades", Format: count},
	{Key: "Volatility (%)", Format: percent},
	{Key: "Regime Persistence", Format: ratio},
	{Key: ColError},
}

var canonicalByFold = func() map[string]string {
	m := make(map[string]string, len(Columns))
	for _, c := range Columns {
		m[strings.ToLower(c.Key)] = c.Key
	}
	return m
}()

var columnByKey = func() map[string]Column {
	m := make(map[string]Column, len(Columns))
	for _, c := range Columns {
		m[c.Key] = c
	}
	return m
}()

// CanonicalKey returns the canonical column for key, matched
// case-insensitively, or key itself when there is none.
func CanonicalKey(key string) string {
	if c, ok := canonicalByFold[strings.ToLower(strings.TrimSpace(key))]; ok {
		return c
	}
	return key
}

// Sentinels are placeholder strings the backend puts in numeric columns.
var Sentinels = []string{"No Trades", "N/A", "ERROR", "INCONCLUSIVE", "ERROR_UNEXPECTED"}

var sentinelSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(Sentinels))
	for _, s := range Sentinels {
		m[strings.ToUpper(s)] = struct{}{}
	}
	return m
}()

// IsSentinel reports whether s is a sentinel placeholder.
func IsSentinel(s string) bool {
	_, ok := sentinelSet[strings.ToUpper(strings.TrimSpace(s))]
	return ok
}
