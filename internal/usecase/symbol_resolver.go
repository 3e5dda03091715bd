package usecase

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"FinScreen/internal/domain/models"
	"FinScreen/pkg/logger"
)

// SymbolAPI is the backend surface the resolver needs.
type SymbolAPI interface {
	Indices(ctx context.Context) (map[string]models.IndexEntry, error)
	ValidateSymbols(ctx context.Context, req models.ValidateSymbolsRequest) (*models.ValidateSymbolsResponse, error)
}

// SymbolResolver turns the form's input method into a validated,
// suffix-qualified symbol list.
type SymbolResolver struct {
	api    SymbolAPI
	config *ConfigStore
	log    *logger.Logger
}

func NewSymbolResolver(api SymbolAPI, config *ConfigStore, l *logger.Logger) *SymbolResolver {
	if l == nil {
		l = logger.Nop()
	}
	return &SymbolResolver{api: api, config: config, log: l.With(logger.String("component", "symbols"))}
}

// ParseFreeText splits comma separated symbols, trimming and upper-casing
// each and dropping empties.
func ParseFreeText(text string) []string {
	parts := strings.Split(text, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.ToUpper(strings.TrimSpace(p)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ParseCSV reads the "Symbol" column (matched case-insensitively) of a CSV
// document.
func ParseCSV(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrInvalidCSV.Derive("the CSV file is empty")
	}
	if err != nil {
		return nil, ErrInvalidCSV.Derivef("could not read CSV header: %v", err).WithError(err)
	}

	col := -1
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		if strings.EqualFold(strings.TrimSpace(h), "symbol") {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, ErrInvalidCSV.Derive("CSV must have a 'Symbol' column")
	}

	var out []string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, ErrInvalidCSV.Derivef("could not read CSV: %v", err).WithError(err)
		}
		if col >= len(rec) {
			continue
		}
		if s := strings.ToUpper(strings.TrimSpace(rec[col])); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, ErrInvalidCSV.Derive("no symbols found in the 'Symbol' column")
	}
	return out, nil
}

// ImportCSV parses an uploaded CSV and, only on success, writes the symbols
// into the free-text field and switches the input method to free text.
func (r *SymbolResolver) ImportCSV(ctx context.Context, src io.Reader) ([]string, error) {
	symbols, err := ParseCSV(src)
	if err != nil {
		return nil, err
	}
	if err := r.config.SetField(ctx, models.FieldSymbolsText, strings.Join(symbols, ", ")); err != nil {
		return nil, err
	}
	if err := r.config.SetField(ctx, models.FieldInputMethod, models.InputFreeText); err != nil {
		return nil, err
	}
	r.log.Info("symbols imported from CSV", logger.Int("count", len(symbols)))
	return symbols, nil
}

// Resolve returns the raw symbols and the exchange suffix for cfg.
func (r *SymbolResolver) Resolve(ctx context.Context, cfg models.ScreenerConfig) ([]string, string, error) {
	var (
		symbols []string
		suffix  string
	)
	switch cfg.InputMethod {
	case models.InputIndex:
		if cfg.SelectedIndex == "" {
			return nil, "", ErrNoIndex
		}
		indices, err := r.api.Indices(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("load indices: %w", err)
		}
		entry, ok := indices[cfg.SelectedIndex]
		if !ok {
			return nil, "", ErrUnknownIndex.Derivef("unknown index %q", cfg.SelectedIndex)
		}
		symbols = dedupe(entry.Symbols)
		suffix = entry.ExchangeSuffix
	default:
		symbols = dedupe(ParseFreeText(cfg.SymbolsText))
		suffix = strings.TrimSpace(cfg.ExchangeSuffix)
	}
	if len(symbols) == 0 {
		return nil, "", ErrNoSymbols
	}
	return symbols, suffix, nil
}

// Validate asks the backend which symbols exist. Any invalid symbol aborts
// with a warning naming each one; otherwise the valid symbols come back
// with the suffix appended.
func (r *SymbolResolver) Validate(ctx context.Context, symbols []string, suffix string) ([]string, error) {
	bare := make([]string, 0, len(symbols))
	for _, s := range symbols {
		bare = append(bare, stripSuffix(s, suffix))
	}
	bare = dedupe(bare)

	resp, err := r.api.ValidateSymbols(ctx, models.ValidateSymbolsRequest{Symbols: bare, ExchangeSuffix: suffix})
	if err != nil {
		return nil, fmt.Errorf("validate symbols: %w", err)
	}

	if len(resp.InvalidSymbols) > 0 {
		names := make([]string, 0, len(resp.InvalidSymbols))
		for s := range resp.InvalidSymbols {
			names = append(names, s)
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, s := range names {
			if reason := resp.InvalidSymbols[s]; reason != "" {
				parts = append(parts, fmt.Sprintf("%s (%s)", s, reason))
			} else {
				parts = append(parts, s)
			}
		}
		return nil, ErrInvalidSymbols.Derivef("invalid symbols: %s", strings.Join(parts, ", ")).
			WithParam("invalid_symbols", resp.InvalidSymbols)
	}

	out := make([]string, 0, len(resp.ValidSymbols))
	for _, s := range resp.ValidSymbols {
		out = append(out, withSuffix(s, suffix))
	}
	if len(out) == 0 {
		return nil, ErrNoSymbols
	}
	return out, nil
}

// ResolveAndValidate runs Resolve then Validate.
func (r *SymbolResolver) ResolveAndValidate(ctx context.Context, cfg models.ScreenerConfig) ([]string, error) {
	symbols, suffix, err := r.Resolve(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return r.Validate(ctx, symbols, suffix)
}

func stripSuffix(symbol, suffix string) string {
	if hasSuffixFold(symbol, suffix) {
		return symbol[:len(symbol)-len(suffix)]
	}
	return symbol
}

func withSuffix(symbol, suffix string) string {
	if suffix == "" || hasSuffixFold(symbol, suffix) {
		return symbol
	}
	return symbol + suffix
}

// hasSuffixFold compares the tail of the same byte width as suffix, so the
// result is always safe to slice off.
func hasSuffixFold(symbol, suffix string) bool {
	n := len(symbol) - len(suffix)
	return suffix != "" && n >= 0 && strings.EqualFold(symbol[n:], suffix)
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
