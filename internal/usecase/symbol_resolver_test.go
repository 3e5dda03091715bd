package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"FinScreen/internal/domain/models"
	"FinScreen/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResolver(api *fakeAPI) (*SymbolResolver, *ConfigStore) {
	cs := NewConfigStore(storage.NewMemoryStore(), api, nil)
	return NewSymbolResolver(api, cs, nil), cs
}

func TestParseFreeText(t *testing.T) {
	assert.Equal(t, []string{"TCS", "INFY"}, ParseFreeText(" tcs, infy ,, "))
	assert.Empty(t, ParseFreeText(" , ,"))
	assert.Empty(t, ParseFreeText(""))
}

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{name: "symbol column", input: "Name,Symbol\nTata,tcs\nInfosys, INFY\n", want: []string{"TCS", "INFY"}},
		{name: "case-insensitive header", input: "SYMBOL\nabc\n\nxyz\n", want: []string{"ABC", "XYZ"}},
		{name: "byte order mark", input: "\ufeffsymbol\nabc\n", want: []string{"ABC"}},
		{name: "short rows skipped", input: "Name,Symbol\nonly-name\nX,y\n", want: []string{"Y"}},
		{name: "missing column", input: "Ticker\nTCS\n", wantErr: true},
		{name: "empty file", input: "", wantErr: true},
		{name: "no symbols", input: "Symbol\n\n", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCSV(strings.NewReader(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidCSV)
				assert.True(t, IsWarning(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSymbolResolver_ImportCSVSwitchesToFreeText(t *testing.T) {
	ctx := context.Background()
	r, cs := newResolver(&fakeAPI{})

	symbols, err := r.ImportCSV(ctx, strings.NewReader("Symbol\ntcs\ninfy\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"TCS", "INFY"}, symbols)

	cfg := cs.Snapshot()
	assert.Equal(t, "TCS, INFY", cfg.SymbolsText)
	assert.Equal(t, models.InputFreeText, cfg.InputMethod)
}

func TestSymbolResolver_ImportCSVFailureLeavesConfig(t *testing.T) {
	ctx := context.Background()
	r, cs := newResolver(&fakeAPI{})
	require.NoError(t, cs.SetField(ctx, models.FieldSymbolsText, "AAPL"))

	_, err := r.ImportCSV(ctx, strings.NewReader("Ticker\nTCS\n"))
	require.Error(t, err)

	cfg := cs.Snapshot()
	assert.Equal(t, "AAPL", cfg.SymbolsText)
	assert.Equal(t, models.InputIndex, cfg.InputMethod)
}

func TestSymbolResolver_FreeTextWithSuffix(t *testing.T) {
	api := &fakeAPI{}
	r, _ := newResolver(api)
	cfg := models.DefaultScreenerConfig()
	cfg.InputMethod = models.InputFreeText
	cfg.SymbolsText = "tcs, infy"
	cfg.ExchangeSuffix = ".NS"

	symbols, err := r.ResolveAndValidate(context.Background(), cfg)

	require.NoError(t, err)
	assert.Equal(t, []string{"TCS.NS", "INFY.NS"}, symbols)
	require.Len(t, api.validateReq, 1)
	assert.Equal(t, []string{"TCS", "INFY"}, api.validateReq[0].Symbols)
	assert.Equal(t, ".NS", api.validateReq[0].ExchangeSuffix)
}

func TestSymbolResolver_StripsSuffixBeforeValidation(t *testing.T) {
	api := &fakeAPI{}
	r, _ := newResolver(api)

	symbols, err := r.Validate(context.Background(), []string{"TCS.NS", "INFY", "TCS"}, ".NS")

	require.NoError(t, err)
	assert.Equal(t, []string{"TCS", "INFY"}, api.validateReq[0].Symbols)
	assert.Equal(t, []string{"TCS.NS", "INFY.NS"}, symbols)
}

func TestSymbolResolver_SuffixWithCaseWidthChange(t *testing.T) {
	tests := []struct {
		name      string
		symbols   []string
		suffix    string
		wantBare  []string
		wantFinal []string
	}{
		{
			name:      "suffix longer than symbol once folded",
			symbols:   []string{"I"},
			suffix:    "ı",
			wantBare:  []string{"I"},
			wantFinal: []string{"Iı"},
		},
		{
			name:      "non-ascii suffix already present",
			symbols:   []string{"TCSı", "INFY"},
			suffix:    "ı",
			wantBare:  []string{"TCS", "INFY"},
			wantFinal: []string{"TCSı", "INFYı"},
		},
		{
			name:      "case-insensitive ascii suffix",
			symbols:   []string{"tcs.ns"},
			suffix:    ".NS",
			wantBare:  []string{"tcs"},
			wantFinal: []string{"tcs.NS"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{}
			r, _ := newResolver(api)

			var symbols []string
			var err error
			require.NotPanics(t, func() {
				symbols, err = r.Validate(context.Background(), tt.symbols, tt.suffix)
			})

			require.NoError(t, err)
			require.Len(t, api.validateReq, 1)
			assert.Equal(t, tt.wantBare, api.validateReq[0].Symbols)
			assert.Equal(t, tt.wantFinal, symbols)
		})
	}
}

func TestSymbolResolver_InvalidSymbolsAbort(t *testing.T) {
	api := &fakeAPI{invalid: map[string]string{"FOO": "not found", "BAR": ""}}
	r, _ := newResolver(api)
	cfg := models.DefaultScreenerConfig()
	cfg.InputMethod = models.InputFreeText
	cfg.SymbolsText = "AAPL, FOO, BAR"

	_, err := r.ResolveAndValidate(context.Background(), cfg)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidSymbols)
	assert.True(t, IsWarning(err))
	assert.Contains(t, err.Error(), "BAR, FOO (not found)")
}

func TestSymbolResolver_IndexMode(t *testing.T) {
	api := &fakeAPI{indices: map[string]models.IndexEntry{
		"NIFTY 50": {Symbols: []string{"TCS", "INFY"}, ExchangeSuffix: ".NS"},
	}}
	r, _ := newResolver(api)
	cfg := models.DefaultScreenerConfig()
	cfg.SelectedIndex = "NIFTY 50"
	cfg.ExchangeSuffix = ".BO"

	symbols, err := r.ResolveAndValidate(context.Background(), cfg)

	require.NoError(t, err)
	assert.Equal(t, []string{"TCS.NS", "INFY.NS"}, symbols)

	cfg.SelectedIndex = "DAX"
	_, err = r.ResolveAndValidate(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrUnknownIndex)

	cfg.SelectedIndex = ""
	_, err = r.ResolveAndValidate(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrNoIndex)
}

func TestSymbolResolver_ValidationTransportErrorIsNotAWarning(t *testing.T) {
	api := &fakeAPI{validateErr: errors.New("connection reset")}
	r, _ := newResolver(api)

	_, err := r.Validate(context.Background(), []string{"TCS"}, "")

	require.Error(t, err)
	assert.False(t, IsWarning(err))
}
