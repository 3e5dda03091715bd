package models

// InputMethod selects where the run's symbols come from.
type InputMethod string

const (
	InputIndex    InputMethod = "index"
	InputCSV      InputMethod = "csv"
	InputFreeText InputMethod = "free-text"
)

// Valid reports whether m is a known input method.
func (m InputMethod) Valid() bool {
	switch m {
	case InputIndex, InputCSV, InputFreeText:
		return true
	}
	return false
}

// Period is the history length requested from the backend.
type Period string

const (
	Period1Y  Period = "1y"
	Period2Y  Period = "2y"
	Period5Y  Period = "5y"
	PeriodMax Period = "max"
)

// Valid reports whether p is a supported period.
func (p Period) Valid() bool {
	switch p {
	case Period1Y, Period2Y, Period5Y, PeriodMax:
		return true
	}
	return false
}

// Interval is the bar size requested from the backend.
type Interval string

const (
	IntervalDay   Interval = "1d"
	IntervalWeek  Interval = "1wk"
	IntervalMonth Interval = "1mo"
)

// Valid reports whether i is a supported interval.
func (i Interval) Valid() bool {
	switch i {
	case IntervalDay, IntervalWeek, IntervalMonth:
		return true
	}
	return false
}

// ConfigField names one persisted field of ScreenerConfig.
type ConfigField string

const (
	FieldInputMethod       ConfigField = "input_method"
	FieldSelectedIndex     ConfigField = "selected_index"
	FieldSymbolsText       ConfigField = "symbols_text"
	FieldExchangeSuffix    ConfigField = "exchange_suffix"
	FieldPeriod            ConfigField = "period"
	FieldInterval          ConfigField = "interval"
	FieldFeatures          ConfigField = "features"
	FieldWindowSize        ConfigField = "window_size"
	FieldMaxStates         ConfigField = "max_states"
	FieldTrainWindow       ConfigField = "train_window"
	FieldUseRollingWindow  ConfigField = "use_rolling_window"
	FieldSlippage          ConfigField = "slippage"
	FieldAvailableFeatures ConfigField = "available_features"
)

// ConfigFields lists every persisted field in a stable order.
var ConfigFields = []ConfigField{
	FieldInputMethod,
	FieldSelectedIndex,
	FieldSymbolsText,
	FieldExchangeSuffix,
	FieldPeriod,
	FieldInterval,
	FieldFeatures,
	FieldWindowSize,
	FieldMaxStates,
	FieldTrainWindow,
	FieldUseRollingWindow,
	FieldSlippage,
	FieldAvailableFeatures,
}

// ScreenerConfig is the in-progress screener form.
type ScreenerConfig struct {
	InputMethod       InputMethod `json:"input_method"`
	SelectedIndex     string      `json:"selected_index"`
	SymbolsText       string      `json:"symbols_text"`
	ExchangeSuffix    string      `json:"exchange_suffix"`
	Period            Period      `json:"period"`
	Interval          Interval    `json:"interval"`
	Features          []string    `json:"features"`
	WindowSize        int         `json:"window_size"`
	MaxStates         int         `json:"max_states"`
	TrainWindow       int         `json:"train_window"`
	UseRollingWindow  bool        `json:"use_rolling_window"`
	Slippage          float64     `json:"slippage"`
	AvailableFeatures []string    `json:"available_features"`
}

// Clone returns a deep copy.
func (c ScreenerConfig) Clone() ScreenerConfig {
	c.Features = append([]string(nil), c.Features...)
	c.AvailableFeatures = append([]string(nil), c.AvailableFeatures...)
	return c
}

// DefaultFeatureCatalog is used when the backend config endpoint is unreachable.
var DefaultFeatureCatalog = []string{
	"returns",
	"log_returns",
	"volatility",
	"volume_change",
	"rsi",
	"macd",
	"bollinger_width",
	"atr",
	"momentum",
}

// DefaultScreenerConfig returns the offline defaults.
func DefaultScreenerConfig() ScreenerConfig {
	return ScreenerConfig{
		InputMethod:       InputIndex,
		Period:            Period2Y,
		Interval:          IntervalDay,
		Features:          []string{"returns", "volatility"},
		WindowSize:        20,
		MaxStates:         3,
		TrainWindow:       252,
		UseRollingWindow:  true,
		Slippage:          0.001,
		AvailableFeatures: append([]string(nil), DefaultFeatureCatalog...),
	}
}

// ServerConfig is the payload of GET config/.
type ServerConfig struct {
	AvailableFeatures []string      `json:"available_features"`
	DefaultFeatures   []string      `json:"default_features"`
	DefaultParams     DefaultParams `json:"default_params"`
}

// DefaultParams are server-side parameter defaults. Pointers distinguish
// "not provided" from zero.
type DefaultParams struct {
	Period           *Period   `json:"period,omitempty"`
	Interval         *Interval `json:"interval,omitempty"`
	WindowSize       *int      `json:"window_size,omitempty"`
	MaxStates        *int      `json:"max_states,omitempty"`
	TrainWindow      *int      `json:"train_window,omitempty"`
	UseRollingWindow *bool     `json:"use_rolling_window,omitempty"`
	Slippage         *float64  `json:"slippage,omitempty"`
}

// IndexEntry is one entry of GET indices/.
type IndexEntry struct {
	Symbols        []string `json:"symbols"`
	ExchangeSuffix string   `json:"exchange_suffix"`
}

// ValidateSymbolsRequest is the body of POST validate_symbols/.
type ValidateSymbolsRequest struct {
	Symbols        []string `json:"symbols"`
	ExchangeSuffix string   `json:"exchange_suffix"`
}

// ValidateSymbolsResponse maps invalid symbols to the backend's reason.
type ValidateSymbolsResponse struct {
	ValidSymbols   []string          `json:"valid_symbols"`
	InvalidSymbols map[string]string `json:"invalid_symbols"`
}

// RunParams is the frozen snapshot sent verbatim to POST screen_stocks/.
type RunParams struct {
	Symbols          []string `json:"symbols" validate:"required,min=1,dive,required"`
	Period           Period   `json:"period" validate:"required,oneof=1y 2y 5y max"`
	Interval         Interval `json:"interval" validate:"required,oneof=1d 1wk 1mo"`
	Features         []string `json:"features" validate:"required,min=1"`
	WindowSize       int      `json:"window_size" validate:"gte=1"`
	MaxStates        int      `json:"max_states" validate:"gte=2,lte=10"`
	TrainWindow      int      `json:"train_window" validate:"gte=1"`
	UseRollingWindow bool     `json:"use_rolling_window"`
	Slippage         float64  `json:"slippage" validate:"gte=0,lt=1"`
}

// SetFieldRequest is the body of PUT /api/screener/config/:field.
type SetFieldRequest struct {
	Value interface{} `json:"value"`
}
