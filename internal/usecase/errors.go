package usecase

import (
	"errors"
	"net/http"

	"FinScreen/internal/domain/models"
	xhttp "FinScreen/pkg/http"
)

// Pre-flight validation failures. All are warnings: they never reach the
// backend and never touch configuration or prior results.
var (
	ErrNoSymbols      = xhttp.NewAppError("ERR_NO_SYMBOLS", "symbols", "please enter at least one symbol", http.StatusBadRequest).AsWarning()
	ErrNoIndex        = xhttp.NewAppError("ERR_NO_INDEX", "selected_index", "please select an index", http.StatusBadRequest).AsWarning()
	ErrUnknownIndex   = xhttp.NewAppError("ERR_UNKNOWN_INDEX", "selected_index", "unknown index", http.StatusBadRequest).AsWarning()
	ErrInvalidSymbols = xhttp.NewAppError("ERR_INVALID_SYMBOLS", "symbols", "invalid symbols", http.StatusBadRequest).AsWarning()
	ErrInvalidCSV     = xhttp.NewAppError("ERR_INVALID_CSV", "file", "invalid CSV file", http.StatusBadRequest).AsWarning()
	ErrNoFeatures     = xhttp.NewAppError("ERR_NO_FEATURES", "features", "please select at least one feature", http.StatusBadRequest).AsWarning()
	ErrUnknownField   = xhttp.NewAppError("ERR_UNKNOWN_FIELD", "field", "unknown configuration field", http.StatusBadRequest).AsWarning()
	ErrInvalidValue   = xhttp.NewAppError("ERR_INVALID_VALUE", "value", "invalid value", http.StatusBadRequest).AsWarning()
	ErrRunInProgress  = xhttp.NewAppError("ERR_RUN_IN_PROGRESS", "", "a screening run is already in progress", http.StatusConflict).AsWarning()
	ErrRunSuperseded  = xhttp.NewAppError("ERR_RUN_SUPERSEDED", "", "the run was reset before its results arrived", http.StatusConflict).AsWarning()
	ErrNoResults      = xhttp.NewAppError("ERR_NO_RESULTS", "", "no results to export", http.StatusNotFound).AsWarning()
)

// ErrScreenFailed wraps remote failures of the screen call.
var ErrScreenFailed = xhttp.NewAppError("ERR_SCREEN_FAILED", "", "screening failed", http.StatusBadGateway)

// statusFor turns an error into a banner: warnings for local validation
// failures, errors for everything else.
func statusFor(err error) models.Status {
	level := models.LevelError
	var ae *xhttp.AppError
	if errors.As(err, &ae) && ae.Level == xhttp.LevelWarning {
		level = models.LevelWarning
	}
	return models.Status{Level: level, Message: xhttp.ErrorDetail(err)}
}
