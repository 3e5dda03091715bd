package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// DataResponse writes API response with status and data.
func DataResponse(c echo.Context, statusCode int, data interface{}) error {
	return c.JSON(statusCode, APIResponse{
		Status:  statusCode,
		Message: http.StatusText(statusCode),
		Data:    data,
	})
}

// SuccessResponse writes success response.
func SuccessResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusOK, data)
}

// CreatedResponse writes created response.
func CreatedResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusCreated, data)
}

// NoContentResponse writes no content response.
func NoContentResponse(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}

// BadRequestResponse writes bad request error.
func BadRequestResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusBadRequest, data)
}

// InternalServerErrorResponse writes internal server error.
func InternalServerErrorResponse(c echo.Context) error {
	return DataResponse(c, http.StatusInternalServerError, []*AppError{InternalError("something went wrong")})
}

// AppErrorResponse writes an error as an API response. AppErrors keep their
// status; backend StatusErrors become 401 when the session is gone and 502
// otherwise, carrying the backend detail. A backend call that ran out of time
// is a 504.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		status := appErr.Status
		if status == 0 {
			status = http.StatusInternalServerError
		}
		if status == http.StatusBadGateway && errors.Is(err, context.DeadlineExceeded) {
			return DataResponse(c, http.StatusGatewayTimeout, []*AppError{upstreamTimeout(appErr.Message)})
		}
		return DataResponse(c, status, []*AppError{appErr})
	}

	var se *StatusError
	if errors.As(err, &se) {
		status := http.StatusBadGateway
		if se.StatusCode == http.StatusUnauthorized {
			status = http.StatusUnauthorized
		}
		upstream := NewAppError("ERR_UPSTREAM", "", se.Detail(), status).WithParam("upstream_status", se.StatusCode)
		return DataResponse(c, status, []*AppError{upstream})
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return DataResponse(c, http.StatusGatewayTimeout, []*AppError{upstreamTimeout("the backend did not answer in time")})
	}

	return InternalServerErrorResponse(c)
}

func upstreamTimeout(message string) *AppError {
	return NewAppError("ERR_UPSTREAM_TIMEOUT", "", message, http.StatusGatewayTimeout)
}
