package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Status int         `json:"status"`
	Data   []*AppError `json:"data"`
}

func respond(t *testing.T, err error) (int, envelope) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	require.NoError(t, AppErrorResponse(c, err))

	var body envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, rec.Code, body.Status)
	return rec.Code, body
}

func TestAppErrorResponse(t *testing.T) {
	screenFailed := NewAppError("ERR_SCREEN_FAILED", "", "screening failed", http.StatusBadGateway)

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"app error keeps status", BadRequestError("bad field"), http.StatusBadRequest, "ERR_BAD_REQUEST"},
		{"upstream status", &StatusError{StatusCode: http.StatusInternalServerError, Body: []byte(`{"error":"boom"}`)}, http.StatusBadGateway, "ERR_UPSTREAM"},
		{"upstream unauthorized", &StatusError{StatusCode: http.StatusUnauthorized}, http.StatusUnauthorized, "ERR_UPSTREAM"},
		{"screen timed out", screenFailed.Derive("screening failed").WithError(fmt.Errorf("post: %w", context.DeadlineExceeded)), http.StatusGatewayTimeout, "ERR_UPSTREAM_TIMEOUT"},
		{"bare timeout", fmt.Errorf("get indices: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, "ERR_UPSTREAM_TIMEOUT"},
		{"anything else", errors.New("dial tcp: connection refused"), http.StatusInternalServerError, "ERR_INTERNAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := respond(t, tt.err)
			assert.Equal(t, tt.status, status)
			require.Len(t, body.Data, 1)
			assert.Equal(t, tt.code, body.Data[0].Code)
		})
	}
}

func TestAppErrorResponse_UpstreamDetail(t *testing.T) {
	_, body := respond(t, &StatusError{StatusCode: http.StatusBadRequest, Body: []byte(`{"detail":"unknown feature"}`)})
	require.Len(t, body.Data, 1)
	assert.Equal(t, "unknown feature", body.Data[0].Message)
	assert.EqualValues(t, http.StatusBadRequest, body.Data[0].Params["upstream_status"])
}
