package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"FinScreen/internal/domain/models"
	"FinScreen/internal/services/results"
	"FinScreen/internal/usecase"
	xhttp "FinScreen/pkg/http"
	xlogger "FinScreen/pkg/logger"

	"github.com/labstack/echo/v4"
)

const maxUploadBytes = 1 << 20

// ConfigService is the screener form.
type ConfigService interface {
	Snapshot() models.ScreenerConfig
	SetField(ctx context.Context, f models.ConfigField, value interface{}) error
	SaveToServer(ctx context.Context) error
}

// SymbolImporter imports symbols from CSV uploads.
type SymbolImporter interface {
	ImportCSV(ctx context.Context, src io.Reader) ([]string, error)
}

// RunService drives screening runs and serves their results.
type RunService interface {
	Run(ctx context.Context) (*models.RunSummary, error)
	Reset(ctx context.Context)
	DismissStatus(ctx context.Context)
	Snapshot() models.RunSnapshot
	Table(q results.Query) ([]models.ResultRow, string)
	Select(ctx context.Context, stock string) error
	Export(w io.Writer, q results.Query) error
}

// BackendService is the pass-through part of the backend API.
type BackendService interface {
	Indices(ctx context.Context) (map[string]models.IndexEntry, error)
	Logs(ctx context.Context) (string, error)
	ClearCache(ctx context.Context) error
}

// ResultsResponse is the body of GET /api/screener/results.
type ResultsResponse struct {
	Rows     []models.ResultRow `json:"rows"`
	Total    int                `json:"total"`
	Columns  []string           `json:"columns"`
	Selected string             `json:"selected,omitempty"`
	HasRun   bool               `json:"has_run"`
}

// RunResponse is the body of POST /api/screener/run.
type RunResponse struct {
	Summary *models.RunSummary `json:"summary"`
	State   models.RunSnapshot `json:"state"`
}

type selectRequest struct {
	Stock string `json:"stock" validate:"required"`
}

type ScreenerHandler struct {
	logger  *xlogger.Logger
	config  ConfigService
	symbols SymbolImporter
	runs    RunService
	backend BackendService
	events  http.Handler
}

func NewScreenerHandler(logger *xlogger.Logger, config ConfigService, symbols SymbolImporter, runs RunService, backend BackendService, events http.Handler) *ScreenerHandler {
	return &ScreenerHandler{logger: logger, config: config, symbols: symbols, runs: runs, backend: backend, events: events}
}

func (h *ScreenerHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/screener")
	g.GET("/config", h.Config)
	g.PUT("/config/:field", h.SetField)
	g.POST("/config/sync", h.SyncConfig)
	g.GET("/indices", h.Indices)
	g.POST("/symbols/csv", h.ImportCSV)
	g.POST("/run", h.Run)
	g.POST("/reset", h.Reset)
	g.GET("/status", h.Status)
	g.DELETE("/status", h.DismissStatus)
	g.GET("/results", h.Results)
	g.PUT("/results/selected", h.Select)
	g.GET("/results/export", h.Export)
	g.GET("/logs", h.Logs)
	g.POST("/cache/clear", h.ClearCache)
	if h.events != nil {
		g.GET("/events", echo.WrapHandler(h.events))
	}
}

func (h *ScreenerHandler) Config(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.config.Snapshot())
}

func (h *ScreenerHandler) SetField(c echo.Context) error {
	req := &models.SetFieldRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	field := models.ConfigField(c.Param("field"))
	if err := h.config.SetField(c.Request().Context(), field, req.Value); err != nil {
		return h.fail(c, "set config field", err)
	}
	return xhttp.SuccessResponse(c, h.config.Snapshot())
}

func (h *ScreenerHandler) SyncConfig(c echo.Context) error {
	if err := h.config.SaveToServer(c.Request().Context()); err != nil {
		return h.fail(c, "save config to backend", err)
	}
	return xhttp.NoContentResponse(c)
}

func (h *ScreenerHandler) Indices(c echo.Context) error {
	indices, err := h.backend.Indices(c.Request().Context())
	if err != nil {
		return h.fail(c, "load indices", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, indices)
}

// ImportCSV accepts a multipart "file" field or the CSV as the raw body.
func (h *ScreenerHandler) ImportCSV(c echo.Context) error {
	var src io.Reader
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return h.fail(c, "open upload", xhttp.BadRequestErrorf("could not open upload: %v", err))
		}
		defer f.Close()
		src = f
	} else {
		src = c.Request().Body
	}

	data, err := io.ReadAll(io.LimitReader(src, maxUploadBytes+1))
	if err != nil {
		return h.fail(c, "read upload", usecase.ErrInvalidCSV.Derivef("could not read upload: %v", err).WithError(err))
	}
	if len(data) > maxUploadBytes {
		return h.fail(c, "read upload", usecase.ErrInvalidCSV.Derivef("file too large, the limit is %d bytes", maxUploadBytes))
	}

	symbols, err := h.symbols.ImportCSV(c.Request().Context(), bytes.NewReader(data))
	if err != nil {
		return h.fail(c, "import csv", err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"symbols": symbols,
		"config":  h.config.Snapshot(),
	})
}

// Run blocks until the run settles. The run is detached from the request
// so a dropped connection does not abort a screen in progress.
func (h *ScreenerHandler) Run(c echo.Context) error {
	ctx := context.WithoutCancel(c.Request().Context())
	summary, err := h.runs.Run(ctx)
	if err != nil {
		return h.fail(c, "run screener", err)
	}
	return xhttp.SuccessResponse(c, RunResponse{Summary: summary, State: h.runs.Snapshot()})
}

func (h *ScreenerHandler) Reset(c echo.Context) error {
	h.runs.Reset(c.Request().Context())
	return xhttp.SuccessResponse(c, h.runs.Snapshot())
}

func (h *ScreenerHandler) Status(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.runs.Snapshot())
}

func (h *ScreenerHandler) DismissStatus(c echo.Context) error {
	h.runs.DismissStatus(c.Request().Context())
	return xhttp.NoContentResponse(c)
}

func (h *ScreenerHandler) Results(c echo.Context) error {
	rows, selected := h.runs.Table(queryFrom(c))
	return xhttp.SuccessResponse(c, ResultsResponse{
		Rows:     rows,
		Total:    len(rows),
		Columns:  results.ExportColumns(rows),
		Selected: selected,
		HasRun:   h.runs.Snapshot().HasRun,
	})
}

func (h *ScreenerHandler) Select(c echo.Context) error {
	req := &selectRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.runs.Select(c.Request().Context(), req.Stock); err != nil {
		return h.fail(c, "select row", err)
	}
	return xhttp.SuccessResponse(c, h.runs.Snapshot())
}

func (h *ScreenerHandler) Export(c echo.Context) error {
	var buf bytes.Buffer
	if err := h.runs.Export(&buf, queryFrom(c)); err != nil {
		return h.fail(c, "export results", err)
	}
	name := fmt.Sprintf("screening_results_%s.csv", time.Now().Format("20060102_150405"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *ScreenerHandler) Logs(c echo.Context) error {
	logs, err := h.backend.Logs(c.Request().Context())
	if err != nil {
		return h.fail(c, "load backend logs", err)
	}
	return xhttp.SuccessResponse(c, map[string]string{"logs": logs})
}

func (h *ScreenerHandler) ClearCache(c echo.Context) error {
	if err := h.backend.ClearCache(c.Request().Context()); err != nil {
		return h.fail(c, "clear backend cache", err)
	}
	return xhttp.NoContentResponse(c)
}

// fail maps err to a response. A session that expired mid-call is reported
// as such even when a usecase wrapped it.
func (h *ScreenerHandler) fail(c echo.Context, op string, err error) error {
	if errors.Is(err, xhttp.ErrSessionExpired) {
		return xhttp.AppErrorResponse(c, xhttp.ErrSessionExpired)
	}
	if usecase.IsWarning(err) {
		h.logger.Debug(op+" rejected", xlogger.Error(err))
	} else {
		h.logger.Error(op+" failed", xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, err)
}

func queryFrom(c echo.Context) results.Query {
	return results.Query{
		Recommendations: xhttp.QueryList(c, "recommendation"),
		SortKey:         c.QueryParam("sort"),
		Desc:            strings.EqualFold(c.QueryParam("dir"), "desc"),
	}
}
