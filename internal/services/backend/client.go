// Package backend is the typed client for the remote screening API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"FinScreen/internal/domain/models"
	domsvc "FinScreen/internal/domain/service"
	"FinScreen/internal/service/cache"
	"FinScreen/internal/services/results"
	xhttp "FinScreen/pkg/http"
	"FinScreen/pkg/logger"
)

// Endpoint paths relative to the API base URL.
const (
	PathUserStatus   = "user-status/"
	PathRegister     = "register/"
	PathToken        = "token/"
	PathTokenRefresh = "token/refresh/"
	PathConfirmEmail = "confirm-email/"
	PathIndices      = "indices/"
	PathValidate     = "validate_symbols/"
	PathScreen       = "screen_stocks/"
	PathConfig       = "config/"
	PathClearCache   = "clear_cache/"
	PathLogs         = "logs/"
)

const indicesKey = "indices"

// Options tunes the backend client.
type Options struct {
	ScreenTimeout   time.Duration
	IndicesCacheTTL time.Duration
}

// Client implements the AuthAPI and ScreenerAPI over HTTP.
type Client struct {
	base    *HTTPServiceBase
	opts    Options
	indices *cache.TTLCache[map[string]models.IndexEntry]
	log     *logger.Logger
}

// NewClient creates a backend client.
func NewClient(baseURL string, hc *xhttp.Client, opts Options, l *logger.Logger) *Client {
	if opts.ScreenTimeout <= 0 {
		opts.ScreenTimeout = 5 * time.Minute
	}
	if l == nil {
		l = logger.Nop()
	}
	return &Client{
		base:    NewHTTPServiceBase(baseURL, hc),
		opts:    opts,
		indices: cache.NewTTLCache[map[string]models.IndexEntry](),
		log:     l.With(logger.String("component", "backend")),
	}
}

// UserStatus validates the stored access token and returns the user.
func (c *Client) UserStatus(ctx context.Context) (*models.User, error) {
	var u models.User
	if err := c.base.GetJSON(ctx, PathUserStatus, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UserStatusWithToken fetches the user for a token that is not persisted yet.
func (c *Client) UserStatusWithToken(ctx context.Context, access string) (*models.User, error) {
	var u models.User
	if err := c.base.GetJSON(ctx, PathUserStatus, &u, withBearer(access)); err != nil {
		return nil, err
	}
	return &u, nil
}

// ObtainToken exchanges credentials for a token pair.
func (c *Client) ObtainToken(ctx context.Context, email, password string) (*models.TokenPair, error) {
	var pair models.TokenPair
	body := map[string]string{"email": email, "password": password}
	if err := c.base.PostJSON(ctx, PathToken, body, &pair, anonymous()); err != nil {
		return nil, err
	}
	if pair.Access == "" {
		return nil, fmt.Errorf("%s: response carried no access token", PathToken)
	}
	return &pair, nil
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) error {
	return c.base.PostJSON(ctx, PathRegister, req, nil, anonymous())
}

// ConfirmEmail confirms an address with the emailed token.
func (c *Client) ConfirmEmail(ctx context.Context, token string) error {
	return c.base.GetJSON(ctx, PathConfirmEmail, nil, withQuery("token", token))
}

// Indices returns the index catalog, cached for IndicesCacheTTL.
func (c *Client) Indices(ctx context.Context) (map[string]models.IndexEntry, error) {
	if c.opts.IndicesCacheTTL > 0 {
		if v, ok := c.indices.Get(indicesKey); ok {
			return v, nil
		}
	}
	var out map[string]models.IndexEntry
	if err := c.base.GetJSON(ctx, PathIndices, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]models.IndexEntry{}
	}
	if c.opts.IndicesCacheTTL > 0 {
		c.indices.Set(indicesKey, out, c.opts.IndicesCacheTTL)
	}
	return out, nil
}

// ValidateSymbols asks the backend which symbols exist.
func (c *Client) ValidateSymbols(ctx context.Context, req models.ValidateSymbolsRequest) (*models.ValidateSymbolsResponse, error) {
	var out models.ValidateSymbolsResponse
	if err := c.base.PostJSON(ctx, PathValidate, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ScreenStocks runs the remote screen. The call may legitimately take
// minutes and uses ScreenTimeout instead of the client default.
func (c *Client) ScreenStocks(ctx context.Context, params models.RunParams) ([]models.ResultRow, error) {
	var raw json.RawMessage
	if err := c.base.PostJSON(ctx, PathScreen, params, &raw, withTimeout(c.opts.ScreenTimeout)); err != nil {
		return nil, err
	}
	rows, err := decodeRows(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", PathScreen, err)
	}
	return results.NormalizeRows(rows), nil
}

// decodeRows accepts a bare array or an object wrapping it in "results".
func decodeRows(raw json.RawMessage) ([]map[string]interface{}, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []map[string]interface{}{}, nil
	}
	var rows []map[string]interface{}
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, fmt.Errorf("decode rows: %w", err)
		}
		return rows, nil
	}
	var wrapped struct {
		Results []map[string]interface{} `json:"results"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	if wrapped.Results == nil {
		return []map[string]interface{}{}, nil
	}
	return wrapped.Results, nil
}

// Config fetches the feature catalog and parameter defaults.
func (c *Client) Config(ctx context.Context) (*models.ServerConfig, error) {
	var out models.ServerConfig
	if err := c.base.GetJSON(ctx, PathConfig, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveConfig stores the configuration server-side.
func (c *Client) SaveConfig(ctx context.Context, cfg models.ScreenerConfig) error {
	return c.base.PostJSON(ctx, PathConfig, cfg, nil)
}

// Logs returns the backend's log text. JSON bodies of the form
// {"logs": "..."} or {"logs": ["..."]} are unwrapped.
func (c *Client) Logs(ctx context.Context) (string, error) {
	var body []byte
	if err := c.base.GetJSON(ctx, PathLogs, &body); err != nil {
		return "", err
	}
	var wrapped struct {
		Logs json.RawMessage `json:"logs"`
	}
	if json.Unmarshal(body, &wrapped) == nil && len(wrapped.Logs) > 0 {
		var text string
		if json.Unmarshal(wrapped.Logs, &text) == nil {
			return text, nil
		}
		var lines []string
		if json.Unmarshal(wrapped.Logs, &lines) == nil {
			return strings.Join(lines, "\n"), nil
		}
	}
	return string(body), nil
}

// ClearCache invalidates the backend cache and the local index catalog.
func (c *Client) ClearCache(ctx context.Context) error {
	if err := c.base.PostJSON(ctx, PathClearCache, nil, nil); err != nil {
		return err
	}
	c.indices.Clear()
	c.log.Info("backend cache cleared")
	return nil
}

// RefreshURL is the absolute token refresh URL for the HTTP client.
func RefreshURL(baseURL, refreshPath string) string {
	if refreshPath == "" {
		refreshPath = PathTokenRefresh
	}
	return xhttp.JoinURL(baseURL, refreshPath)
}

var (
	_ domsvc.AuthAPI     = (*Client)(nil)
	_ domsvc.ScreenerAPI = (*Client)(nil)
)
