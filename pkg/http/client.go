package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"FinScreen/pkg/logger"
)

const (
	MethodGet    = http.MethodGet
	MethodPost   = http.MethodPost
	MethodPut    = http.MethodPut
	MethodDelete = http.MethodDelete
	MethodPatch  = http.MethodPatch
)

// ClientOption configures Client.
type ClientOption func(*Client)

// RequestOptions holds HTTP request parameters.
type RequestOptions struct {
	Method      string
	URL         string
	Headers     map[string]string
	QueryParams map[string][]string
	Body        interface{}

	// Timeout overrides the client default for this call only.
	Timeout time.Duration
	// NoAuth skips attaching the stored bearer token.
	NoAuth bool
	// NoRefresh disables the refresh-and-retry path on 401.
	NoRefresh bool
}

// RequestObserver receives per-request telemetry.
type RequestObserver interface {
	ObserveRequest(method, endpoint string, status int, d time.Duration)
	ObserveRefresh(result string)
}

// Client is the single HTTP client every backend call goes through. When a
// TokenStore and refresh URL are configured it attaches bearer tokens and
// performs at most one silent refresh + retry per request on 401.
type Client struct {
	timeout    time.Duration
	client     *http.Client
	tokens     TokenStore
	refreshURL string
	onExpired  SessionExpiredFunc
	observer   RequestObserver
	log        *logger.Logger
}

// NewClient creates a new HTTP client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		timeout: 30 * time.Second,
		log:     logger.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.client == nil {
		// deadlines are applied per request through the context
		c.client = &http.Client{}
	}
	return c
}

// SendRequest sends an HTTP request and returns the response. A 401 on an
// authenticated request triggers the refresh path; every other status is
// returned to the caller untouched.
func (c *Client) SendRequest(ctx context.Context, opts *RequestOptions) (*http.Response, error) {
	body, err := c.createRequestBody(opts)
	if err != nil {
		return nil, fmt.Errorf("create body: %w", err)
	}

	resp, err := c.dispatch(ctx, opts, body, c.accessToken(ctx, opts))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || !c.canRefresh(opts) {
		return resp, nil
	}

	unauthorized := drainStatusError(resp, opts.URL)
	token, err := c.refreshAccessToken(ctx, unauthorized)
	if err != nil {
		return nil, err
	}

	c.log.Debug("retrying request after token refresh",
		logger.String("method", opts.Method),
		logger.String("url", opts.URL),
	)
	// second dispatch never re-enters the refresh path
	return c.dispatch(ctx, opts, body, token)
}

// SendAndParse sends request and parses JSON response.
func (c *Client) SendAndParse(ctx context.Context, opts *RequestOptions, dest interface{}) error {
	resp, err := c.SendRequest(ctx, opts)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return drainStatusError(resp, opts.URL)
	}

	if dest == nil {
		return nil
	}

	switch v := dest.(type) {
	case *[]byte:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		*v = body
	case *string:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		*v = string(body)
	case io.Writer:
		if _, err := io.Copy(v, resp.Body); err != nil {
			return fmt.Errorf("copy body: %w", err)
		}
	default:
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return fmt.Errorf("decode json: %w", err)
		}
	}

	return nil
}

func (c *Client) dispatch(ctx context.Context, opts *RequestOptions, body []byte, token string) (*http.Response, error) {
	timeout := c.timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}

	req, err := c.buildRequest(ctx, opts, body)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build request: %w", err)
	}
	if token != "" && req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		cancel()
		c.observe(opts, 0, elapsed)
		c.log.Debug("request failed",
			logger.String("method", opts.Method),
			logger.String("url", opts.URL),
			logger.Duration("duration_ms", elapsed),
			logger.Error(err),
		)
		return nil, fmt.Errorf("request failed: %w", err)
	}

	c.observe(opts, resp.StatusCode, elapsed)
	c.log.Debug("request completed",
		logger.String("method", opts.Method),
		logger.String("url", opts.URL),
		logger.Int("status", resp.StatusCode),
		logger.Duration("duration_ms", elapsed),
	)

	// keep the deadline alive until the caller is done with the body
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (c *Client) buildRequest(ctx context.Context, opts *RequestOptions, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, opts.URL, reader)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	c.addQueryParams(req, opts.QueryParams)
	c.addHeaders(req, opts.Headers, body != nil)

	return req, nil
}

// createRequestBody materializes the body once so a retried request can
// replay it byte for byte.
func (c *Client) createRequestBody(opts *RequestOptions) ([]byte, error) {
	if opts.Body == nil {
		return nil, nil
	}

	switch v := opts.Body.(type) {
	case []byte:
		return v, nil
	case *[]byte:
		return *v, nil
	case string:
		return []byte(v), nil
	case io.Reader:
		b, err := io.ReadAll(v)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		return b, nil
	default:
		if formData, ok := opts.Body.(map[string]string); ok {
			if ct := opts.Headers["Content-Type"]; ct == "application/x-www-form-urlencoded" {
				values := url.Values{}
				for k, v := range formData {
					values.Set(k, v)
				}
				return []byte(values.Encode()), nil
			}
		}

		jsonBody, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal json: %w", err)
		}
		return jsonBody, nil
	}
}

func (c *Client) addQueryParams(req *http.Request, params map[string][]string) {
	if len(params) > 0 {
		q := req.URL.Query()
		for key, values := range params {
			for _, value := range values {
				q.Add(key, value)
			}
		}
		req.URL.RawQuery = q.Encode()
	}
}

func (c *Client) addHeaders(req *http.Request, headers map[string]string, hasBody bool) {
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	if req.Header.Get("Content-Type") == "" && hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
}

func (c *Client) observe(opts *RequestOptions, status int, d time.Duration) {
	if c.observer == nil {
		return
	}
	endpoint := opts.URL
	if u, err := url.Parse(opts.URL); err == nil {
		endpoint = u.Path
	}
	c.observer.ObserveRequest(opts.Method, endpoint, status, d)
}

func drainStatusError(resp *http.Response, rawURL string) *StatusError {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return &StatusError{StatusCode: resp.StatusCode, URL: rawURL, Body: bytes.TrimSpace(body)}
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// JoinURL joins a base URL and a relative API path with exactly one slash.
func JoinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// WithTimeout sets the default per-request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.client = hc
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *logger.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithObserver sets the request telemetry sink.
func WithObserver(o RequestObserver) ClientOption {
	return func(c *Client) {
		c.observer = o
	}
}
