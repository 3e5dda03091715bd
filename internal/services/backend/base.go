package backend

import (
	"context"
	"fmt"
	"time"

	xhttp "FinScreen/pkg/http"
)

// HTTPServiceBase centralizes URL joining and JSON round trips for every
// backend endpoint.
type HTTPServiceBase struct {
	baseURL string
	client  *xhttp.Client
}

// NewHTTPServiceBase wraps client for endpoints under baseURL.
func NewHTTPServiceBase(baseURL string, client *xhttp.Client) *HTTPServiceBase {
	return &HTTPServiceBase{baseURL: baseURL, client: client}
}

type callOption func(*xhttp.RequestOptions)

func withTimeout(d time.Duration) callOption {
	return func(o *xhttp.RequestOptions) { o.Timeout = d }
}

// anonymous marks credential endpoints: no bearer token and no refresh on 401.
func anonymous() callOption {
	return func(o *xhttp.RequestOptions) {
		o.NoAuth = true
		o.NoRefresh = true
	}
}

func withBearer(token string) callOption {
	return func(o *xhttp.RequestOptions) {
		if o.Headers == nil {
			o.Headers = map[string]string{}
		}
		o.Headers["Authorization"] = "Bearer " + token
		o.NoAuth = true
		o.NoRefresh = true
	}
}

func withQuery(key, value string) callOption {
	return func(o *xhttp.RequestOptions) {
		if o.QueryParams == nil {
			o.QueryParams = map[string][]string{}
		}
		o.QueryParams[key] = append(o.QueryParams[key], value)
	}
}

// URL returns the absolute URL of path.
func (b *HTTPServiceBase) URL(path string) string {
	return xhttp.JoinURL(b.baseURL, path)
}

func (b *HTTPServiceBase) do(ctx context.Context, method, path string, payload, dest interface{}, opts ...callOption) error {
	if b.client == nil || b.baseURL == "" {
		return fmt.Errorf("backend http client not initialized")
	}
	req := &xhttp.RequestOptions{
		Method: method,
		URL:    b.URL(path),
		Body:   payload,
	}
	for _, opt := range opts {
		opt(req)
	}
	if err := b.client.SendAndParse(ctx, req, dest); err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	return nil
}

// GetJSON issues GET path and decodes the response into dest.
func (b *HTTPServiceBase) GetJSON(ctx context.Context, path string, dest interface{}, opts ...callOption) error {
	return b.do(ctx, xhttp.MethodGet, path, nil, dest, opts...)
}

// PostJSON posts payload to path and decodes the response into dest.
func (b *HTTPServiceBase) PostJSON(ctx context.Context, path string, payload, dest interface{}, opts ...callOption) error {
	return b.do(ctx, xhttp.MethodPost, path, payload, dest, opts...)
}
