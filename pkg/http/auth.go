package http

import (
	"context"
	"errors"
	"net/http"

	"FinScreen/pkg/logger"
)

// ErrSessionExpired is returned when a 401 could not be recovered by a
// token refresh. The stored tokens have been cleared by the time it is seen.
var ErrSessionExpired = NewAppError("ERR_SESSION_EXPIRED", "", "session expired, please log in again", http.StatusUnauthorized)

// TokenStore is the client's view of the persisted token pair.
type TokenStore interface {
	AccessToken(ctx context.Context) string
	RefreshToken(ctx context.Context) string
	SetAccessToken(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// refreshRotator is implemented by stores that accept a rotated refresh token.
type refreshRotator interface {
	SetRefreshToken(ctx context.Context, token string) error
}

// SessionExpiredFunc is invoked after the tokens were cleared because the
// session could not be recovered. It stands in for "navigate to login".
type SessionExpiredFunc func(ctx context.Context, cause error)

type refreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// WithTokenStore enables bearer authentication from store.
func WithTokenStore(store TokenStore) ClientOption {
	return func(c *Client) {
		c.tokens = store
	}
}

// WithRefreshURL sets the absolute URL of the token refresh endpoint.
// Requests to this URL never trigger the refresh path themselves.
func WithRefreshURL(u string) ClientOption {
	return func(c *Client) {
		c.refreshURL = u
	}
}

// WithSessionExpired sets the hook called when the session is dropped.
func WithSessionExpired(fn SessionExpiredFunc) ClientOption {
	return func(c *Client) {
		c.onExpired = fn
	}
}

// OnSessionExpired replaces the session-expired hook after construction,
// for consumers that are built after the client.
func (c *Client) OnSessionExpired(fn SessionExpiredFunc) {
	c.onExpired = fn
}

func (c *Client) accessToken(ctx context.Context, opts *RequestOptions) string {
	if c.tokens == nil || opts.NoAuth {
		return ""
	}
	return c.tokens.AccessToken(ctx)
}

func (c *Client) canRefresh(opts *RequestOptions) bool {
	if c.tokens == nil || c.refreshURL == "" || opts.NoRefresh {
		return false
	}
	return opts.URL != c.refreshURL
}

// refreshAccessToken exchanges the stored refresh token for a new access
// token. On any failure the session is cleared and the expired hook fires.
func (c *Client) refreshAccessToken(ctx context.Context, unauthorized *StatusError) (string, error) {
	refresh := c.tokens.RefreshToken(ctx)
	if refresh == "" {
		c.log.Warn("401 without refresh token, clearing session", logger.String("url", unauthorized.URL))
		c.expire(ctx, unauthorized)
		c.observeRefresh("missing")
		return "", unauthorized
	}

	var out refreshResponse
	err := c.SendAndParse(ctx, &RequestOptions{
		Method:    MethodPost,
		URL:       c.refreshURL,
		Body:      map[string]string{"refresh": refresh},
		NoAuth:    true,
		NoRefresh: true,
	}, &out)
	if err == nil && out.Access == "" {
		err = errors.New("refresh response carried no access token")
	}
	if err != nil {
		c.log.Warn("token refresh failed, clearing session", logger.Error(err))
		expired := ErrSessionExpired.Derive(ErrSessionExpired.Message).WithError(err)
		c.expire(ctx, expired)
		c.observeRefresh("failed")
		return "", expired
	}

	if err := c.tokens.SetAccessToken(ctx, out.Access); err != nil {
		c.log.Error("persist refreshed access token", logger.Error(err))
	}
	if out.Refresh != "" {
		if rot, ok := c.tokens.(refreshRotator); ok {
			if err := rot.SetRefreshToken(ctx, out.Refresh); err != nil {
				c.log.Error("persist rotated refresh token", logger.Error(err))
			}
		}
	}

	c.log.Info("access token refreshed")
	c.observeRefresh("ok")
	return out.Access, nil
}

func (c *Client) expire(ctx context.Context, cause error) {
	if err := c.tokens.Clear(ctx); err != nil {
		c.log.Error("clear tokens", logger.Error(err))
	}
	if c.onExpired != nil {
		c.onExpired(ctx, cause)
	}
}

func (c *Client) observeRefresh(result string) {
	if c.observer != nil {
		c.observer.ObserveRefresh(result)
	}
}
