// Package auth owns the session: the current user, the email confirmation
// flag and the credential exchanges that produce the token pair.
package auth

import (
	"context"
	"net/http"
	"sync"

	"FinScreen/internal/domain/models"
	"FinScreen/internal/domain/repository"
	domsvc "FinScreen/internal/domain/service"
	xhttp "FinScreen/pkg/http"
	"FinScreen/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidCredentials = xhttp.NewAppError("ERR_INVALID_CREDENTIALS", "", "invalid credentials", http.StatusUnauthorized)
	ErrRegistrationFailed = xhttp.NewAppError("ERR_REGISTRATION_FAILED", "", "registration failed", http.StatusBadRequest)
	ErrNotAuthenticated   = xhttp.NewAppError("ERR_NOT_AUTHENTICATED", "", "please log in to run the screener", http.StatusUnauthorized).AsWarning()
	ErrEmailNotConfirmed  = xhttp.NewAppError("ERR_EMAIL_NOT_CONFIRMED", "", "please confirm your email address before running the screener", http.StatusForbidden).AsWarning()
)

// TokenStore is the session's view of the persisted token pair.
type TokenStore interface {
	AccessToken(ctx context.Context) string
	SetPair(ctx context.Context, pair models.TokenPair) error
	Clear(ctx context.Context) error
}

// Manager tracks the authenticated user. Concurrent Initialize and Login
// are not ordered against each other; the last completed call wins.
type Manager struct {
	mu       sync.RWMutex
	user     *models.User
	loading  bool
	api      domsvc.AuthAPI
	tokens   TokenStore
	redirect repository.LoginRedirector
	log      *logger.Logger
}

// NewManager creates a session manager. redirect may be nil.
func NewManager(api domsvc.AuthAPI, tokens TokenStore, redirect repository.LoginRedirector, l *logger.Logger) *Manager {
	if l == nil {
		l = logger.Nop()
	}
	return &Manager{
		api:      api,
		tokens:   tokens,
		redirect: redirect,
		log:      l.With(logger.String("component", "auth")),
	}
}

// Initialize restores the session from the stored access token. Without a
// token the caller is sent to login; a token that does not decode or that
// the backend rejects clears the session. The loading flag is cleared on
// every path.
func (m *Manager) Initialize(ctx context.Context) error {
	m.setLoading(true)
	defer m.setLoading(false)

	token := m.tokens.AccessToken(ctx)
	if token == "" {
		m.setUser(nil)
		m.redirectToLogin(ctx, "no stored session")
		return nil
	}

	if !decodable(token) {
		m.log.Warn("stored access token does not decode, clearing session")
		m.clearSession(ctx)
		m.redirectToLogin(ctx, "stored session is unreadable")
		return nil
	}

	user, err := m.api.UserStatus(ctx)
	if err != nil {
		m.log.Warn("session validation failed, clearing session", logger.Error(err))
		m.clearSession(ctx)
		return err
	}

	m.setUser(user)
	m.log.Info("session restored",
		logger.String("user", user.Username),
		logger.Bool("email_confirmed", user.IsActive),
	)
	return nil
}

// Login exchanges credentials for tokens. The user is fetched with the new
// token before anything is persisted, so a failure leaves the previous
// session untouched.
func (m *Manager) Login(ctx context.Context, email, password string) (*models.User, error) {
	pair, err := m.api.ObtainToken(ctx, email, password)
	if err != nil {
		m.log.Info("login rejected", logger.String("email", email), logger.Error(err))
		return nil, ErrInvalidCredentials.Derive(xhttp.ErrorDetail(err)).WithError(err)
	}

	user, err := m.api.UserStatusWithToken(ctx, pair.Access)
	if err != nil {
		m.log.Warn("user lookup after login failed", logger.Error(err))
		return nil, ErrInvalidCredentials.Derive(xhttp.ErrorDetail(err)).WithError(err)
	}

	if err := m.tokens.SetPair(ctx, *pair); err != nil {
		return nil, xhttp.InternalError("could not persist session").WithError(err)
	}

	m.setUser(user)
	m.log.Info("logged in", logger.String("user", user.Username))
	return user, nil
}

// Register creates the account and logs in with the same credentials.
func (m *Manager) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	if err := m.api.Register(ctx, req); err != nil {
		m.log.Info("registration rejected", logger.String("email", req.Email), logger.Error(err))
		return nil, ErrRegistrationFailed.Derive(xhttp.ErrorDetail(err)).WithError(err)
	}

	user, err := m.Login(ctx, req.Email, req.Password)
	if err != nil {
		return nil, ErrRegistrationFailed.Derive(xhttp.ErrorDetail(err)).WithError(err)
	}
	return user, nil
}

// Logout clears the tokens and the user. It never fails.
func (m *Manager) Logout(ctx context.Context) {
	m.clearSession(ctx)
	m.log.Info("logged out")
}

// ConfirmEmail confirms the address and reloads the user so EmailConfirmed
// reflects it without a new login.
func (m *Manager) ConfirmEmail(ctx context.Context, token string) error {
	if err := m.api.ConfirmEmail(ctx, token); err != nil {
		return xhttp.BadRequestError(xhttp.ErrorDetail(err)).WithError(err)
	}
	if m.tokens.AccessToken(ctx) == "" {
		return nil
	}
	user, err := m.api.UserStatus(ctx)
	if err != nil {
		m.log.Warn("reload user after email confirmation", logger.Error(err))
		return nil
	}
	m.setUser(user)
	return nil
}

// HandleSessionExpired is installed as the HTTP client's session-expired
// hook: the tokens are already gone, so only the user is dropped before
// the redirect.
func (m *Manager) HandleSessionExpired(ctx context.Context, cause error) {
	m.setUser(nil)
	m.redirectToLogin(ctx, xhttp.ErrorDetail(cause))
}

// RequireConfirmed returns nil when a confirmed user is logged in.
func (m *Manager) RequireConfirmed() error {
	u := m.User()
	if u == nil {
		return ErrNotAuthenticated
	}
	if !u.IsActive {
		return ErrEmailNotConfirmed
	}
	return nil
}

// User returns a copy of the current user, or nil.
func (m *Manager) User() *models.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// EmailConfirmed reports whether the current user confirmed their email.
func (m *Manager) EmailConfirmed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user != nil && m.user.IsActive
}

// Session returns a snapshot for display.
func (m *Manager) Session() models.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := models.Session{Loading: m.loading}
	if m.user != nil {
		u := *m.user
		s.User = &u
		s.Authenticated = true
		s.EmailConfirmed = u.IsActive
	}
	return s
}

func (m *Manager) clearSession(ctx context.Context) {
	if err := m.tokens.Clear(ctx); err != nil {
		m.log.Error("clear tokens", logger.Error(err))
	}
	m.setUser(nil)
}

func (m *Manager) redirectToLogin(ctx context.Context, reason string) {
	if m.redirect != nil {
		m.redirect.RedirectToLogin(ctx, reason)
	}
}

func (m *Manager) setUser(u *models.User) {
	m.mu.Lock()
	m.user = u
	m.mu.Unlock()
}

func (m *Manager) setLoading(v bool) {
	m.mu.Lock()
	m.loading = v
	m.mu.Unlock()
}

// decodable reports whether token parses as a JWT. The signature is not
// checked here; the backend does that on user-status/.
func decodable(token string) bool {
	_, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	return err == nil
}

var _ domsvc.Session = (*Manager)(nil)
