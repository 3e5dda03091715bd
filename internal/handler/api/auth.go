package api

import (
	"context"

	"FinScreen/internal/domain/models"
	xhttp "FinScreen/pkg/http"
	xlogger "FinScreen/pkg/logger"

	"github.com/labstack/echo/v4"
)

var errTooManyLogins = xhttp.TooManyRequestsError("too many login attempts, please wait before trying again")

// SessionService is the auth surface the dashboard exposes.
type SessionService interface {
	Login(ctx context.Context, email, password string) (*models.User, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.User, error)
	Logout(ctx context.Context)
	ConfirmEmail(ctx context.Context, token string) error
	Session() models.Session
}

// LoginLimiter throttles login attempts per key.
type LoginLimiter interface {
	Allow(key string) bool
	Reset(key string)
}

type AuthHandler struct {
	logger  *xlogger.Logger
	session SessionService
	limiter LoginLimiter
}

func NewAuthHandler(logger *xlogger.Logger, session SessionService, limiter LoginLimiter) *AuthHandler {
	return &AuthHandler{logger: logger, session: session, limiter: limiter}
}

func (h *AuthHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/auth")
	g.POST("/login", h.Login)
	g.POST("/register", h.Register)
	g.POST("/logout", h.Logout)
	g.GET("/me", h.Me)
	g.GET("/confirm-email", h.ConfirmEmail)
}

func (h *AuthHandler) Login(c echo.Context) error {
	ip := c.RealIP()
	if h.limiter != nil && !h.limiter.Allow(ip) {
		h.logger.Warn("login throttled", xlogger.String("ip", ip))
		return xhttp.AppErrorResponse(c, errTooManyLogins)
	}

	req := &models.LoginRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if _, err := h.session.Login(c.Request().Context(), req.Email, req.Password); err != nil {
		h.logger.Info("login failed", xlogger.String("ip", ip), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if h.limiter != nil {
		h.limiter.Reset(ip)
	}
	return xhttp.SuccessResponse(c, h.session.Session())
}

func (h *AuthHandler) Register(c echo.Context) error {
	req := &models.RegisterRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if _, err := h.session.Register(c.Request().Context(), *req); err != nil {
		h.logger.Info("registration failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.CreatedResponse(c, h.session.Session())
}

func (h *AuthHandler) Logout(c echo.Context) error {
	h.session.Logout(c.Request().Context())
	return xhttp.NoContentResponse(c)
}

func (h *AuthHandler) Me(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.session.Session())
}

func (h *AuthHandler) ConfirmEmail(c echo.Context) error {
	req := &models.ConfirmEmailRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if err := h.session.ConfirmEmail(c.Request().Context(), req.Token); err != nil {
		h.logger.Warn("email confirmation failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, h.session.Session())
}
