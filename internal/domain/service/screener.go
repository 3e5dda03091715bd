package service

import (
	"context"

	"FinScreen/internal/domain/models"
)

// AuthAPI is the backend's account surface.
type AuthAPI interface {
	UserStatus(ctx context.Context) (*models.User, error)
	ObtainToken(ctx context.Context, email, password string) (*models.TokenPair, error)
	UserStatusWithToken(ctx context.Context, access string) (*models.User, error)
	Register(ctx context.Context, req models.RegisterRequest) error
	ConfirmEmail(ctx context.Context, token string) error
}

// ScreenerAPI is the backend's screening surface. ScreenStocks returns rows
// already normalized to canonical columns.
type ScreenerAPI interface {
	Indices(ctx context.Context) (map[string]models.IndexEntry, error)
	ValidateSymbols(ctx context.Context, req models.ValidateSymbolsRequest) (*models.ValidateSymbolsResponse, error)
	ScreenStocks(ctx context.Context, params models.RunParams) ([]models.ResultRow, error)
	Config(ctx context.Context) (*models.ServerConfig, error)
	SaveConfig(ctx context.Context, cfg models.ScreenerConfig) error
	Logs(ctx context.Context) (string, error)
	ClearCache(ctx context.Context) error
}

// Session exposes the authentication state the orchestrator gates on.
type Session interface {
	User() *models.User
	EmailConfirmed() bool
}
