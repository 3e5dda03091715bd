//go:build wireinject
// +build wireinject

package di

import (
	"FinScreen/internal/domain/repository"
	"FinScreen/internal/service/events"
	"FinScreen/pkg/config"
	"FinScreen/pkg/server"

	"github.com/google/wire"
)

var infraSet = wire.NewSet(
	// Infrastructure clients
	ProvideKafkaProducer,
	ProvideLogger,
	ProvideClickHouseClient,
	ProvideStorage,

	// Metrics
	ProvideMetrics,
)

var screenerSet = wire.NewSet(
	ProvideTokenStore,
	ProvideHTTPClient,
	ProvideBackendClient,
	ProvideAuthManager,

	// Use cases
	ProvideConfigStore,
	ProvideSymbolResolver,
	ProvideSinks,
	ProvideOrchestrator,
)

// InitializeApp wires up all dependencies and returns the dashboard server.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		infraSet,
		screenerSet,

		ProvideEventHub,
		wire.Bind(new(repository.LoginRedirector), new(*events.Hub)),
		wire.Bind(new(repository.StatusNotifier), new(*events.Hub)),

		ProvideLoginLimiter,
		ProvideHandlers,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}

// InitializeScreener wires the services used by the command line client.
// Wire will generate the implementation of this function.
func InitializeScreener(cfg *config.Config, redirect repository.LoginRedirector, notifier repository.StatusNotifier) (*Screener, error) {
	wire.Build(
		infraSet,
		screenerSet,
		ProvideScreener,
	)
	return &Screener{}, nil
}
