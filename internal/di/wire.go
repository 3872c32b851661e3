//go:build wireinject
// +build wireinject

package di

import (
	"BarPulse/pkg/config"
	"BarPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideClickHouseBarStore,
		ProvideBarStore,
		ProvideHealthChecker,

		// Query pipeline
		ProvideLevelResolver,
		ProvideBarQueryService,
		ProvideMetaSearcher,
		ProvideRateLimiter,

		// Transport
		ProvideBarsHandler,
		ProvideStreamGateway,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
