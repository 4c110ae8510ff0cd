//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"FinValue/pkg/config"
	"FinValue/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisClient,
		ProvideKafkaProducer,
		ProvideClickHouseClient,

		// Repositories and external services
		ProvideRateLimiter,
		ProvideDataProvider,
		ProvidePriceFeed,
		ProvideResultStore,
		ProvideResultSinks,
		ProvideJobCache,

		// Use cases
		ProvideCompsAnalysis,
		ProvideDCFAnalysis,
		ProvideHistory,
		ProvideJobTracker,
		ProvideValuationJobHandler,
		ProvideJobSubmitter,

		// Transport
		ProvideJobQueue,
		ProvideKafkaConsumer,
		ProvideHTTPHandler,
		ProvideHTTPServer,

		ProvideApp,
	)
	return &server.App{}, nil
}
