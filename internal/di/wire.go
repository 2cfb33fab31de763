//go:build wireinject
// +build wireinject

package di

import (
	"SignalFuse/pkg/config"
	"SignalFuse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,
		ProvideAuditLog,
		ProvideScorer,

		// Infrastructure
		ProvideCache,
		ProvideQueue,
		ProvideStores,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideAlertSink,
		ProvideQuoteProvider,

		// Use cases
		ProvideDetector,
		ProvideStreamer,
		ProvideFusion,
		ProvideEventsHandler,

		// Surface
		ProvideJobsHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
