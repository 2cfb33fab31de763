// Code generated by Wire. DO NOT EDIT.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

package di

import (
	"SignalFuse/pkg/config"
	"SignalFuse/pkg/server"
)

// Injectors from wire.go:

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, err
	}
	service, err := ProvideCache(cfg)
	if err != nil {
		return nil, err
	}
	stores, err := ProvideStores(cfg, service, logger)
	if err != nil {
		return nil, err
	}
	quoteProvider := ProvideQuoteProvider(cfg, logger)
	severityScorer := ProvideScorer()
	anomalyDetector := ProvideDetector(cfg, severityScorer)
	metrics := ProvideMetrics()
	auditLog := ProvideAuditLog(logger)
	marketStreamer := ProvideStreamer(cfg, stores, quoteProvider, anomalyDetector, metrics, auditLog, logger)
	producer, err := ProvideKafkaProducer(cfg)
	if err != nil {
		return nil, err
	}
	queueService, err := ProvideQueue(service, logger)
	if err != nil {
		return nil, err
	}
	alertSink := ProvideAlertSink(cfg, producer, queueService)
	fusionEngine := ProvideFusion(cfg, stores, alertSink, metrics, auditLog, logger)
	handler := ProvideJobsHandler(marketStreamer, fusionEngine, stores, logger)
	consumer, err := ProvideKafkaConsumer(cfg)
	if err != nil {
		return nil, err
	}
	kafkaEventsHandler := ProvideEventsHandler(cfg, stores, metrics)
	app := ProvideApp(cfg, logger, handler, marketStreamer, fusionEngine, consumer, kafkaEventsHandler, quoteProvider, alertSink, stores, service, queueService)
	return app, nil
}
