package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	drepo "SignalFuse/internal/domain/repository"
	"SignalFuse/internal/usecase"
	"SignalFuse/pkg/cache"
	pkgch "SignalFuse/pkg/clickhouse"
	"SignalFuse/pkg/config"
	xhttp "SignalFuse/pkg/http"
	pkgkafka "SignalFuse/pkg/kafka"
	applogger "SignalFuse/pkg/logger"
	"SignalFuse/pkg/queue"

	"github.com/robfig/cron/v3"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg      *config.Config
	log      *applogger.Logger
	handler  xhttp.Handler
	streamer *usecase.MarketStreamer
	fusion   *usecase.FusionEngine
	consumer *pkgkafka.Consumer
	kh       pkgkafka.MessageHandler
	quotes   drepo.QuoteProvider
	sink     drepo.AlertSink
	chClient *pkgch.Client
	cache    cache.Service
	queue    queue.QueueService

	httpServer *xhttp.Server
	cron       *cron.Cron
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	handler xhttp.Handler,
	streamer *usecase.MarketStreamer,
	fusion *usecase.FusionEngine,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	quotes drepo.QuoteProvider,
	sink drepo.AlertSink,
	chClient *pkgch.Client,
	c cache.Service,
	q queue.QueueService,
) *App {
	return &App{
		cfg:      cfg,
		log:      log,
		handler:  handler,
		streamer: streamer,
		fusion:   fusion,
		consumer: consumer,
		kh:       kh,
		quotes:   quotes,
		sink:     sink,
		chClient: chClient,
		cache:    c,
		queue:    q,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Websocket-backed providers maintain their own read loop.
	if st, ok := a.quotes.(interface{ Start(context.Context) error }); ok {
		go func() {
			if err := st.Start(ctx); err != nil {
				a.log.Error("quote stream error", applogger.Error(err))
			}
		}()
		a.log.Info("quote stream starting", applogger.Strings("symbols", a.cfg.Quotes.Symbols))
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if a.cfg.Scheduler.Enabled {
		a.cron = cron.New()
		if _, err := a.cron.AddFunc(a.cfg.Scheduler.StreamerEvery, func() {
			if _, err := a.streamer.Run(ctx, "scheduler"); err != nil {
				a.log.Error("scheduled streamer run failed", applogger.Error(err))
			}
		}); err != nil {
			return err
		}
		if _, err := a.cron.AddFunc(a.cfg.Scheduler.FusionEvery, func() {
			a.fusion.Run(ctx, "scheduler")
		}); err != nil {
			return err
		}
		a.cron.Start()
		a.log.Info("scheduler started",
			applogger.String("streamer", a.cfg.Scheduler.StreamerEvery),
			applogger.String("fusion", a.cfg.Scheduler.FusionEvery),
		)
	}

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	if a.cron != nil {
		<-a.cron.Stop().Done()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if err := a.sink.Close(); err != nil {
		a.log.Warn("alert sink close error", applogger.Error(err))
	}
	if q, ok := a.queue.(interface{ Stop(context.Context) error }); ok {
		if err := q.Stop(shutdownCtx); err != nil {
			a.log.Warn("alert queue stop error", applogger.Error(err))
		}
	}
	if err := a.quotes.Close(); err != nil {
		a.log.Warn("quote provider close error", applogger.Error(err))
	}
	if err := a.cache.Close(); err != nil {
		a.log.Warn("cache close error", applogger.Error(err))
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
