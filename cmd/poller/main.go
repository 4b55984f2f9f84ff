package main

import (
	"context"

	"github.com/contactrelay/mailgateway/internal/config"
	"github.com/contactrelay/mailgateway/internal/metrics"
	"github.com/contactrelay/mailgateway/internal/poller"
	"github.com/contactrelay/mailgateway/internal/repository"
	"github.com/contactrelay/mailgateway/internal/service"
	"github.com/contactrelay/mailgateway/pkg/cache"
	"github.com/contactrelay/mailgateway/pkg/circuitbreaker"
	"github.com/contactrelay/mailgateway/pkg/mailbox"
	"github.com/contactrelay/mailgateway/pkg/mysql"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	fx.New(
		fx.Provide(
			config.Load,
			zap.NewProduction,
			metrics.NewMetrics,

			NewConnectionDB,
			NewCache,
			NewMailboxClient,
			circuitbreaker.NewRegistry,
			NewMailboxBreaker,

			repository.NewMessageRepository,
			repository.NewMessageEventRepository,
			repository.NewTransactionManager,

			service.NewIngestService,

			NewPoller,
			NewMetricsServer,
		),
		fx.Invoke(runPoller),
	).Run()
}

func runPoller(p *poller.Poller, logger *zap.Logger, metricsServer *metrics.Server, lc fx.Lifecycle) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			metricsServer.Start()
			p.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			p.Stop()
			if err := metricsServer.Stop(ctx); err != nil {
				logger.Warn("failed to stop metrics server", zap.Error(err))
			}
			return nil
		},
	})
}

func NewConnectionDB(cfg *config.Config, logger *zap.Logger) (*gorm.DB, error) {
	ctx := context.Background()
	return mysql.NewConnection(ctx, cfg.Database, logger)
}

func NewCache(cfg *config.Config) cache.Cache {
	return cache.NewMemory(cfg.Cache.SweepInterval)
}

func NewMailboxClient(cfg *config.Config, logger *zap.Logger) mailbox.Client {
	return mailbox.NewIMAP(cfg.Mailbox, logger)
}

func NewMailboxBreaker(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger,
	registry *circuitbreaker.Registry) *circuitbreaker.Breaker {

	return registry.Register(circuitbreaker.New(circuitbreaker.Config{
		Name:             "mailbox",
		WindowSize:       cfg.Breakers.Mailbox.WindowSize,
		FailureThreshold: cfg.Breakers.Mailbox.FailureThreshold,
		MinCalls:         cfg.Breakers.Mailbox.MinCalls,
		CallTimeout:      cfg.Breakers.Mailbox.CallTimeout,
		ResetTimeout:     cfg.Breakers.Mailbox.ResetTimeout,
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			m.RecordBreakerTransition(name, to.String())
		},
	}))
}

func NewPoller(client mailbox.Client, ingest service.IngestService, breaker *circuitbreaker.Breaker,
	m *metrics.Metrics, cfg *config.Config, logger *zap.Logger) *poller.Poller {
	return poller.New(client, ingest, breaker, m, cfg.Poller, logger)
}

func NewMetricsServer(cfg *config.Config, logger *zap.Logger) *metrics.Server {
	return metrics.NewServer(cfg.Metrics.Port, logger)
}
