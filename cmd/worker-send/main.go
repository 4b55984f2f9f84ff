package main

import (
	"context"

	"github.com/contactrelay/mailgateway/internal/config"
	"github.com/contactrelay/mailgateway/internal/consumers"
	"github.com/contactrelay/mailgateway/internal/metrics"
	"github.com/contactrelay/mailgateway/internal/repository"
	"github.com/contactrelay/mailgateway/internal/service"
	"github.com/contactrelay/mailgateway/pkg/cache"
	"github.com/contactrelay/mailgateway/pkg/circuitbreaker"
	"github.com/contactrelay/mailgateway/pkg/mailer"
	"github.com/contactrelay/mailgateway/pkg/mq"
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
			NewMQConnection,
			NewMQConsumer,
			NewQueueService,
			NewCache,
			NewMailer,
			circuitbreaker.NewRegistry,
			NewMailerBreaker,

			repository.NewMessageRepository,
			repository.NewMessageEventRepository,
			repository.NewTransactionManager,

			service.NewDeliveryService,
			service.NewMessageService,
			service.NewSendService,

			NewDeliverConsumer,
			NewMetricsServer,
		),
		fx.Invoke(runDeliverConsumer),
	).Run()
}

func runDeliverConsumer(cfg *config.Config, deliverConsumer consumers.DeliverConsumer, logger *zap.Logger,
	rabbit *mq.RabbitMQ, metricsServer *metrics.Server, lc fx.Lifecycle) {

	appCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := rabbit.DeclareTopology([]string{cfg.Delivery.Queue}); err != nil {
				logger.Error("declare topology failed", zap.Error(err))
				return err
			}
			logger.Info("queue declared", zap.String("queue", cfg.Delivery.Queue))

			metricsServer.Start()

			go func() {
				if err := deliverConsumer.Consume(appCtx); err != nil {
					logger.Error("consumer exited", zap.Error(err))
				}
			}()

			logger.Info("deliver consumer started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping deliver consumer")
			cancel()
			if err := metricsServer.Stop(ctx); err != nil {
				logger.Warn("failed to stop metrics server", zap.Error(err))
			}
			return rabbit.Close()
		},
	})
}

func NewConnectionDB(cfg *config.Config, logger *zap.Logger) (*gorm.DB, error) {
	ctx := context.Background()
	return mysql.NewConnection(ctx, cfg.Database, logger)
}

func NewMQConnection(cfg *config.Config, logger *zap.Logger) (*mq.RabbitMQ, error) {
	return mq.NewConnection(cfg.RabbitMQ, logger)
}

func NewMQConsumer(rabbitMQ *mq.RabbitMQ) (mq.Consumer, error) {
	return rabbitMQ.CreateConsumer()
}

func NewQueueService(cfg *config.Config, rabbit *mq.RabbitMQ, logger *zap.Logger) (service.QueueService, error) {
	publisher, err := rabbit.CreatePublisher()
	if err != nil {
		return nil, err
	}
	return service.NewQueueService(publisher, cfg.Delivery.Queue, logger), nil
}

func NewCache(cfg *config.Config) cache.Cache {
	return cache.NewMemory(cfg.Cache.SweepInterval)
}

func NewMailer(cfg *config.Config, logger *zap.Logger) (mailer.Mailer, error) {
	return mailer.NewSMTP(cfg.Mailer, logger)
}

func NewMailerBreaker(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger,
	registry *circuitbreaker.Registry) *circuitbreaker.Breaker {

	return registry.Register(circuitbreaker.New(circuitbreaker.Config{
		Name:             "mailer",
		WindowSize:       cfg.Breakers.Mailer.WindowSize,
		FailureThreshold: cfg.Breakers.Mailer.FailureThreshold,
		MinCalls:         cfg.Breakers.Mailer.MinCalls,
		CallTimeout:      cfg.Breakers.Mailer.CallTimeout,
		ResetTimeout:     cfg.Breakers.Mailer.ResetTimeout,
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			m.RecordBreakerTransition(name, to.String())
		},
	}))
}

func NewDeliverConsumer(svc service.SendService, consumer mq.Consumer, cfg *config.Config,
	logger *zap.Logger) consumers.DeliverConsumer {
	return consumers.NewDeliverConsumer(svc, consumer, cfg.Delivery.Queue, logger)
}

func NewMetricsServer(cfg *config.Config, logger *zap.Logger) *metrics.Server {
	return metrics.NewServer(cfg.Metrics.Port, logger)
}
