package main

import (
	"context"
	"time"

	"github.com/contactrelay/mailgateway/internal/config"
	"github.com/contactrelay/mailgateway/internal/metrics"
	"github.com/contactrelay/mailgateway/internal/repository"
	"github.com/contactrelay/mailgateway/internal/service"
	"github.com/contactrelay/mailgateway/pkg/cache"
	"github.com/contactrelay/mailgateway/pkg/mq"
	"github.com/contactrelay/mailgateway/pkg/mysql"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	sweepInterval   = 30 * time.Second
	cleanupInterval = time.Hour
)

func main() {
	fx.New(
		fx.Provide(
			config.Load,
			zap.NewProduction,
			metrics.NewMetrics,

			NewConnectionDB,
			NewMQConnection,
			NewQueueService,
			NewCache,

			repository.NewMessageRepository,
			repository.NewMessageEventRepository,
			repository.NewTransactionManager,

			NewMessageService,
			service.NewMaintenanceService,
			NewMetricsServer,
		),
		fx.Invoke(runMaintenance),
	).Run()
}

func runMaintenance(cfg *config.Config, maintenance service.MaintenanceService, logger *zap.Logger,
	rabbit *mq.RabbitMQ, metricsServer *metrics.Server, lc fx.Lifecycle) {

	appCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := rabbit.DeclareTopology([]string{cfg.Delivery.Queue}); err != nil {
				logger.Error("declare topology failed", zap.Error(err))
				return err
			}

			metricsServer.Start()

			go func() {
				sweep := time.NewTicker(sweepInterval)
				cleanup := time.NewTicker(cleanupInterval)
				defer sweep.Stop()
				defer cleanup.Stop()

				for {
					select {
					case <-sweep.C:
						if _, err := maintenance.RetryFailedMessages(appCtx, 0); err != nil {
							logger.Error("retry sweep failed", zap.Error(err))
						}
					case <-cleanup.C:
						if _, err := maintenance.CleanupOldMessages(appCtx, 0); err != nil {
							logger.Error("retention cleanup failed", zap.Error(err))
						}
					case <-appCtx.Done():
						logger.Info("maintenance context cancelled")
						return
					}
				}
			}()

			logger.Info("maintenance worker started",
				zap.Duration("sweepInterval", sweepInterval),
				zap.Duration("cleanupInterval", cleanupInterval))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping maintenance worker")
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

// NewMessageService wires the lifecycle manager without a delivery path; the
// maintenance worker only applies status transitions.
func NewMessageService(messageRepo repository.MessageRepository, eventRepo repository.MessageEventRepository,
	txManager repository.TxManager, queue service.QueueService, c cache.Cache, m *metrics.Metrics,
	cfg *config.Config, logger *zap.Logger) service.MessageService {
	return service.NewMessageService(messageRepo, eventRepo, txManager, queue, nil, c, m, cfg, logger)
}

func NewMetricsServer(cfg *config.Config, logger *zap.Logger) *metrics.Server {
	return metrics.NewServer(cfg.Metrics.Port, logger)
}
