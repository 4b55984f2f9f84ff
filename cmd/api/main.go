package main

import (
	"context"

	"github.com/contactrelay/mailgateway/internal/api"
	v1 "github.com/contactrelay/mailgateway/internal/api/v1"
	apivalidator "github.com/contactrelay/mailgateway/internal/api/validator"
	"github.com/contactrelay/mailgateway/internal/config"
	middleware "github.com/contactrelay/mailgateway/internal/error"
	"github.com/contactrelay/mailgateway/internal/metrics"
	"github.com/contactrelay/mailgateway/internal/repository"
	"github.com/contactrelay/mailgateway/internal/service"
	"github.com/contactrelay/mailgateway/pkg/cache"
	"github.com/contactrelay/mailgateway/pkg/circuitbreaker"
	"github.com/contactrelay/mailgateway/pkg/mailer"
	"github.com/contactrelay/mailgateway/pkg/mq"
	"github.com/contactrelay/mailgateway/pkg/mysql"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
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
			NewQueueService,
			NewQueueHealth,
			NewCache,
			NewMailer,
			circuitbreaker.NewRegistry,
			NewMailerBreaker,

			repository.NewMessageRepository,
			repository.NewMessageEventRepository,
			repository.NewTransactionManager,

			service.NewDeliveryService,
			service.NewMessageService,
			service.NewMaintenanceService,
			NewHealthService,

			NewValidator,
			NewFiberApp,
			v1.NewHandler,
			NewMetricsServer,
		),
		fx.Invoke(startServer),
	).Run()
}

func startServer(app *fiber.App, handler *v1.Handler, cfg *config.Config, m *metrics.Metrics,
	logger *zap.Logger, metricsServer *metrics.Server, lc fx.Lifecycle) {

	app.Use(metrics.HTTPMetricsMiddleware(m, logger))
	api.SetupRoutes(app, handler)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			metricsServer.Start()
			go app.Listen(cfg.API.Port)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := metricsServer.Stop(ctx); err != nil {
				logger.Warn("failed to stop metrics server", zap.Error(err))
			}
			return app.ShutdownWithContext(ctx)
		},
	})
}

func NewConnectionDB(cfg *config.Config, logger *zap.Logger) (*gorm.DB, error) {
	ctx := context.Background()
	return mysql.NewConnection(ctx, cfg.Database, logger)
}

// NewMQConnection connects only in queue mode; direct mode runs without a
// broker.
func NewMQConnection(cfg *config.Config, logger *zap.Logger) (*mq.RabbitMQ, error) {
	if cfg.Delivery.Mode == config.DeliveryModeDirect {
		return nil, nil
	}
	return mq.NewConnection(cfg.RabbitMQ, logger)
}

func NewQueueService(cfg *config.Config, rabbit *mq.RabbitMQ, logger *zap.Logger) (service.QueueService, error) {
	if rabbit == nil {
		return nil, nil
	}

	if err := rabbit.DeclareTopology([]string{cfg.Delivery.Queue}); err != nil {
		return nil, err
	}

	publisher, err := rabbit.CreatePublisher()
	if err != nil {
		return nil, err
	}

	return service.NewQueueService(publisher, cfg.Delivery.Queue, logger), nil
}

func NewQueueHealth(rabbit *mq.RabbitMQ) service.QueueHealth {
	if rabbit == nil {
		return nil
	}
	return rabbit
}

func NewCache(cfg *config.Config) cache.Cache {
	return cache.NewMemory(cfg.Cache.SweepInterval)
}

func NewMailer(cfg *config.Config, logger *zap.Logger) (mailer.Mailer, error) {
	return mailer.NewSMTP(cfg.Mailer, logger)
}

func NewMailerBreaker(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger,
	registry *circuitbreaker.Registry) *circuitbreaker.Breaker {
	return registry.Register(circuitbreaker.New(breakerConfig("mailer", cfg.Breakers.Mailer, m, logger)))
}

func NewHealthService(db *gorm.DB, queueHealth service.QueueHealth, delivery service.DeliveryService,
	registry *circuitbreaker.Registry, logger *zap.Logger) service.HealthService {
	return service.NewHealthService(db, queueHealth, delivery, nil, registry, logger)
}

func NewValidator() apivalidator.IXValidator {
	return apivalidator.NewXValidator(validator.New())
}

func NewFiberApp() *fiber.App {
	return fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler()})
}

func NewMetricsServer(cfg *config.Config, logger *zap.Logger) *metrics.Server {
	return metrics.NewServer(cfg.Metrics.Port, logger)
}

func breakerConfig(name string, cfg config.Breaker, m *metrics.Metrics, logger *zap.Logger) circuitbreaker.Config {
	return circuitbreaker.Config{
		Name:             name,
		WindowSize:       cfg.WindowSize,
		FailureThreshold: cfg.FailureThreshold,
		MinCalls:         cfg.MinCalls,
		CallTimeout:      cfg.CallTimeout,
		ResetTimeout:     cfg.ResetTimeout,
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			m.RecordBreakerTransition(name, to.String())
		},
	}
}
