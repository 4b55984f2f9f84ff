package service

import (
	"context"
	"errors"
	"time"

	"github.com/contactrelay/mailgateway/internal/metrics"
	"github.com/contactrelay/mailgateway/internal/model"
	"github.com/contactrelay/mailgateway/pkg/circuitbreaker"
	"github.com/contactrelay/mailgateway/pkg/mailer"
	"go.uber.org/zap"
)

// DeliveryService is the outbound channel adapter. Every network send runs
// through the "mailer" circuit breaker; callers never invoke the transport
// directly.
type DeliveryService interface {
	Send(ctx context.Context, msg *model.Message) (mailer.Receipt, error)
	TestConnection(ctx context.Context) error
	Configured() bool
}

type delivery struct {
	mailer  mailer.Mailer
	breaker *circuitbreaker.Breaker
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewDeliveryService(m mailer.Mailer, breaker *circuitbreaker.Breaker,
	metrics *metrics.Metrics, logger *zap.Logger) DeliveryService {
	return &delivery{mailer: m, breaker: breaker, metrics: metrics, logger: logger}
}

func (d *delivery) Send(ctx context.Context, msg *model.Message) (mailer.Receipt, error) {
	email := mailer.Email{
		SenderName:    msg.SenderName,
		SenderAddress: msg.SenderAddress,
		Body:          msg.Body,
		Context:       msg.Context,
	}
	if msg.Phone != nil {
		email.Phone = *msg.Phone
	}

	start := time.Now()

	var receipt mailer.Receipt
	err := d.breaker.Do(ctx, func(ctx context.Context) error {
		r, sendErr := d.mailer.Send(ctx, email)
		if sendErr != nil {
			return sendErr
		}
		receipt = r
		return nil
	})

	elapsed := time.Since(start)

	if err == nil {
		if d.metrics != nil {
			d.metrics.RecordDelivery("success", elapsed)
		}
		return receipt, nil
	}

	if errors.Is(err, circuitbreaker.ErrOpen) {
		if d.metrics != nil {
			d.metrics.BreakerRejections.WithLabelValues(d.breaker.Name()).Inc()
		}
		d.logger.Warn("Delivery rejected, circuit open",
			zap.String("messageID", msg.ID))
		return mailer.Receipt{}, err
	}

	if d.metrics != nil {
		d.metrics.RecordDelivery("failure", elapsed)
	}

	d.logger.Warn("Delivery attempt failed",
		zap.Error(err),
		zap.String("messageID", msg.ID),
		zap.String("errorCode", mailer.CodeOf(err)),
		zap.Duration("duration", elapsed))

	return mailer.Receipt{}, err
}

func (d *delivery) TestConnection(ctx context.Context) error {
	return d.mailer.TestConnection(ctx)
}

func (d *delivery) Configured() bool {
	return d.mailer.Configured()
}
