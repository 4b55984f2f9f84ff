package consumers

import (
	"context"
	"encoding/json"

	"github.com/contactrelay/mailgateway/internal/service"
	"github.com/contactrelay/mailgateway/pkg/mq"
	"go.uber.org/zap"
)

type DeliverConsumer interface {
	Consume(ctx context.Context) error
}

type deliverConsumer struct {
	service  service.SendService
	consumer mq.Consumer
	queue    string
	logger   *zap.Logger
}

func NewDeliverConsumer(svc service.SendService, consumer mq.Consumer, queue string, logger *zap.Logger) DeliverConsumer {
	return &deliverConsumer{
		service:  svc,
		consumer: consumer,
		queue:    queue,
		logger:   logger,
	}
}

func (c *deliverConsumer) Consume(ctx context.Context) error {
	return c.consumer.Consume(ctx, 1, c.queue, c.handleMessage)
}

func (c *deliverConsumer) handleMessage(ctx context.Context, body []byte) error {
	c.logger.Info("received delivery command", zap.ByteString("body", body))

	var cmd service.DeliverCommand
	if err := json.Unmarshal(body, &cmd); err != nil {
		// Malformed payloads can never succeed on redelivery.
		c.logger.Warn("invalid delivery command", zap.Error(err))
		return err
	}

	return c.service.SendMessage(ctx, cmd)
}
