package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/contactrelay/mailgateway/pkg/mq"
	"go.uber.org/zap"
)

// QueueService puts delivery work items on the shared work queue.
type QueueService interface {
	EnqueueDelivery(ctx context.Context, cmd DeliverCommand, delay time.Duration) error
}

type queue struct {
	publisher mq.Publisher
	queueName string
	logger    *zap.Logger
}

func NewQueueService(publisher mq.Publisher, queueName string, logger *zap.Logger) QueueService {
	return &queue{publisher: publisher, queueName: queueName, logger: logger}
}

func (q *queue) EnqueueDelivery(ctx context.Context, cmd DeliverCommand, delay time.Duration) error {
	body, err := json.Marshal(cmd)
	if err != nil {
		return err
	}

	if err := q.publisher.PublishDelayed(ctx, q.queueName, body, delay); err != nil {
		q.logger.Error("Failed to enqueue delivery work item",
			zap.Error(err),
			zap.String("messageID", cmd.MessageID),
			zap.String("jobID", cmd.JobID))
		return err
	}

	q.logger.Debug("Delivery work item enqueued",
		zap.String("messageID", cmd.MessageID),
		zap.String("jobID", cmd.JobID),
		zap.Duration("delay", delay))

	return nil
}
