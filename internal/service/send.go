package service

import (
	"context"
	"errors"

	"github.com/contactrelay/mailgateway/internal/model"
	"github.com/contactrelay/mailgateway/internal/repository"
	"github.com/contactrelay/mailgateway/pkg/circuitbreaker"
	"github.com/contactrelay/mailgateway/pkg/mq"
	"go.uber.org/zap"
)

// SendService consumes delivery work items. Failures of a single attempt
// are recorded as message state, never propagated past this boundary; only
// infrastructure trouble is surfaced as temporary so the queue redelivers.
type SendService interface {
	SendMessage(ctx context.Context, cmd DeliverCommand) error
}

type send struct {
	messageRepo repository.MessageRepository
	message     MessageService
	delivery    DeliveryService
	logger      *zap.Logger
}

func NewSendService(messageRepo repository.MessageRepository, message MessageService,
	delivery DeliveryService, logger *zap.Logger) SendService {
	return &send{messageRepo: messageRepo, message: message, delivery: delivery, logger: logger}
}

func (s *send) SendMessage(ctx context.Context, cmd DeliverCommand) error {
	msg, err := s.messageRepo.GetByID(ctx, cmd.MessageID)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			s.logger.Warn("Work item references unknown message, dropping",
				zap.String("messageID", cmd.MessageID),
				zap.String("jobID", cmd.JobID))
			return nil
		}

		return mq.Temporary(err)
	}

	if msg.Status != model.MessageStatusQueued {
		s.logger.Info("Message no longer queued, skipping delivery",
			zap.String("messageID", msg.ID),
			zap.String("status", string(msg.Status)))
		return nil
	}

	receipt, err := s.delivery.Send(ctx, msg)

	if err != nil {
		if errors.Is(err, circuitbreaker.ErrOpen) {
			// Nothing was attempted; let the queue redeliver once the
			// breaker has had a chance to reset.
			return mq.Temporary(err)
		}

		detail := err.Error()
		if updateErr := s.message.UpdateStatus(ctx, UpdateStatusCommand{
			MessageID: msg.ID,
			Status:    model.MessageStatusFailed,
			Details:   &detail,
		}); updateErr != nil {
			return mq.Temporary(updateErr)
		}

		// Failure is contained as state; the retry sweep owns what happens
		// next.
		return nil
	}

	detail := receipt.Detail
	if receipt.MessageRef != "" {
		detail = receipt.MessageRef
	}

	if updateErr := s.message.UpdateStatus(ctx, UpdateStatusCommand{
		MessageID: msg.ID,
		Status:    model.MessageStatusSent,
		Details:   &detail,
	}); updateErr != nil {
		return mq.Temporary(updateErr)
	}

	s.logger.Info("Message delivered",
		zap.String("messageID", msg.ID),
		zap.String("jobID", cmd.JobID),
		zap.Bool("delivered", receipt.Delivered),
		zap.String("messageRef", receipt.MessageRef))

	return nil
}
