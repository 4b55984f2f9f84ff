package service

import (
	"context"
	"fmt"
	"time"

	"github.com/contactrelay/mailgateway/internal/config"
	"github.com/contactrelay/mailgateway/internal/metrics"
	"github.com/contactrelay/mailgateway/internal/model"
	"github.com/contactrelay/mailgateway/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultSweepLimit = 50

// MaintenanceService owns the administrative sweeps: bounded-retry
// re-enqueueing of failed messages and retention cleanup of terminal ones.
// Both are idempotent and return the affected count.
type MaintenanceService interface {
	RetryFailedMessages(ctx context.Context, limit int) (int, error)
	CleanupOldMessages(ctx context.Context, maxAgeDays int) (int64, error)
}

type maintenance struct {
	messageRepo repository.MessageRepository
	eventRepo   repository.MessageEventRepository
	txManager   repository.TxManager
	message     MessageService
	queue       QueueService
	metrics     *metrics.Metrics
	logger      *zap.Logger

	maxRetries int
	retryDelay time.Duration
	maxAgeDays int
}

func NewMaintenanceService(messageRepo repository.MessageRepository,
	eventRepo repository.MessageEventRepository, txManager repository.TxManager,
	message MessageService, queue QueueService, m *metrics.Metrics,
	cfg *config.Config, logger *zap.Logger) MaintenanceService {

	return &maintenance{
		messageRepo: messageRepo,
		eventRepo:   eventRepo,
		txManager:   txManager,
		message:     message,
		queue:       queue,
		metrics:     m,
		logger:      logger,
		maxRetries:  cfg.Delivery.MaxRetries,
		retryDelay:  cfg.Delivery.RetryDelay,
		maxAgeDays:  cfg.Retention.MaxAgeDays,
	}
}

// RetryFailedMessages re-enqueues failed messages that still have retry
// budget, oldest-updated first. Messages at the retry cap stay FAILED until
// an operator intervenes.
func (s *maintenance) RetryFailedMessages(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = defaultSweepLimit
	}

	messages, err := s.messageRepo.FindRetryable(ctx, s.maxRetries, limit)
	if err != nil {
		return 0, NewServiceError(ErrCodeDatabase, err)
	}

	if len(messages) == 0 {
		return 0, nil
	}

	s.logger.Info("Retry sweep selected messages", zap.Int("count", len(messages)))

	swept := 0
	for _, msg := range messages {
		// A fresh job id per retry keeps queue-level deduplication from
		// suppressing the redelivery.
		cmd := DeliverCommand{MessageID: msg.ID, JobID: uuid.NewString()}
		if err := s.queue.EnqueueDelivery(ctx, cmd, s.retryDelay); err != nil {
			s.logger.Error("Failed to enqueue retry, leaving message FAILED",
				zap.String("messageID", msg.ID),
				zap.Error(err))
			continue
		}

		detail := fmt.Sprintf("retry %d of %d scheduled", msg.Retries, s.maxRetries)
		if err := s.message.UpdateStatus(ctx, UpdateStatusCommand{
			MessageID: msg.ID,
			Status:    model.MessageStatusQueued,
			Details:   &detail,
		}); err != nil {
			s.logger.Error("Failed to requeue message status",
				zap.String("messageID", msg.ID),
				zap.Error(err))
			continue
		}

		if s.metrics != nil {
			s.metrics.RetriesSwept.Inc()
		}
		swept++
	}

	s.logger.Info("Retry sweep finished",
		zap.Int("selected", len(messages)),
		zap.Int("swept", swept))

	return swept, nil
}

// CleanupOldMessages removes terminal (SENT/FAILED) messages older than the
// cutoff together with their audit trail. QUEUED and RECEIVED messages are
// never swept.
func (s *maintenance) CleanupOldMessages(ctx context.Context, maxAgeDays int) (int64, error) {
	if maxAgeDays <= 0 {
		maxAgeDays = s.maxAgeDays
	}

	cutoff := time.Now().AddDate(0, 0, -maxAgeDays)

	var deleted int64
	err := s.txManager.WithTx(ctx, func(ctx context.Context) error {
		ids, err := s.messageRepo.FindTerminalIDsBefore(ctx, cutoff)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		if err := s.eventRepo.DeleteByMessageIDs(ctx, ids); err != nil {
			return err
		}

		deleted, err = s.messageRepo.DeleteByIDs(ctx, ids)
		return err
	})
	if err != nil {
		return 0, NewServiceError(ErrCodeDatabase, err)
	}

	if deleted > 0 {
		if s.metrics != nil {
			s.metrics.MessagesCleanedUp.Add(float64(deleted))
		}
		s.logger.Info("Retention cleanup finished",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff))
	}

	return deleted, nil
}
