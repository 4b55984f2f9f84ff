package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/contactrelay/mailgateway/internal/metrics"
	"github.com/contactrelay/mailgateway/internal/model"
	"github.com/contactrelay/mailgateway/internal/repository"
	"github.com/contactrelay/mailgateway/pkg/cache"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IngestService persists messages arriving from the polled mailbox. Inbound
// messages are created directly in RECEIVED and never enter the outbound
// lifecycle.
type IngestService interface {
	IngestInbound(ctx context.Context, cmd InboundMessageCommand) (*model.Message, error)
}

type ingest struct {
	messageRepo repository.MessageRepository
	eventRepo   repository.MessageEventRepository
	txManager   repository.TxManager
	cache       cache.Cache
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

func NewIngestService(messageRepo repository.MessageRepository,
	eventRepo repository.MessageEventRepository, txManager repository.TxManager,
	c cache.Cache, m *metrics.Metrics, logger *zap.Logger) IngestService {

	return &ingest{
		messageRepo: messageRepo,
		eventRepo:   eventRepo,
		txManager:   txManager,
		cache:       c,
		metrics:     m,
		logger:      logger,
	}
}

func (s *ingest) IngestInbound(ctx context.Context, cmd InboundMessageCommand) (*model.Message, error) {
	if cmd.SenderAddress == "" {
		return nil, ErrMissingSenderAddress
	}

	now := time.Now()
	msg := &model.Message{
		ID:            uuid.NewString(),
		SenderName:    cmd.SenderName,
		SenderAddress: cmd.SenderAddress,
		Body:          cmd.Body,
		Context: model.JSONMap{
			"subject":     cmd.Subject,
			"mailbox_uid": strconv.FormatUint(uint64(cmd.MailboxUID), 10),
			"received_at": cmd.ReceivedAt.UTC().Format(time.RFC3339),
		},
		Status:    model.MessageStatusReceived,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := s.messageRepo.Create(ctx, msg); err != nil {
			return err
		}

		details := cmd.Subject
		event := &model.MessageEvent{
			ID:        uuid.NewString(),
			MessageID: msg.ID,
			Type:      model.EventTypeInboundReceived,
			Details:   &details,
			CreatedAt: now,
		}
		return s.eventRepo.Create(ctx, event)
	})
	if err != nil {
		if errors.Is(err, repository.ErrMessageDuplicate) {
			return nil, NewServiceError(ErrCodeDatabase, err)
		}

		s.logger.Error("Inbound ingestion transaction failed",
			zap.String("senderAddress", cmd.SenderAddress),
			zap.Uint32("mailboxUID", cmd.MailboxUID),
			zap.Error(err))
		return nil, NewServiceError(ErrCodeDatabase, err)
	}

	if s.metrics != nil {
		s.metrics.InboundIngested.Inc()
	}
	if err := s.cache.Delete(statsCacheKey); err != nil {
		s.logger.Warn("Cache invalidation failed", zap.Error(err))
	}
	if err := s.cache.DeletePrefix(listCachePrefix); err != nil {
		s.logger.Warn("Cache invalidation failed", zap.Error(err))
	}

	s.logger.Info("Inbound message ingested",
		zap.String("messageID", msg.ID),
		zap.String("senderAddress", msg.SenderAddress),
		zap.Uint32("mailboxUID", cmd.MailboxUID))

	return msg, nil
}
