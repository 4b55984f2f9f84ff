package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/contactrelay/mailgateway/internal/config"
	"github.com/contactrelay/mailgateway/internal/constants"
	"github.com/contactrelay/mailgateway/internal/metrics"
	"github.com/contactrelay/mailgateway/internal/model"
	"github.com/contactrelay/mailgateway/internal/repository"
	"github.com/contactrelay/mailgateway/pkg/cache"
	"github.com/contactrelay/mailgateway/pkg/circuitbreaker"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	statsCacheKey   = "messages:stats"
	listCachePrefix = "messages:list:"
)

func messageCacheKey(id string) string {
	return "messages:detail:" + id
}

func listCacheKey(q GetMessagesQuery) string {
	status := ""
	if q.Status != nil {
		status = string(*q.Status)
	}
	from, to := "", ""
	if q.From != nil {
		from = q.From.UTC().Format(time.RFC3339)
	}
	if q.To != nil {
		to = q.To.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("%s%s:%s:%s:%s:%d:%d", listCachePrefix, status, q.Sender, from, to, q.Limit, q.Offset)
}

type MessageService interface {
	Create(ctx context.Context, cmd CreateMessageCommand) (*model.Message, error)
	UpdateStatus(ctx context.Context, cmd UpdateStatusCommand) error
	GetByID(ctx context.Context, id string) (*MessageDetail, error)
	GetMessages(ctx context.Context, query GetMessagesQuery) (MessagesPage, error)
	GetStats(ctx context.Context) (Stats, error)
}

type message struct {
	messageRepo repository.MessageRepository
	eventRepo   repository.MessageEventRepository
	txManager   repository.TxManager
	queue       QueueService
	delivery    DeliveryService
	cache       cache.Cache
	metrics     *metrics.Metrics
	logger      *zap.Logger

	mode     string
	cacheTTL time.Duration
}

// NewMessageService wires the lifecycle manager. In queue mode the queue
// must be non-nil and delivery is only used by the worker; in direct mode
// the queue stays nil and create sends synchronously. The two paths are
// mutually exclusive to rule out double delivery.
func NewMessageService(messageRepo repository.MessageRepository, eventRepo repository.MessageEventRepository,
	txManager repository.TxManager, queue QueueService, delivery DeliveryService, c cache.Cache,
	m *metrics.Metrics, cfg *config.Config, logger *zap.Logger) MessageService {

	return &message{
		messageRepo: messageRepo,
		eventRepo:   eventRepo,
		txManager:   txManager,
		queue:       queue,
		delivery:    delivery,
		cache:       c,
		metrics:     m,
		logger:      logger,
		mode:        cfg.Delivery.Mode,
		cacheTTL:    cfg.Cache.TTL,
	}
}

func (s *message) Create(ctx context.Context, cmd CreateMessageCommand) (*model.Message, error) {
	now := time.Now()
	msg := &model.Message{
		ID:            uuid.NewString(),
		SenderName:    cmd.SenderName,
		SenderAddress: cmd.SenderAddress,
		Phone:         cmd.Phone,
		Body:          cmd.Body,
		Context:       model.JSONMap(cmd.Context),
		Status:        model.MessageStatusQueued,
		Retries:       0,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err := s.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := s.messageRepo.Create(ctx, msg); err != nil {
			if errors.Is(err, repository.ErrMessageDuplicate) {
				return NewServiceError(constants.ErrCodeDuplicateMessage, err)
			}
			return NewServiceError(ErrCodeDatabase, err)
		}

		event := &model.MessageEvent{
			ID:        uuid.NewString(),
			MessageID: msg.ID,
			Type:      model.EventTypeOutboundQueued,
			CreatedAt: now,
		}
		if err := s.eventRepo.Create(ctx, event); err != nil {
			return NewServiceError(ErrCodeDatabase, err)
		}

		return nil
	})
	if err != nil {
		s.logger.Error("Message creation transaction failed",
			zap.String("senderAddress", cmd.SenderAddress),
			zap.Error(err))
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.MessagesCreated.Inc()
	}
	s.invalidate(statsCacheKey)
	s.invalidateLists()

	s.logger.Info("Message created",
		zap.String("messageID", msg.ID),
		zap.String("senderAddress", msg.SenderAddress))

	// Delivery outcome is observable only through later status reads; a
	// persisted message never fails its creation call.
	if s.mode == config.DeliveryModeDirect {
		s.sendNow(ctx, msg)
		return msg, nil
	}

	s.enqueue(ctx, msg.ID)

	return msg, nil
}

func (s *message) enqueue(ctx context.Context, messageID string) {
	cmd := DeliverCommand{MessageID: messageID, JobID: uuid.NewString()}
	if err := s.queue.EnqueueDelivery(ctx, cmd, 0); err == nil {
		return
	}

	// Transitioning to FAILED hands the message to the retry sweep instead
	// of leaving it stranded in QUEUED.
	detail := "enqueue failed"
	updateErr := s.UpdateStatus(ctx, UpdateStatusCommand{
		MessageID: messageID,
		Status:    model.MessageStatusFailed,
		Details:   &detail,
	})
	if updateErr != nil {
		s.logger.Error("Failed to record enqueue failure",
			zap.String("messageID", messageID),
			zap.Error(updateErr))
	}
}

func (s *message) sendNow(ctx context.Context, msg *model.Message) {
	receipt, err := s.delivery.Send(ctx, msg)

	if err != nil {
		if errors.Is(err, circuitbreaker.ErrOpen) {
			// No attempt was made, but FAILED is the only state the retry
			// sweep picks up.
			detail := "delivery suppressed, circuit open"
			s.applyTransition(ctx, msg.ID, model.MessageStatusFailed, &detail)
			return
		}

		detail := err.Error()
		s.applyTransition(ctx, msg.ID, model.MessageStatusFailed, &detail)
		return
	}

	detail := receipt.Detail
	if receipt.MessageRef != "" {
		detail = receipt.MessageRef
	}
	s.applyTransition(ctx, msg.ID, model.MessageStatusSent, &detail)
}

func (s *message) applyTransition(ctx context.Context, id string, status model.MessageStatus, details *string) {
	err := s.UpdateStatus(ctx, UpdateStatusCommand{MessageID: id, Status: status, Details: details})
	if err != nil {
		s.logger.Error("Failed to apply delivery status transition",
			zap.String("messageID", id),
			zap.String("status", string(status)),
			zap.Error(err))
	}
}

// UpdateStatus atomically updates the message row and appends the matching
// event. Retries increment only on transitions into FAILED. Repeated calls
// with the same target status are not deduplicated; callers own calling it
// once per real transition.
func (s *message) UpdateStatus(ctx context.Context, cmd UpdateStatusCommand) error {
	eventType, ok := model.EventTypeForStatus(cmd.Status)
	if !ok {
		return ErrUnknownMessageStatus
	}

	incrementRetries := cmd.Status == model.MessageStatusFailed

	err := s.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := s.messageRepo.UpdateStatus(ctx, cmd.MessageID, cmd.Status, cmd.Details, incrementRetries); err != nil {
			return err
		}

		event := &model.MessageEvent{
			ID:        uuid.NewString(),
			MessageID: cmd.MessageID,
			Type:      eventType,
			Details:   cmd.Details,
			CreatedAt: time.Now(),
		}
		return s.eventRepo.Create(ctx, event)
	})

	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return ErrMessageNotFound
		}

		s.logger.Error("Status transition failed",
			zap.String("messageID", cmd.MessageID),
			zap.String("status", string(cmd.Status)),
			zap.Error(err))
		return NewServiceError(ErrCodeDatabase, err)
	}

	s.invalidate(messageCacheKey(cmd.MessageID))
	s.invalidate(statsCacheKey)
	s.invalidateLists()

	return nil
}

func (s *message) GetByID(ctx context.Context, id string) (*MessageDetail, error) {
	if cached, ok := s.cacheGet(messageCacheKey(id)); ok {
		if detail, ok := cached.(*MessageDetail); ok {
			return detail, nil
		}
	}

	msg, err := s.messageRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, NewServiceError(ErrCodeDatabase, err)
	}

	events, err := s.eventRepo.ListByMessageID(ctx, id)
	if err != nil {
		return nil, NewServiceError(ErrCodeDatabase, err)
	}

	detail := &MessageDetail{Message: *msg, Events: events}
	s.cacheSet(messageCacheKey(id), detail)

	return detail, nil
}

func (s *message) GetMessages(ctx context.Context, query GetMessagesQuery) (MessagesPage, error) {
	if query.Limit <= 0 || query.Limit > 100 {
		query.Limit = 20
	}
	if query.Offset < 0 {
		query.Offset = 0
	}

	key := listCacheKey(query)
	if cached, ok := s.cacheGet(key); ok {
		if page, ok := cached.(MessagesPage); ok {
			return page, nil
		}
	}

	filter := repository.MessageFilter{
		Status: query.Status,
		Sender: query.Sender,
		From:   query.From,
		To:     query.To,
	}

	messages, err := s.messageRepo.Find(ctx, filter, query.Limit, query.Offset)
	if err != nil {
		return MessagesPage{}, NewServiceError(ErrCodeDatabase, err)
	}

	total, err := s.messageRepo.Count(ctx, filter)
	if err != nil {
		return MessagesPage{}, NewServiceError(ErrCodeDatabase, err)
	}

	page := MessagesPage{Messages: messages, Total: total, Limit: query.Limit, Offset: query.Offset}
	s.cacheSet(key, page)

	return page, nil
}

func (s *message) GetStats(ctx context.Context) (Stats, error) {
	if cached, ok := s.cacheGet(statsCacheKey); ok {
		if stats, ok := cached.(Stats); ok {
			return stats, nil
		}
	}

	now := time.Now()

	byStatus, err := s.messageRepo.CountByStatus(ctx)
	if err != nil {
		return Stats{}, NewServiceError(ErrCodeDatabase, err)
	}

	var total int64
	statusCounts := make(map[string]int64, len(byStatus))
	for status, count := range byStatus {
		statusCounts[string(status)] = count
		total += count
	}

	last24h, err := s.messageRepo.CountCreatedSince(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return Stats{}, NewServiceError(ErrCodeDatabase, err)
	}

	last7d, err := s.messageRepo.CountCreatedSince(ctx, now.Add(-7*24*time.Hour))
	if err != nil {
		return Stats{}, NewServiceError(ErrCodeDatabase, err)
	}

	stats := Stats{
		Total:       total,
		ByStatus:    statusCounts,
		Last24h:     last24h,
		Last7d:      last7d,
		GeneratedAt: now,
	}
	s.cacheSet(statsCacheKey, stats)

	return stats, nil
}

// Cache failures degrade to direct store reads; they never fail a request.

func (s *message) cacheGet(key string) (interface{}, bool) {
	value, ok, err := s.cache.Get(key)
	if err != nil {
		s.logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if s.metrics != nil {
		s.metrics.RecordCacheLookup(ok)
	}
	return value, ok
}

func (s *message) cacheSet(key string, value interface{}) {
	if err := s.cache.Set(key, value, s.cacheTTL); err != nil {
		s.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *message) invalidate(key string) {
	if err := s.cache.Delete(key); err != nil {
		s.logger.Warn("Cache invalidation failed", zap.String("key", key), zap.Error(err))
	}
}

// Any write can change what a cached page should contain, so all list pages
// are dropped together.
func (s *message) invalidateLists() {
	if err := s.cache.DeletePrefix(listCachePrefix); err != nil {
		s.logger.Warn("Cache invalidation failed", zap.String("key", listCachePrefix), zap.Error(err))
	}
}
