package repository

import (
	"context"

	"github.com/contactrelay/mailgateway/internal/model"
	"gorm.io/gorm"
)

type MessageEventRepository interface {
	Create(ctx context.Context, event *model.MessageEvent) error
	ListByMessageID(ctx context.Context, messageID string) ([]model.MessageEvent, error)
	DeleteByMessageIDs(ctx context.Context, messageIDs []string) error
}

type MessageEvent struct {
	db *gorm.DB
}

func NewMessageEventRepository(db *gorm.DB) MessageEventRepository {
	return &MessageEvent{db: db}
}

func (r *MessageEvent) Create(ctx context.Context, event *model.MessageEvent) error {
	return GetTx(ctx, r.db).Create(event).Error
}

func (r *MessageEvent) ListByMessageID(ctx context.Context, messageID string) ([]model.MessageEvent, error) {
	var events []model.MessageEvent

	err := GetTx(ctx, r.db).
		Where("message_id = ?", messageID).
		Order("created_at DESC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}

	return events, nil
}

// DeleteByMessageIDs removes the audit trail of messages swept by retention
// cleanup. Events of live messages are never touched.
func (r *MessageEvent) DeleteByMessageIDs(ctx context.Context, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}

	return GetTx(ctx, r.db).
		Where("message_id IN ?", messageIDs).
		Delete(&model.MessageEvent{}).Error
}
