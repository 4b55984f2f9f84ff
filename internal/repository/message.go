package repository

import (
	"context"
	"errors"
	"time"

	"github.com/contactrelay/mailgateway/internal/model"
	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

var ErrMessageNotFound = errors.New("MESSAGE_NOT_FOUND")
var ErrMessageDuplicate = errors.New("MESSAGE_DUPLICATE")

// MessageFilter narrows list queries. Zero fields are ignored.
type MessageFilter struct {
	Status *model.MessageStatus
	Sender string // substring match on sender_address
	From   *time.Time
	To     *time.Time
}

type MessageRepository interface {
	Create(ctx context.Context, message *model.Message) error
	UpdateStatus(ctx context.Context, id string, status model.MessageStatus, lastError *string, incrementRetries bool) error
	GetByID(ctx context.Context, id string) (*model.Message, error)
	Find(ctx context.Context, filter MessageFilter, limit, offset int) ([]model.Message, error)
	Count(ctx context.Context, filter MessageFilter) (int64, error)
	CountByStatus(ctx context.Context) (map[model.MessageStatus]int64, error)
	CountCreatedSince(ctx context.Context, since time.Time) (int64, error)
	FindRetryable(ctx context.Context, maxRetries, limit int) ([]model.Message, error)
	FindTerminalIDsBefore(ctx context.Context, cutoff time.Time) ([]string, error)
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
}

type Message struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &Message{db: db}
}

func (m *Message) Create(ctx context.Context, message *model.Message) error {
	db := GetTx(ctx, m.db)
	err := db.Create(message).Error
	if err == nil {
		return nil
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return ErrMessageDuplicate
	}

	return err
}

// UpdateStatus applies one lifecycle transition as a single UPDATE. The
// retries counter only moves on transitions into FAILED and only forward.
func (m *Message) UpdateStatus(ctx context.Context, id string, status model.MessageStatus,
	lastError *string, incrementRetries bool) error {

	db := GetTx(ctx, m.db)

	updates := map[string]interface{}{
		"status":     status,
		"last_error": lastError,
		"updated_at": time.Now(),
	}
	if incrementRetries {
		updates["retries"] = gorm.Expr("retries + 1")
	}

	result := db.Model(&model.Message{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMessageNotFound
	}

	return nil
}

func (m *Message) GetByID(ctx context.Context, id string) (*model.Message, error) {
	var message model.Message

	err := GetTx(ctx, m.db).Where("id = ?", id).First(&message).Error
	if err == nil {
		return &message, nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMessageNotFound
	}

	return nil, err
}

func (m *Message) Find(ctx context.Context, filter MessageFilter, limit, offset int) ([]model.Message, error) {
	var messages []model.Message

	err := m.applyFilter(GetTx(ctx, m.db), filter).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	return messages, nil
}

func (m *Message) Count(ctx context.Context, filter MessageFilter) (int64, error) {
	var count int64

	err := m.applyFilter(GetTx(ctx, m.db).Model(&model.Message{}), filter).
		Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

func (m *Message) CountByStatus(ctx context.Context) (map[model.MessageStatus]int64, error) {
	var rows []struct {
		Status model.MessageStatus
		Total  int64
	}

	err := GetTx(ctx, m.db).Model(&model.Message{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[model.MessageStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}

	return counts, nil
}

func (m *Message) CountCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64

	err := GetTx(ctx, m.db).Model(&model.Message{}).
		Where("created_at >= ?", since).
		Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// FindRetryable selects failed messages that still have retry budget,
// oldest-updated first.
func (m *Message) FindRetryable(ctx context.Context, maxRetries, limit int) ([]model.Message, error) {
	var messages []model.Message

	err := GetTx(ctx, m.db).
		Where("status = ? AND retries < ?", model.MessageStatusFailed, maxRetries).
		Order("updated_at ASC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	return messages, nil
}

func (m *Message) FindTerminalIDsBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	var ids []string

	err := GetTx(ctx, m.db).Model(&model.Message{}).
		Where("status IN ? AND updated_at < ?",
			[]model.MessageStatus{model.MessageStatusSent, model.MessageStatusFailed}, cutoff).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}

	return ids, nil
}

func (m *Message) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result := GetTx(ctx, m.db).Where("id IN ?", ids).Delete(&model.Message{})
	return result.RowsAffected, result.Error
}

func (m *Message) applyFilter(db *gorm.DB, filter MessageFilter) *gorm.DB {
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.Sender != "" {
		db = db.Where("sender_address LIKE ?", "%"+filter.Sender+"%")
	}
	if filter.From != nil {
		db = db.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		db = db.Where("created_at <= ?", *filter.To)
	}
	return db
}
