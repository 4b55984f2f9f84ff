package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

type MessageStatus string

const (
	MessageStatusQueued   MessageStatus = "QUEUED"
	MessageStatusSent     MessageStatus = "SENT"
	MessageStatusFailed   MessageStatus = "FAILED"
	MessageStatusReceived MessageStatus = "RECEIVED"
)

// Terminal reports whether a message is done with the outbound lifecycle
// and eligible for retention cleanup.
func (s MessageStatus) Terminal() bool {
	return s == MessageStatusSent || s == MessageStatusFailed
}

// JSONMap stores arbitrary structured context (correlation id, originating
// subject, mailbox uid) as a JSON column.
type JSONMap map[string]string

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("unsupported type for JSONMap")
	}

	return json.Unmarshal(raw, m)
}

type Message struct {
	ID            string        `gorm:"primaryKey;column:id;size:36;<-:create"`
	SenderName    string        `gorm:"column:sender_name"`
	SenderAddress string        `gorm:"column:sender_address;index"`
	Phone         *string       `gorm:"column:phone"`
	Body          string        `gorm:"column:body;type:text"`
	Context       JSONMap       `gorm:"column:context;type:json"`
	Status        MessageStatus `gorm:"column:status;index"`
	Retries       int           `gorm:"column:retries"`
	LastError     *string       `gorm:"column:last_error"`
	CreatedAt     time.Time     `gorm:"column:created_at;index"`
	UpdatedAt     time.Time     `gorm:"column:updated_at;index"`
}
