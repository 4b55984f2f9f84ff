package model

import "time"

type EventType string

const (
	EventTypeOutboundQueued  EventType = "OUTBOUND_QUEUED"
	EventTypeOutboundSent    EventType = "OUTBOUND_SENT"
	EventTypeOutboundFailed  EventType = "OUTBOUND_FAILED"
	EventTypeInboundReceived EventType = "INBOUND_RECEIVED"
)

var statusEventTypes = map[MessageStatus]EventType{
	MessageStatusQueued:   EventTypeOutboundQueued,
	MessageStatusSent:     EventTypeOutboundSent,
	MessageStatusFailed:   EventTypeOutboundFailed,
	MessageStatusReceived: EventTypeInboundReceived,
}

// EventTypeForStatus maps a message status to the event type appended on
// transition into it. The message status must always equal the type of its
// most recent event.
func EventTypeForStatus(status MessageStatus) (EventType, bool) {
	t, ok := statusEventTypes[status]
	return t, ok
}

// MessageEvent is the append-only audit trail. Rows are never updated or
// deleted while their parent message exists.
type MessageEvent struct {
	ID        string    `gorm:"primaryKey;column:id;size:36;<-:create"`
	MessageID string    `gorm:"column:message_id;size:36;index;<-:create"`
	Type      EventType `gorm:"column:type;<-:create"`
	Details   *string   `gorm:"column:details;<-:create"`
	CreatedAt time.Time `gorm:"column:created_at;index;<-:create"`
}
