package service

import (
	"time"

	"github.com/contactrelay/mailgateway/internal/model"
)

type CreateMessageCommand struct {
	SenderName    string
	SenderAddress string
	Phone         *string
	Body          string
	Context       map[string]string
}

// DeliverCommand is the unit of delivery work placed on the queue. JobID is
// fresh per enqueue so queue-level deduplication never suppresses a retry.
type DeliverCommand struct {
	MessageID string `json:"message_id"`
	JobID     string `json:"job_id"`
}

type UpdateStatusCommand struct {
	MessageID string
	Status    model.MessageStatus
	Details   *string
}

type InboundMessageCommand struct {
	SenderName    string
	SenderAddress string
	Subject       string
	Body          string
	MailboxUID    uint32
	ReceivedAt    time.Time
}

type GetMessagesQuery struct {
	Status *model.MessageStatus
	Sender string
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}
