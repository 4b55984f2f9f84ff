package v1

import (
	"github.com/contactrelay/mailgateway/internal/model"
)

type CreateMessageResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

type MessageResponse struct {
	MessageID     string            `json:"message_id"`
	SenderName    string            `json:"sender_name"`
	SenderAddress string            `json:"sender_address"`
	Phone         *string           `json:"phone,omitempty"`
	Body          string            `json:"body"`
	Context       map[string]string `json:"context,omitempty"`
	Status        string            `json:"status"`
	Retries       int               `json:"retries"`
	LastError     *string           `json:"last_error,omitempty"`
	CreatedAt     string            `json:"created_at"`
	UpdatedAt     string            `json:"updated_at"`
}

type EventResponse struct {
	EventID   string  `json:"event_id"`
	Type      string  `json:"type"`
	Details   *string `json:"details,omitempty"`
	CreatedAt string  `json:"created_at"`
}

type MessageDetailResponse struct {
	Message MessageResponse `json:"message"`
	Events  []EventResponse `json:"events"`
}

type GetMessagesResponse struct {
	Messages []MessageResponse `json:"messages"`
	Total    int64             `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

type SweepResponse struct {
	Swept int `json:"swept"`
}

type CleanupResponse struct {
	Deleted int64 `json:"deleted"`
}

func toMessageResponse(msg model.Message) MessageResponse {
	return MessageResponse{
		MessageID:     msg.ID,
		SenderName:    msg.SenderName,
		SenderAddress: msg.SenderAddress,
		Phone:         msg.Phone,
		Body:          msg.Body,
		Context:       msg.Context,
		Status:        string(msg.Status),
		Retries:       msg.Retries,
		LastError:     msg.LastError,
		CreatedAt:     msg.CreatedAt.UTC().Format(timeFormat),
		UpdatedAt:     msg.UpdatedAt.UTC().Format(timeFormat),
	}
}

func toEventResponse(event model.MessageEvent) EventResponse {
	return EventResponse{
		EventID:   event.ID,
		Type:      string(event.Type),
		Details:   event.Details,
		CreatedAt: event.CreatedAt.UTC().Format(timeFormat),
	}
}
