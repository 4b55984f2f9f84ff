package service

import (
	"time"

	"github.com/contactrelay/mailgateway/internal/model"
)

// MessageDetail is a message together with its audit trail, newest event
// first.
type MessageDetail struct {
	Message model.Message        `json:"message"`
	Events  []model.MessageEvent `json:"events"`
}

type MessagesPage struct {
	Messages []model.Message `json:"messages"`
	Total    int64           `json:"total"`
	Limit    int             `json:"limit"`
	Offset   int             `json:"offset"`
}

// Stats is cached as one composite object because computing it takes
// several aggregate scans.
type Stats struct {
	Total       int64            `json:"total"`
	ByStatus    map[string]int64 `json:"by_status"`
	Last24h     int64            `json:"last_24h"`
	Last7d      int64            `json:"last_7d"`
	GeneratedAt time.Time        `json:"generated_at"`
}
