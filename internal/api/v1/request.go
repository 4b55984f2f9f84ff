package v1

type CreateMessageRequest struct {
	SenderName    string            `json:"sender_name" validate:"required"`
	SenderAddress string            `json:"sender_address" validate:"required,address"`
	Phone         *string           `json:"phone,omitempty"`
	Body          string            `json:"body" validate:"required"`
	Context       map[string]string `json:"context,omitempty"`
}

type RetrySweepRequest struct {
	Limit int `json:"limit"`
}

type CleanupRequest struct {
	MaxAgeDays int `json:"max_age_days"`
}
