package mocks

import (
	"context"

	"github.com/contactrelay/mailgateway/internal/model"
	"github.com/stretchr/testify/mock"
)

type MessageEventRepository struct {
	mock.Mock
}

func (m *MessageEventRepository) Create(ctx context.Context, event *model.MessageEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MessageEventRepository) ListByMessageID(ctx context.Context, messageID string) ([]model.MessageEvent, error) {
	args := m.Called(ctx, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.MessageEvent), args.Error(1)
}

func (m *MessageEventRepository) DeleteByMessageIDs(ctx context.Context, messageIDs []string) error {
	args := m.Called(ctx, messageIDs)
	return args.Error(0)
}
