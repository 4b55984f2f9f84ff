package mocks

import (
	"context"

	"github.com/contactrelay/mailgateway/internal/model"
	"github.com/contactrelay/mailgateway/internal/service"
	"github.com/stretchr/testify/mock"
)

type MessageService struct {
	mock.Mock
}

func (m *MessageService) Create(ctx context.Context, cmd service.CreateMessageCommand) (*model.Message, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MessageService) UpdateStatus(ctx context.Context, cmd service.UpdateStatusCommand) error {
	args := m.Called(ctx, cmd)
	return args.Error(0)
}

func (m *MessageService) GetByID(ctx context.Context, id string) (*service.MessageDetail, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.MessageDetail), args.Error(1)
}

func (m *MessageService) GetMessages(ctx context.Context, query service.GetMessagesQuery) (service.MessagesPage, error) {
	args := m.Called(ctx, query)
	return args.Get(0).(service.MessagesPage), args.Error(1)
}

func (m *MessageService) GetStats(ctx context.Context) (service.Stats, error) {
	args := m.Called(ctx)
	return args.Get(0).(service.Stats), args.Error(1)
}
