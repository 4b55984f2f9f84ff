package mocks

import (
	"context"

	"github.com/contactrelay/mailgateway/pkg/mailbox"
	"github.com/stretchr/testify/mock"
)

type MailboxClient struct {
	mock.Mock
}

func (m *MailboxClient) Connect(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MailboxClient) SearchUnseen(ctx context.Context) ([]uint32, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uint32), args.Error(1)
}

func (m *MailboxClient) Fetch(ctx context.Context, id uint32) (mailbox.Envelope, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(mailbox.Envelope), args.Error(1)
}

func (m *MailboxClient) MarkSeen(ctx context.Context, id uint32) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MailboxClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MailboxClient) Connected() bool {
	args := m.Called()
	return args.Bool(0)
}
