package mocks

import (
	"context"

	"github.com/contactrelay/mailgateway/pkg/mailer"
	"github.com/stretchr/testify/mock"
)

type Mailer struct {
	mock.Mock
}

func (m *Mailer) Send(ctx context.Context, email mailer.Email) (mailer.Receipt, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(mailer.Receipt), args.Error(1)
}

func (m *Mailer) TestConnection(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *Mailer) Configured() bool {
	args := m.Called()
	return args.Bool(0)
}
