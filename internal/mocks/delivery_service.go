package mocks

import (
	"context"

	"github.com/contactrelay/mailgateway/internal/model"
	"github.com/contactrelay/mailgateway/pkg/mailer"
	"github.com/stretchr/testify/mock"
)

type DeliveryService struct {
	mock.Mock
}

func (d *DeliveryService) Send(ctx context.Context, msg *model.Message) (mailer.Receipt, error) {
	args := d.Called(ctx, msg)
	return args.Get(0).(mailer.Receipt), args.Error(1)
}

func (d *DeliveryService) TestConnection(ctx context.Context) error {
	args := d.Called(ctx)
	return args.Error(0)
}

func (d *DeliveryService) Configured() bool {
	args := d.Called()
	return args.Bool(0)
}
