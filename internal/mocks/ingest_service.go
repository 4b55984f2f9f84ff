package mocks

import (
	"context"

	"github.com/contactrelay/mailgateway/internal/model"
	"github.com/contactrelay/mailgateway/internal/service"
	"github.com/stretchr/testify/mock"
)

type IngestService struct {
	mock.Mock
}

func (i *IngestService) IngestInbound(ctx context.Context, cmd service.InboundMessageCommand) (*model.Message, error) {
	args := i.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}
