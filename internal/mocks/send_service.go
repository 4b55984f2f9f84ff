package mocks

import (
	"context"

	"github.com/contactrelay/mailgateway/internal/service"
	"github.com/stretchr/testify/mock"
)

type SendService struct {
	mock.Mock
}

func (s *SendService) SendMessage(ctx context.Context, cmd service.DeliverCommand) error {
	args := s.Called(ctx, cmd)
	return args.Error(0)
}
