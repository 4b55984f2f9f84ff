package mocks

import (
	"context"
	"time"

	"github.com/contactrelay/mailgateway/internal/service"
	"github.com/stretchr/testify/mock"
)

type QueueService struct {
	mock.Mock
}

func (q *QueueService) EnqueueDelivery(ctx context.Context, cmd service.DeliverCommand, delay time.Duration) error {
	args := q.Called(ctx, cmd, delay)
	return args.Error(0)
}
