package consumers

import (
	"context"
	"testing"

	"github.com/contactrelay/mailgateway/internal/mocks"
	"github.com/contactrelay/mailgateway/internal/service"
	"github.com/contactrelay/mailgateway/pkg/mq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// handlerCapturingConsumer hands the registered handler back to the test
// instead of talking to a broker.
type handlerCapturingConsumer struct {
	queue   string
	handler mq.Handle
}

func (c *handlerCapturingConsumer) Consume(ctx context.Context, prefetch int, queue string, handler mq.Handle) error {
	c.queue = queue
	c.handler = handler
	return nil
}

func TestDeliverConsumer(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	t.Run("decodes work items and delegates", func(t *testing.T) {
		svc := &mocks.SendService{}
		capture := &handlerCapturingConsumer{}
		consumer := NewDeliverConsumer(svc, capture, "mail.deliver", logger)

		assert.NoError(t, consumer.Consume(ctx))
		assert.Equal(t, "mail.deliver", capture.queue)

		svc.On("SendMessage", ctx, service.DeliverCommand{
			MessageID: "msg-1",
			JobID:     "job-1",
		}).Return(nil)

		err := capture.handler(ctx, []byte(`{"message_id":"msg-1","job_id":"job-1"}`))

		assert.NoError(t, err)
		svc.AssertExpectations(t)
	})

	t.Run("malformed payload fails without delegating", func(t *testing.T) {
		svc := &mocks.SendService{}
		capture := &handlerCapturingConsumer{}
		consumer := NewDeliverConsumer(svc, capture, "mail.deliver", logger)

		assert.NoError(t, consumer.Consume(ctx))

		err := capture.handler(ctx, []byte(`not json`))

		assert.Error(t, err)
		svc.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
	})
}
