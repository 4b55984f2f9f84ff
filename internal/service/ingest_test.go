package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/contactrelay/mailgateway/internal/mocks"
	"github.com/contactrelay/mailgateway/internal/model"
	"github.com/contactrelay/mailgateway/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func TestIngest_IngestInbound(t *testing.T) {
	ctx := context.Background()

	cmd := service.InboundMessageCommand{
		SenderName:    "Alice",
		SenderAddress: "alice@example.com",
		Subject:       "Hello",
		Body:          "inbound text",
		MailboxUID:    42,
		ReceivedAt:    time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}

	newService := func(messageRepo *mocks.MessageRepository, eventRepo *mocks.MessageEventRepository,
		txManager *mocks.TxManager, c *mocks.Cache) service.IngestService {
		return service.NewIngestService(messageRepo, eventRepo, txManager, c, nil, zap.NewNop())
	}

	t.Run("persists message as RECEIVED with inbound event", func(t *testing.T) {
		messageRepo := &mocks.MessageRepository{}
		eventRepo := &mocks.MessageEventRepository{}
		txManager := &mocks.TxManager{}
		c := &mocks.Cache{}
		svc := newService(messageRepo, eventRepo, txManager, c)

		txManager.On("WithTx", ctx, mock.Anything).Return(nil)
		messageRepo.On("Create", mock.Anything, mock.MatchedBy(func(msg *model.Message) bool {
			return msg.Status == model.MessageStatusReceived &&
				msg.SenderAddress == "alice@example.com" &&
				msg.Body == "inbound text" &&
				msg.Context["subject"] == "Hello" &&
				msg.Context["mailbox_uid"] == "42"
		})).Return(nil)
		eventRepo.On("Create", mock.Anything, mock.MatchedBy(func(event *model.MessageEvent) bool {
			return event.Type == model.EventTypeInboundReceived && *event.Details == "Hello"
		})).Return(nil)
		c.On("Delete", "messages:stats").Return(nil)
		c.On("DeletePrefix", "messages:list:").Return(nil)

		msg, err := svc.IngestInbound(ctx, cmd)

		assert.NoError(t, err)
		assert.Equal(t, model.MessageStatusReceived, msg.Status)
		messageRepo.AssertExpectations(t)
		eventRepo.AssertExpectations(t)
	})

	t.Run("rejects missing sender address", func(t *testing.T) {
		messageRepo := &mocks.MessageRepository{}
		eventRepo := &mocks.MessageEventRepository{}
		txManager := &mocks.TxManager{}
		c := &mocks.Cache{}
		svc := newService(messageRepo, eventRepo, txManager, c)

		bad := cmd
		bad.SenderAddress = ""

		_, err := svc.IngestInbound(ctx, bad)

		assert.ErrorIs(t, err, service.ErrMissingSenderAddress)
		messageRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("transaction failure is surfaced as database error", func(t *testing.T) {
		messageRepo := &mocks.MessageRepository{}
		eventRepo := &mocks.MessageEventRepository{}
		txManager := &mocks.TxManager{}
		c := &mocks.Cache{}
		svc := newService(messageRepo, eventRepo, txManager, c)

		txManager.On("WithTx", ctx, mock.Anything).Return(errors.New("db gone"))

		_, err := svc.IngestInbound(ctx, cmd)

		var serviceErr service.Error
		assert.ErrorAs(t, err, &serviceErr)
		assert.Equal(t, service.ErrCodeDatabase, serviceErr.Code)
	})
}
