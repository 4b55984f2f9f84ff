package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/contactrelay/mailgateway/internal/config"
	"github.com/contactrelay/mailgateway/internal/mocks"
	"github.com/contactrelay/mailgateway/internal/service"
	"github.com/contactrelay/mailgateway/pkg/circuitbreaker"
	"github.com/contactrelay/mailgateway/pkg/mailbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func testConfig() config.Poller {
	return config.Poller{
		Interval:             10 * time.Millisecond,
		BackoffBase:          time.Second,
		BackoffCap:           5 * time.Minute,
		MaxReconnectAttempts: 3,
	}
}

func quietBreaker() *circuitbreaker.Breaker {
	return circuitbreaker.New(circuitbreaker.Config{
		Name:             "mailbox",
		WindowSize:       100,
		FailureThreshold: 0.5,
		MinCalls:         50,
		ResetTimeout:     time.Minute,
	})
}

func newTestPoller(client *mocks.MailboxClient, ingest *mocks.IngestService,
	breaker *circuitbreaker.Breaker, cfg config.Poller) *Poller {
	return New(client, ingest, breaker, nil, cfg, zap.NewNop())
}

func TestPoller_PollOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("ingests and marks seen after persistence", func(t *testing.T) {
		client := &mocks.MailboxClient{}
		ingest := &mocks.IngestService{}
		p := newTestPoller(client, ingest, quietBreaker(), testConfig())

		client.On("SearchUnseen", ctx).Return([]uint32{1}, nil)
		client.On("Fetch", ctx, uint32(1)).Return(mailbox.Envelope{
			UID:         1,
			FromName:    "Alice",
			FromAddress: "alice@example.com",
			Subject:     "Hello",
			Body:        "hi",
			Date:        time.Now(),
		}, nil)
		ingest.On("IngestInbound", ctx, mock.MatchedBy(func(cmd service.InboundMessageCommand) bool {
			return cmd.SenderAddress == "alice@example.com" && cmd.MailboxUID == 1
		})).Return(nil, nil)
		client.On("MarkSeen", ctx, uint32(1)).Return(nil)
		client.On("Connected").Return(true)

		p.pollOnce(ctx)

		status := p.PollerStatus()
		assert.Equal(t, 1, status.LastProcessed)
		assert.Zero(t, status.LastFailed)
		client.AssertExpectations(t)
		ingest.AssertExpectations(t)
	})

	t.Run("one bad item does not abort the batch", func(t *testing.T) {
		client := &mocks.MailboxClient{}
		ingest := &mocks.IngestService{}
		p := newTestPoller(client, ingest, quietBreaker(), testConfig())

		client.On("SearchUnseen", ctx).Return([]uint32{1, 2}, nil)
		// Item 1 has no usable sender and is rejected before ingestion.
		client.On("Fetch", ctx, uint32(1)).Return(mailbox.Envelope{UID: 1}, nil)
		client.On("Fetch", ctx, uint32(2)).Return(mailbox.Envelope{
			UID:         2,
			FromAddress: "bob@example.com",
			Date:        time.Now(),
		}, nil)
		ingest.On("IngestInbound", ctx, mock.MatchedBy(func(cmd service.InboundMessageCommand) bool {
			return cmd.MailboxUID == 2
		})).Return(nil, nil)
		client.On("MarkSeen", ctx, uint32(2)).Return(nil)
		client.On("Connected").Return(true)

		p.pollOnce(ctx)

		status := p.PollerStatus()
		assert.Equal(t, 1, status.LastProcessed)
		assert.Equal(t, 1, status.LastFailed)
		client.AssertNotCalled(t, "MarkSeen", ctx, uint32(1))
		ingest.AssertExpectations(t)
	})

	t.Run("ingest failure leaves the item unread", func(t *testing.T) {
		client := &mocks.MailboxClient{}
		ingest := &mocks.IngestService{}
		p := newTestPoller(client, ingest, quietBreaker(), testConfig())

		client.On("SearchUnseen", ctx).Return([]uint32{1}, nil)
		client.On("Fetch", ctx, uint32(1)).Return(mailbox.Envelope{
			UID:         1,
			FromAddress: "alice@example.com",
			Date:        time.Now(),
		}, nil)
		ingest.On("IngestInbound", ctx, mock.Anything).Return(nil, errors.New("db gone"))
		client.On("Connected").Return(true)

		p.pollOnce(ctx)

		status := p.PollerStatus()
		assert.Zero(t, status.LastProcessed)
		assert.Equal(t, 1, status.LastFailed)
		client.AssertNotCalled(t, "MarkSeen", mock.Anything, mock.Anything)
	})

	t.Run("search failure drops the connection", func(t *testing.T) {
		client := &mocks.MailboxClient{}
		ingest := &mocks.IngestService{}
		p := newTestPoller(client, ingest, quietBreaker(), testConfig())

		client.On("SearchUnseen", ctx).Return(nil, errors.New("connection reset"))
		client.On("Close").Return(nil)

		p.pollOnce(ctx)

		client.AssertCalled(t, "Close")
	})
}

func TestPoller_Reconnect(t *testing.T) {
	ctx := context.Background()

	t.Run("success resets the attempt counter", func(t *testing.T) {
		client := &mocks.MailboxClient{}
		p := newTestPoller(client, &mocks.IngestService{}, quietBreaker(), testConfig())
		p.attempts = 2

		client.On("Connect", mock.Anything).Return(nil)
		client.On("Connected").Return(true)

		fatal := p.reconnect(ctx)

		assert.False(t, fatal)
		assert.Zero(t, p.PollerStatus().Attempts)
	})

	t.Run("failures consume the attempt budget", func(t *testing.T) {
		client := &mocks.MailboxClient{}
		p := newTestPoller(client, &mocks.IngestService{}, quietBreaker(), testConfig())

		client.On("Connect", mock.Anything).Return(errors.New("refused"))
		client.On("Connected").Return(false)

		for i := 1; i <= 3; i++ {
			assert.False(t, p.reconnect(ctx))
			assert.Equal(t, i, p.PollerStatus().Attempts)
		}

		assert.True(t, p.reconnect(ctx))
	})

	t.Run("open breaker suppresses without consuming attempts", func(t *testing.T) {
		client := &mocks.MailboxClient{}
		breaker := circuitbreaker.New(circuitbreaker.Config{
			Name:             "mailbox",
			WindowSize:       2,
			FailureThreshold: 0.5,
			MinCalls:         1,
			ResetTimeout:     time.Minute,
		})
		p := newTestPoller(client, &mocks.IngestService{}, breaker, testConfig())

		client.On("Connect", mock.Anything).Return(errors.New("refused"))
		client.On("Connected").Return(false)

		assert.False(t, p.reconnect(ctx))
		assert.Equal(t, 1, p.PollerStatus().Attempts)
		assert.Equal(t, circuitbreaker.StateOpen, breaker.State())

		assert.False(t, p.reconnect(ctx))
		assert.Equal(t, 1, p.PollerStatus().Attempts)
		assert.Equal(t, "reconnect suppressed, circuit open", p.PollerStatus().LastError)
	})
}

func TestPoller_BackoffDelay(t *testing.T) {
	p := newTestPoller(&mocks.MailboxClient{}, &mocks.IngestService{}, quietBreaker(), config.Poller{
		BackoffBase: time.Second,
		BackoffCap:  8 * time.Second,
	})

	var last time.Duration
	for attempts := 1; attempts <= 10; attempts++ {
		p.attempts = attempts
		delay := p.backoffDelay()

		assert.GreaterOrEqual(t, delay, last, "backoff must be non-decreasing")
		assert.LessOrEqual(t, delay, 8*time.Second)
		last = delay
	}

	p.attempts = 1
	assert.Equal(t, time.Second, p.backoffDelay())
	p.attempts = 3
	assert.Equal(t, 4*time.Second, p.backoffDelay())
	p.attempts = 10
	assert.Equal(t, 8*time.Second, p.backoffDelay())
}

func TestPoller_StartStop(t *testing.T) {
	t.Run("start and stop are idempotent", func(t *testing.T) {
		client := &mocks.MailboxClient{}
		p := newTestPoller(client, &mocks.IngestService{}, quietBreaker(), testConfig())

		client.On("Connected").Return(true)
		client.On("SearchUnseen", mock.Anything).Return([]uint32{}, nil)
		client.On("Close").Return(nil)

		p.Start()
		p.Start() // no-op

		assert.Eventually(t, func() bool {
			return !p.PollerStatus().LastPollAt.IsZero()
		}, time.Second, time.Millisecond)

		p.Stop()
		assert.False(t, p.PollerStatus().Running)

		p.Stop() // no-op
	})

	t.Run("exhausted reconnects stop the poller fatally", func(t *testing.T) {
		client := &mocks.MailboxClient{}
		p := newTestPoller(client, &mocks.IngestService{}, quietBreaker(), config.Poller{
			Interval:             10 * time.Millisecond,
			BackoffBase:          time.Millisecond,
			BackoffCap:           2 * time.Millisecond,
			MaxReconnectAttempts: 2,
		})

		client.On("Connected").Return(false)
		client.On("Connect", mock.Anything).Return(errors.New("refused"))

		p.Start()

		assert.Eventually(t, func() bool {
			return p.PollerStatus().FatalStopped
		}, time.Second, time.Millisecond)

		status := p.PollerStatus()
		assert.False(t, status.Running)
		assert.Equal(t, "refused", status.LastError)
	})
}
