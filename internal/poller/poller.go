// Package poller owns the long-lived mailbox connection: fixed-interval
// polling of unseen messages, ingestion into the message store, and
// breaker-guarded reconnection with exponential backoff.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/contactrelay/mailgateway/internal/config"
	"github.com/contactrelay/mailgateway/internal/metrics"
	"github.com/contactrelay/mailgateway/internal/service"
	"github.com/contactrelay/mailgateway/pkg/circuitbreaker"
	"github.com/contactrelay/mailgateway/pkg/mailbox"
	"go.uber.org/zap"
)

type Poller struct {
	client  mailbox.Client
	ingest  service.IngestService
	breaker *circuitbreaker.Breaker
	metrics *metrics.Metrics
	logger  *zap.Logger
	cfg     config.Poller

	// cycleMu is the mailbox-scoped lock: a poll cycle and a reconnect can
	// never overlap.
	cycleMu sync.Mutex

	stateMu       sync.Mutex
	running       bool
	fatalStopped  bool
	attempts      int
	lastPollAt    time.Time
	lastProcessed int
	lastFailed    int
	lastError     string

	cancel context.CancelFunc
	done   chan struct{}
}

func New(client mailbox.Client, ingest service.IngestService, breaker *circuitbreaker.Breaker,
	m *metrics.Metrics, cfg config.Poller, logger *zap.Logger) *Poller {

	return &Poller{
		client:  client,
		ingest:  ingest,
		breaker: breaker,
		metrics: m,
		cfg:     cfg,
		logger:  logger,
	}
}

// Start launches the polling loop. Calling it on a running poller is a
// warned no-op.
func (p *Poller) Start() {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()

	if p.running {
		p.logger.Warn("Poller already running, ignoring start")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.fatalStopped = false
	p.attempts = 0

	go p.run(ctx)

	p.logger.Info("Poller started",
		zap.Duration("interval", p.cfg.Interval),
		zap.Int("maxReconnectAttempts", p.cfg.MaxReconnectAttempts))
}

// Stop cancels pending timers and closes the connection. In-flight network
// calls finish or time out naturally. Calling it on a stopped poller is a
// warned no-op.
func (p *Poller) Stop() {
	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		p.logger.Warn("Poller already stopped, ignoring stop")
		return
	}

	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	cancel()
	<-done

	p.cycleMu.Lock()
	if err := p.client.Close(); err != nil {
		p.logger.Warn("Failed to close mailbox connection", zap.Error(err))
	}
	p.cycleMu.Unlock()

	p.stateMu.Lock()
	p.running = false
	p.stateMu.Unlock()

	p.logger.Info("Poller stopped")
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)

	for {
		if ctx.Err() != nil {
			return
		}

		if !p.client.Connected() {
			if fatal := p.reconnect(ctx); fatal {
				p.stateMu.Lock()
				p.running = false
				p.fatalStopped = true
				p.stateMu.Unlock()

				p.logger.Error("Poller giving up: reconnect attempts exhausted",
					zap.Int("attempts", p.cfg.MaxReconnectAttempts))
				return
			}

			if !p.client.Connected() {
				// Back off before the next attempt.
				if !sleep(ctx, p.backoffDelay()) {
					return
				}
				continue
			}
		}

		p.pollOnce(ctx)

		if !sleep(ctx, p.cfg.Interval) {
			return
		}
	}
}

// reconnect runs one breaker-guarded connection attempt. It returns true
// once the attempt budget is exhausted.
func (p *Poller) reconnect(ctx context.Context) (fatal bool) {
	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()

	if p.metrics != nil {
		p.metrics.MailboxReconnect.Inc()
	}

	err := p.breaker.Do(ctx, p.client.Connect)
	if err == nil {
		p.stateMu.Lock()
		p.attempts = 0
		p.lastError = ""
		p.stateMu.Unlock()
		return false
	}

	if errors.Is(err, circuitbreaker.ErrOpen) {
		// The breaker suppresses reconnection until it resets; the open
		// period does not consume attempt budget.
		p.setLastError("reconnect suppressed, circuit open")
		return false
	}

	p.stateMu.Lock()
	p.attempts++
	attempts := p.attempts
	p.lastError = err.Error()
	p.stateMu.Unlock()

	p.logger.Warn("Mailbox connection failed",
		zap.Error(err),
		zap.Int("attempt", attempts),
		zap.Int("maxAttempts", p.cfg.MaxReconnectAttempts))

	return attempts > p.cfg.MaxReconnectAttempts
}

// backoffDelay grows exponentially with consecutive failures up to the cap.
func (p *Poller) backoffDelay() time.Duration {
	p.stateMu.Lock()
	attempts := p.attempts
	p.stateMu.Unlock()

	delay := p.cfg.BackoffBase
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= p.cfg.BackoffCap {
			return p.cfg.BackoffCap
		}
	}
	if delay > p.cfg.BackoffCap {
		return p.cfg.BackoffCap
	}
	return delay
}

// pollOnce runs one search/fetch/ingest/mark cycle. A failure on one item
// never aborts the batch; the cycle reports processed and failed counts.
func (p *Poller) pollOnce(ctx context.Context) {
	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()

	ids, err := p.client.SearchUnseen(ctx)
	if err != nil {
		p.logger.Warn("Mailbox search failed, forcing reconnect", zap.Error(err))
		p.setLastError(err.Error())
		_ = p.client.Close()
		return
	}

	processed, failed := 0, 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}

		if p.processItem(ctx, id) {
			processed++
		} else {
			failed++
		}
	}

	p.stateMu.Lock()
	p.lastPollAt = time.Now()
	p.lastProcessed = processed
	p.lastFailed = failed
	p.stateMu.Unlock()

	if p.metrics != nil {
		p.metrics.PollCycles.Inc()
	}

	if processed > 0 || failed > 0 {
		p.logger.Info("Poll cycle finished",
			zap.Int("processed", processed),
			zap.Int("failed", failed))
	}
}

// processItem ingests a single mailbox item. Marking the source as seen
// happens only after persistence, so failures leave the item eligible for
// reprocessing: ingestion is at-least-once.
func (p *Poller) processItem(ctx context.Context, id uint32) bool {
	env, err := p.client.Fetch(ctx, id)
	if err != nil {
		p.logger.Warn("Failed to fetch mailbox item",
			zap.Uint32("uid", id),
			zap.Error(err))
		p.countItemError()
		return false
	}

	if env.FromAddress == "" {
		p.logger.Warn("Skipping mailbox item without usable sender address",
			zap.Uint32("uid", id),
			zap.String("subject", env.Subject))
		if p.metrics != nil {
			p.metrics.InboundSkipped.Inc()
		}
		return false
	}

	cmd := service.InboundMessageCommand{
		SenderName:    env.FromName,
		SenderAddress: env.FromAddress,
		Subject:       env.Subject,
		Body:          env.Body,
		MailboxUID:    env.UID,
		ReceivedAt:    env.Date,
	}

	if _, err := p.ingest.IngestInbound(ctx, cmd); err != nil {
		p.logger.Error("Failed to ingest mailbox item",
			zap.Uint32("uid", id),
			zap.Error(err))
		p.countItemError()
		return false
	}

	if err := p.client.MarkSeen(ctx, id); err != nil {
		// The message is persisted but stays unread upstream; the next
		// cycle will see it again and may create a duplicate.
		p.logger.Warn("Failed to mark mailbox item seen",
			zap.Uint32("uid", id),
			zap.Error(err))
		p.countItemError()
		return false
	}

	return true
}

func (p *Poller) countItemError() {
	if p.metrics != nil {
		p.metrics.InboundErrors.Inc()
	}
}

func (p *Poller) setLastError(msg string) {
	p.stateMu.Lock()
	p.lastError = msg
	p.stateMu.Unlock()
}

// PollerStatus implements service.PollerStatusReporter for the health
// aggregator.
func (p *Poller) PollerStatus() service.PollerStatus {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()

	return service.PollerStatus{
		Running:       p.running,
		Connected:     p.client.Connected(),
		Attempts:      p.attempts,
		FatalStopped:  p.fatalStopped,
		LastPollAt:    p.lastPollAt,
		LastProcessed: p.lastProcessed,
		LastFailed:    p.lastFailed,
		LastError:     p.lastError,
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
