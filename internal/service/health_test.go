package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/contactrelay/mailgateway/internal/mocks"
	"github.com/contactrelay/mailgateway/internal/service"
	"github.com/contactrelay/mailgateway/pkg/circuitbreaker"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type queueStub struct{ closed bool }

func (q queueStub) IsClosed() bool { return q.closed }

type pollerStub struct{ status service.PollerStatus }

func (p pollerStub) PollerStatus() service.PollerStatus { return p.status }

func findCheck(t *testing.T, report service.HealthReport, name string) service.Check {
	t.Helper()
	for _, check := range report.Checks {
		if check.Name == name {
			return check
		}
	}
	t.Fatalf("check %q not found", name)
	return service.Check{}
}

func TestHealth_GetHealth(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	t.Run("missing database is critical", func(t *testing.T) {
		svc := service.NewHealthService(nil, nil, nil, nil, nil, logger)

		report := svc.GetHealth(ctx)

		assert.Equal(t, service.HealthStatusUnhealthy, report.Status)
		db := findCheck(t, report, "database")
		assert.True(t, db.Critical)
		assert.Equal(t, service.HealthStatusUnhealthy, db.Status)
	})

	t.Run("disabled collaborators do not degrade", func(t *testing.T) {
		svc := service.NewHealthService(nil, nil, nil, nil, nil, logger)

		report := svc.GetHealth(ctx)

		assert.Equal(t, service.HealthStatusHealthy, findCheck(t, report, "queue").Status)
		assert.Equal(t, service.HealthStatusHealthy, findCheck(t, report, "mailer").Status)
		assert.Equal(t, service.HealthStatusHealthy, findCheck(t, report, "poller").Status)
	})

	t.Run("closed queue connection is unhealthy but not critical", func(t *testing.T) {
		svc := service.NewHealthService(nil, queueStub{closed: true}, nil, nil, nil, logger)

		report := svc.GetHealth(ctx)

		queue := findCheck(t, report, "queue")
		assert.Equal(t, service.HealthStatusUnhealthy, queue.Status)
		assert.False(t, queue.Critical)
	})

	t.Run("unconfigured mailer degrades", func(t *testing.T) {
		delivery := &mocks.DeliveryService{}
		delivery.On("Configured").Return(false)

		svc := service.NewHealthService(nil, nil, delivery, nil, nil, logger)

		report := svc.GetHealth(ctx)

		mailer := findCheck(t, report, "mailer")
		assert.Equal(t, service.HealthStatusDegraded, mailer.Status)
		assert.Equal(t, "mailer not configured", mailer.Details)
	})

	t.Run("fatally stopped poller is unhealthy", func(t *testing.T) {
		poller := pollerStub{status: service.PollerStatus{
			FatalStopped: true,
			LastError:    "connect: refused",
		}}

		svc := service.NewHealthService(nil, nil, nil, poller, nil, logger)

		report := svc.GetHealth(ctx)

		check := findCheck(t, report, "poller")
		assert.Equal(t, service.HealthStatusUnhealthy, check.Status)
		assert.Contains(t, check.Details, "connect: refused")
	})

	t.Run("reconnecting poller degrades", func(t *testing.T) {
		poller := pollerStub{status: service.PollerStatus{
			Running:   true,
			Connected: false,
			Attempts:  3,
		}}

		svc := service.NewHealthService(nil, nil, nil, poller, nil, logger)

		check := findCheck(t, svc.GetHealth(ctx), "poller")
		assert.Equal(t, service.HealthStatusDegraded, check.Status)
	})

	t.Run("healthy poller reports last cycle", func(t *testing.T) {
		poller := pollerStub{status: service.PollerStatus{
			Running:       true,
			Connected:     true,
			LastPollAt:    time.Now(),
			LastProcessed: 2,
			LastFailed:    1,
		}}

		svc := service.NewHealthService(nil, nil, nil, poller, nil, logger)

		check := findCheck(t, svc.GetHealth(ctx), "poller")
		assert.Equal(t, service.HealthStatusHealthy, check.Status)
		assert.Contains(t, check.Details, "processed=2")
	})

	t.Run("open breaker surfaces in report", func(t *testing.T) {
		registry := circuitbreaker.NewRegistry()
		b := registry.Register(circuitbreaker.New(circuitbreaker.Config{
			Name:             "mailer",
			WindowSize:       4,
			FailureThreshold: 0.5,
			MinCalls:         2,
			ResetTimeout:     time.Minute,
		}))
		for i := 0; i < 2; i++ {
			_ = b.Do(ctx, func(ctx context.Context) error { return assert.AnError })
		}

		svc := service.NewHealthService(nil, nil, nil, nil, registry, logger)

		check := findCheck(t, svc.GetHealth(ctx), "breaker:mailer")
		assert.Equal(t, service.HealthStatusUnhealthy, check.Status)
		assert.False(t, check.Critical)
	})
}

func TestHealth_Liveness(t *testing.T) {
	svc := service.NewHealthService(nil, nil, nil, nil, nil, zap.NewNop())

	check := svc.Liveness()

	assert.Equal(t, "process", check.Name)
	assert.Equal(t, service.HealthStatusHealthy, check.Status)
}

func TestHealth_Readiness(t *testing.T) {
	svc := service.NewHealthService(nil, nil, nil, nil, nil, zap.NewNop())

	check := svc.Readiness(context.Background())

	assert.Equal(t, "database", check.Name)
	assert.Equal(t, service.HealthStatusUnhealthy, check.Status)
}
