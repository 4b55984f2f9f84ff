package service

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/contactrelay/mailgateway/pkg/circuitbreaker"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

type Check struct {
	Name      string       `json:"name"`
	Status    HealthStatus `json:"status"`
	LatencyMs int64        `json:"latency_ms"`
	Details   string       `json:"details,omitempty"`
	Critical  bool         `json:"critical"`
}

type HealthReport struct {
	Status      HealthStatus `json:"status"`
	Checks      []Check      `json:"checks"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// PollerStatus is the health-facing snapshot of the inbound poller.
type PollerStatus struct {
	Running       bool      `json:"running"`
	Connected     bool      `json:"connected"`
	Attempts      int       `json:"attempts"`
	FatalStopped  bool      `json:"fatal_stopped"`
	LastPollAt    time.Time `json:"last_poll_at"`
	LastProcessed int       `json:"last_processed"`
	LastFailed    int       `json:"last_failed"`
	LastError     string    `json:"last_error,omitempty"`
}

type PollerStatusReporter interface {
	PollerStatus() PollerStatus
}

type QueueHealth interface {
	IsClosed() bool
}

// HealthService folds per-collaborator checks into one composite status.
// A failing check becomes an unhealthy result, never an error.
type HealthService interface {
	GetHealth(ctx context.Context) HealthReport
	Liveness() Check
	Readiness(ctx context.Context) Check
}

type health struct {
	db       *gorm.DB
	rabbit   QueueHealth
	delivery DeliveryService
	poller   PollerStatusReporter
	registry *circuitbreaker.Registry
	logger   *zap.Logger
}

// NewHealthService accepts nil for collaborators a binary does not carry
// (e.g. the api binary has no poller); nil collaborators are reported as
// disabled, not unhealthy.
func NewHealthService(db *gorm.DB, rabbit QueueHealth, delivery DeliveryService,
	poller PollerStatusReporter, registry *circuitbreaker.Registry, logger *zap.Logger) HealthService {

	return &health{
		db:       db,
		rabbit:   rabbit,
		delivery: delivery,
		poller:   poller,
		registry: registry,
		logger:   logger,
	}
}

func (h *health) GetHealth(ctx context.Context) HealthReport {
	checks := []Check{
		h.run("database", true, h.checkDatabase(ctx)),
		h.run("queue", false, h.checkQueue),
		h.run("mailer", true, h.checkMailer(ctx)),
		h.run("poller", false, h.checkPoller),
		h.run("runtime", false, h.checkRuntime),
	}

	if h.registry != nil {
		for _, snapshot := range h.registry.Snapshots() {
			checks = append(checks, h.run("breaker:"+snapshot.Name, false, breakerCheck(snapshot)))
		}
	}

	return HealthReport{
		Status:      fold(checks),
		Checks:      checks,
		GeneratedAt: time.Now(),
	}
}

func (h *health) Liveness() Check {
	return Check{
		Name:    "process",
		Status:  HealthStatusHealthy,
		Details: fmt.Sprintf("goroutines=%d", runtime.NumGoroutine()),
	}
}

func (h *health) Readiness(ctx context.Context) Check {
	return h.run("database", true, h.checkDatabase(ctx))
}

// run executes one check, timing it and converting panics into unhealthy
// results so a broken collaborator can never take down health reporting.
func (h *health) run(name string, critical bool, fn func() (HealthStatus, string)) (check Check) {
	start := time.Now()

	check = Check{Name: name, Critical: critical}
	defer func() {
		check.LatencyMs = time.Since(start).Milliseconds()
		if r := recover(); r != nil {
			h.logger.Error("Health check panicked",
				zap.String("check", name),
				zap.Any("panic", r))
			check.Status = HealthStatusUnhealthy
			check.Details = fmt.Sprintf("check panicked: %v", r)
		}
	}()

	check.Status, check.Details = fn()
	return check
}

func (h *health) checkDatabase(ctx context.Context) func() (HealthStatus, string) {
	return func() (HealthStatus, string) {
		if h.db == nil {
			return HealthStatusUnhealthy, "database not configured"
		}

		sqlDB, err := h.db.DB()
		if err != nil {
			return HealthStatusUnhealthy, err.Error()
		}

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		if err := sqlDB.PingContext(pingCtx); err != nil {
			return HealthStatusUnhealthy, err.Error()
		}

		return HealthStatusHealthy, ""
	}
}

func (h *health) checkQueue() (HealthStatus, string) {
	if h.rabbit == nil {
		return HealthStatusHealthy, "queue disabled"
	}
	if h.rabbit.IsClosed() {
		return HealthStatusUnhealthy, "connection closed"
	}
	return HealthStatusHealthy, ""
}

func (h *health) checkMailer(ctx context.Context) func() (HealthStatus, string) {
	return func() (HealthStatus, string) {
		if h.delivery == nil {
			return HealthStatusHealthy, "mailer disabled"
		}
		if !h.delivery.Configured() {
			return HealthStatusDegraded, "mailer not configured"
		}

		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := h.delivery.TestConnection(probeCtx); err != nil {
			return HealthStatusUnhealthy, err.Error()
		}

		return HealthStatusHealthy, ""
	}
}

func (h *health) checkPoller() (HealthStatus, string) {
	if h.poller == nil {
		return HealthStatusHealthy, "poller disabled"
	}

	status := h.poller.PollerStatus()
	switch {
	case status.FatalStopped:
		return HealthStatusUnhealthy, "poller stopped after exhausting reconnect attempts: " + status.LastError
	case !status.Running:
		return HealthStatusDegraded, "poller not running"
	case !status.Connected:
		return HealthStatusDegraded, fmt.Sprintf("reconnecting, attempt %d", status.Attempts)
	default:
		return HealthStatusHealthy, fmt.Sprintf("last cycle processed=%d failed=%d",
			status.LastProcessed, status.LastFailed)
	}
}

func (h *health) checkRuntime() (HealthStatus, string) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return HealthStatusHealthy, fmt.Sprintf("goroutines=%d heap_mb=%d",
		runtime.NumGoroutine(), mem.HeapAlloc/1024/1024)
}

func breakerCheck(snapshot circuitbreaker.Snapshot) func() (HealthStatus, string) {
	return func() (HealthStatus, string) {
		details := fmt.Sprintf("state=%s successes=%d failures=%d",
			snapshot.State, snapshot.Successes, snapshot.Failures)

		switch snapshot.State {
		case circuitbreaker.StateOpen.String():
			return HealthStatusUnhealthy, details
		case circuitbreaker.StateHalfOpen.String():
			return HealthStatusDegraded, details
		default:
			return HealthStatusHealthy, details
		}
	}
}

// fold applies the composite policy: unhealthy critical check wins, any
// other finding degrades.
func fold(checks []Check) HealthStatus {
	status := HealthStatusHealthy
	for _, check := range checks {
		if check.Status == HealthStatusUnhealthy && check.Critical {
			return HealthStatusUnhealthy
		}
		if check.Status != HealthStatusHealthy {
			status = HealthStatusDegraded
		}
	}
	return status
}
