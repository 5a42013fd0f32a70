package tracking

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lameck50/backend-kami/internal/events"
	"github.com/lameck50/backend-kami/internal/metrics"
	"github.com/lameck50/backend-kami/internal/users"
)

const (
	DefaultInactivityInterval  = 2 * time.Minute
	DefaultInactivityThreshold = 5 * time.Minute
)

type MonitorOption func(*InactivityMonitor)

func WithInterval(d time.Duration) MonitorOption {
	return func(m *InactivityMonitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

func WithThreshold(d time.Duration) MonitorOption {
	return func(m *InactivityMonitor) {
		if d > 0 {
			m.threshold = d
		}
	}
}

func WithMonitorClock(now func() time.Time) MonitorOption {
	return func(m *InactivityMonitor) {
		m.now = now
	}
}

// InactivityMonitor demotes on-duty agents to signal_lost once their last
// sample is older than the threshold. It is the only writer of signal_lost.
type InactivityMonitor struct {
	store     Store
	publisher Publisher
	interval  time.Duration
	threshold time.Duration
	now       func() time.Time

	mu      sync.Mutex
	stopCh  chan struct{}
	done    chan struct{}
	running bool
}

func NewInactivityMonitor(store Store, publisher Publisher, opts ...MonitorOption) *InactivityMonitor {
	m := &InactivityMonitor{
		store:     store,
		publisher: publisher,
		interval:  DefaultInactivityInterval,
		threshold: DefaultInactivityThreshold,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *InactivityMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.done = make(chan struct{})

	go m.loop(ctx, m.stopCh, m.done)

	slog.Info("Inactivity monitor started", "interval", m.interval, "threshold", m.threshold)
}

func (m *InactivityMonitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopCh)
	done := m.done
	m.mu.Unlock()

	<-done
	slog.Info("Inactivity monitor stopped")
}

// loop runs sweeps on its own goroutine, so a sweep always completes or hits
// its deadline before the next tick is served.
func (m *InactivityMonitor) loop(ctx context.Context, stopCh, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, m.interval)
			if _, err := m.Sweep(sweepCtx); err != nil {
				slog.Error("Inactivity sweep failed", "error", err)
			}
			cancel()
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Sweep checks every agent once and returns how many were demoted. A failure
// on one agent is logged and does not stop the others.
func (m *InactivityMonitor) Sweep(ctx context.Context) (int, error) {
	started := time.Now()
	defer func() { metrics.ObserveSweep(time.Since(started).Seconds()) }()

	agents, err := m.store.ListAgents(ctx, users.RoleAgent)
	if err != nil {
		return 0, storageErr("list agents", err)
	}

	now := m.now()
	demoted := 0
	for _, a := range agents {
		if err := ctx.Err(); err != nil {
			return demoted, err
		}
		if a.Status != StatusOnDuty {
			continue
		}

		latest, err := m.store.LatestPositions(ctx, a.ID, 1)
		if err != nil {
			slog.Warn("Failed to load last position during sweep", "agent_id", a.ID, "error", err)
			continue
		}
		if len(latest) > 0 && now.Sub(latest[0].CapturedAt) <= m.threshold {
			continue
		}

		if err := m.store.SetStatus(ctx, a.ID, StatusSignalLost); err != nil {
			slog.Warn("Failed to demote agent", "agent_id", a.ID, "error", err)
			continue
		}

		demoted++
		metrics.ObserveDemotion()
		slog.Info("Agent signal lost", "agent_id", a.ID, "threshold", m.threshold)
		m.publisher.Publish(events.New(events.TypeStatusChanged, events.StatusChanged{
			AgentID: a.ID,
			From:    string(StatusOnDuty),
			To:      string(StatusSignalLost),
		}))
	}

	if demoted > 0 {
		slog.Info("Inactivity sweep completed", "agents", len(agents), "demoted", demoted)
	}
	return demoted, nil
}
