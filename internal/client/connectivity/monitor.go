// Package connectivity tracks whether the remote store is reachable.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/smartyedu/internal/logging"
	"github.com/dmitrijs2005/smartyedu/internal/watch"
)

// DefaultProbeTimeout bounds a single probe.
const DefaultProbeTimeout = 3 * time.Second

// Pinger is anything that can cheaply prove the remote side is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitor probes a Pinger on an interval and publishes transitions.
// It starts out offline until the first successful probe.
type Monitor struct {
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration
	logger   logging.Logger

	mu     sync.RWMutex
	online bool
	states *watch.Broadcaster[bool]
}

func NewMonitor(p Pinger, interval time.Duration, l logging.Logger) *Monitor {
	return &Monitor{
		pinger:   p,
		interval: interval,
		timeout:  DefaultProbeTimeout,
		logger:   l.With("module", "connectivity"),
		states:   watch.NewBroadcaster[bool](),
	}
}

// Online reports the result of the latest probe.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Watch streams connectivity changes, starting with the current state once
// a probe has completed.
func (m *Monitor) Watch() (<-chan bool, func()) {
	return m.states.Subscribe(4)
}

// Check runs one probe, records the result and returns it.
func (m *Monitor) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	err := m.pinger.Ping(ctx)
	cancel()

	m.set(ctx, err == nil)
	return err == nil
}

func (m *Monitor) set(ctx context.Context, online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	m.mu.Unlock()

	if _, published := m.states.Latest(); changed || !published {
		if changed {
			m.logger.Info(ctx, "connectivity changed", "online", online)
		}
		m.states.Publish(online)
	}
}

// Run probes immediately and then every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Check(ctx)
		case <-ctx.Done():
			m.states.Close()
			return
		}
	}
}
