// Package heartbeat implements the Heartbeat Monitor (C6): a periodic sweep
// that detects shuttles gone silent or stuck in ERROR and probes them with
// a bypass STATUS command (spec §4.6).
package heartbeat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.corp.example.com/shuttlegateway/internal/state"
	"go.corp.example.com/shuttlegateway/pkg/shuttleproto"
)

// Prober sends a bypass command to a shuttle, retrying per its own policy.
// cmd/gateway supplies one that sends BypassStatusCommand through the
// transport sender under dispatch.HeartbeatReconnectRetryPolicy.
type Prober func(ctx context.Context, shuttleID string) error

// Monitor runs the heartbeat sweep.
type Monitor struct {
	store    state.Store
	directory interface{ ShuttleIDs() []string }
	probe    Prober
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	failed map[string]bool
}

// New builds a Monitor. interval is the heartbeat interval used both to
// schedule the sweep and, doubled, as the staleness threshold (spec §4.6:
// "now - last_seen > 2*heartbeat_interval").
func New(store state.Store, directory interface{ ShuttleIDs() []string }, probe Prober, interval time.Duration, logger *slog.Logger) *Monitor {
	return &Monitor{
		store:     store,
		directory: directory,
		probe:     probe,
		interval:  interval,
		logger:    logger,
		failed:    make(map[string]bool),
	}
}

// Run sweeps every heartbeat interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweepOnce(ctx)
		}
	}
}

// sweepOnce inspects every shuttle once, per spec §4.6.
func (m *Monitor) sweepOnce(ctx context.Context) {
	staleThreshold := 2 * m.interval
	now := float64(time.Now().Unix())

	for _, shuttleID := range m.directory.ShuttleIDs() {
		cur, err := m.store.Get(ctx, shuttleID)
		if err != nil {
			continue
		}

		stale := now-cur.LastSeen > staleThreshold.Seconds()
		if !stale && cur.Status != state.StatusError {
			continue
		}

		m.markFailing(shuttleID)

		if err := m.probe(ctx, shuttleID); err != nil {
			continue
		}
		m.clearFailing(ctx, shuttleID)
	}
}

// markFailing adds shuttleID to the failed set, logging a warning only on
// the transition into failing (spec §12 first-failure-only warning log).
func (m *Monitor) markFailing(shuttleID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failed[shuttleID] {
		return
	}
	m.failed[shuttleID] = true
	m.logger.Warn("shuttle missed its heartbeat window", "shuttle", shuttleID)
}

// clearFailing removes shuttleID from the failed set and resets its
// error_code, driving status to UNKNOWN rather than assuming FREE: the
// shuttle's own next status line over the inbound listener is authoritative.
func (m *Monitor) clearFailing(ctx context.Context, shuttleID string) {
	m.mu.Lock()
	wasFailing := m.failed[shuttleID]
	delete(m.failed, shuttleID)
	m.mu.Unlock()
	if !wasFailing {
		return
	}

	m.store.Update(ctx, shuttleID, func(current state.ShuttleState) state.ShuttleState {
		current.Status = state.StatusUnknown
		current.ErrorCode = ""
		return current
	})
}

// IsFailing reports whether shuttleID is currently in the failed set.
func (m *Monitor) IsFailing(shuttleID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failed[shuttleID]
}

// BypassStatusCommand is the command a Prober implementation should submit
// as its bypass probe (spec §4.6).
const BypassStatusCommand = shuttleproto.CommandStatus
