// Package reconnect implements the disconnect grace period: a cancellable
// timer per durable player token that tears the session down only if the
// player has not reclaimed their seat by the deadline.
package reconnect

import (
	"sync"
	"time"

	"github.com/cory-johannsen/gridlock/internal/game/engine"
)

// DefaultGracePeriod is how long a disconnected player may be away before
// their session is destroyed.
const DefaultGracePeriod = 30 * time.Second

// ExpireFunc is called when a grace timer fires. The callback must
// re-check live connectivity for (code, sym) before deleting anything:
// cancellation is not guaranteed to win the race against an in-flight
// fire, so the fire-time check is what makes a rejoin safe.
type ExpireFunc func(code string, sym engine.Symbol, token string)

// graceTimer is one pending disconnect. Stop-flagged like a combat round
// timer so a late fire after Cancel is a no-op.
type graceTimer struct {
	timer   *time.Timer
	stopped bool
}

// Manager owns the token → pending-disconnect timer mapping.
// All methods are safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	timers   map[string]*graceTimer
	grace    time.Duration
	onExpire ExpireFunc
}

// NewManager creates a Manager firing onExpire after grace.
//
// Precondition: onExpire must not be nil. A non-positive grace falls back
// to DefaultGracePeriod.
func NewManager(grace time.Duration, onExpire ExpireFunc) *Manager {
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	return &Manager{
		timers:   make(map[string]*graceTimer),
		grace:    grace,
		onExpire: onExpire,
	}
}

// GracePeriod returns the configured grace duration.
func (m *Manager) GracePeriod() time.Duration {
	return m.grace
}

// Schedule starts the grace timer for token. A token only disconnects
// from a connected state, so at most one timer per token can be pending;
// a stale entry is stopped and replaced rather than trusted.
func (m *Manager) Schedule(code string, sym engine.Symbol, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.timers[token]; ok {
		old.stopped = true
		old.timer.Stop()
	}

	gt := &graceTimer{}
	gt.timer = time.AfterFunc(m.grace, func() {
		m.mu.Lock()
		fired := !gt.stopped
		delete(m.timers, token)
		m.mu.Unlock()
		if fired {
			m.onExpire(code, sym, token)
		}
	})
	m.timers[token] = gt
}

// Cancel stops the pending timer for token. Idempotent: cancelling an
// already-fired or never-scheduled timer is a no-op.
//
// Postcondition: Returns true when a pending timer was cancelled.
func (m *Manager) Cancel(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	gt, ok := m.timers[token]
	if !ok {
		return false
	}
	gt.stopped = true
	gt.timer.Stop()
	delete(m.timers, token)
	return true
}

// Pending reports whether a grace timer is outstanding for token.
func (m *Manager) Pending(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.timers[token]
	return ok
}

// PendingCount returns the number of outstanding timers.
func (m *Manager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// Stop cancels all pending timers. Used at shutdown.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for token, gt := range m.timers {
		gt.stopped = true
		gt.timer.Stop()
		delete(m.timers, token)
	}
}
