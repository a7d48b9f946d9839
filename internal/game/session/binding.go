// Package session tracks which live connection is bound to which seat of
// which game. Bindings are ephemeral: one exists per connection currently
// participating in a session, and it dies with the connection. The durable
// player token inside the binding is what survives a reconnect.
package session

import (
	"sync"

	"github.com/cory-johannsen/gridlock/internal/game/engine"
)

// HandleID identifies one live connection. Handles are minted by the
// transport layer and never reused within a process lifetime.
type HandleID uint64

// Binding maps a connection to its seat in a game.
type Binding struct {
	// Conn is the live connection holding the seat.
	Conn HandleID
	// Code is the game code. Weak reference: the session may have been
	// removed since the binding was created, so always re-validate.
	Code string
	// Symbol is the seat the connection occupies.
	Symbol engine.Symbol
	// PlayerToken is the durable token for the seat.
	PlayerToken string
}

// Manager is the connection-handle → binding table.
// All methods are safe for concurrent use.
type Manager struct {
	mu       sync.RWMutex
	bindings map[HandleID]Binding
}

// NewManager creates an empty binding Manager.
func NewManager() *Manager {
	return &Manager{
		bindings: make(map[HandleID]Binding),
	}
}

// Bind records that conn occupies the given seat. An existing binding for
// conn is replaced; a connection participates in at most one session.
func (m *Manager) Bind(conn HandleID, code string, sym engine.Symbol, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bindings[conn] = Binding{Conn: conn, Code: code, Symbol: sym, PlayerToken: token}
}

// Lookup returns the binding for conn.
//
// Postcondition: Returns (binding, true) if bound, or (zero, false) otherwise.
func (m *Manager) Lookup(conn HandleID) (Binding, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bindings[conn]
	return b, ok
}

// Unbind removes and returns the binding for conn.
//
// Postcondition: Returns (binding, true) if conn was bound, or (zero, false)
// otherwise. Unbinding an unbound connection is a no-op.
func (m *Manager) Unbind(conn HandleID) (Binding, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bindings[conn]
	if ok {
		delete(m.bindings, conn)
	}
	return b, ok
}

// Count returns the number of live bindings.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bindings)
}
