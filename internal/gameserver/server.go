// Package gameserver routes inbound connection events through the game
// registry, binding table, reconnection manager, and matchmaking queue,
// and pushes the canonical session view back out after every mutation.
package gameserver

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/gridlock/internal/game/engine"
	"github.com/cory-johannsen/gridlock/internal/game/matchmaking"
	"github.com/cory-johannsen/gridlock/internal/game/reconnect"
	"github.com/cory-johannsen/gridlock/internal/game/registry"
	"github.com/cory-johannsen/gridlock/internal/game/session"
	"github.com/cory-johannsen/gridlock/internal/transport/ws"
)

// Sender delivers outbound events. Implemented by the websocket hub.
type Sender interface {
	Unicast(conn session.HandleID, event string, payload any)
	Multicast(conns []session.HandleID, event string, payload any)
}

// Server is the event-handling layer. It implements ws.Handler.
//
// Events arrive from many connection goroutines and grace timers fire on
// their own goroutines; the single server mutex serializes all of them,
// reproducing a single-threaded event loop: no two events interleave
// their effects on any session.
type Server struct {
	mu        sync.Mutex
	registry  *registry.Manager
	bindings  *session.Manager
	reconnect *reconnect.Manager
	queue     *matchmaking.Queue
	sender    Sender
	logger    *zap.Logger
}

// NewServer creates the event-handling layer.
//
// Precondition: reg, bindings, and logger must be non-nil; gracePeriod
// follows reconnect.NewManager's fallback when non-positive.
// Postcondition: Returns a Server whose grace-timer expiry path is wired;
// SetSender must be called before any event is handled.
func NewServer(reg *registry.Manager, bindings *session.Manager, gracePeriod time.Duration, logger *zap.Logger) *Server {
	s := &Server{
		registry: reg,
		bindings: bindings,
		queue:    matchmaking.NewQueue(),
		logger:   logger,
	}
	s.reconnect = reconnect.NewManager(gracePeriod, s.onGraceExpired)
	return s
}

// SetSender attaches the outbound delivery path. Called once during
// wiring, before the listener starts accepting connections.
func (s *Server) SetSender(sender Sender) {
	s.sender = sender
}

// Reconnect exposes the reconnection manager for lifecycle shutdown.
func (s *Server) Reconnect() *reconnect.Manager {
	return s.reconnect
}

// HandleEvent dispatches one inbound event.
func (s *Server) HandleEvent(conn session.HandleID, event string, payload json.RawMessage, ack ws.AckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch event {
	case EventCreateGame:
		s.handleCreate(conn, ack)
	case EventJoinGame:
		s.handleJoin(conn, payload, ack)
	case EventRejoinGame:
		s.handleRejoin(conn, payload, ack)
	case EventMakeMove:
		s.handleMove(conn, payload)
	case EventFindMatch:
		s.handleFindMatch(conn, ack)
	case EventCancelMatch:
		s.queue.Remove(conn)
	case EventLeaveGame:
		s.handleLeave(conn)
	default:
		s.logger.Debug("unknown event ignored",
			zap.Uint64("conn", uint64(conn)),
			zap.String("event", event),
		)
	}
}

// HandleDisconnect processes a substrate-level connection loss: a queued
// waiter is silently dequeued, a seated player enters the grace period.
func (s *Server) HandleDisconnect(conn session.HandleID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Disconnect is an implicit cancel-match for queued-but-unmatched
	// connections.
	s.queue.Remove(conn)

	b, ok := s.bindings.Unbind(conn)
	if !ok {
		return
	}
	if !s.registry.ClearConnection(b.Code, b.Symbol) {
		return
	}

	// The session stays addressable by code; opponents learn the seat went
	// dark and the grace clock starts.
	s.sender.Multicast(s.registry.Connections(b.Code), EventOpponentDisconnected, struct{}{})
	s.reconnect.Schedule(b.Code, b.Symbol, b.PlayerToken)

	s.logger.Info("player disconnected, grace period started",
		zap.String("code", b.Code),
		zap.String("symbol", string(b.Symbol)),
		zap.Duration("grace", s.reconnect.GracePeriod()),
	)
}

// onGraceExpired is the grace-timer callback. The timer may have lost a
// race with a rejoin, so live connectivity is re-checked here before the
// session is destroyed.
func (s *Server) onGraceExpired(code string, sym engine.Symbol, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.registry.SeatConnected(code, sym) {
		return
	}
	s.registry.Remove(code)
	s.logger.Info("grace period expired, session removed",
		zap.String("code", code),
		zap.String("symbol", string(sym)),
	)
}

// broadcast pushes the canonical view to every connected member of the
// session. Called after every accepted mutation, never after a rejection.
func (s *Server) broadcast(snap *registry.Snapshot) {
	s.sender.Multicast(s.registry.Connections(snap.GameCode), EventGameUpdate, snap)
}
