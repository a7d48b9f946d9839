package gameserver

import (
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/cory-johannsen/gridlock/internal/game/engine"
	"github.com/cory-johannsen/gridlock/internal/game/matchmaking"
	"github.com/cory-johannsen/gridlock/internal/game/session"
	"github.com/cory-johannsen/gridlock/internal/transport/ws"
)

// handleCreate mints a session with the requester as seat X.
func (s *Server) handleCreate(conn session.HandleID, ack ws.AckFunc) {
	code, token, snap, err := s.registry.Create(conn)
	if err != nil {
		s.logger.Error("creating session", zap.Error(err))
		ack(ws.ErrorPayload{Error: "could not create game"})
		return
	}

	s.bindings.Bind(conn, code, engine.X, token)
	ack(createGameAck{GameCode: code, PlayerID: token})
	s.broadcast(snap)

	s.logger.Info("session created",
		zap.String("code", code),
		zap.Uint64("conn", uint64(conn)),
	)
}

// handleJoin seats the requester as O in an existing waiting session.
func (s *Server) handleJoin(conn session.HandleID, payload json.RawMessage, ack ws.AckFunc) {
	var req joinGameRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		ack(ws.ErrorPayload{Error: "invalid request"})
		return
	}

	token, snap, err := s.registry.Join(req.GameCode, conn)
	if err != nil {
		ack(ws.ErrorPayload{Error: err.Error()})
		return
	}

	s.bindings.Bind(conn, snap.GameCode, engine.O, token)
	ack(joinGameAck{PlayerID: token})
	s.broadcast(snap)

	s.logger.Info("player joined",
		zap.String("code", snap.GameCode),
		zap.Uint64("conn", uint64(conn)),
	)
}

// handleRejoin rebinds a returning player to the seat their token owns,
// cancelling any pending grace timer. Idempotent: repeated rejoins with
// the same token always yield the same symbol.
func (s *Server) handleRejoin(conn session.HandleID, payload json.RawMessage, ack ws.AckFunc) {
	var req rejoinGameRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		ack(ws.ErrorPayload{Error: "invalid request"})
		return
	}

	sym, snap, err := s.registry.Rejoin(req.GameCode, req.PlayerID, conn)
	if err != nil {
		ack(ws.ErrorPayload{Error: err.Error()})
		return
	}

	cancelled := s.reconnect.Cancel(req.PlayerID)
	s.bindings.Bind(conn, snap.GameCode, sym, req.PlayerID)
	ack(rejoinGameAck{Symbol: sym})
	// The rejoining client needs current state; other members receive the
	// same view idempotently.
	s.broadcast(snap)

	s.logger.Info("player rejoined",
		zap.String("code", snap.GameCode),
		zap.String("symbol", string(sym)),
		zap.Bool("timer_cancelled", cancelled),
	)
}

// handleMove applies a move for whatever seat the connection is bound to.
// Unbound connections are ignored; rejections go back as a private
// move-error and never produce a broadcast.
func (s *Server) handleMove(conn session.HandleID, payload json.RawMessage) {
	b, ok := s.bindings.Lookup(conn)
	if !ok {
		return
	}

	var req makeMoveRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sender.Unicast(conn, EventMoveError, moveErrorPayload{Message: "invalid move payload"})
		return
	}

	snap, err := s.registry.ApplyMove(b.Code, b.Symbol, req.Row, req.Col)
	if err != nil {
		var moveErr *engine.MoveError
		if errors.As(err, &moveErr) {
			s.sender.Unicast(conn, EventMoveError, moveErrorPayload{Message: moveErr.Error()})
		}
		// Session gone (raced a teardown): nothing to tell the client
		// beyond the next rejoin failing.
		return
	}

	s.broadcast(snap)
}

// handleFindMatch pairs the requester with the oldest waiter, or queues
// them. Successful pairing notifies both parties individually: the two
// connections share no session plumbing until this moment, so the session
// broadcast cannot carry the per-player code/symbol/token triple.
func (s *Server) handleFindMatch(conn session.HandleID, ack ws.AckFunc) {
	// A waiter asking again must never be dequeued as its own partner.
	if s.queue.Waiting(conn) {
		ack(ws.ErrorPayload{Error: matchmaking.ErrAlreadyQueued.Error()})
		return
	}

	partner, ok := s.queue.DequeueOldest()
	if !ok {
		if err := s.queue.Enqueue(conn); err != nil {
			ack(ws.ErrorPayload{Error: err.Error()})
		}
		return
	}

	code, tokenX, tokenO, snap, err := s.registry.CreatePaired(partner, conn)
	if err != nil {
		s.logger.Error("creating matched session", zap.Error(err))
		// Re-queue the waiter rather than dropping them.
		_ = s.queue.Enqueue(partner)
		ack(ws.ErrorPayload{Error: "could not create game"})
		return
	}

	s.bindings.Bind(partner, code, engine.X, tokenX)
	s.bindings.Bind(conn, code, engine.O, tokenO)

	s.sender.Unicast(partner, EventMatchFound, matchFoundPayload{GameCode: code, Symbol: engine.X, PlayerID: tokenX})
	s.sender.Unicast(conn, EventMatchFound, matchFoundPayload{GameCode: code, Symbol: engine.O, PlayerID: tokenO})
	s.broadcast(snap)

	s.logger.Info("match made",
		zap.String("code", code),
		zap.Uint64("seat_x_conn", uint64(partner)),
		zap.Uint64("seat_o_conn", uint64(conn)),
	)
}

// handleLeave is disconnect-equivalent cleanup without the grace period:
// the binding goes away immediately and no timer is scheduled for the
// leaver. The session itself survives only while some seat still has a
// live connection or a pending grace timer.
func (s *Server) handleLeave(conn session.HandleID) {
	b, ok := s.bindings.Unbind(conn)
	if !ok {
		return
	}
	if !s.registry.ClearConnection(b.Code, b.Symbol) {
		return
	}

	s.sender.Multicast(s.registry.Connections(b.Code), EventOpponentDisconnected, struct{}{})

	if !s.registry.HasLiveConnection(b.Code) {
		tokenX, tokenO, ok := s.registry.SeatTokens(b.Code)
		if ok && !s.reconnect.Pending(tokenX) && !s.reconnect.Pending(tokenO) {
			s.registry.Remove(b.Code)
			s.logger.Info("session abandoned, removed", zap.String("code", b.Code))
			return
		}
	}

	s.logger.Info("player left",
		zap.String("code", b.Code),
		zap.String("symbol", string(b.Symbol)),
	)
}
