package gameserver

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/gridlock/internal/game/engine"
	"github.com/cory-johannsen/gridlock/internal/game/registry"
	"github.com/cory-johannsen/gridlock/internal/game/session"
	"github.com/cory-johannsen/gridlock/internal/transport/ws"
)

// sentEvent is one recorded outbound delivery.
type sentEvent struct {
	conns   []session.HandleID
	event   string
	payload any
}

// fakeSender records everything the server pushes out.
type fakeSender struct {
	mu     sync.Mutex
	events []sentEvent
}

func (f *fakeSender) Unicast(conn session.HandleID, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, sentEvent{conns: []session.HandleID{conn}, event: event, payload: payload})
}

func (f *fakeSender) Multicast(conns []session.HandleID, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, sentEvent{conns: conns, event: event, payload: payload})
}

func (f *fakeSender) named(event string) []sentEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentEvent
	for _, e := range f.events {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeSender) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = nil
}

func newTestServer(t *testing.T, grace time.Duration) (*Server, *fakeSender) {
	t.Helper()
	s := NewServer(registry.NewManager(4), session.NewManager(), grace, zap.NewNop())
	sender := &fakeSender{}
	s.SetSender(sender)
	t.Cleanup(s.reconnect.Stop)
	return s, sender
}

// ackCapture returns an AckFunc plus a getter for the last payload.
func ackCapture() (ws.AckFunc, func() any) {
	var mu sync.Mutex
	var got any
	return func(payload any) {
			mu.Lock()
			defer mu.Unlock()
			got = payload
		}, func() any {
			mu.Lock()
			defer mu.Unlock()
			return got
		}
}

func createGame(t *testing.T, s *Server, conn session.HandleID) (code, token string) {
	t.Helper()
	ack, got := ackCapture()
	s.HandleEvent(conn, EventCreateGame, nil, ack)
	res, ok := got().(createGameAck)
	require.True(t, ok, "create ack was %#v", got())
	return res.GameCode, res.PlayerID
}

func joinGame(t *testing.T, s *Server, conn session.HandleID, code string) string {
	t.Helper()
	ack, got := ackCapture()
	payload := json.RawMessage(fmt.Sprintf(`{"gameCode":%q}`, code))
	s.HandleEvent(conn, EventJoinGame, payload, ack)
	res, ok := got().(joinGameAck)
	require.True(t, ok, "join ack was %#v", got())
	return res.PlayerID
}

func rejoinGame(s *Server, conn session.HandleID, code, token string) any {
	ack, got := ackCapture()
	payload := json.RawMessage(fmt.Sprintf(`{"gameCode":%q,"playerId":%q}`, code, token))
	s.HandleEvent(conn, EventRejoinGame, payload, ack)
	return got()
}

func makeMove(s *Server, conn session.HandleID, row, col int) {
	payload := json.RawMessage(fmt.Sprintf(`{"row":%d,"col":%d}`, row, col))
	s.HandleEvent(conn, EventMakeMove, payload, func(any) {})
}

func TestCreateAndJoinBroadcasts(t *testing.T) {
	s, sender := newTestServer(t, time.Minute)

	code, token := createGame(t, s, 1)
	assert.Len(t, code, 4)
	assert.NotEmpty(t, token)

	updates := sender.named(EventGameUpdate)
	require.Len(t, updates, 1)
	snap := updates[0].payload.(*registry.Snapshot)
	assert.Equal(t, engine.StatusWaiting, snap.Status)
	assert.Equal(t, []session.HandleID{1}, updates[0].conns)

	joinGame(t, s, 2, code)
	updates = sender.named(EventGameUpdate)
	require.Len(t, updates, 2)
	snap = updates[1].payload.(*registry.Snapshot)
	assert.Equal(t, engine.StatusPlaying, snap.Status)
	assert.ElementsMatch(t, []session.HandleID{1, 2}, updates[1].conns)
}

func TestJoinErrors(t *testing.T) {
	s, _ := newTestServer(t, time.Minute)
	code, _ := createGame(t, s, 1)
	joinGame(t, s, 2, code)

	ack, got := ackCapture()
	s.HandleEvent(3, EventJoinGame, json.RawMessage(fmt.Sprintf(`{"gameCode":%q}`, code)), ack)
	res, ok := got().(ws.ErrorPayload)
	require.True(t, ok)
	assert.Equal(t, "game is full", res.Error)

	ack, got = ackCapture()
	s.HandleEvent(3, EventJoinGame, json.RawMessage(`{"gameCode":"ZZZZ"}`), ack)
	res, ok = got().(ws.ErrorPayload)
	require.True(t, ok)
	assert.Equal(t, "game not found", res.Error)

	ack, got = ackCapture()
	s.HandleEvent(3, EventJoinGame, json.RawMessage(`{broken`), ack)
	_, ok = got().(ws.ErrorPayload)
	assert.True(t, ok)
}

func TestMoveFlowAndErrors(t *testing.T) {
	s, sender := newTestServer(t, time.Minute)
	code, _ := createGame(t, s, 1)
	joinGame(t, s, 2, code)
	sender.reset()

	// O out of turn: private error, no broadcast.
	makeMove(s, 2, 0, 0)
	moveErrs := sender.named(EventMoveError)
	require.Len(t, moveErrs, 1)
	assert.Equal(t, []session.HandleID{2}, moveErrs[0].conns)
	assert.Equal(t, "not your turn", moveErrs[0].payload.(moveErrorPayload).Message)
	assert.Empty(t, sender.named(EventGameUpdate))

	// Accepted moves each broadcast exactly once, in order.
	makeMove(s, 1, 1, 1)
	makeMove(s, 2, 0, 0)
	updates := sender.named(EventGameUpdate)
	require.Len(t, updates, 2)
	first := updates[0].payload.(*registry.Snapshot)
	second := updates[1].payload.(*registry.Snapshot)
	assert.Equal(t, 1, first.Board.FilledCells())
	assert.Equal(t, 2, second.Board.FilledCells())
	assert.Equal(t, engine.X, second.CurrentTurn)

	// Unbound connections are ignored entirely.
	sender.reset()
	makeMove(s, 99, 1, 1)
	assert.Empty(t, sender.events)
}

func TestDisconnectThenRejoinWithinGrace(t *testing.T) {
	s, sender := newTestServer(t, time.Minute)
	code, tokenX := createGame(t, s, 1)
	joinGame(t, s, 2, code)
	makeMove(s, 1, 1, 1)
	sender.reset()

	s.HandleDisconnect(1)

	notices := sender.named(EventOpponentDisconnected)
	require.Len(t, notices, 1)
	assert.Equal(t, []session.HandleID{2}, notices[0].conns)
	assert.True(t, s.reconnect.Pending(tokenX))

	// Rejoin on a fresh connection restores the seat with zero data loss.
	res := rejoinGame(s, 3, code, tokenX)
	rejoined, ok := res.(rejoinGameAck)
	require.True(t, ok, "rejoin ack was %#v", res)
	assert.Equal(t, engine.X, rejoined.Symbol)
	assert.False(t, s.reconnect.Pending(tokenX))

	updates := sender.named(EventGameUpdate)
	require.NotEmpty(t, updates)
	snap := updates[len(updates)-1].payload.(*registry.Snapshot)
	assert.Equal(t, engine.X, snap.Board[1][1])
	assert.Equal(t, engine.O, snap.CurrentTurn)
	assert.Equal(t, engine.StatusPlaying, snap.Status)

	// The session survived: rejoining again still works.
	again := rejoinGame(s, 4, code, tokenX)
	rejoined, ok = again.(rejoinGameAck)
	require.True(t, ok)
	assert.Equal(t, engine.X, rejoined.Symbol)
}

func TestGraceExpiryRemovesSession(t *testing.T) {
	s, _ := newTestServer(t, 20*time.Millisecond)
	code, tokenX := createGame(t, s, 1)
	joinGame(t, s, 2, code)

	s.HandleDisconnect(1)

	require.Eventually(t, func() bool {
		return !s.reconnect.Pending(tokenX)
	}, time.Second, 5*time.Millisecond)

	// The whole session is gone, regardless of seat O's connectivity.
	res := rejoinGame(s, 3, code, tokenX)
	errRes, ok := res.(ws.ErrorPayload)
	require.True(t, ok, "rejoin ack was %#v", res)
	assert.Equal(t, "game not found", errRes.Error)
}

func TestRejoinRacesTimer(t *testing.T) {
	s, _ := newTestServer(t, 30*time.Millisecond)
	code, tokenX := createGame(t, s, 1)
	joinGame(t, s, 2, code)

	s.HandleDisconnect(1)
	res := rejoinGame(s, 3, code, tokenX)
	_, ok := res.(rejoinGameAck)
	require.True(t, ok)

	// Even after the original deadline passes, the session must survive:
	// the timer was cancelled and the fire-time check guards the rest.
	time.Sleep(80 * time.Millisecond)
	again := rejoinGame(s, 4, code, tokenX)
	_, ok = again.(rejoinGameAck)
	assert.True(t, ok)
}

func TestMatchmakingFIFO(t *testing.T) {
	s, sender := newTestServer(t, time.Minute)

	noAck := func(any) {}
	s.HandleEvent(1, EventFindMatch, nil, noAck)
	assert.Empty(t, sender.named(EventMatchFound))

	s.HandleEvent(2, EventFindMatch, nil, noAck)
	found := sender.named(EventMatchFound)
	require.Len(t, found, 2)

	a := found[0].payload.(matchFoundPayload)
	b := found[1].payload.(matchFoundPayload)
	assert.Equal(t, []session.HandleID{1}, found[0].conns)
	assert.Equal(t, []session.HandleID{2}, found[1].conns)
	assert.Equal(t, a.GameCode, b.GameCode)
	assert.Equal(t, engine.X, a.Symbol)
	assert.Equal(t, engine.O, b.Symbol)
	assert.NotEqual(t, a.PlayerID, b.PlayerID)

	// C waits until a fourth requester arrives.
	s.HandleEvent(3, EventFindMatch, nil, noAck)
	assert.Len(t, sender.named(EventMatchFound), 2)
	assert.Equal(t, 1, s.queue.Len())

	s.HandleEvent(4, EventFindMatch, nil, noAck)
	found = sender.named(EventMatchFound)
	require.Len(t, found, 4)
	c := found[2].payload.(matchFoundPayload)
	d := found[3].payload.(matchFoundPayload)
	assert.Equal(t, []session.HandleID{3}, found[2].conns)
	assert.Equal(t, []session.HandleID{4}, found[3].conns)
	assert.NotEqual(t, a.GameCode, c.GameCode)
	assert.Equal(t, c.GameCode, d.GameCode)
}

func TestFindMatchTwice(t *testing.T) {
	s, sender := newTestServer(t, time.Minute)

	s.HandleEvent(1, EventFindMatch, nil, func(any) {})
	ack, got := ackCapture()
	s.HandleEvent(1, EventFindMatch, nil, ack)
	res, ok := got().(ws.ErrorPayload)
	require.True(t, ok)
	assert.Equal(t, "already waiting for a match", res.Error)

	// The repeated request must never pair the waiter with itself.
	assert.Empty(t, sender.named(EventMatchFound))
	assert.Equal(t, 1, s.queue.Len())

	// The waiter is still first in line for a genuine second player.
	s.HandleEvent(2, EventFindMatch, nil, func(any) {})
	found := sender.named(EventMatchFound)
	require.Len(t, found, 2)
	assert.Equal(t, []session.HandleID{1}, found[0].conns)
	assert.Equal(t, []session.HandleID{2}, found[1].conns)
	assert.Equal(t, 0, s.queue.Len())
}

func TestCancelMatch(t *testing.T) {
	s, sender := newTestServer(t, time.Minute)

	noAck := func(any) {}
	s.HandleEvent(1, EventFindMatch, nil, noAck)
	s.HandleEvent(1, EventCancelMatch, nil, noAck)
	assert.Equal(t, 0, s.queue.Len())

	// Cancelling when never queued must not fail.
	s.HandleEvent(9, EventCancelMatch, nil, noAck)

	// The cancelled waiter is not paired.
	s.HandleEvent(2, EventFindMatch, nil, noAck)
	assert.Empty(t, sender.named(EventMatchFound))
}

func TestDisconnectWhileQueuedIsImplicitCancel(t *testing.T) {
	s, sender := newTestServer(t, time.Minute)

	s.HandleEvent(1, EventFindMatch, nil, func(any) {})
	s.HandleDisconnect(1)
	assert.Equal(t, 0, s.queue.Len())

	s.HandleEvent(2, EventFindMatch, nil, func(any) {})
	assert.Empty(t, sender.named(EventMatchFound))
	assert.Equal(t, 1, s.queue.Len())
}

func TestLeaveGame(t *testing.T) {
	s, sender := newTestServer(t, time.Minute)
	code, tokenX := createGame(t, s, 1)
	joinGame(t, s, 2, code)
	sender.reset()

	s.HandleEvent(1, EventLeaveGame, nil, func(any) {})

	// No grace timer for a voluntary leave; the opponent is told.
	assert.False(t, s.reconnect.Pending(tokenX))
	notices := sender.named(EventOpponentDisconnected)
	require.Len(t, notices, 1)
	assert.Equal(t, []session.HandleID{2}, notices[0].conns)

	// Session stays addressable while seat O is live.
	res := rejoinGame(s, 3, code, tokenX)
	_, ok := res.(rejoinGameAck)
	assert.True(t, ok)
}

func TestBothLeaveRemovesSession(t *testing.T) {
	s, _ := newTestServer(t, time.Minute)
	code, tokenX := createGame(t, s, 1)
	joinGame(t, s, 2, code)

	noAck := func(any) {}
	s.HandleEvent(1, EventLeaveGame, nil, noAck)
	s.HandleEvent(2, EventLeaveGame, nil, noAck)

	res := rejoinGame(s, 3, code, tokenX)
	errRes, ok := res.(ws.ErrorPayload)
	require.True(t, ok)
	assert.Equal(t, "game not found", errRes.Error)
}

func TestLeaveDuringOpponentGracePreservesTimer(t *testing.T) {
	s, _ := newTestServer(t, 30*time.Millisecond)
	code, tokenX := createGame(t, s, 1)
	joinGame(t, s, 2, code)

	// X disconnects (grace timer pending), then O leaves voluntarily.
	s.HandleDisconnect(1)
	require.True(t, s.reconnect.Pending(tokenX))
	s.HandleEvent(2, EventLeaveGame, nil, func(any) {})

	// The pending timer still governs teardown: the session exists until
	// it expires.
	res := rejoinGame(s, 3, code, tokenX)
	_, ok := res.(rejoinGameAck)
	assert.True(t, ok)
}

func TestUnknownEventIgnored(t *testing.T) {
	s, sender := newTestServer(t, time.Minute)
	s.HandleEvent(1, "teleport", json.RawMessage(`{"x":1}`), func(any) {})
	assert.Empty(t, sender.events)
}

func TestDisconnectUnknownConnection(t *testing.T) {
	s, sender := newTestServer(t, time.Minute)
	s.HandleDisconnect(12345)
	assert.Empty(t, sender.events)
}
