// Package registry owns the in-memory store of active game sessions keyed
// by their short shareable code. It is the single mutation path for
// session state: every create, join, rejoin, and move goes through the
// Manager under one mutex, which gives each session a total order of
// mutations even though events arrive from many connection goroutines.
package registry

import (
	"sync"

	"github.com/google/uuid"

	"github.com/cory-johannsen/gridlock/internal/game/engine"
	"github.com/cory-johannsen/gridlock/internal/game/session"
)

// seat holds one side of a game: the durable token that owns it and the
// live connection currently speaking for it, if any.
type seat struct {
	token string
	conn  session.HandleID
	live  bool
}

// gameSession is the registry's internal session record. It never leaves
// the package; callers see Snapshots.
type gameSession struct {
	code   string
	board  engine.Board
	turn   engine.Symbol
	status engine.Status
	winner engine.Symbol
	seatX  seat
	seatO  seat
}

func (s *gameSession) seat(sym engine.Symbol) *seat {
	if sym == engine.X {
		return &s.seatX
	}
	return &s.seatO
}

// Manager is the game registry.
type Manager struct {
	mu         sync.Mutex
	sessions   map[string]*gameSession
	codeLength int
}

// NewManager creates an empty registry generating codes of the given
// length. A non-positive length falls back to DefaultCodeLength.
func NewManager(codeLength int) *Manager {
	if codeLength <= 0 {
		codeLength = DefaultCodeLength
	}
	return &Manager{
		sessions:   make(map[string]*gameSession),
		codeLength: codeLength,
	}
}

// Create makes a fresh waiting session with seat X owned by a newly
// minted player token and bound to conn.
//
// Postcondition: Returns the code, seat X's token, and the initial
// snapshot, or ErrCodeSpaceExhausted if no unused code could be drawn.
func (m *Manager) Create(conn session.HandleID) (code, token string, snap *Snapshot, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	code, err = m.unusedCodeLocked()
	if err != nil {
		return "", "", nil, err
	}

	s := &gameSession{
		code:   code,
		turn:   engine.X,
		status: engine.StatusWaiting,
		seatX:  seat{token: uuid.New().String(), conn: conn, live: true},
	}
	m.sessions[code] = s
	return code, s.seatX.token, m.snapshotLocked(s), nil
}

// CreatePaired makes a session for two matched connections, seat X for
// connX and seat O for connO, already in playing status. Used by
// matchmaking, where both players exist before the session does.
func (m *Manager) CreatePaired(connX, connO session.HandleID) (code, tokenX, tokenO string, snap *Snapshot, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	code, err = m.unusedCodeLocked()
	if err != nil {
		return "", "", "", nil, err
	}

	s := &gameSession{
		code:   code,
		turn:   engine.X,
		status: engine.StatusPlaying,
		seatX:  seat{token: uuid.New().String(), conn: connX, live: true},
		seatO:  seat{token: uuid.New().String(), conn: connO, live: true},
	}
	m.sessions[code] = s
	return code, s.seatX.token, s.seatO.token, m.snapshotLocked(s), nil
}

func (m *Manager) unusedCodeLocked() (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := randomCode(m.codeLength)
		if err != nil {
			return "", err
		}
		if _, taken := m.sessions[code]; !taken {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

// Join seats conn as O in the session for code.
//
// Postcondition: On success the session is in playing status and the
// returned token owns seat O. Fails with ErrNotFound or ErrSessionFull
// without mutating anything.
func (m *Manager) Join(code string, conn session.HandleID) (token string, snap *Snapshot, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[NormalizeCode(code)]
	if !ok {
		return "", nil, ErrNotFound
	}
	if s.seatO.token != "" {
		return "", nil, ErrSessionFull
	}

	s.seatO = seat{token: uuid.New().String(), conn: conn, live: true}
	s.status = engine.StatusPlaying
	return s.seatO.token, m.snapshotLocked(s), nil
}

// Rejoin rebinds conn to whichever seat the token owns.
//
// Postcondition: Returns the seat's symbol — the same symbol on every
// call with the same token. Fails with ErrNotFound or ErrUnknownPlayer
// without mutating anything.
func (m *Manager) Rejoin(code, token string, conn session.HandleID) (engine.Symbol, *Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[NormalizeCode(code)]
	if !ok {
		return "", nil, ErrNotFound
	}

	// An unassigned seat has an empty token; an empty client token must
	// not match it.
	if token == "" {
		return "", nil, ErrUnknownPlayer
	}
	var sym engine.Symbol
	switch token {
	case s.seatX.token:
		sym = engine.X
	case s.seatO.token:
		sym = engine.O
	default:
		return "", nil, ErrUnknownPlayer
	}

	st := s.seat(sym)
	st.conn = conn
	st.live = true
	return sym, m.snapshotLocked(s), nil
}

// ApplyMove validates and applies a move for the given seat.
//
// Postcondition: On success the board, turn, status, and winner reflect
// the move and the updated snapshot is returned. On rejection a
// *engine.MoveError is returned and nothing is mutated; terminal
// sessions are never mutated.
func (m *Manager) ApplyMove(code string, sym engine.Symbol, row, col int) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[NormalizeCode(code)]
	if !ok {
		return nil, ErrNotFound
	}

	if moveErr := engine.Legal(s.status, s.turn, s.board, row, col, sym); moveErr != nil {
		return nil, moveErr
	}

	board, outcome := engine.Apply(s.board, row, col, sym)
	s.board = board
	s.status = outcome.Status
	s.winner = outcome.Winner
	if outcome.Status == engine.StatusPlaying {
		s.turn = engine.Opponent(sym)
	}
	return m.snapshotLocked(s), nil
}

// Remove deletes the session for code. Idempotent.
func (m *Manager) Remove(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, NormalizeCode(code))
}

// ClearConnection drops the live connection for the given seat, keeping
// the seat's token so the player can rejoin.
//
// Postcondition: Returns true when the session exists; false means the
// session was already removed and there is nothing to grace-time.
func (m *Manager) ClearConnection(code string, sym engine.Symbol) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[NormalizeCode(code)]
	if !ok {
		return false
	}
	st := s.seat(sym)
	st.live = false
	st.conn = 0
	return true
}

// SeatConnected reports whether the given seat currently has a live
// connection. Used by the grace-timer expiry callback to detect a rejoin
// that raced the timer.
func (m *Manager) SeatConnected(code string, sym engine.Symbol) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[NormalizeCode(code)]
	if !ok {
		return false
	}
	return s.seat(sym).live
}

// Connections returns the live connection handles of the session, for
// broadcast fan-out. Missing sessions yield nil.
func (m *Manager) Connections(code string) []session.HandleID {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[NormalizeCode(code)]
	if !ok {
		return nil
	}
	var conns []session.HandleID
	if s.seatX.live {
		conns = append(conns, s.seatX.conn)
	}
	if s.seatO.live {
		conns = append(conns, s.seatO.conn)
	}
	return conns
}

// Snapshot returns the canonical view of the session for code.
func (m *Manager) Snapshot(code string) (*Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[NormalizeCode(code)]
	if !ok {
		return nil, false
	}
	return m.snapshotLocked(s), true
}

// SeatTokens returns the durable tokens of both seats. Unassigned seats
// yield empty strings.
func (m *Manager) SeatTokens(code string) (tokenX, tokenO string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, found := m.sessions[NormalizeCode(code)]
	if !found {
		return "", "", false
	}
	return s.seatX.token, s.seatO.token, true
}

// HasLiveConnection reports whether either seat is live.
func (m *Manager) HasLiveConnection(code string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[NormalizeCode(code)]
	if !ok {
		return false
	}
	return s.seatX.live || s.seatO.live
}

// SessionCount returns the number of active sessions.
func (m *Manager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
