package registry

import "github.com/cory-johannsen/gridlock/internal/game/engine"

// SeatOccupancy exposes which seats hold a player, as booleans only.
// Durable tokens are never disclosed to other participants.
type SeatOccupancy struct {
	X bool `json:"X"`
	O bool `json:"O"`
}

// Snapshot is the canonical session view pushed to clients after every
// state-affecting mutation.
type Snapshot struct {
	Board       engine.Board  `json:"board"`
	CurrentTurn engine.Symbol `json:"currentTurn"`
	Status      engine.Status `json:"status"`
	Winner      engine.Symbol `json:"winner,omitempty"`
	Players     SeatOccupancy `json:"players"`
	GameCode    string        `json:"gameCode"`
}

// snapshotLocked builds a Snapshot. Caller must hold m.mu.
func (m *Manager) snapshotLocked(s *gameSession) *Snapshot {
	return &Snapshot{
		Board:       s.board,
		CurrentTurn: s.turn,
		Status:      s.status,
		Winner:      s.winner,
		Players: SeatOccupancy{
			X: s.seatX.token != "",
			O: s.seatO.token != "",
		},
		GameCode: s.code,
	}
}
