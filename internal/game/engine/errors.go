package engine

// Reason identifies why a move was rejected.
type Reason string

const (
	ReasonNotInProgress Reason = "not-in-progress"
	ReasonWrongTurn     Reason = "wrong-turn"
	ReasonOutOfBounds   Reason = "out-of-bounds"
	ReasonOccupied      Reason = "occupied-cell"
)

// MoveError reports a rejected move. The message is safe to show to the
// originating player.
type MoveError struct {
	Reason Reason
}

func (e *MoveError) Error() string {
	switch e.Reason {
	case ReasonNotInProgress:
		return "game is not in progress"
	case ReasonWrongTurn:
		return "not your turn"
	case ReasonOutOfBounds:
		return "invalid position"
	case ReasonOccupied:
		return "cell is already occupied"
	default:
		return "move rejected"
	}
}
