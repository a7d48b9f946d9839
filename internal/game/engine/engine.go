// Package engine implements the tic-tac-toe rules as pure functions over
// a board. It holds no state and knows nothing about sessions or
// connections; callers own the board and feed it back in.
package engine

// Symbol is one of the two seat marks. The zero value means an empty cell.
type Symbol string

const (
	None Symbol = ""
	X    Symbol = "X"
	O    Symbol = "O"
)

// Opponent returns the other symbol.
//
// Precondition: s is X or O.
func Opponent(s Symbol) Symbol {
	if s == X {
		return O
	}
	return X
}

// Status is the lifecycle state of a game.
type Status string

const (
	StatusWaiting Status = "waiting"
	StatusPlaying Status = "playing"
	StatusWon     Status = "won"
	StatusDraw    Status = "draw"
)

// Terminal reports whether no further moves are permitted.
func (s Status) Terminal() bool {
	return s == StatusWon || s == StatusDraw
}

// Board is the 3x3 grid. board[row][col] is None while unoccupied.
type Board [3][3]Symbol

// FilledCells returns the number of occupied cells.
func (b Board) FilledCells() int {
	n := 0
	for _, row := range b {
		for _, cell := range row {
			if cell != None {
				n++
			}
		}
	}
	return n
}

// lines are the 8 possible winning triples: 3 rows, 3 columns, 2 diagonals.
var lines = [8][3][2]int{
	{{0, 0}, {0, 1}, {0, 2}},
	{{1, 0}, {1, 1}, {1, 2}},
	{{2, 0}, {2, 1}, {2, 2}},
	{{0, 0}, {1, 0}, {2, 0}},
	{{0, 1}, {1, 1}, {2, 1}},
	{{0, 2}, {1, 2}, {2, 2}},
	{{0, 0}, {1, 1}, {2, 2}},
	{{0, 2}, {1, 1}, {2, 0}},
}

// Winner scans the 8 lines for three equal non-empty symbols.
//
// Postcondition: Returns the winning symbol, or None when no line wins.
func Winner(b Board) Symbol {
	for _, line := range lines {
		v := b[line[0][0]][line[0][1]]
		if v != None && v == b[line[1][0]][line[1][1]] && v == b[line[2][0]][line[2][1]] {
			return v
		}
	}
	return None
}

// Legal returns nil when placing s at (row, col) is allowed, or the first
// violated precondition in priority order: game not in progress, turn
// mismatch, coordinates out of bounds, cell occupied.
func Legal(status Status, turn Symbol, b Board, row, col int, s Symbol) *MoveError {
	if status != StatusPlaying {
		return &MoveError{Reason: ReasonNotInProgress}
	}
	if turn != s {
		return &MoveError{Reason: ReasonWrongTurn}
	}
	if row < 0 || row > 2 || col < 0 || col > 2 {
		return &MoveError{Reason: ReasonOutOfBounds}
	}
	if b[row][col] != None {
		return &MoveError{Reason: ReasonOccupied}
	}
	return nil
}

// Outcome is the evaluation of a board after a move was applied.
type Outcome struct {
	// Status is StatusWon, StatusDraw, or StatusPlaying.
	Status Status
	// Winner is set only when Status is StatusWon.
	Winner Symbol
}

// Apply places s at (row, col) and evaluates the resulting board.
// It does not validate the move; call Legal first.
//
// Precondition: Legal(...) returned nil for the same arguments.
// Postcondition: The returned board has exactly one more filled cell.
func Apply(b Board, row, col int, s Symbol) (Board, Outcome) {
	b[row][col] = s
	if w := Winner(b); w != None {
		return b, Outcome{Status: StatusWon, Winner: w}
	}
	if b.FilledCells() == 9 {
		return b, Outcome{Status: StatusDraw}
	}
	return b, Outcome{Status: StatusPlaying}
}
