package registry

import "errors"

var (
	// ErrNotFound means no session matches the (normalized) code.
	ErrNotFound = errors.New("game not found")
	// ErrSessionFull means seat O is already occupied.
	ErrSessionFull = errors.New("game is full")
	// ErrUnknownPlayer means the token matches neither seat on rejoin.
	ErrUnknownPlayer = errors.New("player not in this game")
	// ErrCodeSpaceExhausted means code generation gave up after too many
	// collisions. With a 33^4 code space this indicates a logic error or a
	// pathological session count, not bad luck.
	ErrCodeSpaceExhausted = errors.New("could not generate an unused game code")
)
