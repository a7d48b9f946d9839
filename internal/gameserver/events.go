package gameserver

import "github.com/cory-johannsen/gridlock/internal/game/engine"

// Inbound event names.
const (
	EventCreateGame  = "create-game"
	EventJoinGame    = "join-game"
	EventRejoinGame  = "rejoin-game"
	EventMakeMove    = "make-move"
	EventFindMatch   = "find-match"
	EventCancelMatch = "cancel-match"
	EventLeaveGame   = "leave-game"
)

// Outbound event names.
const (
	EventGameUpdate           = "game-update"
	EventOpponentDisconnected = "opponent-disconnected"
	EventMoveError            = "move-error"
	EventMatchFound           = "match-found"
)

type joinGameRequest struct {
	GameCode string `json:"gameCode"`
}

type rejoinGameRequest struct {
	GameCode string `json:"gameCode"`
	PlayerID string `json:"playerId"`
}

type makeMoveRequest struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

type createGameAck struct {
	GameCode string `json:"gameCode"`
	PlayerID string `json:"playerId"`
}

type joinGameAck struct {
	PlayerID string `json:"playerId"`
}

type rejoinGameAck struct {
	Symbol engine.Symbol `json:"symbol"`
}

type matchFoundPayload struct {
	GameCode string        `json:"gameCode"`
	Symbol   engine.Symbol `json:"symbol"`
	PlayerID string        `json:"playerId"`
}

type moveErrorPayload struct {
	Message string `json:"message"`
}
