package websocket

import (
	"encoding/json"

	"github.com/rocketscienceinc/mancala-backend/internal/entity"
)

const (
	actionHost    = "game:host"
	actionJoin    = "game:join"
	actionMove    = "game:move"
	actionRematch = "game:rematch"

	actionDetails = "game:details"
	actionState   = "game:state"
	actionError   = "error"
)

// Message is the wire envelope in both directions.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type JoinRequest struct {
	GameID string `json:"gameId"`
}

type MoveRequest struct {
	GameID   string `json:"gameId"`
	PitIndex int    `json:"pitIndex"`
}

type RematchRequest struct {
	GameID string `json:"gameId"`
}

// GameDetails is the personal reply to host and join: the game snapshot plus
// the role the server assigned to this connection.
type GameDetails struct {
	entity.Game
	AssignedPlayerRole int `json:"assignedPlayerRole"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
