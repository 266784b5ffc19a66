// Package protocol defines the wire format spoken over the websocket: a
// small envelope carrying a named event and a JSON payload, plus the typed
// payload structs for every event in the catalogue.
package protocol

import (
	"encoding/json"

	"github.com/yilmaeng/Pinpon2/internal/model"
)

// Inbound event names
const (
	EventLogin             = "login"
	EventUpdateSettings    = "update_settings"
	EventChallenge         = "challenge"
	EventChallengeResponse = "challenge_response"
	EventGameUpdate        = "game_update"
	EventPauseRequest      = "pause_request"
	EventPauseResponse     = "pause_response"
	EventChatMessage       = "chat_message"
	EventGameOver          = "game_over"
	EventRematchRequest    = "rematch_request"
	EventRematchResponse   = "rematch_response"
)

// Outbound event names
const (
	EventPlayerList           = "player_list"
	EventChallengeReceived    = "challenge_received"
	EventChallengeDeclined    = "challenge_declined"
	EventGameStart            = "game_start"
	EventRematchAccepted      = "rematch_accepted"
	EventRematchDeclined      = "rematch_declined"
	EventOpponentDisconnected = "opponent_disconnected"
)

// Envelope is the frame for every message in both directions. Data is kept
// raw so the relay can forward payloads it never inspects.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals the payload into an Envelope. Marshal errors are
// impossible for the payload structs in this package, so they surface as an
// empty payload rather than an error return.
func NewEnvelope(event string, payload any) Envelope {
	if payload == nil {
		return Envelope{Event: event}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{Event: event}
	}
	return Envelope{Event: event, Data: data}
}

// Login is sent once by a client to register its profile
type Login struct {
	Nickname   string `json:"nickname"`
	Difficulty string `json:"difficulty,omitempty"`
	Sets       int    `json:"sets,omitempty"`
}

// UpdateSettings overwrites the two tunable profile fields
type UpdateSettings struct {
	Difficulty string `json:"difficulty"`
	Sets       int    `json:"sets"`
}

// PlayerInfo is one roster entry in a player_list broadcast
type PlayerInfo struct {
	ID         model.PlayerID     `json:"id"`
	Nickname   string             `json:"nickname"`
	Difficulty string             `json:"difficulty"`
	Sets       int                `json:"sets"`
	Status     model.PlayerStatus `json:"status"`
}

// PlayerList is the full roster, broadcast to everyone on any change
type PlayerList struct {
	Players []PlayerInfo `json:"players"`
}

// Challenge asks the server to start a handshake with an idle target
type Challenge struct {
	TargetID model.PlayerID `json:"targetId"`
}

// ChallengeReceived notifies the target, carrying the challenger's profile
type ChallengeReceived struct {
	From       model.PlayerID `json:"from"`
	Nickname   string         `json:"nickname"`
	Difficulty string         `json:"difficulty"`
	Sets       int            `json:"sets"`
}

// ChallengeResponse resolves a pending handshake
type ChallengeResponse struct {
	Accepted bool           `json:"accepted"`
	From     model.PlayerID `json:"from"`
}

// GameSettings are the match parameters, always taken from the challenger
type GameSettings struct {
	Difficulty string `json:"difficulty"`
	Sets       int    `json:"sets"`
}

// Role of a session member. Exactly one side is authoritative for
// game-specific decisions outside the relay's scope.
const (
	RoleHost   = "host"
	RoleClient = "client"
)

// GameStart tells both members the session has begun
type GameStart struct {
	Opponent string       `json:"opponent"`
	Role     string       `json:"role"`
	GameID   model.GameID `json:"gameId"`
	Settings GameSettings `json:"settings"`
}

// ChallengeDeclined tells the challenger who turned them down
type ChallengeDeclined struct {
	Nickname string `json:"nickname"`
}

// GameUpdate is an opaque state update relayed verbatim to the counterpart.
// The server never interprets Type or Payload.
type GameUpdate struct {
	GameID  model.GameID    `json:"gameId"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// PauseRequest asks the counterpart to pause
type PauseRequest struct {
	GameID model.GameID `json:"gameId"`
}

// PauseRequested is what the counterpart receives: the requester's name
type PauseRequested struct {
	From string `json:"from"`
}

// PauseResponse answers a pause request, relayed verbatim
type PauseResponse struct {
	GameID   model.GameID `json:"gameId"`
	Accepted bool         `json:"accepted"`
}

// ChatMessage as sent by a member
type ChatMessage struct {
	GameID  model.GameID `json:"gameId"`
	Message string       `json:"message"`
}

// ChatDelivery is the relayed chat message with the sender's name attached
type ChatDelivery struct {
	From    string `json:"from"`
	Message string `json:"message"`
}

// GameOver declares a winner and marks the session finished
type GameOver struct {
	GameID model.GameID `json:"gameId"`
	Winner string       `json:"winner"`
}

// GameOverNotice is forwarded to the counterpart
type GameOverNotice struct {
	Winner string `json:"winner"`
}

// RematchRequest asks the counterpart for another match on the same session
type RematchRequest struct {
	GameID model.GameID `json:"gameId"`
}

// RematchRequested is what the counterpart receives
type RematchRequested struct {
	From     model.PlayerID `json:"from"`
	Nickname string         `json:"nickname"`
}

// RematchResponse resolves a pending rematch request
type RematchResponse struct {
	Accepted bool           `json:"accepted"`
	From     model.PlayerID `json:"from"`
	GameID   model.GameID   `json:"gameId"`
}

// RematchDeclined tells the requester who turned them down
type RematchDeclined struct {
	Nickname string `json:"nickname"`
}

// OpponentDisconnected tells the surviving member its counterpart left.
// GameFinished distinguishes a voluntary exit after the match concluded
// from a mid-match abandonment.
type OpponentDisconnected struct {
	Nickname     string `json:"nickname"`
	GameFinished bool   `json:"gameFinished"`
}
