package model

import "time"

// PlayerID uniquely identifies a live connection. IDs are assigned by the
// server when the websocket is upgraded and are never reused.
type PlayerID string

// PlayerStatus describes what a connected player is currently doing
type PlayerStatus string

const (
	StatusIdle    PlayerStatus = "idle"
	StatusPlaying PlayerStatus = "playing"
)

// Defaults applied when a login or settings payload omits a field
const (
	DefaultDifficulty = "medium"
	DefaultSets       = 3
)

// Player represents a connected participant and its declared profile
type Player struct {
	ID          PlayerID
	Nickname    string
	Difficulty  string
	Sets        int
	Status      PlayerStatus
	GameID      GameID // empty unless Status is StatusPlaying
	ConnectedAt time.Time
}

// InGame reports whether the player currently references a session
func (p *Player) InGame() bool {
	return p.Status == StatusPlaying && p.GameID != ""
}
