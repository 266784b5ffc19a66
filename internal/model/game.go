package model

import "time"

// GameID uniquely identifies a session for the lifetime of the process
type GameID string

// Score holds the per-member score pair for a session
type Score struct {
	Host  int `json:"host"`
	Guest int `json:"guest"`
}

// Game binds exactly two connections into a session. Host is always the
// original challenger; the order is fixed at creation and is the addressing
// scheme for "the other side".
type Game struct {
	ID        GameID
	Host      PlayerID
	Guest     PlayerID
	Score     Score
	Paused    bool
	Finished  bool
	CreatedAt time.Time
}

// HasMember reports whether the given player is one of the two members
func (g *Game) HasMember(id PlayerID) bool {
	return g.Host == id || g.Guest == id
}

// Counterpart returns the member that is not the given player. The second
// return value is false when the player is not a member at all.
func (g *Game) Counterpart(id PlayerID) (PlayerID, bool) {
	switch id {
	case g.Host:
		return g.Guest, true
	case g.Guest:
		return g.Host, true
	default:
		return "", false
	}
}
