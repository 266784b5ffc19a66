package model

import "errors"

// Common errors used across the application. These never cross the wire:
// the relay policy for unknown targets and stale references is a silent
// drop, so handlers treat them as no-ops rather than surfacing them.
var (
	// Player errors
	ErrPlayerNotFound = errors.New("player not found")

	// Game errors
	ErrGameNotFound  = errors.New("game not found")
	ErrNotInGame     = errors.New("player is not a member of this game")
	ErrAlreadyInGame = errors.New("player is already in a game")
)
