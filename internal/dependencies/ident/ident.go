package ident

import "github.com/google/uuid"

// Generator produces unique identifiers for connections and sessions.
// Uniqueness must hold for the lifetime of the process even under
// concurrent generation; id collisions would silently cross-wire sessions.
type Generator interface {
	NewID() string
}

// UUIDGenerator implements Generator using random v4 UUIDs
type UUIDGenerator struct{}

// New creates a new UUIDGenerator
func New() *UUIDGenerator {
	return &UUIDGenerator{}
}

// NewID returns a new random UUID string
func (g *UUIDGenerator) NewID() string {
	return uuid.NewString()
}
