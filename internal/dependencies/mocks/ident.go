package mocks

import (
	"fmt"

	"github.com/yilmaeng/Pinpon2/internal/dependencies/ident"
)

// MockGenerator is a mock implementation of ident.Generator for testing.
// It returns queued ids first, then falls back to a deterministic sequence.
type MockGenerator struct {
	// Queued is a queue of ids to return from NewID
	Queued []string
	index  int
	serial int
}

// Ensure MockGenerator implements Generator
var _ ident.Generator = (*MockGenerator)(nil)

// NewMockGenerator creates a new MockGenerator
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// NewID returns the next queued id, or "id-N" if the queue is exhausted
func (g *MockGenerator) NewID() string {
	if g.index < len(g.Queued) {
		id := g.Queued[g.index]
		g.index++
		return id
	}
	g.serial++
	return fmt.Sprintf("id-%d", g.serial)
}

// Queue adds ids to the result queue
func (g *MockGenerator) Queue(ids ...string) {
	g.Queued = append(g.Queued, ids...)
}
