// Package match implements the pairing directory: active sessions binding
// exactly two connections, with the score, pause and finished bookkeeping
// tied to the session lifecycle.
package match

import (
	"log/slog"
	"sync"

	"github.com/yilmaeng/Pinpon2/internal/dependencies/clock"
	"github.com/yilmaeng/Pinpon2/internal/dependencies/ident"
	"github.com/yilmaeng/Pinpon2/internal/model"
	"github.com/yilmaeng/Pinpon2/internal/services/roster"
)

// Controller manages active sessions. A dangling or unknown game id is
// never a fault: every lookup reports "not found" and callers treat it as
// a silent no-op.
type Controller struct {
	mu    sync.RWMutex
	games map[model.GameID]*model.Game

	roster *roster.Service
	ident  ident.Generator
	clock  clock.Clock
	logger *slog.Logger
}

// NewController creates a new match controller
func NewController(r *roster.Service, gen ident.Generator, clk clock.Clock, logger *slog.Logger) *Controller {
	return &Controller{
		games:  make(map[model.GameID]*model.Game),
		roster: r,
		ident:  gen,
		clock:  clk,
		logger: logger.With(slog.String("component", "match")),
	}
}

// Create allocates a new session between host (the challenger) and guest
// (the responder), with score 0-0, and flips both members to playing. Both
// status transitions happen before Create returns, so no caller on the hub
// loop can ever observe only one side flipped.
func (c *Controller) Create(host, guest model.PlayerID) (model.Game, error) {
	if _, ok := c.roster.Get(host); !ok {
		return model.Game{}, model.ErrPlayerNotFound
	}
	if _, ok := c.roster.Get(guest); !ok {
		return model.Game{}, model.ErrPlayerNotFound
	}

	game := &model.Game{
		ID:        model.GameID(c.ident.NewID()),
		Host:      host,
		Guest:     guest,
		CreatedAt: c.clock.Now(),
	}

	c.mu.Lock()
	c.games[game.ID] = game
	c.mu.Unlock()

	c.roster.SetPlaying(host, game.ID)
	c.roster.SetPlaying(guest, game.ID)

	c.logger.Info("game created",
		slog.String("game_id", string(game.ID)),
		slog.String("host", string(host)),
		slog.String("guest", string(guest)))

	return *game, nil
}

// Get returns a copy of the session, if present
func (c *Controller) Get(id model.GameID) (model.Game, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	game, ok := c.games[id]
	if !ok {
		return model.Game{}, false
	}
	return *game, true
}

// Counterpart resolves the other member of a session relative to the given
// player. Returns false for an unknown game or a non-member, which callers
// treat the same way as "not found".
func (c *Controller) Counterpart(gameID model.GameID, id model.PlayerID) (model.PlayerID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	game, ok := c.games[gameID]
	if !ok {
		return "", false
	}
	return game.Counterpart(id)
}

// Finish marks the session as concluded. The flag is retained so a later
// disconnect can distinguish "opponent left after the match" from an
// abandonment. Returns false for an unknown game.
func (c *Controller) Finish(gameID model.GameID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	game, ok := c.games[gameID]
	if !ok {
		return false
	}
	game.Finished = true
	return true
}

// ResetForRematch restores the session to its initial state: score 0-0,
// not finished, not paused. Returns false for an unknown game.
func (c *Controller) ResetForRematch(gameID model.GameID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	game, ok := c.games[gameID]
	if !ok {
		return false
	}
	game.Score = model.Score{}
	game.Finished = false
	game.Paused = false

	c.logger.Info("game reset for rematch", slog.String("game_id", string(gameID)))
	return true
}

// Destroy removes the session entry. Status transitions for surviving
// members are the caller's responsibility, alongside the counterpart
// notification; the hub loop keeps the whole sequence atomic.
func (c *Controller) Destroy(gameID model.GameID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.games[gameID]; !ok {
		return
	}
	delete(c.games, gameID)

	c.logger.Info("game destroyed", slog.String("game_id", string(gameID)))
}
