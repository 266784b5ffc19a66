// Package roster implements the connection registry: every live connection
// and its declared profile and status. The registry is the sole owner of
// Player records; sessions hold members by id only.
package roster

import (
	"log/slog"
	"sync"

	"github.com/yilmaeng/Pinpon2/internal/dependencies/clock"
	"github.com/yilmaeng/Pinpon2/internal/model"
)

// Service tracks connected players. Reads are safe from any goroutine;
// compound sequences spanning multiple mutations rely on the hub loop
// calling them one event at a time.
type Service struct {
	mu      sync.RWMutex
	players map[model.PlayerID]*model.Player
	order   []model.PlayerID

	clock  clock.Clock
	logger *slog.Logger
}

// New creates a new roster service
func New(clk clock.Clock, logger *slog.Logger) *Service {
	return &Service{
		players: make(map[model.PlayerID]*model.Player),
		clock:   clk,
		logger:  logger.With(slog.String("component", "roster")),
	}
}

// Register inserts (or overwrites) a player with status idle. An empty
// nickname is accepted as-is; missing difficulty or sets take defaults.
func (s *Service) Register(id model.PlayerID, nickname, difficulty string, sets int) model.Player {
	if difficulty == "" {
		difficulty = model.DefaultDifficulty
	}
	if sets <= 0 {
		sets = model.DefaultSets
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.players[id]; !exists {
		s.order = append(s.order, id)
	}
	player := &model.Player{
		ID:          id,
		Nickname:    nickname,
		Difficulty:  difficulty,
		Sets:        sets,
		Status:      model.StatusIdle,
		ConnectedAt: s.clock.Now(),
	}
	s.players[id] = player

	s.logger.Info("player registered",
		slog.String("player_id", string(id)),
		slog.String("nickname", nickname))

	return *player
}

// UpdateSettings overwrites the two tunable profile fields. Returns false
// if the player is unknown, in which case nothing changes.
func (s *Service) UpdateSettings(id model.PlayerID, difficulty string, sets int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.players[id]
	if !ok {
		return false
	}
	player.Difficulty = difficulty
	player.Sets = sets
	return true
}

// Remove deletes the player from the registry. Called exactly once, from
// the disconnect path, after any session teardown.
func (s *Service) Remove(id model.PlayerID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.players[id]; !ok {
		return
	}
	delete(s.players, id)
	for i, pid := range s.order {
		if pid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	s.logger.Info("player removed", slog.String("player_id", string(id)))
}

// Get returns a copy of the player, if present
func (s *Service) Get(id model.PlayerID) (model.Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	player, ok := s.players[id]
	if !ok {
		return model.Player{}, false
	}
	return *player, true
}

// Snapshot returns the full roster in insertion order of current members
func (s *Service) Snapshot() []model.Player {
	s.mu.RLock()
	defer s.mu.RUnlock()

	players := make([]model.Player, 0, len(s.order))
	for _, id := range s.order {
		if player, ok := s.players[id]; ok {
			players = append(players, *player)
		}
	}
	return players
}

// SetPlaying flips the player to playing with the given session reference.
// Returns false if the player is unknown.
func (s *Service) SetPlaying(id model.PlayerID, gameID model.GameID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.players[id]
	if !ok {
		return false
	}
	player.Status = model.StatusPlaying
	player.GameID = gameID
	return true
}

// SetIdle flips the player back to idle and clears its session reference.
// Returns false if the player is unknown.
func (s *Service) SetIdle(id model.PlayerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.players[id]
	if !ok {
		return false
	}
	player.Status = model.StatusIdle
	player.GameID = ""
	return true
}
