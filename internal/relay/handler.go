package relay

import (
	"encoding/json"
	"log/slog"

	"github.com/yilmaeng/Pinpon2/internal/model"
	"github.com/yilmaeng/Pinpon2/internal/protocol"
	"github.com/yilmaeng/Pinpon2/internal/services/match"
	"github.com/yilmaeng/Pinpon2/internal/services/roster"
)

// Handler implements the event state machine: matchmaking handshake, the
// blind relay between session members, and the disconnect/rematch
// lifecycle. Errors are never surfaced to senders: an event referencing an
// unknown player or a torn-down session is dropped silently (at-most-once,
// best-effort delivery).
type Handler struct {
	roster *roster.Service
	match  *match.Controller

	// conns maps connection ids to their outbound side. Touched only from
	// the hub loop.
	conns map[model.PlayerID]Conn

	logger *slog.Logger
}

var _ EventHandler = (*Handler)(nil)

// NewHandler creates a new Handler on top of the given registry and
// pairing directory
func NewHandler(r *roster.Service, m *match.Controller, logger *slog.Logger) *Handler {
	return &Handler{
		roster: r,
		match:  m,
		conns:  make(map[model.PlayerID]Conn),
		logger: logger.With(slog.String("component", "relay")),
	}
}

// OnConnect tracks the new connection. The player only appears on the
// roster once it logs in.
func (h *Handler) OnConnect(conn Conn) {
	h.conns[conn.ID()] = conn
}

// OnDisconnect tears down the departing player's session, if any, then
// removes it from the roster and re-broadcasts. The whole sequence runs on
// the hub loop, atomic with respect to every other event referencing the
// same session.
func (h *Handler) OnDisconnect(conn Conn) {
	delete(h.conns, conn.ID())

	player, ok := h.roster.Get(conn.ID())
	if !ok {
		return
	}

	if player.InGame() {
		if game, ok := h.match.Get(player.GameID); ok {
			if opponent, ok := game.Counterpart(player.ID); ok {
				h.sendTo(opponent, protocol.NewEnvelope(protocol.EventOpponentDisconnected, protocol.OpponentDisconnected{
					Nickname:     player.Nickname,
					GameFinished: game.Finished,
				}))
				h.roster.SetIdle(opponent)
			}
			h.match.Destroy(game.ID)
		}
	}

	h.roster.Remove(player.ID)
	h.broadcastRoster()
}

// OnMessage classifies an inbound event and dispatches it. Unknown events
// are dropped.
func (h *Handler) OnMessage(conn Conn, env protocol.Envelope) {
	switch env.Event {
	case protocol.EventLogin:
		h.handleLogin(conn, decode[protocol.Login](env.Data))
	case protocol.EventUpdateSettings:
		h.handleUpdateSettings(conn, decode[protocol.UpdateSettings](env.Data))
	case protocol.EventChallenge:
		h.handleChallenge(conn, decode[protocol.Challenge](env.Data))
	case protocol.EventChallengeResponse:
		h.handleChallengeResponse(conn, decode[protocol.ChallengeResponse](env.Data))
	case protocol.EventGameUpdate:
		h.relayGameUpdate(conn, env)
	case protocol.EventPauseRequest:
		h.handlePauseRequest(conn, decode[protocol.PauseRequest](env.Data))
	case protocol.EventPauseResponse:
		h.relayPauseResponse(conn, env)
	case protocol.EventChatMessage:
		h.handleChatMessage(conn, decode[protocol.ChatMessage](env.Data))
	case protocol.EventGameOver:
		h.handleGameOver(conn, decode[protocol.GameOver](env.Data))
	case protocol.EventRematchRequest:
		h.handleRematchRequest(conn, decode[protocol.RematchRequest](env.Data))
	case protocol.EventRematchResponse:
		h.handleRematchResponse(conn, decode[protocol.RematchResponse](env.Data))
	default:
		h.logger.Debug("unknown event dropped", slog.String("event", env.Event))
	}
}

func (h *Handler) handleLogin(conn Conn, req protocol.Login) {
	h.roster.Register(conn.ID(), req.Nickname, req.Difficulty, req.Sets)
	h.broadcastRoster()
}

func (h *Handler) handleUpdateSettings(conn Conn, req protocol.UpdateSettings) {
	if h.roster.UpdateSettings(conn.ID(), req.Difficulty, req.Sets) {
		h.broadcastRoster()
	}
}

// handleChallenge notifies an idle target that the sender wants a match.
// A challenge to a busy or unknown target is dropped without feedback to
// the challenger; the client simply never hears back.
func (h *Handler) handleChallenge(conn Conn, req protocol.Challenge) {
	challenger, ok := h.roster.Get(conn.ID())
	if !ok {
		return
	}
	target, ok := h.roster.Get(req.TargetID)
	if !ok || target.Status != model.StatusIdle {
		return
	}

	h.sendTo(target.ID, protocol.NewEnvelope(protocol.EventChallengeReceived, protocol.ChallengeReceived{
		From:       challenger.ID,
		Nickname:   challenger.Nickname,
		Difficulty: challenger.Difficulty,
		Sets:       challenger.Sets,
	}))
}

// handleChallengeResponse resolves a pending handshake. On acceptance the
// session is created with the challenger as host and the challenger's
// settings governing the match; on decline only the challenger hears about
// it. Either way the handshake is terminal.
func (h *Handler) handleChallengeResponse(conn Conn, req protocol.ChallengeResponse) {
	responder, ok := h.roster.Get(conn.ID())
	if !ok {
		return
	}
	challenger, ok := h.roster.Get(req.From)
	if !ok || challenger.ID == responder.ID {
		return
	}

	if !req.Accepted {
		h.sendTo(challenger.ID, protocol.NewEnvelope(protocol.EventChallengeDeclined, protocol.ChallengeDeclined{
			Nickname: responder.Nickname,
		}))
		return
	}

	// Either side may have been paired by an interleaved handshake since
	// the challenge was issued; a stale acceptance is dropped.
	if challenger.Status != model.StatusIdle || responder.Status != model.StatusIdle {
		return
	}

	game, err := h.match.Create(challenger.ID, responder.ID)
	if err != nil {
		return
	}

	settings := protocol.GameSettings{Difficulty: challenger.Difficulty, Sets: challenger.Sets}
	h.sendTo(challenger.ID, protocol.NewEnvelope(protocol.EventGameStart, protocol.GameStart{
		Opponent: responder.Nickname,
		Role:     protocol.RoleHost,
		GameID:   game.ID,
		Settings: settings,
	}))
	h.sendTo(responder.ID, protocol.NewEnvelope(protocol.EventGameStart, protocol.GameStart{
		Opponent: challenger.Nickname,
		Role:     protocol.RoleClient,
		GameID:   game.ID,
		Settings: settings,
	}))

	h.broadcastRoster()
}

// relayGameUpdate forwards an opaque state update verbatim to the sender's
// counterpart. The payload is never inspected beyond the game id.
func (h *Handler) relayGameUpdate(conn Conn, env protocol.Envelope) {
	req := decode[protocol.GameUpdate](env.Data)
	opponent, ok := h.match.Counterpart(req.GameID, conn.ID())
	if !ok {
		return
	}
	h.sendTo(opponent, env)
}

func (h *Handler) handlePauseRequest(conn Conn, req protocol.PauseRequest) {
	opponent, ok := h.match.Counterpart(req.GameID, conn.ID())
	if !ok {
		return
	}
	sender, ok := h.roster.Get(conn.ID())
	if !ok {
		return
	}
	h.sendTo(opponent, protocol.NewEnvelope(protocol.EventPauseRequest, protocol.PauseRequested{
		From: sender.Nickname,
	}))
}

func (h *Handler) relayPauseResponse(conn Conn, env protocol.Envelope) {
	req := decode[protocol.PauseResponse](env.Data)
	opponent, ok := h.match.Counterpart(req.GameID, conn.ID())
	if !ok {
		return
	}
	h.sendTo(opponent, env)
}

func (h *Handler) handleChatMessage(conn Conn, req protocol.ChatMessage) {
	opponent, ok := h.match.Counterpart(req.GameID, conn.ID())
	if !ok {
		return
	}
	sender, ok := h.roster.Get(conn.ID())
	if !ok {
		return
	}
	h.sendTo(opponent, protocol.NewEnvelope(protocol.EventChatMessage, protocol.ChatDelivery{
		From:    sender.Nickname,
		Message: req.Message,
	}))
}

// handleGameOver marks the session finished and forwards the declared
// winner. The finished flag is what later lets a disconnect notice say
// whether the opponent left a concluded match or abandoned a live one.
func (h *Handler) handleGameOver(conn Conn, req protocol.GameOver) {
	opponent, ok := h.match.Counterpart(req.GameID, conn.ID())
	if !ok {
		return
	}
	h.match.Finish(req.GameID)
	h.sendTo(opponent, protocol.NewEnvelope(protocol.EventGameOver, protocol.GameOverNotice{
		Winner: req.Winner,
	}))

	h.logger.Info("game over",
		slog.String("game_id", string(req.GameID)),
		slog.String("winner", req.Winner))
}

func (h *Handler) handleRematchRequest(conn Conn, req protocol.RematchRequest) {
	opponent, ok := h.match.Counterpart(req.GameID, conn.ID())
	if !ok {
		return
	}
	sender, ok := h.roster.Get(conn.ID())
	if !ok {
		return
	}
	h.sendTo(opponent, protocol.NewEnvelope(protocol.EventRematchRequest, protocol.RematchRequested{
		From:     sender.ID,
		Nickname: sender.Nickname,
	}))
}

// handleRematchResponse renegotiates an existing, finished session. If the
// session was torn down before the answer arrived the event is dropped and
// the requester simply never hears back.
func (h *Handler) handleRematchResponse(conn Conn, req protocol.RematchResponse) {
	game, ok := h.match.Get(req.GameID)
	if !ok {
		return
	}

	if req.Accepted {
		h.match.ResetForRematch(game.ID)
		h.sendTo(game.Host, protocol.NewEnvelope(protocol.EventRematchAccepted, nil))
		h.sendTo(game.Guest, protocol.NewEnvelope(protocol.EventRematchAccepted, nil))
		return
	}

	responder, ok := h.roster.Get(conn.ID())
	if !ok {
		return
	}
	h.sendTo(req.From, protocol.NewEnvelope(protocol.EventRematchDeclined, protocol.RematchDeclined{
		Nickname: responder.Nickname,
	}))
}

// sendTo delivers an envelope to one connection, if it is still around
func (h *Handler) sendTo(id model.PlayerID, env protocol.Envelope) {
	if conn, ok := h.conns[id]; ok {
		conn.Send(env)
	}
}

// broadcastRoster pushes the full player list to every connection,
// including ones that have not logged in yet
func (h *Handler) broadcastRoster() {
	players := h.roster.Snapshot()
	infos := make([]protocol.PlayerInfo, len(players))
	for i, p := range players {
		infos[i] = protocol.PlayerInfo{
			ID:         p.ID,
			Nickname:   p.Nickname,
			Difficulty: p.Difficulty,
			Sets:       p.Sets,
			Status:     p.Status,
		}
	}

	env := protocol.NewEnvelope(protocol.EventPlayerList, protocol.PlayerList{Players: infos})
	for _, conn := range h.conns {
		conn.Send(env)
	}
}

// decode unmarshals a payload, tolerating absence and malformed input by
// falling back to the zero value. There is no schema validation layer.
func decode[T any](data json.RawMessage) T {
	var v T
	if len(data) > 0 {
		_ = json.Unmarshal(data, &v)
	}
	return v
}
