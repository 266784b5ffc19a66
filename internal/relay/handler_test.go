package relay

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/yilmaeng/Pinpon2/internal/dependencies/mocks"
	"github.com/yilmaeng/Pinpon2/internal/model"
	"github.com/yilmaeng/Pinpon2/internal/protocol"
	"github.com/yilmaeng/Pinpon2/internal/services/match"
	"github.com/yilmaeng/Pinpon2/internal/services/roster"
	"github.com/yilmaeng/Pinpon2/internal/testutil"
)

// fakeConn records everything sent to it
type fakeConn struct {
	id   model.PlayerID
	sent []protocol.Envelope
}

func (f *fakeConn) ID() model.PlayerID { return f.id }

func (f *fakeConn) Send(env protocol.Envelope) bool {
	f.sent = append(f.sent, env)
	return true
}

// received returns all envelopes with the given event name
func (f *fakeConn) received(event string) []protocol.Envelope {
	var out []protocol.Envelope
	for _, env := range f.sent {
		if env.Event == event {
			out = append(out, env)
		}
	}
	return out
}

type HandlerSuite struct {
	suite.Suite
	clock   *mocks.MockClock
	ident   *mocks.MockGenerator
	roster  *roster.Service
	match   *match.Controller
	handler *Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	s.ident = mocks.NewMockGenerator()
	logger := testutil.NopLogger()
	s.roster = roster.New(s.clock, logger)
	s.match = match.NewController(s.roster, s.ident, s.clock, logger)
	s.handler = NewHandler(s.roster, s.match, logger)
}

func (s *HandlerSuite) connect(id string) *fakeConn {
	conn := &fakeConn{id: model.PlayerID(id)}
	s.handler.OnConnect(conn)
	return conn
}

func (s *HandlerSuite) emit(conn Conn, event string, payload any) {
	s.handler.OnMessage(conn, protocol.NewEnvelope(event, payload))
}

func (s *HandlerSuite) login(conn Conn, nickname string) {
	s.emit(conn, protocol.EventLogin, protocol.Login{Nickname: nickname})
}

// pair logs both connections in and runs a full accepted handshake
func (s *HandlerSuite) pair(challenger, responder *fakeConn, names ...string) model.GameID {
	challengerName, responderName := "Alice", "Bob"
	if len(names) == 2 {
		challengerName, responderName = names[0], names[1]
	}
	s.login(challenger, challengerName)
	s.login(responder, responderName)
	s.emit(challenger, protocol.EventChallenge, protocol.Challenge{TargetID: responder.id})
	s.emit(responder, protocol.EventChallengeResponse, protocol.ChallengeResponse{Accepted: true, From: challenger.id})

	starts := challenger.received(protocol.EventGameStart)
	s.Require().Len(starts, 1)
	return decodePayload[protocol.GameStart](s.T(), starts[0]).GameID
}

func decodePayload[T any](t *testing.T, env protocol.Envelope) T {
	t.Helper()
	var v T
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &v); err != nil {
			t.Fatalf("decoding %s payload: %v", env.Event, err)
		}
	}
	return v
}

// Login / roster

func (s *HandlerSuite) TestLoginBroadcastsRosterToEveryone() {
	alice := s.connect("conn-a")
	bob := s.connect("conn-b")

	s.login(alice, "Alice")
	s.login(bob, "Bob")

	lists := alice.received(protocol.EventPlayerList)
	s.Require().Len(lists, 2)

	roster := decodePayload[protocol.PlayerList](s.T(), lists[1])
	s.Require().Len(roster.Players, 2)
	s.Equal("Alice", roster.Players[0].Nickname)
	s.Equal("Bob", roster.Players[1].Nickname)
	s.Equal(model.StatusIdle, roster.Players[0].Status)
	s.Equal(model.StatusIdle, roster.Players[1].Status)
}

func (s *HandlerSuite) TestLoginAppliesProfileDefaults() {
	alice := s.connect("conn-a")
	s.login(alice, "Alice")

	player, found := s.roster.Get(alice.id)
	s.Require().True(found)
	s.Equal(model.DefaultDifficulty, player.Difficulty)
	s.Equal(model.DefaultSets, player.Sets)
}

func (s *HandlerSuite) TestUpdateSettingsRebroadcastsRoster() {
	alice := s.connect("conn-a")
	s.login(alice, "Alice")

	s.emit(alice, protocol.EventUpdateSettings, protocol.UpdateSettings{Difficulty: "hard", Sets: 7})

	lists := alice.received(protocol.EventPlayerList)
	s.Require().Len(lists, 2)
	roster := decodePayload[protocol.PlayerList](s.T(), lists[1])
	s.Equal("hard", roster.Players[0].Difficulty)
	s.Equal(7, roster.Players[0].Sets)
}

func (s *HandlerSuite) TestUpdateSettingsWithoutLoginIsNoop() {
	alice := s.connect("conn-a")

	s.emit(alice, protocol.EventUpdateSettings, protocol.UpdateSettings{Difficulty: "hard", Sets: 7})

	s.Empty(alice.sent)
}

// Matchmaking handshake

func (s *HandlerSuite) TestChallengeDeliversChallengerProfile() {
	alice := s.connect("conn-a")
	bob := s.connect("conn-b")
	s.emit(alice, protocol.EventLogin, protocol.Login{Nickname: "Alice", Difficulty: "hard", Sets: 5})
	s.login(bob, "Bob")

	s.emit(alice, protocol.EventChallenge, protocol.Challenge{TargetID: bob.id})

	received := bob.received(protocol.EventChallengeReceived)
	s.Require().Len(received, 1)
	payload := decodePayload[protocol.ChallengeReceived](s.T(), received[0])
	s.Equal(alice.id, payload.From)
	s.Equal("Alice", payload.Nickname)
	s.Equal("hard", payload.Difficulty)
	s.Equal(5, payload.Sets)
}

func (s *HandlerSuite) TestChallengeToUnknownTargetIsSilentlyDropped() {
	alice := s.connect("conn-a")
	s.login(alice, "Alice")
	before := len(alice.sent)

	s.emit(alice, protocol.EventChallenge, protocol.Challenge{TargetID: "missing"})

	s.Len(alice.sent, before)
}

func (s *HandlerSuite) TestChallengeToBusyTargetIsSilentlyDropped() {
	alice := s.connect("conn-a")
	bob := s.connect("conn-b")
	s.pair(alice, bob)

	carol := s.connect("conn-c")
	s.login(carol, "Carol")
	before := len(bob.received(protocol.EventChallengeReceived))
	s.emit(carol, protocol.EventChallenge, protocol.Challenge{TargetID: bob.id})

	s.Len(bob.received(protocol.EventChallengeReceived), before)
}

func (s *HandlerSuite) TestChallengeWithoutLoginIsSilentlyDropped() {
	ghost := s.connect("conn-ghost")
	bob := s.connect("conn-b")
	s.login(bob, "Bob")

	s.emit(ghost, protocol.EventChallenge, protocol.Challenge{TargetID: bob.id})

	s.Empty(bob.received(protocol.EventChallengeReceived))
}

func (s *HandlerSuite) TestAcceptCreatesSessionWithChallengerSettings() {
	alice := s.connect("conn-a")
	bob := s.connect("conn-b")
	s.emit(alice, protocol.EventLogin, protocol.Login{Nickname: "Alice", Difficulty: "easy", Sets: 2})
	s.emit(bob, protocol.EventLogin, protocol.Login{Nickname: "Bob", Difficulty: "hard", Sets: 9})

	s.emit(alice, protocol.EventChallenge, protocol.Challenge{TargetID: bob.id})
	s.emit(bob, protocol.EventChallengeResponse, protocol.ChallengeResponse{Accepted: true, From: alice.id})

	aliceStarts := alice.received(protocol.EventGameStart)
	bobStarts := bob.received(protocol.EventGameStart)
	s.Require().Len(aliceStarts, 1)
	s.Require().Len(bobStarts, 1)

	aliceStart := decodePayload[protocol.GameStart](s.T(), aliceStarts[0])
	bobStart := decodePayload[protocol.GameStart](s.T(), bobStarts[0])

	s.Equal(protocol.RoleHost, aliceStart.Role)
	s.Equal("Bob", aliceStart.Opponent)
	s.Equal(protocol.RoleClient, bobStart.Role)
	s.Equal("Alice", bobStart.Opponent)
	s.Equal(aliceStart.GameID, bobStart.GameID)

	// The challenger's settings govern the match on both sides
	s.Equal(protocol.GameSettings{Difficulty: "easy", Sets: 2}, aliceStart.Settings)
	s.Equal(protocol.GameSettings{Difficulty: "easy", Sets: 2}, bobStart.Settings)

	game, found := s.match.Get(aliceStart.GameID)
	s.Require().True(found)
	s.Equal(alice.id, game.Host)
	s.Equal(bob.id, game.Guest)
	s.Equal(model.Score{}, game.Score)
	s.False(game.Finished)

	// Both statuses flipped together, never one side alone
	for _, id := range []model.PlayerID{alice.id, bob.id} {
		player, _ := s.roster.Get(id)
		s.Equal(model.StatusPlaying, player.Status)
		s.Equal(game.ID, player.GameID)
	}

	// Roster broadcast reflects the new statuses
	lists := alice.received(protocol.EventPlayerList)
	last := decodePayload[protocol.PlayerList](s.T(), lists[len(lists)-1])
	for _, info := range last.Players {
		s.Equal(model.StatusPlaying, info.Status)
	}
}

func (s *HandlerSuite) TestDeclineNotifiesChallengerOnly() {
	alice := s.connect("conn-a")
	bob := s.connect("conn-b")
	s.login(alice, "Alice")
	s.login(bob, "Bob")

	s.emit(alice, protocol.EventChallenge, protocol.Challenge{TargetID: bob.id})
	s.emit(bob, protocol.EventChallengeResponse, protocol.ChallengeResponse{Accepted: false, From: alice.id})

	declines := alice.received(protocol.EventChallengeDeclined)
	s.Require().Len(declines, 1)
	s.Equal("Bob", decodePayload[protocol.ChallengeDeclined](s.T(), declines[0]).Nickname)

	s.Empty(bob.received(protocol.EventChallengeDeclined))
	s.Empty(alice.received(protocol.EventGameStart))

	// No state mutation occurred
	for _, id := range []model.PlayerID{alice.id, bob.id} {
		player, _ := s.roster.Get(id)
		s.Equal(model.StatusIdle, player.Status)
	}
}

func (s *HandlerSuite) TestStaleAcceptanceForBusyChallengerIsDropped() {
	alice := s.connect("conn-a")
	bob := s.connect("conn-b")
	carol := s.connect("conn-c")
	s.login(carol, "Carol")

	// Alice challenges Carol, then pairs with Bob before Carol answers
	s.login(alice, "Alice")
	s.login(bob, "Bob")
	s.emit(alice, protocol.EventChallenge, protocol.Challenge{TargetID: carol.id})
	s.pair(alice, bob)

	s.emit(carol, protocol.EventChallengeResponse, protocol.ChallengeResponse{Accepted: true, From: alice.id})

	s.Empty(carol.received(protocol.EventGameStart))
	player, _ := s.roster.Get(carol.id)
	s.Equal(model.StatusIdle, player.Status)
}

// Relay

func (s *HandlerSuite) TestGameUpdateReachesExactlyTheCounterpart() {
	alice := s.connect("conn-a")
	bob := s.connect("conn-b")
	gameID := s.pair(alice, bob)

	payload := json.RawMessage(`{"x":5}`)
	s.emit(alice, protocol.EventGameUpdate, protocol.GameUpdate{GameID: gameID, Type: "ball", Payload: payload})

	updates := bob.received(protocol.EventGameUpdate)
	s.Require().Len(updates, 1)
	got := decodePayload[protocol.GameUpdate](s.T(), updates[0])
	s.Equal(gameID, got.GameID)
	s.Equal("ball", got.Type)
	s.JSONEq(`{"x":5}`, string(got.Payload))

	// Never echoed back to the sender
	s.Empty(alice.received(protocol.EventGameUpdate))
}

func (s *HandlerSuite) TestGameUpdateForUnknownGameIsNoop() {
	alice := s.connect("conn-a")
	bob := s.connect("conn-b")
	s.pair(alice, bob)

	s.emit(alice, protocol.EventGameUpdate, protocol.GameUpdate{GameID: "missing", Type: "ball"})

	s.Empty(bob.received(protocol.EventGameUpdate))
}

func (s *HandlerSuite) TestGameUpdateFromNonMemberIsNoop() {
	alice := s.connect("conn-a")
	bob := s.connect("conn-b")
	gameID := s.pair(alice, bob)

	carol := s.connect("conn-c")
	s.login(carol, "Carol")
	s.emit(carol, protocol.EventGameUpdate, protocol.GameUpdate{GameID: gameID, Type: "ball"})

	s.Empty(alice.received(protocol.EventGameUpdate))
	s.Empty(bob.received(protocol.EventGameUpdate))
}

func (s *HandlerSuite) TestPauseRequestCarriesSenderName() {
	alice := s.connect("conn-a")
	bob := s.connect("conn-b")
	gameID := s.pair(alice, bob)

	s.emit(alice, protocol.EventPauseRequest, protocol.PauseRequest{GameID: gameID})

	requests := bob.received(protocol.EventPauseRequest)
	s.Require().Len(requests, 1)
	s.Equal("Alice", decodePayload[protocol.PauseRequested](s.T(), requests[0]).From)
}

func (s *HandlerSuite) TestPauseResponseRelayedVerbatim() {
	alice := s.connect("conn-a")
	bob := s.connect("conn-b")
	gameID := s.pair(alice, bob)

	s.emit(bob, protocol.EventPauseResponse, protocol.PauseResponse{GameID: gameID, Accepted: true})

	responses := alice.received(protocol.EventPauseResponse)
	s.Require().Len(responses, 1)
	got := decodePayload[protocol.PauseResponse](s.T(), responses[0])
	s.Equal(gameID, got.GameID)
	s.True(got.Accepted)
}

func (s *HandlerSuite) TestChatMessageAttachesSenderName() {
	alice := s.connect("conn-a")
	bob := s.connect("conn-b")
	gameID := s.pair(alice, bob)

	s.emit(alice, protocol.EventChatMessage, protocol.ChatMessage{GameID: gameID, Message: "gg"})

	chats := bob.received(protocol.EventChatMessage)
	s.Require().Len(chats, 1)
	got := decodePayload[protocol.ChatDelivery](s.T(), chats[0])
	s.Equal("Alice", got.From)
	s.Equal("gg", got.Message)
}

// Lifecycle

func (s *HandlerSuite) TestGameOverMarksFinishedAndForwardsWinner() {
	alice := s.connect("conn-a")
	bob := s.connect("conn-b")
	gameID := s.pair(alice, bob)

	s.emit(alice, protocol.EventGameOver, protocol.GameOver{GameID: gameID, Winner: "Alice"})

	notices := bob.received(protocol.EventGameOver)
	s.Require().Len(notices, 1)
	s.Equal("Alice", decodePayload[protocol.GameOverNotice](s.T(), notices[0]).Winner)

	game, found := s.match.Get(gameID)
	s.Require().True(found)
	s.True(game.Finished)
}

func (s *HandlerSuite) TestDisconnectMidGameNotifiesCounterpartExactlyOnce() {
	alice := s.connect("conn-a")
	bob := s.connect("conn-b")
	gameID := s.pair(alice, bob)

	s.handler.OnDisconnect(bob)

	notices := alice.received(protocol.EventOpponentDisconnected)
	s.Require().Len(notices, 1)
	payload := decodePayload[protocol.OpponentDisconnected](s.T(), notices[0])
	s.Equal("Bob", payload.Nickname)
	s.False(payload.GameFinished)

	// Counterpart back to idle, session destroyed, roster updated
	player, found := s.roster.Get(alice.id)
	s.Require().True(found)
	s.Equal(model.StatusIdle, player.Status)
	_, found = s.match.Get(gameID)
	s.False(found)
	_, found = s.roster.Get(bob.id)
	s.False(found)

	lists := alice.received(protocol.EventPlayerList)
	last := decodePayload[protocol.PlayerList](s.T(), lists[len(lists)-1])
	s.Require().Len(last.Players, 1)
	s.Equal("Alice", last.Players[0].Nickname)
}

func (s *HandlerSuite) TestDisconnectAfterGameOverReportsFinished() {
	alice := s.connect("conn-a")
	bob := s.connect("conn-b")
	gameID := s.pair(alice, bob)
	s.emit(alice, protocol.EventGameOver, protocol.GameOver{GameID: gameID, Winner: "Alice"})

	s.handler.OnDisconnect(bob)

	notices := alice.received(protocol.EventOpponentDisconnected)
	s.Require().Len(notices, 1)
	s.True(decodePayload[protocol.OpponentDisconnected](s.T(), notices[0]).GameFinished)
}

func (s *HandlerSuite) TestDisconnectIdlePlayerJustUpdatesRoster() {
	alice := s.connect("conn-a")
	bob := s.connect("conn-b")
	s.login(alice, "Alice")
	s.login(bob, "Bob")

	s.handler.OnDisconnect(bob)

	s.Empty(alice.received(protocol.EventOpponentDisconnected))
	lists := alice.received(protocol.EventPlayerList)
	last := decodePayload[protocol.PlayerList](s.T(), lists[len(lists)-1])
	s.Len(last.Players, 1)
}

func (s *HandlerSuite) TestDisconnectBeforeLoginIsNoop() {
	alice := s.connect("conn-a")
	s.login(alice, "Alice")
	ghost := s.connect("conn-ghost")
	before := len(alice.sent)

	s.handler.OnDisconnect(ghost)

	s.Len(alice.sent, before)
}

// Rematch

func (s *HandlerSuite) TestRematchRequestRelayedWithRequesterIdentity() {
	alice := s.connect("conn-a")
	bob := s.connect("conn-b")
	gameID := s.pair(alice, bob)
	s.emit(alice, protocol.EventGameOver, protocol.GameOver{GameID: gameID, Winner: "Alice"})

	s.emit(bob, protocol.EventRematchRequest, protocol.RematchRequest{GameID: gameID})

	requests := alice.received(protocol.EventRematchRequest)
	s.Require().Len(requests, 1)
	payload := decodePayload[protocol.RematchRequested](s.T(), requests[0])
	s.Equal(bob.id, payload.From)
	s.Equal("Bob", payload.Nickname)
}

func (s *HandlerSuite) TestRematchAcceptResetsSessionAndNotifiesBoth() {
	alice := s.connect("conn-a")
	bob := s.connect("conn-b")
	gameID := s.pair(alice, bob)
	s.emit(alice, protocol.EventGameOver, protocol.GameOver{GameID: gameID, Winner: "Alice"})

	s.emit(bob, protocol.EventRematchRequest, protocol.RematchRequest{GameID: gameID})
	s.emit(alice, protocol.EventRematchResponse, protocol.RematchResponse{Accepted: true, From: bob.id, GameID: gameID})

	s.Len(alice.received(protocol.EventRematchAccepted), 1)
	s.Len(bob.received(protocol.EventRematchAccepted), 1)

	game, found := s.match.Get(gameID)
	s.Require().True(found)
	s.Equal(model.Score{}, game.Score)
	s.False(game.Finished)
}

func (s *HandlerSuite) TestRematchDeclineNotifiesRequesterOnly() {
	alice := s.connect("conn-a")
	bob := s.connect("conn-b")
	gameID := s.pair(alice, bob)
	s.emit(alice, protocol.EventGameOver, protocol.GameOver{GameID: gameID, Winner: "Alice"})

	s.emit(bob, protocol.EventRematchRequest, protocol.RematchRequest{GameID: gameID})
	s.emit(alice, protocol.EventRematchResponse, protocol.RematchResponse{Accepted: false, From: bob.id, GameID: gameID})

	declines := bob.received(protocol.EventRematchDeclined)
	s.Require().Len(declines, 1)
	s.Equal("Alice", decodePayload[protocol.RematchDeclined](s.T(), declines[0]).Nickname)

	s.Empty(alice.received(protocol.EventRematchDeclined))
	s.Empty(bob.received(protocol.EventRematchAccepted))
}

func (s *HandlerSuite) TestRematchResponseOnDestroyedSessionIsNoop() {
	alice := s.connect("conn-a")
	bob := s.connect("conn-b")
	gameID := s.pair(alice, bob)
	s.emit(bob, protocol.EventRematchRequest, protocol.RematchRequest{GameID: gameID})

	// Bob leaves before Alice answers; the session is torn down
	s.handler.OnDisconnect(bob)
	before := len(alice.sent)

	s.emit(alice, protocol.EventRematchResponse, protocol.RematchResponse{Accepted: true, From: bob.id, GameID: gameID})

	s.Len(alice.sent, before)
}

// Error policy

func (s *HandlerSuite) TestMalformedLoginPayloadToleratedWithDefaults() {
	alice := s.connect("conn-a")

	s.handler.OnMessage(alice, protocol.Envelope{
		Event: protocol.EventLogin,
		Data:  json.RawMessage(`"not an object"`),
	})

	player, found := s.roster.Get(alice.id)
	s.Require().True(found)
	s.Equal("", player.Nickname)
	s.Equal(model.DefaultDifficulty, player.Difficulty)
	s.Equal(model.DefaultSets, player.Sets)
	s.Len(alice.received(protocol.EventPlayerList), 1)
}

func (s *HandlerSuite) TestEmptyPayloadsDoNotPanic() {
	alice := s.connect("conn-a")
	s.login(alice, "Alice")

	for _, event := range []string{
		protocol.EventChallenge,
		protocol.EventChallengeResponse,
		protocol.EventGameUpdate,
		protocol.EventPauseRequest,
		protocol.EventPauseResponse,
		protocol.EventChatMessage,
		protocol.EventGameOver,
		protocol.EventRematchRequest,
		protocol.EventRematchResponse,
	} {
		s.handler.OnMessage(alice, protocol.Envelope{Event: event})
	}
}

func (s *HandlerSuite) TestUnknownEventIsDropped() {
	alice := s.connect("conn-a")
	s.login(alice, "Alice")
	before := len(alice.sent)

	s.handler.OnMessage(alice, protocol.Envelope{Event: "teleport"})

	s.Len(alice.sent, before)
}
