// Package relay implements the websocket side of the server: the hub that
// owns every live connection, the per-connection read/write pumps, and the
// event handler that drives the registry and pairing directory.
package relay

import (
	"log/slog"
	"runtime/debug"

	"github.com/gorilla/websocket"

	"github.com/yilmaeng/Pinpon2/internal/dependencies/ident"
	"github.com/yilmaeng/Pinpon2/internal/model"
	"github.com/yilmaeng/Pinpon2/internal/protocol"
)

// Conn is the handler's view of a connected client: an identity and a
// best-effort outbound send. Send reports false when the message was
// dropped (slow client, closed connection); delivery is at-most-once and
// nothing retries.
type Conn interface {
	ID() model.PlayerID
	Send(env protocol.Envelope) bool
}

// EventHandler receives connection lifecycle and message events. All three
// methods are invoked from the hub's single run loop, one event at a time,
// so implementations may mutate shared state without further locking.
type EventHandler interface {
	OnConnect(conn Conn)
	OnDisconnect(conn Conn)
	OnMessage(conn Conn, env protocol.Envelope)
}

// inbound packages a decoded message with the client that sent it
type inbound struct {
	client *Client
	env    protocol.Envelope
}

// Hub maintains the set of active clients and serializes every event into
// the handler. The clients map is touched only by the Run goroutine.
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	incoming   chan inbound
	done       chan struct{}

	handler EventHandler
	ident   ident.Generator
	logger  *slog.Logger
}

// NewHub creates a new Hub routing events into the given handler
func NewHub(handler EventHandler, gen ident.Generator, logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		incoming:   make(chan inbound, 64),
		done:       make(chan struct{}),
		handler:    handler,
		ident:      gen,
		logger:     logger.With(slog.String("component", "hub")),
	}
}

// Run processes registration, disconnection and inbound messages until
// Close is called. Every registry and directory mutation happens on this
// goroutine; that is the serialization guarantee the handler relies on.
func (h *Hub) Run() {
	h.logger.Info("hub started")
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.dispatch(func() { h.handler.OnConnect(client) })
			h.logger.Info("client connected",
				slog.String("player_id", string(client.id)),
				slog.Int("total_clients", len(h.clients)))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				// Closing send stops the client's write pump.
				close(client.send)
				h.dispatch(func() { h.handler.OnDisconnect(client) })
				h.logger.Info("client disconnected",
					slog.String("player_id", string(client.id)),
					slog.Int("total_clients", len(h.clients)))
			}

		case msg := <-h.incoming:
			h.dispatch(func() { h.handler.OnMessage(msg.client, msg.env) })

		case <-h.done:
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.logger.Info("hub stopped")
			return
		}
	}
}

// dispatch invokes a handler callback, recovering panics so a fault in one
// connection's event can never take down the rest of the server.
func (h *Hub) dispatch(fn func()) {
	defer func() {
		if err := recover(); err != nil {
			h.logger.Error("panic in event handler",
				slog.Any("error", err),
				slog.String("stack", string(debug.Stack())))
		}
	}()
	fn()
}

// HandleConnection wraps an upgraded websocket connection in a Client with
// a fresh connection id, registers it, and starts its pumps. It returns
// once the pumps are running.
func (h *Hub) HandleConnection(wsConn *websocket.Conn) {
	client := newClient(h, wsConn, model.PlayerID(h.ident.NewID()), h.logger)
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// Close shuts down the hub loop and every client's write pump
func (h *Hub) Close() {
	close(h.done)
}
