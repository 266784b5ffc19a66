package relay

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yilmaeng/Pinpon2/internal/model"
	"github.com/yilmaeng/Pinpon2/internal/protocol"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the peer
	pongWait = 60 * time.Second

	// Ping interval; must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Buffer size for outgoing messages
	sendBufferSize = 256
)

// Client is one websocket connection from the hub's point of view. The hub
// puts outbound envelopes on the send channel; the write pump drains it.
type Client struct {
	id   model.PlayerID
	hub  *Hub
	conn *websocket.Conn
	send chan protocol.Envelope

	logger *slog.Logger
}

var _ Conn = (*Client)(nil)

func newClient(hub *Hub, conn *websocket.Conn, id model.PlayerID, logger *slog.Logger) *Client {
	return &Client{
		id:     id,
		hub:    hub,
		conn:   conn,
		send:   make(chan protocol.Envelope, sendBufferSize),
		logger: logger.With(slog.String("player_id", string(id))),
	}
}

// ID returns the server-assigned connection id
func (c *Client) ID() model.PlayerID {
	return c.id
}

// Send queues an envelope for delivery, dropping it if the client's buffer
// is full. Fire-and-forget: a dropped message is logged, never retried.
func (c *Client) Send(env protocol.Envelope) bool {
	select {
	case c.send <- env:
		return true
	default:
		c.logger.Warn("outbound message dropped - client buffer full",
			slog.String("event", env.Event))
		return false
	}
}

// readPump reads envelopes off the websocket and feeds them to the hub.
// It runs in its own goroutine; on any read error it unregisters the
// client, which triggers the disconnect teardown on the hub loop.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var env protocol.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("unexpected close", slog.String("error", err.Error()))
			}
			return
		}
		c.hub.incoming <- inbound{client: c, env: env}
	}
}

// writePump drains the send channel onto the websocket and keeps the
// connection alive with periodic pings. It exits when the hub closes the
// send channel or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				c.logger.Warn("write failed", slog.String("error", err.Error()))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
