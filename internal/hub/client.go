package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"chat-hub/internal/dto"
)

// Identity is the authenticated user behind a connection, resolved once at
// handshake time by the auth layer. The hub never re-validates credentials.
type Identity struct {
	UserID           uint
	Name             string
	VerificationCode string
}

// Client is one live WebSocket connection tracked by the hub. A client may
// be subscribed to any number of rooms at once; the subscriptions die with
// the connection.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	id       string
	identity Identity

	sendMu     sync.Mutex
	sendClosed bool
	send       chan []byte
}

// NewClient creates a Client with a fresh opaque connection id.
func NewClient(hub *Hub, conn *websocket.Conn, identity Identity) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		id:       uuid.NewString(),
		identity: identity,
		send:     make(chan []byte, 256),
	}
}

func (c *Client) ID() string         { return c.id }
func (c *Client) Identity() Identity { return c.identity }

// Run starts the read and write pumps.
func (c *Client) Run() {
	go c.WritePump()
	go c.ReadPump()
}

// CloseConn closes the underlying WebSocket connection.
func (c *Client) CloseConn() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// queueEvent marshals an event into the client's send queue without
// blocking. A full queue drops the event: one slow receiver must never delay
// the rest of a room. Events racing a disconnect are dropped the same way;
// sendMu serializes queueing against closeSend so the channel is never
// written after it closed.
func (c *Client) queueEvent(event interface{}) {
	payload, err := json.Marshal(event)
	if err != nil {
		logrus.WithError(err).WithField("conn_id", c.id).Error("Failed to marshal outbound event")
		return
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		logrus.WithFields(logrus.Fields{
			"conn_id": c.id,
			"user_id": c.identity.UserID,
		}).Debug("Client already disconnected, dropping event")
		return
	}
	select {
	case c.send <- payload:
	default:
		logrus.WithFields(logrus.Fields{
			"conn_id": c.id,
			"user_id": c.identity.UserID,
		}).Warn("Client send channel full, dropping event")
	}
}

// closeSend closes the send queue exactly once. Safe to call concurrently
// with queueEvent; later calls are no-ops.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return
	}
	c.sendClosed = true
	close(c.send)
}

// ReadPump pumps inbound frames from the WebSocket into hub operations. It
// runs in its own goroutine; exiting unregisters the client.
func (c *Client) ReadPump() {
	logCtx := logrus.WithFields(logrus.Fields{"conn_id": c.id, "user_id": c.identity.UserID})
	defer func() {
		c.hub.Unregister(c.id)
		c.conn.Close()
		logCtx.Info("readPump exited, client unregistered")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logCtx.WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				logCtx.Debug("WebSocket connection closed")
			}
			break
		}
		if messageType != websocket.TextMessage {
			logCtx.Debugf("Ignoring non-text message type: %d", messageType)
			continue
		}

		var event dto.ClientEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			c.queueEvent(dto.ErrorEvent{Type: "error", Message: "malformed event"})
			continue
		}
		c.dispatch(event)
	}
}

// dispatch routes one inbound event to the hub, reporting failures back to
// this connection only.
func (c *Client) dispatch(event dto.ClientEvent) {
	var err error
	switch event.Type {
	case "join":
		err = c.hub.Subscribe(c.id, event.Room)
	case "leave":
		c.hub.Unsubscribe(c.id, event.Room)
	case "message":
		err = c.hub.Post(c.id, event.Room, event.Message)
	default:
		logrus.WithFields(logrus.Fields{
			"conn_id": c.id,
			"type":    event.Type,
		}).Warn("Received unknown event type")
		return
	}
	if err != nil {
		c.queueEvent(dto.ErrorEvent{Type: "error", Message: err.Error()})
	}
}

// WritePump pumps queued events to the WebSocket and keeps the connection
// alive with periodic pings. It runs in its own goroutine.
func (c *Client) WritePump() {
	logCtx := logrus.WithFields(logrus.Fields{"conn_id": c.id, "user_id": c.identity.UserID})
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		logCtx.Info("writePump exited")
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the send channel during unregister.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logCtx.WithError(err).Warn("Failed to write message to websocket")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logCtx.WithError(err).Warn("Failed to send ping message")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})
		}
	}
}
