package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"studyroom/internal/domain"
)

// Client is one websocket connection attached to a room.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	id       string
	roomUUID string
	userID   uint
	// ownerID is the room owner as read from the store when the socket opened
	ownerID uint

	send   chan []byte
	sendMu sync.Mutex
	closed bool

	// joined is closed once the presence join has been attempted; present
	// records whether it succeeded.
	joined  chan struct{}
	present bool
}

// NewClient creates a Client for an upgraded connection to a room owned by
// ownerID.
func NewClient(hub *Hub, conn *websocket.Conn, roomUUID string, userID, ownerID uint) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		id:       ulid.Make().String(),
		roomUUID: roomUUID,
		userID:   userID,
		ownerID:  ownerID,
		send:     make(chan []byte, 256),
		joined:   make(chan struct{}),
	}
}

// Run starts the read and write pumps.
func (c *Client) Run() {
	go c.WritePump()
	go c.ReadPump()
}

// ReadPump reads frames from the websocket and handles them one at a time,
// so a client's messages are published in the order it sent them.
func (c *Client) ReadPump() {
	defer func() {
		unregisterMsg := HubMessage{Type: MsgUnregister, Client: c, RoomUUID: c.roomUUID, UserID: c.userID}
		select {
		case c.hub.messageChan <- unregisterMsg:
		case <-time.After(1 * time.Second):
			c.logCtx().Warn("Timeout sending unregister message to Hub channel")
		}
		c.conn.Close()
		c.logCtx().Info("readPump exited, unregistered client")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logCtx().WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				c.logCtx().Debug("WebSocket connection closed normally or read error")
			}
			break
		}

		if messageType != websocket.TextMessage {
			c.logCtx().Debugf("Received non-text message type: %d", messageType)
			continue
		}
		c.hub.handleClientMessage(c, message)
	}
}

// WritePump moves queued frames to the websocket and keeps it alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.logCtx().Info("writePump exited")
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.logCtx().Info("Hub closed send channel")
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logCtx().WithError(err).Warn("Failed to write message to websocket")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logCtx().WithError(err).Warn("Failed to send ping message")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})
		}
	}
}

// trySend queues a frame without blocking. It reports false when the client
// is closed or its buffer is full.
func (c *Client) trySend(message []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) sendError(message string) {
	payload, _ := json.Marshal(map[string]string{"message": message})
	frame, _ := json.Marshal(domain.RoomEvent{
		ID:       ulid.Make().String(),
		Type:     domain.EventError,
		RoomUUID: c.roomUUID,
		UserID:   c.userID,
		Payload:  payload,
		SentAt:   time.Now().UTC(),
	})
	if !c.trySend(frame) {
		c.logCtx().Warn("Could not deliver error frame to client")
	}
}

func (c *Client) logCtx() *logrus.Entry {
	return logrus.WithFields(logrus.Fields{"user_id": c.userID, "room_uuid": c.roomUUID, "client_id": c.id})
}

func (c *Client) ID() string       { return c.id }
func (c *Client) RoomUUID() string { return c.roomUUID }
func (c *Client) UserID() uint     { return c.userID }
func (c *Client) CloseConn()       { c.conn.Close() }
