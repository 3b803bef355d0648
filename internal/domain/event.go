package domain

import (
	"encoding/json"
	"time"
)

// Room event types relayed by the gateway.
const (
	EventPresenceJoined = "presence.joined"
	EventPresenceLeft   = "presence.left"
	EventMessage        = "message"
	EventRoomClosed     = "room.closed"
	EventError          = "error"
)

// RoomEvent is the envelope that travels over the pub/sub broker and down
// every websocket subscribed to the room.
type RoomEvent struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	RoomUUID string          `json:"room"`
	UserID   uint            `json:"userId,omitempty"`
	Online   int64           `json:"online,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	SentAt   time.Time       `json:"sentAt"`

	// Origin is the gateway instance that produced the event and SenderID the
	// client on that instance; together they keep relayed messages from
	// echoing back to their author.
	Origin   string `json:"origin,omitempty"`
	SenderID string `json:"sender,omitempty"`
}
