package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"studyroom/internal/domain"
	"studyroom/internal/tasks"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Timeout for Redis and queue calls made on behalf of a client.
	opTimeout = 5 * time.Second
)

// Hub message types.
const (
	MsgRegister   = "register"
	MsgUnregister = "unregister"
)

// Message types a client may send.
const (
	ClientMessage   = "message"
	ClientCloseRoom = "close_room"
)

// Broker fans room events out to every gateway instance.
type Broker interface {
	Publish(ctx context.Context, event domain.RoomEvent) error
	Subscribe(ctx context.Context, handle func(domain.RoomEvent)) error
}

// Presence counts the connections to a room across all gateway instances.
type Presence interface {
	Join(ctx context.Context, roomUUID string) (online int64, err error)
	Leave(ctx context.Context, roomUUID string) (online int64, err error)
	Clear(ctx context.Context, roomUUID string) error
}

// RoomCloser hands a room closed by its owner over to the API for deletion.
type RoomCloser interface {
	EnqueueRoomClose(ctx context.Context, roomUUID, reason string) error
}

// HubMessage is what clients and the websocket handler put on the hub's queue.
type HubMessage struct {
	Type     string
	RoomUUID string
	UserID   uint
	Client   *Client
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Hub keeps the clients connected to this instance, grouped by room, and
// bridges them to the shared broker.
type Hub struct {
	instanceID  string
	messageChan chan HubMessage

	// map[roomUUID]set of clients
	rooms   map[string]map[*Client]bool
	roomsMu sync.RWMutex

	broker   Broker
	presence Presence
	closer   RoomCloser
	now      func() time.Time
}

// NewHub creates a Hub with a fresh instance id.
func NewHub(broker Broker, presence Presence, closer RoomCloser) *Hub {
	if broker == nil {
		panic("Broker cannot be nil for Hub")
	}
	if presence == nil {
		panic("Presence cannot be nil for Hub")
	}
	if closer == nil {
		panic("RoomCloser cannot be nil for Hub")
	}
	return &Hub{
		instanceID:  ulid.Make().String(),
		messageChan: make(chan HubMessage, 512),
		rooms:       make(map[string]map[*Client]bool),
		broker:      broker,
		presence:    presence,
		closer:      closer,
		now:         time.Now,
	}
}

// InstanceID identifies this gateway instance in published events.
func (h *Hub) InstanceID() string { return h.instanceID }

// Run subscribes to the broker and processes the hub queue until ctx is
// cancelled. Call it in its own goroutine.
func (h *Hub) Run(ctx context.Context) {
	log := logrus.WithFields(logrus.Fields{"component": "hub", "instance_id": h.instanceID})
	log.Info("Hub is running...")

	go func() {
		if err := h.broker.Subscribe(ctx, h.deliver); err != nil {
			log.WithError(err).Error("Hub: broker subscription ended")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info("Hub is shutting down...")
			h.shutdown()
			return
		case msg := <-h.messageChan:
			switch msg.Type {
			case MsgRegister:
				h.registerClient(msg.Client)
			case MsgUnregister:
				h.unregisterClient(msg.Client)
			default:
				log.Warnf("Hub: Received unknown message type: %s from user %d in room %s", msg.Type, msg.UserID, msg.RoomUUID)
			}
		}
	}
}

// QueueMessage puts msg on the hub queue without blocking. It reports false
// when the queue is full.
func (h *Hub) QueueMessage(msg HubMessage) bool {
	select {
	case h.messageChan <- msg:
		return true
	default:
		logrus.WithFields(logrus.Fields{
			"message_type": msg.Type,
			"room_uuid":    msg.RoomUUID,
			"user_id":      msg.UserID,
		}).Warn("Hub message channel full, dropping message")
		return false
	}
}

// ClientCount returns the number of local clients in the room.
func (h *Hub) ClientCount(roomUUID string) int {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	return len(h.rooms[roomUUID])
}

func (h *Hub) registerClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to register a nil client")
		return
	}
	logCtx := client.logCtx().WithField("action", "registerClient")

	h.roomsMu.Lock()
	if _, ok := h.rooms[client.roomUUID]; !ok {
		h.rooms[client.roomUUID] = make(map[*Client]bool)
		logCtx.Info("Client list created for room")
	}
	h.rooms[client.roomUUID][client] = true
	h.roomsMu.Unlock()
	logCtx.Info("Client registered to Hub")

	go h.onJoin(client)
}

func (h *Hub) unregisterClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to unregister a nil client")
		return
	}
	logCtx := client.logCtx().WithField("action", "unregisterClient")

	h.roomsMu.Lock()
	roomClients, ok := h.rooms[client.roomUUID]
	if !ok || !roomClients[client] {
		h.roomsMu.Unlock()
		// evicted by a room closure, or never registered
		logCtx.Debug("Client not in room during unregister")
		return
	}
	delete(roomClients, client)
	if len(roomClients) == 0 {
		delete(h.rooms, client.roomUUID)
	}
	client.closeSend()
	h.roomsMu.Unlock()
	logCtx.Info("Client unregistered from Hub")

	go h.onLeave(client)
}

func (h *Hub) onJoin(client *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	logCtx := client.logCtx()

	defer close(client.joined)

	online, err := h.presence.Join(ctx, client.roomUUID)
	if err != nil {
		logCtx.WithError(err).Error("Hub: presence join failed")
		client.sendError("presence unavailable")
		return
	}
	client.present = true
	logCtx.WithField("online", online).Debug("Presence joined")
	h.publish(ctx, h.newEvent(domain.EventPresenceJoined, client.roomUUID, client.userID, online, nil))
}

func (h *Hub) onLeave(client *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	logCtx := client.logCtx()

	// a leave must never overtake its own join
	select {
	case <-client.joined:
	case <-ctx.Done():
		logCtx.Warn("Hub: presence join did not finish before leave")
		return
	}
	if !client.present {
		return
	}

	online, err := h.presence.Leave(ctx, client.roomUUID)
	if err != nil {
		logCtx.WithError(err).Error("Hub: presence leave failed")
		return
	}
	if online == 0 {
		// the room itself stays; only its owner can close it
		logCtx.Info("Last user left the room")
	}
	h.publish(ctx, h.newEvent(domain.EventPresenceLeft, client.roomUUID, client.userID, online, nil))
}

// handleClientMessage runs on the client's read goroutine.
func (h *Hub) handleClientMessage(client *Client, raw []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	logCtx := client.logCtx().WithField("operation", "handleClientMessage")

	var in inboundMessage
	if err := json.Unmarshal(raw, &in); err != nil {
		logCtx.WithError(err).Debug("Hub: undecodable client message")
		client.sendError("message must be a JSON object with a type")
		return
	}

	switch in.Type {
	case ClientMessage:
		event := h.newEvent(domain.EventMessage, client.roomUUID, client.userID, 0, in.Payload)
		event.SenderID = client.id
		h.publish(ctx, event)
	case ClientCloseRoom:
		if client.ownerID == 0 || client.userID != client.ownerID {
			logCtx.WithField("owner_id", client.ownerID).Warn("Hub: close_room from a non-owner")
			client.sendError("only the room owner can close the room")
			return
		}
		logCtx.Info("Owner closed the room")
		h.closeRoom(ctx, client.roomUUID, tasks.ReasonOwnerClosed)
	default:
		client.sendError("unknown message type: " + in.Type)
	}
}

// closeRoom tells every instance the room is gone, drops its presence and
// queues the deletion.
func (h *Hub) closeRoom(ctx context.Context, roomUUID, reason string) {
	logCtx := logrus.WithFields(logrus.Fields{"room_uuid": roomUUID, "reason": reason})

	payload, _ := json.Marshal(map[string]string{"reason": reason})
	h.publish(ctx, h.newEvent(domain.EventRoomClosed, roomUUID, 0, 0, payload))

	if err := h.presence.Clear(ctx, roomUUID); err != nil {
		logCtx.WithError(err).Warn("Hub: failed to clear presence")
	}
	if err := h.closer.EnqueueRoomClose(ctx, roomUUID, reason); err != nil {
		logCtx.WithError(err).Error("Hub: failed to enqueue room close")
		return
	}
	logCtx.Info("Room close enqueued")
}

func (h *Hub) publish(ctx context.Context, event domain.RoomEvent) {
	if err := h.broker.Publish(ctx, event); err != nil {
		logrus.WithFields(logrus.Fields{"room_uuid": event.RoomUUID, "event_type": event.Type}).WithError(err).Error("Hub: publish failed")
	}
}

func (h *Hub) newEvent(eventType, roomUUID string, userID uint, online int64, payload json.RawMessage) domain.RoomEvent {
	return domain.RoomEvent{
		ID:       ulid.Make().String(),
		Type:     eventType,
		RoomUUID: roomUUID,
		UserID:   userID,
		Online:   online,
		Payload:  payload,
		SentAt:   h.now().UTC(),
		Origin:   h.instanceID,
	}
}

// deliver hands an event from the broker to the local clients of its room.
func (h *Hub) deliver(event domain.RoomEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		logrus.WithField("event_id", event.ID).WithError(err).Error("Hub: failed to marshal event")
		return
	}

	if event.Type == domain.EventRoomClosed {
		h.evictRoom(event.RoomUUID, data)
		return
	}

	var sender *Client
	h.roomsMu.RLock()
	roomClients := h.rooms[event.RoomUUID]
	if event.Origin == h.instanceID && event.SenderID != "" {
		for c := range roomClients {
			if c.id == event.SenderID {
				sender = c
				break
			}
		}
	}
	h.roomsMu.RUnlock()

	h.broadcast(event.RoomUUID, data, sender)
}

// evictRoom sends the closing frame to every local client of the room and
// disconnects them.
func (h *Hub) evictRoom(roomUUID string, frame []byte) {
	h.roomsMu.Lock()
	roomClients := h.rooms[roomUUID]
	delete(h.rooms, roomUUID)
	for c := range roomClients {
		c.trySend(frame)
		c.closeSend()
	}
	h.roomsMu.Unlock()

	if len(roomClients) > 0 {
		logrus.WithFields(logrus.Fields{"room_uuid": roomUUID, "clients": len(roomClients)}).Info("Room closed, local clients disconnected")
	}
}

// broadcast sends message to the room's local clients except sender.
func (h *Hub) broadcast(roomUUID string, message []byte, sender *Client) {
	h.roomsMu.RLock()
	roomClients := h.rooms[roomUUID]
	clientsToSend := make([]*Client, 0, len(roomClients))
	for client := range roomClients {
		if client != sender {
			clientsToSend = append(clientsToSend, client)
		}
	}
	h.roomsMu.RUnlock()

	if len(clientsToSend) == 0 {
		return
	}

	logCtx := logrus.WithFields(logrus.Fields{
		"room_uuid":       roomUUID,
		"message_size":    len(message),
		"recipient_count": len(clientsToSend),
	})
	logCtx.Debug("Broadcasting message to clients")

	for _, client := range clientsToSend {
		if !client.trySend(message) {
			logCtx.WithField("receiver_user_id", client.userID).Warn("Client send channel full during broadcast, skipping this client")
		}
	}
}

// shutdown disconnects every local client. Presence is released but rooms
// are not closed: the users may reconnect to another instance.
func (h *Hub) shutdown() {
	h.roomsMu.Lock()
	all := h.rooms
	h.rooms = make(map[string]map[*Client]bool)
	for _, roomClients := range all {
		for c := range roomClients {
			c.closeSend()
		}
	}
	h.roomsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	for roomUUID, roomClients := range all {
		for range roomClients {
			if _, err := h.presence.Leave(ctx, roomUUID); err != nil {
				logrus.WithField("room_uuid", roomUUID).WithError(err).Warn("Hub: presence leave failed during shutdown")
				break
			}
		}
	}
}
