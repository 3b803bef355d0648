package websocket

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"studyroom/internal/domain"
	"studyroom/internal/hub"
	"studyroom/internal/repository"
)

// RoomFinder resolves the room a socket wants to attach to.
// repository.RoomRepository satisfies it.
type RoomFinder interface {
	FindByUUID(ctx context.Context, roomUUID string) (*domain.Room, error)
}

// WebSocketHandler upgrades room connections and hands them to the hub.
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	hub      *hub.Hub
	rooms    RoomFinder
}

// NewWebSocketHandler creates a WebSocketHandler. An empty allowedOrigins
// accepts any origin.
func NewWebSocketHandler(h *hub.Hub, rooms RoomFinder, allowedOrigins []string) *WebSocketHandler {
	if h == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}
	if rooms == nil {
		panic("RoomFinder cannot be nil for WebSocketHandler")
	}

	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 || allowed["*"] {
				return true
			}
			origin := r.Header.Get("Origin")
			return origin == "" || allowed[origin]
		},
	}

	return &WebSocketHandler{upgrader: upgrader, hub: h, rooms: rooms}
}

// HandleConnection serves GET /ws/rooms/:uuid.
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	logCtx := logrus.WithField("handler", "websocket")

	userIDAny, exists := c.Get("user_id")
	if !exists {
		logCtx.Warn("WS Handler: User ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	userID, ok := userIDAny.(uint)
	if !ok {
		logCtx.Error("WS Handler: User ID in context is not uint")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	roomUUID := c.Param("uuid")
	logCtx = logCtx.WithFields(logrus.Fields{"user_id": userID, "room_uuid": roomUUID})

	room, err := h.rooms.FindByUUID(c.Request.Context(), roomUUID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logCtx.WithError(err).Warn("WS Handler: Room not found")
			c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		} else {
			logCtx.WithError(err).Error("WS Handler: Error checking room existence")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate room"})
		}
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		logCtx.WithError(err).Error("WS Handler: Failed to upgrade connection")
		return
	}

	client := hub.NewClient(h.hub, conn, roomUUID, userID, room.OwnerID)
	if !h.hub.QueueMessage(hub.HubMessage{Type: hub.MsgRegister, Client: client, RoomUUID: roomUUID, UserID: userID}) {
		logCtx.Error("WS Handler: Hub message channel full, failed to register client")
		client.CloseConn()
		return
	}
	client.Run()
	logCtx.WithField("client_id", client.ID()).Info("WS Handler: Client connected")
}
