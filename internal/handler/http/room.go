package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"studyroom/internal/domain"
	"studyroom/internal/middleware"
	"studyroom/internal/service"
)

var registerValidatorsOnce sync.Once

// RegisterValidators adds the custom binding rules used by the request DTOs:
// clockduration accepts an H:M:S string.
func RegisterValidators() {
	registerValidatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			logrus.Warn("gin validator engine is not go-playground/validator, custom rules not registered")
			return
		}
		if err := v.RegisterValidation("clockduration", func(fl validator.FieldLevel) bool {
			_, err := domain.ParseClockDuration(fl.Field().String())
			return err == nil
		}); err != nil {
			logrus.WithError(err).Error("failed to register clockduration validator")
		}
	})
}

// RoomHandler serves the room and history routes.
type RoomHandler struct {
	roomService *service.RoomService
}

// NewRoomHandler creates a RoomHandler.
func NewRoomHandler(roomService *service.RoomService) *RoomHandler {
	if roomService == nil {
		panic("RoomService cannot be nil for RoomHandler")
	}
	RegisterValidators()
	return &RoomHandler{roomService: roomService}
}

// CreateRoomRequest is the body of POST /api/rooms.
type CreateRoomRequest struct {
	Title        string `json:"title" binding:"required,max=100"`
	MaxHeadcount int    `json:"maxHeadcount" binding:"required,min=1"`
	Note         string `json:"note" binding:"max=500"`
	Category     string `json:"category" binding:"required,max=50"`
}

// CheckoutRequest is the body of POST /api/rooms/:uuid/checkout.
type CheckoutRequest struct {
	CheckIn     time.Time `json:"checkIn" binding:"required"`
	CheckOut    time.Time `json:"checkOut" binding:"required"`
	TotalHours  string    `json:"totalHours" binding:"required,clockduration"`
	HistoryType string    `json:"historyType" binding:"required,max=50"`
}

// RoomResponse is a room together with its owner.
type RoomResponse struct {
	Room  *domain.Room `json:"room"`
	Owner *domain.User `json:"owner"`
}

func currentUser(c *gin.Context) (uint, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		logrus.Warn("Handler: User ID not found in context, middleware missing or failed?")
		ErrorResponse(c, http.StatusUnauthorized, "User not authenticated")
		return 0, false
	}
	return userID, true
}

// CreateRoom handles POST /api/rooms.
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithField("user_id", userID).WithError(err).Warn("Handler.CreateRoom: Invalid input format")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
		return
	}

	room, owner, err := h.roomService.CreateRoom(c.Request.Context(), service.CreateRoomInput{
		Title:        req.Title,
		MaxHeadcount: req.MaxHeadcount,
		Note:         req.Note,
		Category:     req.Category,
	}, userID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, RoomResponse{Room: room, Owner: owner})
}

// ListRooms handles GET /api/rooms.
func (h *RoomHandler) ListRooms(c *gin.Context) {
	rooms, err := h.roomService.ListRooms(c.Request.Context())
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, rooms)
}

// GetRoom handles GET /api/rooms/:uuid.
func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, owner, err := h.roomService.GetRoom(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, RoomResponse{Room: room, Owner: owner})
}

// JoinRoom handles PATCH /api/rooms/:uuid/join.
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	ok, err := h.roomService.JoinRoom(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, SuccessFlag{Success: ok})
}

// LeaveRoom handles PATCH /api/rooms/:uuid/leave.
func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	ok, err := h.roomService.LeaveRoom(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, SuccessFlag{Success: ok})
}

// CheckoutRoom handles POST /api/rooms/:uuid/checkout.
func (h *RoomHandler) CheckoutRoom(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithField("user_id", userID).WithError(err).Warn("Handler.CheckoutRoom: Invalid input format")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
		return
	}

	history, err := h.roomService.CheckoutRoom(c.Request.Context(), c.Param("uuid"), userID, service.CheckoutInput{
		CheckIn:     req.CheckIn,
		CheckOut:    req.CheckOut,
		TotalHours:  req.TotalHours,
		HistoryType: req.HistoryType,
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, history)
}

// DeleteRoom handles DELETE /api/rooms/:uuid.
func (h *RoomHandler) DeleteRoom(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	deleted, err := h.roomService.DeleteRoom(c.Request.Context(), userID, c.Param("uuid"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, SuccessFlag{Success: deleted})
}

// ListHistories handles GET /api/histories.
func (h *RoomHandler) ListHistories(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	histories, err := h.roomService.ListHistories(c.Request.Context(), userID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, histories)
}
