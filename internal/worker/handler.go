package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"studyroom/internal/service"
	"studyroom/internal/tasks"
)

// RoomDeleter is the trusted deletion path the room-close task drives.
type RoomDeleter interface {
	DeleteRoomFromSocket(ctx context.Context, roomUUID string) (bool, error)
}

// RoomCloseHandler deletes rooms closed by the real-time gateway.
type RoomCloseHandler struct {
	rooms RoomDeleter
}

// NewRoomCloseHandler creates a RoomCloseHandler.
func NewRoomCloseHandler(rooms RoomDeleter) *RoomCloseHandler {
	if rooms == nil {
		panic("RoomDeleter cannot be nil for RoomCloseHandler")
	}
	return &RoomCloseHandler{rooms: rooms}
}

// ProcessTask implements asynq.Handler.
func (h *RoomCloseHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	taskID := ""
	if rw := t.ResultWriter(); rw != nil {
		taskID = rw.TaskID()
	}
	currentRetry, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)

	logCtx := logrus.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": t.Type(),
		"retry":     currentRetry,
		"max_retry": maxRetry,
	})

	var payload tasks.RoomClosePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal task payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.RoomUUID == "" {
		return fmt.Errorf("room uuid missing from payload: %w", asynq.SkipRetry)
	}
	logCtx = logCtx.WithFields(logrus.Fields{"room_uuid": payload.RoomUUID, "reason": payload.Reason})
	logCtx.Info("Processing room close task...")

	if _, err := h.rooms.DeleteRoomFromSocket(ctx, payload.RoomUUID); err != nil {
		// the room is already gone: nothing left to do
		if errors.Is(err, service.ErrNoEffect) || errors.Is(err, service.ErrNotFound) {
			logCtx.WithError(err).Info("Room already deleted, task done")
			return nil
		}
		logCtx.WithError(err).Error("Failed to delete closed room")
		return fmt.Errorf("failed to delete room %s: %w", payload.RoomUUID, err)
	}

	logCtx.Info("Room close task processed successfully")
	return nil
}
