package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Task types.
const (
	TypeRoomClose = "room:close" // delete a room the gateway has closed
)

// Close reasons carried in RoomClosePayload.
const (
	ReasonOwnerClosed = "owner_closed"
)

// RoomClosePayload is the payload of a TypeRoomClose task.
type RoomClosePayload struct {
	RoomUUID string `json:"roomUuid"`
	Reason   string `json:"reason"`
}

// NewRoomCloseTask builds a room-close task. The task id is derived from the
// room so a room closed twice in quick succession is only enqueued once.
func NewRoomCloseTask(roomUUID, reason string) (*asynq.Task, error) {
	if roomUUID == "" {
		return nil, fmt.Errorf("room uuid is required for %s", TypeRoomClose)
	}
	payload, err := json.Marshal(RoomClosePayload{RoomUUID: roomUUID, Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeRoomClose, payload,
		asynq.TaskID(TypeRoomClose+":"+roomUUID),
		asynq.MaxRetry(5),
		asynq.Queue("critical"),
		asynq.Retention(time.Hour),
	), nil
}

// Enqueuer submits background tasks.
type Enqueuer struct {
	client *asynq.Client
}

// NewEnqueuer wraps an asynq client.
func NewEnqueuer(client *asynq.Client) *Enqueuer {
	if client == nil {
		panic("asynq client cannot be nil for Enqueuer")
	}
	return &Enqueuer{client: client}
}

// EnqueueRoomClose asks the API worker to delete the room. A task already
// queued for the same room counts as success.
func (e *Enqueuer) EnqueueRoomClose(ctx context.Context, roomUUID, reason string) error {
	task, err := NewRoomCloseTask(roomUUID, reason)
	if err != nil {
		return err
	}
	if _, err := e.client.EnqueueContext(ctx, task); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			return nil
		}
		return fmt.Errorf("failed to enqueue %s for room %s: %w", TypeRoomClose, roomUUID, err)
	}
	return nil
}
