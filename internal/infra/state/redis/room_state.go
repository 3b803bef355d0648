package redisstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"studyroom/internal/domain"
)

// presenceTTL bounds how long a presence key survives a gateway that died
// without cleaning up.
const presenceTTL = 24 * time.Hour

// RoomStateStore keeps the gateway's shared per-room state in Redis: online
// presence and the cross-instance event channel.
type RoomStateStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRoomStateStore creates a RoomStateStore.
func NewRoomStateStore(client *redis.Client, keyPrefix string) *RoomStateStore {
	if client == nil {
		panic("redis client cannot be nil for RoomStateStore")
	}
	if keyPrefix == "" {
		keyPrefix = "sr:"
	}
	return &RoomStateStore{client: client, keyPrefix: keyPrefix}
}

// --- Key Generation Helpers ---

func (r *RoomStateStore) roomOnlineKey(roomUUID string) string {
	return fmt.Sprintf("%sroom:%s:online", r.keyPrefix, roomUUID)
}

func (r *RoomStateStore) roomEventsChannel(roomUUID string) string {
	return fmt.Sprintf("%sroom:%s:events", r.keyPrefix, roomUUID)
}

func (r *RoomStateStore) eventsPattern() string {
	return r.keyPrefix + "room:*:events"
}

func (r *RoomStateStore) rateLimitKey(key string) string {
	return r.keyPrefix + "ratelimit:" + key
}

// --- Presence ---

// Join counts one more connection in the room and returns the new total.
func (r *RoomStateStore) Join(ctx context.Context, roomUUID string) (int64, error) {
	onlineKey := r.roomOnlineKey(roomUUID)

	pipe := r.client.TxPipeline()
	incrCmd := pipe.Incr(ctx, onlineKey)
	pipe.Expire(ctx, onlineKey, presenceTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis: failed to join presence for room %s: %w", roomUUID, err)
	}
	return incrCmd.Val(), nil
}

// Leave counts one connection out of the room and returns how many remain.
// When none remain the room's presence key is removed.
func (r *RoomStateStore) Leave(ctx context.Context, roomUUID string) (int64, error) {
	online, err := r.client.Decr(ctx, r.roomOnlineKey(roomUUID)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: failed to leave presence for room %s: %w", roomUUID, err)
	}
	if online <= 0 {
		if err := r.Clear(ctx, roomUUID); err != nil {
			return 0, err
		}
		return 0, nil
	}
	return online, nil
}

// Clear drops all presence state of the room.
func (r *RoomStateStore) Clear(ctx context.Context, roomUUID string) error {
	if err := r.client.Del(ctx, r.roomOnlineKey(roomUUID)).Err(); err != nil {
		return fmt.Errorf("redis: failed to clear presence for room %s: %w", roomUUID, err)
	}
	return nil
}

// --- Events ---

// Publish sends the event to every gateway instance subscribed to the room.
func (r *RoomStateStore) Publish(ctx context.Context, event domain.RoomEvent) error {
	channel := r.roomEventsChannel(event.RoomUUID)
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal event %s: %w", event.ID, err)
	}
	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		logrus.WithFields(logrus.Fields{
			"channel":      channel,
			"payload_size": len(payload),
			"event_id":     event.ID,
			"event_type":   event.Type,
		}).WithError(err).Error("Redis Publish failed")
		return fmt.Errorf("redis: failed to publish event to channel %s: %w", channel, err)
	}
	return nil
}

// Subscribe delivers every room event published by any instance to handle
// until ctx is cancelled. It blocks.
func (r *RoomStateStore) Subscribe(ctx context.Context, handle func(domain.RoomEvent)) error {
	pattern := r.eventsPattern()
	pubsub := r.client.PSubscribe(ctx, pattern)
	defer pubsub.Close()

	// wait for the subscription to be confirmed so no early publish is lost
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis: failed to subscribe to %s: %w", pattern, err)
	}
	logCtx := logrus.WithField("pattern", pattern)
	logCtx.Info("Subscribed to room events")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			logCtx.Info("Room event subscription stopped")
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis: room event subscription closed")
			}
			var event domain.RoomEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				logCtx.WithError(err).WithField("channel", msg.Channel).Warn("Dropping undecodable room event")
				continue
			}
			if event.RoomUUID == "" {
				event.RoomUUID = r.roomFromChannel(msg.Channel)
			}
			handle(event)
		}
	}
}

func (r *RoomStateStore) roomFromChannel(channel string) string {
	s := strings.TrimPrefix(channel, r.keyPrefix+"room:")
	return strings.TrimSuffix(s, ":events")
}

// --- Rate limiting ---

// CheckRateLimit counts a hit against key and reports whether the limit for
// the current window is exceeded. The window starts with the first hit and is
// not extended by later ones.
func (r *RoomStateStore) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	key = r.rateLimitKey(key)
	pipe := r.client.TxPipeline()
	pipe.SetNX(ctx, key, 0, window)
	incrCmd := pipe.Incr(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis: pipeline failed for rate limit check on key %s: %w", key, err)
	}
	count, err := incrCmd.Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to get incr result for rate limit on key %s: %w", key, err)
	}
	return count > int64(limit), nil
}
