package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"studyroom/internal/domain"
	"studyroom/internal/repository"
)

// TokenValidity is how long an RTC credential issued at room creation lasts.
const TokenValidity = 24 * time.Hour

// TokenIssuer mints RTC credentials bound to a channel.
type TokenIssuer interface {
	AppID() string
	Issue(channel string, validity time.Duration) (string, error)
}

// CreateRoomInput carries the caller-supplied fields of a new room.
type CreateRoomInput struct {
	Title        string
	MaxHeadcount int
	Note         string
	Category     string
}

// CheckoutInput carries the timer data recorded when leaving a session.
type CheckoutInput struct {
	CheckIn     time.Time
	CheckOut    time.Time
	TotalHours  string // H:M:S
	HistoryType string
}

// RoomService owns the room lifecycle: creation, occupancy, checkout and deletion.
type RoomService struct {
	roomRepo    repository.RoomRepository
	userRepo    repository.UserRepository
	historyRepo repository.HistoryRepository
	issuer      TokenIssuer
	newUUID     func() string
}

// RoomServiceOption customises a RoomService.
type RoomServiceOption func(*RoomService)

// WithUUIDGenerator replaces the random v4 uuid generator.
func WithUUIDGenerator(gen func() string) RoomServiceOption {
	return func(s *RoomService) { s.newUUID = gen }
}

// NewRoomService creates a RoomService.
func NewRoomService(
	roomRepo repository.RoomRepository,
	userRepo repository.UserRepository,
	historyRepo repository.HistoryRepository,
	issuer TokenIssuer,
	opts ...RoomServiceOption,
) *RoomService {
	if roomRepo == nil || userRepo == nil || historyRepo == nil {
		panic("repositories cannot be nil for RoomService")
	}
	if issuer == nil {
		panic("TokenIssuer cannot be nil for RoomService")
	}
	s := &RoomService{
		roomRepo:    roomRepo,
		userRepo:    userRepo,
		historyRepo: historyRepo,
		issuer:      issuer,
		newUUID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRoom creates an empty room owned by ownerID and issues its RTC credential.
func (s *RoomService) CreateRoom(ctx context.Context, in CreateRoomInput, ownerID uint) (*domain.Room, *domain.User, error) {
	logCtx := logrus.WithFields(logrus.Fields{"owner_id": ownerID, "title": in.Title})

	if strings.TrimSpace(in.Title) == "" || in.MaxHeadcount < 1 {
		return nil, nil, ErrInvalidRoom
	}

	owner, err := s.findUser(ctx, ownerID, ErrOwnerNotFound)
	if err != nil {
		logCtx.WithError(err).Warn("CreateRoom: owner lookup failed")
		return nil, nil, err
	}

	roomUUID := s.newUUID()
	logCtx = logCtx.WithField("room_uuid", roomUUID)

	token, err := s.issuer.Issue(roomUUID, TokenValidity)
	if err != nil {
		logCtx.WithError(err).Error("CreateRoom: failed to issue RTC token")
		return nil, nil, ErrInternalServer
	}

	room := &domain.Room{
		UUID:         roomUUID,
		Title:        in.Title,
		MaxHeadcount: in.MaxHeadcount,
		NowHeadcount: 0,
		Count:        0,
		Category:     in.Category,
		Note:         in.Note,
		OwnerID:      owner.ID,
		AgoraAppID:   s.issuer.AppID(),
		AgoraToken:   token,
	}
	if err := s.roomRepo.Create(ctx, room); err != nil {
		logCtx.WithError(err).Error("CreateRoom: failed to save room")
		return nil, nil, ErrInternalServer
	}

	logCtx.WithField("room_id", room.ID).Info("Room created successfully")
	return room, owner, nil
}

// ListRooms returns every room in the list projection.
func (s *RoomService) ListRooms(ctx context.Context) ([]domain.RoomSummary, error) {
	rooms, err := s.roomRepo.ListSummaries(ctx)
	if err != nil {
		logrus.WithError(err).Error("ListRooms: repository error")
		return nil, ErrInternalServer
	}
	return rooms, nil
}

// GetRoom returns the room with the given uuid and its owner.
func (s *RoomService) GetRoom(ctx context.Context, roomUUID string) (*domain.Room, *domain.User, error) {
	room, err := s.findRoom(ctx, roomUUID)
	if err != nil {
		return nil, nil, err
	}
	owner, err := s.findUser(ctx, room.OwnerID, ErrOwnerNotFound)
	if err != nil {
		logrus.WithFields(logrus.Fields{"room_uuid": roomUUID, "owner_id": room.OwnerID}).WithError(err).Warn("GetRoom: owner lookup failed")
		return nil, nil, err
	}
	return room, owner, nil
}

// JoinRoom takes one seat in the room and bumps its lifetime join count.
func (s *RoomService) JoinRoom(ctx context.Context, roomUUID string) (bool, error) {
	logCtx := logrus.WithField("room_uuid", roomUUID)

	room, err := s.findRoom(ctx, roomUUID)
	if err != nil {
		return false, err
	}
	if room.IsFull() {
		logCtx.WithField("max_headcount", room.MaxHeadcount).Info("JoinRoom: room is full")
		return false, ErrRoomFull
	}

	ok, err := s.roomRepo.IncrementHeadcount(ctx, roomUUID)
	if err != nil {
		logCtx.WithError(err).Error("JoinRoom: failed to increment headcount")
		return false, ErrInternalServer
	}
	if !ok {
		// lost a race for the last seat, or the room vanished in between
		logCtx.Warn("JoinRoom: increment had no effect")
		return false, ErrRoomJoin
	}

	logCtx.Debug("User joined room")
	return true, nil
}

// LeaveRoom frees one seat. The lifetime count is not touched.
func (s *RoomService) LeaveRoom(ctx context.Context, roomUUID string) (bool, error) {
	logCtx := logrus.WithField("room_uuid", roomUUID)

	room, err := s.findRoom(ctx, roomUUID)
	if err != nil {
		return false, err
	}
	if room.IsEmpty() {
		logCtx.Info("LeaveRoom: room is already empty")
		return false, ErrRoomEmpty
	}

	ok, err := s.roomRepo.DecrementHeadcount(ctx, roomUUID)
	if err != nil {
		logCtx.WithError(err).Error("LeaveRoom: failed to decrement headcount")
		return false, ErrInternalServer
	}
	if !ok {
		logCtx.Warn("LeaveRoom: decrement had no effect")
		return false, ErrRoomLeave
	}

	logCtx.Debug("User left room")
	return true, nil
}

// CheckoutRoom records a finished session as a History row. Room state is
// left untouched.
func (s *RoomService) CheckoutRoom(ctx context.Context, roomUUID string, userID uint, in CheckoutInput) (*domain.History, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_uuid": roomUUID, "user_id": userID})

	totalSeconds, err := domain.ParseClockDuration(in.TotalHours)
	if err != nil {
		logCtx.WithField("total_hours", in.TotalHours).Warn("CheckoutRoom: malformed duration")
		return nil, ErrMalformedDuration
	}
	if in.CheckOut.Before(in.CheckIn) {
		return nil, ErrInvalidCheckout
	}

	room, err := s.findRoom(ctx, roomUUID)
	if err != nil {
		return nil, err
	}
	if _, err := s.findUser(ctx, userID, ErrUserNotFound); err != nil {
		return nil, err
	}

	history := &domain.History{
		UserID:      userID,
		RoomID:      room.ID,
		CheckIn:     in.CheckIn,
		CheckOut:    in.CheckOut,
		HistoryType: in.HistoryType,
		TotalHours:  totalSeconds,
	}
	if err := s.historyRepo.Create(ctx, history); err != nil {
		logCtx.WithError(err).Error("CheckoutRoom: failed to save history")
		return nil, ErrInternalServer
	}

	logCtx.WithFields(logrus.Fields{"history_id": history.ID, "total_seconds": totalSeconds}).Info("Checkout recorded")
	return history, nil
}

// ListHistories returns the user's completed sessions.
func (s *RoomService) ListHistories(ctx context.Context, userID uint) ([]domain.History, error) {
	histories, err := s.historyRepo.ListByUser(ctx, userID)
	if err != nil {
		logrus.WithField("user_id", userID).WithError(err).Error("ListHistories: repository error")
		return nil, ErrInternalServer
	}
	return histories, nil
}

// DeleteRoom deletes the room on behalf of its owner.
func (s *RoomService) DeleteRoom(ctx context.Context, requesterID uint, roomUUID string) (bool, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_uuid": roomUUID, "user_id": requesterID})

	if _, err := s.findUser(ctx, requesterID, ErrUserNotFound); err != nil {
		return false, err
	}
	room, err := s.findRoom(ctx, roomUUID)
	if err != nil {
		return false, err
	}
	if room.OwnerID != requesterID {
		logCtx.WithField("owner_id", room.OwnerID).Warn("DeleteRoom: requester is not the owner")
		return false, ErrNotRoomOwner
	}

	if err := s.deleteRoom(ctx, roomUUID, logCtx); err != nil {
		return false, err
	}
	logCtx.Info("Room deleted by owner")
	return true, nil
}

// DeleteRoomFromSocket deletes the room without any ownership check. It is
// reserved for the room-close worker fed by the real-time gateway and must not
// be reachable from the public API.
func (s *RoomService) DeleteRoomFromSocket(ctx context.Context, roomUUID string) (bool, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_uuid": roomUUID, "source": "gateway"})
	if err := s.deleteRoom(ctx, roomUUID, logCtx); err != nil {
		return false, err
	}
	logCtx.Info("Room deleted by gateway")
	return true, nil
}

func (s *RoomService) deleteRoom(ctx context.Context, roomUUID string, logCtx *logrus.Entry) error {
	ok, err := s.roomRepo.DeleteByUUID(ctx, roomUUID)
	if err != nil {
		logCtx.WithError(err).Error("failed to delete room")
		return ErrInternalServer
	}
	if !ok {
		logCtx.Warn("delete had no effect")
		return ErrRoomDelete
	}
	return nil
}

// --- private helpers ---

func (s *RoomService) findRoom(ctx context.Context, roomUUID string) (*domain.Room, error) {
	room, err := s.roomRepo.FindByUUID(ctx, roomUUID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			logrus.WithField("room_uuid", roomUUID).Debug("room not found")
			return nil, ErrRoomNotFound
		}
		logrus.WithField("room_uuid", roomUUID).WithError(err).Error("room lookup failed")
		return nil, ErrInternalServer
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// findUser maps a missing user onto notFound so callers can tell an absent
// owner from an absent requester.
func (s *RoomService) findUser(ctx context.Context, userID uint, notFound error) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, notFound
		}
		logrus.WithField("user_id", userID).WithError(err).Error("user lookup failed")
		return nil, ErrInternalServer
	}
	if user == nil {
		return nil, notFound
	}
	return user, nil
}
