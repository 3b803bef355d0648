package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"studyroom/internal/domain"
	"studyroom/internal/repository"
	"studyroom/internal/repository/mocks"
	"studyroom/internal/service"
)

// stubIssuer records the last issuance instead of signing anything.
type stubIssuer struct {
	channel   string
	validity  time.Duration
	err       error
}

func (s *stubIssuer) AppID() string { return "test-app" }

func (s *stubIssuer) Issue(channel string, validity time.Duration) (string, error) {
	s.channel = channel
	s.validity = validity
	if s.err != nil {
		return "", s.err
	}
	return "token-for-" + channel, nil
}

type roomFixture struct {
	rooms     *mocks.RoomRepository
	users     *mocks.UserRepository
	histories *mocks.HistoryRepository
	issuer    *stubIssuer
	svc       *service.RoomService
}

func newRoomFixture() *roomFixture {
	f := &roomFixture{
		rooms:     new(mocks.RoomRepository),
		users:     new(mocks.UserRepository),
		histories: new(mocks.HistoryRepository),
		issuer:    &stubIssuer{},
	}
	f.svc = service.NewRoomService(f.rooms, f.users, f.histories, f.issuer,
		service.WithUUIDGenerator(func() string { return "fixed-uuid" }),
	)
	return f
}

func (f *roomFixture) assertExpectations(t *testing.T) {
	f.rooms.AssertExpectations(t)
	f.users.AssertExpectations(t)
	f.histories.AssertExpectations(t)
}

// --- CreateRoom ---

func TestRoomService_CreateRoom_Success(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	owner := &domain.User{ID: 3, Username: "owner"}
	f.users.On("FindByID", ctx, uint(3)).Return(owner, nil).Once()
	f.rooms.On("Create", ctx, mock.MatchedBy(func(r *domain.Room) bool {
		return r.UUID == "fixed-uuid" && r.Title == "algorithms" && r.MaxHeadcount == 4 &&
			r.NowHeadcount == 0 && r.Count == 0 && r.OwnerID == 3 &&
			r.AgoraAppID == "test-app" && r.AgoraToken == "token-for-fixed-uuid"
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.Room).ID = 11
	}).Return(nil).Once()

	room, gotOwner, err := f.svc.CreateRoom(ctx, service.CreateRoomInput{Title: "algorithms", MaxHeadcount: 4, Category: "study", Note: "quiet"}, 3)

	require.NoError(t, err)
	assert.Equal(t, uint(11), room.ID)
	assert.Equal(t, "quiet", room.Note)
	assert.Equal(t, owner, gotOwner)
	assert.Equal(t, "fixed-uuid", f.issuer.channel, "the channel is the room uuid")
	assert.Equal(t, 24*time.Hour, f.issuer.validity)
	f.assertExpectations(t)
}

func TestRoomService_CreateRoom_OwnerNotFound(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	f.users.On("FindByID", ctx, uint(99)).Return(nil, repository.ErrUserNotFound).Once()

	_, _, err := f.svc.CreateRoom(ctx, service.CreateRoomInput{Title: "t", MaxHeadcount: 2}, 99)

	assert.True(t, errors.Is(err, service.ErrOwnerNotFound))
	assert.True(t, errors.Is(err, service.ErrNotFound))
	f.rooms.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	assert.Empty(t, f.issuer.channel, "no credential is issued for a missing owner")
	f.assertExpectations(t)
}

func TestRoomService_CreateRoom_InvalidInput(t *testing.T) {
	f := newRoomFixture()

	_, _, err := f.svc.CreateRoom(context.Background(), service.CreateRoomInput{Title: "t", MaxHeadcount: 0}, 1)
	assert.True(t, errors.Is(err, service.ErrMalformedInput))

	_, _, err = f.svc.CreateRoom(context.Background(), service.CreateRoomInput{Title: "  ", MaxHeadcount: 3}, 1)
	assert.True(t, errors.Is(err, service.ErrInvalidRoom))

	f.users.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestRoomService_CreateRoom_IssuerFails(t *testing.T) {
	f := newRoomFixture()
	f.issuer.err = errors.New("boom")
	ctx := context.Background()
	f.users.On("FindByID", ctx, uint(3)).Return(&domain.User{ID: 3}, nil).Once()

	_, _, err := f.svc.CreateRoom(ctx, service.CreateRoomInput{Title: "t", MaxHeadcount: 2}, 3)

	assert.True(t, errors.Is(err, service.ErrInternal))
	f.rooms.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

// --- ListRooms / GetRoom ---

func TestRoomService_ListRooms(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	summaries := []domain.RoomSummary{{UUID: "a", Title: "A", OwnerID: 1}}
	f.rooms.On("ListSummaries", ctx).Return(summaries, nil).Once()

	got, err := f.svc.ListRooms(ctx)

	require.NoError(t, err)
	assert.Equal(t, summaries, got)
	f.assertExpectations(t)
}

func TestRoomService_ListRooms_StoreError(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	f.rooms.On("ListSummaries", ctx).Return(nil, errors.New("db down")).Once()

	_, err := f.svc.ListRooms(ctx)

	assert.True(t, errors.Is(err, service.ErrInternal))
}

func TestRoomService_GetRoom(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	room := &domain.Room{ID: 1, UUID: "r", OwnerID: 3}
	owner := &domain.User{ID: 3}
	f.rooms.On("FindByUUID", ctx, "r").Return(room, nil).Once()
	f.users.On("FindByID", ctx, uint(3)).Return(owner, nil).Once()

	gotRoom, gotOwner, err := f.svc.GetRoom(ctx, "r")

	require.NoError(t, err)
	assert.Equal(t, room, gotRoom)
	assert.Equal(t, owner, gotOwner)
	f.assertExpectations(t)
}

func TestRoomService_GetRoom_NotFound(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	f.rooms.On("FindByUUID", ctx, "missing").Return(nil, repository.ErrRoomNotFound).Once()

	_, _, err := f.svc.GetRoom(ctx, "missing")

	assert.True(t, errors.Is(err, service.ErrRoomNotFound))
}

// --- JoinRoom / LeaveRoom ---

func TestRoomService_JoinRoom_Success(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	f.rooms.On("FindByUUID", ctx, "r").Return(&domain.Room{UUID: "r", MaxHeadcount: 2, NowHeadcount: 1}, nil).Once()
	f.rooms.On("IncrementHeadcount", ctx, "r").Return(true, nil).Once()

	ok, err := f.svc.JoinRoom(ctx, "r")

	require.NoError(t, err)
	assert.True(t, ok)
	f.assertExpectations(t)
}

func TestRoomService_JoinRoom_Full(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	f.rooms.On("FindByUUID", ctx, "r").Return(&domain.Room{UUID: "r", MaxHeadcount: 2, NowHeadcount: 2}, nil).Once()

	ok, err := f.svc.JoinRoom(ctx, "r")

	assert.False(t, ok)
	assert.True(t, errors.Is(err, service.ErrRoomFull))
	assert.True(t, errors.Is(err, service.ErrCapacityViolation))
	f.rooms.AssertNotCalled(t, "IncrementHeadcount", mock.Anything, mock.Anything)
}

func TestRoomService_JoinRoom_NoEffect(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	f.rooms.On("FindByUUID", ctx, "r").Return(&domain.Room{UUID: "r", MaxHeadcount: 2, NowHeadcount: 1}, nil).Once()
	f.rooms.On("IncrementHeadcount", ctx, "r").Return(false, nil).Once()

	_, err := f.svc.JoinRoom(ctx, "r")

	assert.True(t, errors.Is(err, service.ErrRoomJoin))
	assert.True(t, errors.Is(err, service.ErrNoEffect))
}

func TestRoomService_JoinRoom_NotFound(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	f.rooms.On("FindByUUID", ctx, "missing").Return(nil, repository.ErrRoomNotFound).Once()

	_, err := f.svc.JoinRoom(ctx, "missing")

	assert.True(t, errors.Is(err, service.ErrRoomNotFound))
}

func TestRoomService_LeaveRoom_Success(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	f.rooms.On("FindByUUID", ctx, "r").Return(&domain.Room{UUID: "r", MaxHeadcount: 2, NowHeadcount: 1}, nil).Once()
	f.rooms.On("DecrementHeadcount", ctx, "r").Return(true, nil).Once()

	ok, err := f.svc.LeaveRoom(ctx, "r")

	require.NoError(t, err)
	assert.True(t, ok)
	f.assertExpectations(t)
}

func TestRoomService_LeaveRoom_Empty(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	f.rooms.On("FindByUUID", ctx, "r").Return(&domain.Room{UUID: "r", MaxHeadcount: 2}, nil).Once()

	_, err := f.svc.LeaveRoom(ctx, "r")

	assert.True(t, errors.Is(err, service.ErrStateViolation))
	f.rooms.AssertNotCalled(t, "DecrementHeadcount", mock.Anything, mock.Anything)
}

func TestRoomService_LeaveRoom_NoEffect(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	f.rooms.On("FindByUUID", ctx, "r").Return(&domain.Room{UUID: "r", MaxHeadcount: 2, NowHeadcount: 1}, nil).Once()
	f.rooms.On("DecrementHeadcount", ctx, "r").Return(false, nil).Once()

	_, err := f.svc.LeaveRoom(ctx, "r")

	assert.True(t, errors.Is(err, service.ErrRoomLeave))
}

// --- CheckoutRoom ---

func TestRoomService_CheckoutRoom_Success(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	checkIn := time.Date(2023, 10, 27, 7, 0, 0, 0, time.UTC)
	checkOut := checkIn.Add(150 * time.Minute)
	f.rooms.On("FindByUUID", ctx, "r").Return(&domain.Room{ID: 42, UUID: "r"}, nil).Once()
	f.users.On("FindByID", ctx, uint(5)).Return(&domain.User{ID: 5}, nil).Once()
	f.histories.On("Create", ctx, mock.MatchedBy(func(h *domain.History) bool {
		return h.UserID == 5 && h.RoomID == 42 && h.TotalHours == 9000 &&
			h.HistoryType == "hobby" && h.CheckIn.Equal(checkIn) && h.CheckOut.Equal(checkOut)
	})).Return(nil).Once()

	history, err := f.svc.CheckoutRoom(ctx, "r", 5, service.CheckoutInput{
		CheckIn: checkIn, CheckOut: checkOut, TotalHours: "02:30:00", HistoryType: "hobby",
	})

	require.NoError(t, err)
	assert.Equal(t, int64(9000), history.TotalHours)
	f.assertExpectations(t)
	f.rooms.AssertNotCalled(t, "IncrementHeadcount", mock.Anything, mock.Anything)
	f.rooms.AssertNotCalled(t, "DecrementHeadcount", mock.Anything, mock.Anything)
}

func TestRoomService_CheckoutRoom_RoomNotFound(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	f.rooms.On("FindByUUID", ctx, "missing").Return(nil, repository.ErrRoomNotFound).Once()

	_, err := f.svc.CheckoutRoom(ctx, "missing", 5, service.CheckoutInput{TotalHours: "00:00:01"})

	assert.True(t, errors.Is(err, service.ErrRoomNotFound))
	f.histories.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRoomService_CheckoutRoom_MalformedDuration(t *testing.T) {
	f := newRoomFixture()

	_, err := f.svc.CheckoutRoom(context.Background(), "r", 5, service.CheckoutInput{TotalHours: "2h30m"})

	assert.True(t, errors.Is(err, service.ErrMalformedDuration))
	assert.True(t, errors.Is(err, service.ErrMalformedInput))
	f.rooms.AssertNotCalled(t, "FindByUUID", mock.Anything, mock.Anything)
}

func TestRoomService_CheckoutRoom_CheckOutBeforeCheckIn(t *testing.T) {
	f := newRoomFixture()
	now := time.Now()

	_, err := f.svc.CheckoutRoom(context.Background(), "r", 5, service.CheckoutInput{
		CheckIn: now, CheckOut: now.Add(-time.Minute), TotalHours: "00:01:00",
	})

	assert.True(t, errors.Is(err, service.ErrInvalidCheckout))
}

// --- DeleteRoom / DeleteRoomFromSocket ---

func TestRoomService_DeleteRoom_ByOwner(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	f.users.On("FindByID", ctx, uint(3)).Return(&domain.User{ID: 3}, nil).Once()
	f.rooms.On("FindByUUID", ctx, "r").Return(&domain.Room{UUID: "r", OwnerID: 3}, nil).Once()
	f.rooms.On("DeleteByUUID", ctx, "r").Return(true, nil).Once()

	ok, err := f.svc.DeleteRoom(ctx, 3, "r")

	require.NoError(t, err)
	assert.True(t, ok)
	f.assertExpectations(t)
}

func TestRoomService_DeleteRoom_NotOwner(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	f.users.On("FindByID", ctx, uint(4)).Return(&domain.User{ID: 4}, nil).Once()
	f.rooms.On("FindByUUID", ctx, "r").Return(&domain.Room{UUID: "r", OwnerID: 3}, nil).Once()

	ok, err := f.svc.DeleteRoom(ctx, 4, "r")

	assert.False(t, ok)
	assert.True(t, errors.Is(err, service.ErrUnauthorized))
	f.rooms.AssertNotCalled(t, "DeleteByUUID", mock.Anything, mock.Anything)
}

func TestRoomService_DeleteRoom_UserNotFound(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	f.users.On("FindByID", ctx, uint(8)).Return(nil, repository.ErrUserNotFound).Once()

	_, err := f.svc.DeleteRoom(ctx, 8, "r")

	assert.True(t, errors.Is(err, service.ErrUserNotFound))
	f.rooms.AssertNotCalled(t, "FindByUUID", mock.Anything, mock.Anything)
}

func TestRoomService_DeleteRoom_NoEffect(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	f.users.On("FindByID", ctx, uint(3)).Return(&domain.User{ID: 3}, nil).Once()
	f.rooms.On("FindByUUID", ctx, "r").Return(&domain.Room{UUID: "r", OwnerID: 3}, nil).Once()
	f.rooms.On("DeleteByUUID", ctx, "r").Return(false, nil).Once()

	_, err := f.svc.DeleteRoom(ctx, 3, "r")

	assert.True(t, errors.Is(err, service.ErrRoomDelete))
}

func TestRoomService_DeleteRoomFromSocket(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	f.rooms.On("DeleteByUUID", ctx, "r").Return(true, nil).Once()
	f.rooms.On("DeleteByUUID", ctx, "r").Return(false, nil).Once()

	ok, err := f.svc.DeleteRoomFromSocket(ctx, "r")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.svc.DeleteRoomFromSocket(ctx, "r")
	assert.True(t, errors.Is(err, service.ErrRoomDelete))

	f.users.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	f.assertExpectations(t)
}
