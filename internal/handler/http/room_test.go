package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"studyroom/internal/domain"
	httpHandler "studyroom/internal/handler/http"
	"studyroom/internal/repository"
	"studyroom/internal/repository/mocks"
	"studyroom/internal/service"
)

type fixedIssuer struct{}

func (fixedIssuer) AppID() string { return "app" }

func (fixedIssuer) Issue(channel string, _ time.Duration) (string, error) {
	return "tok-" + channel, nil
}

type apiFixture struct {
	router    *gin.Engine
	rooms     *mocks.RoomRepository
	users     *mocks.UserRepository
	histories *mocks.HistoryRepository
}

// newAPI wires real services over mocked repositories. The auth middleware is
// replaced by one that trusts the X-User header.
func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &apiFixture{
		rooms:     new(mocks.RoomRepository),
		users:     new(mocks.UserRepository),
		histories: new(mocks.HistoryRepository),
	}
	roomService := service.NewRoomService(f.rooms, f.users, f.histories, fixedIssuer{},
		service.WithUUIDGenerator(func() string { return "room-uuid" }))
	authService, err := service.NewAuthService(f.users, "secret", 1)
	require.NoError(t, err)

	fakeAuth := func(c *gin.Context) {
		id, err := strconv.ParseUint(c.GetHeader("X-User"), 10, 64)
		if err != nil || id == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			return
		}
		c.Set("user_id", uint(id))
		c.Next()
	}

	f.router = gin.New()
	httpHandler.RegisterRoutes(f.router, fakeAuth, httpHandler.NewAuthHandler(authService), httpHandler.NewRoomHandler(roomService))
	return f
}

func (f *apiFixture) do(method, path, user string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User", user)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestPing(t *testing.T) {
	f := newAPI(t)
	w := f.do(http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"pong"}`, w.Body.String())
}

func TestRooms_RequireAuth(t *testing.T) {
	f := newAPI(t)
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/rooms", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/histories", "", nil).Code)
}

func TestCreateRoom_Created(t *testing.T) {
	f := newAPI(t)
	f.users.On("FindByID", mock.Anything, uint(3)).Return(&domain.User{ID: 3, Username: "owner", Password: "hash"}, nil).Once()
	f.rooms.On("Create", mock.Anything, mock.AnythingOfType("*domain.Room")).Return(nil).Once()

	w := f.do(http.MethodPost, "/api/rooms", "3", map[string]interface{}{
		"title": "algorithms", "maxHeadcount": 4, "category": "study", "note": "quiet",
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var body struct {
		Room  map[string]interface{} `json:"room"`
		Owner map[string]interface{} `json:"owner"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "room-uuid", body.Room["uuid"])
	assert.Equal(t, "tok-room-uuid", body.Room["agoraToken"])
	assert.EqualValues(t, 0, body.Room["nowHeadcount"])
	assert.Equal(t, "owner", body.Owner["username"])
	assert.NotContains(t, body.Owner, "password")
	f.rooms.AssertExpectations(t)
}

func TestCreateRoom_InvalidBody(t *testing.T) {
	f := newAPI(t)
	w := f.do(http.MethodPost, "/api/rooms", "3", map[string]interface{}{"title": "t", "maxHeadcount": 0, "category": "c"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	f.users.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestCreateRoom_UnknownOwner(t *testing.T) {
	f := newAPI(t)
	f.users.On("FindByID", mock.Anything, uint(9)).Return(nil, repository.ErrUserNotFound).Once()

	w := f.do(http.MethodPost, "/api/rooms", "9", map[string]interface{}{"title": "t", "maxHeadcount": 2, "category": "c"})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListRooms(t *testing.T) {
	f := newAPI(t)
	f.rooms.On("ListSummaries", mock.Anything).Return([]domain.RoomSummary{{UUID: "a", Title: "A"}}, nil).Once()

	w := f.do(http.MethodGet, "/api/rooms", "1", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "a", list[0]["uuid"])
}

func TestGetRoom_NotFound(t *testing.T) {
	f := newAPI(t)
	f.rooms.On("FindByUUID", mock.Anything, "nope").Return(nil, repository.ErrRoomNotFound).Once()

	w := f.do(http.MethodGet, "/api/rooms/nope", "1", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"room not found"}`, w.Body.String())
}

func TestJoinRoom_StatusByOutcome(t *testing.T) {
	tests := []struct {
		name     string
		room     *domain.Room
		affected bool
		want     int
	}{
		{"joined", &domain.Room{UUID: "r", MaxHeadcount: 2, NowHeadcount: 1}, true, http.StatusOK},
		{"full", &domain.Room{UUID: "r", MaxHeadcount: 2, NowHeadcount: 2}, false, http.StatusConflict},
		{"no effect", &domain.Room{UUID: "r", MaxHeadcount: 2, NowHeadcount: 0}, false, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPI(t)
			f.rooms.On("FindByUUID", mock.Anything, "r").Return(tt.room, nil).Once()
			if !tt.room.IsFull() {
				f.rooms.On("IncrementHeadcount", mock.Anything, "r").Return(tt.affected, nil).Once()
			}

			w := f.do(http.MethodPatch, "/api/rooms/r/join", "1", nil)

			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusOK {
				assert.JSONEq(t, `{"success":true}`, w.Body.String())
			}
		})
	}
}

func TestLeaveRoom_Empty(t *testing.T) {
	f := newAPI(t)
	f.rooms.On("FindByUUID", mock.Anything, "r").Return(&domain.Room{UUID: "r", MaxHeadcount: 2}, nil).Once()

	w := f.do(http.MethodPatch, "/api/rooms/r/leave", "1", nil)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCheckoutRoom(t *testing.T) {
	f := newAPI(t)
	f.rooms.On("FindByUUID", mock.Anything, "r").Return(&domain.Room{ID: 8, UUID: "r"}, nil).Once()
	f.users.On("FindByID", mock.Anything, uint(5)).Return(&domain.User{ID: 5}, nil).Once()
	f.histories.On("Create", mock.Anything, mock.MatchedBy(func(h *domain.History) bool {
		return h.RoomID == 8 && h.UserID == 5 && h.TotalHours == 4530
	})).Return(nil).Once()

	w := f.do(http.MethodPost, "/api/rooms/r/checkout", "5", map[string]interface{}{
		"checkIn":     "2023-10-27T07:00:00Z",
		"checkOut":    "2023-10-27T08:15:30Z",
		"totalHours":  "01:15:30",
		"historyType": "study",
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.EqualValues(t, 4530, body["totalHours"])
	f.histories.AssertExpectations(t)
}

func TestCheckoutRoom_MalformedDuration(t *testing.T) {
	f := newAPI(t)

	w := f.do(http.MethodPost, "/api/rooms/r/checkout", "5", map[string]interface{}{
		"checkIn":     "2023-10-27T07:00:00Z",
		"checkOut":    "2023-10-27T08:00:00Z",
		"totalHours":  "1h",
		"historyType": "study",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	f.histories.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestDeleteRoom(t *testing.T) {
	f := newAPI(t)
	f.users.On("FindByID", mock.Anything, uint(4)).Return(&domain.User{ID: 4}, nil)
	f.rooms.On("FindByUUID", mock.Anything, "r").Return(&domain.Room{UUID: "r", OwnerID: 3}, nil).Once()

	w := f.do(http.MethodDelete, "/api/rooms/r", "4", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	f.users.On("FindByID", mock.Anything, uint(3)).Return(&domain.User{ID: 3}, nil)
	f.rooms.On("FindByUUID", mock.Anything, "r").Return(&domain.Room{UUID: "r", OwnerID: 3}, nil).Once()
	f.rooms.On("DeleteByUUID", mock.Anything, "r").Return(true, nil).Once()

	w = f.do(http.MethodDelete, "/api/rooms/r", "3", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
}

func TestListHistories(t *testing.T) {
	f := newAPI(t)
	f.histories.On("ListByUser", mock.Anything, uint(5)).Return([]domain.History{{ID: 1, UserID: 5, TotalHours: 60}}, nil).Once()

	w := f.do(http.MethodGet, "/api/histories", "5", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
}

func TestRegisterAndLogin(t *testing.T) {
	f := newAPI(t)
	f.users.On("FindByUsername", mock.Anything, "taken").Return(&domain.User{ID: 1, Username: "taken"}, nil).Once()

	w := f.do(http.MethodPost, "/api/auth/register", "", map[string]string{"username": "taken", "password": "secret1"})
	assert.Equal(t, http.StatusConflict, w.Code)

	hash, _ := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	f.users.On("FindByUsername", mock.Anything, "alice").Return(&domain.User{ID: 2, Username: "alice", Password: string(hash)}, nil)

	w = f.do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": "alice", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": "alice", "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code)
	var login httpHandler.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	assert.NotEmpty(t, login.Token)
}
