package realtime_test

import (
	"time"

	"teamgrid/backend/internal/config"
	"teamgrid/backend/internal/models"
	"teamgrid/backend/internal/realtime"
	"teamgrid/backend/internal/scoring"
	"teamgrid/backend/internal/storage"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
)

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) GetUserByID(id string) (*models.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStorage) SaveUser(user *models.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockStorage) SaveMessage(msg *models.Message) error {
	args := m.Called(msg)
	return args.Error(0)
}

func (m *MockStorage) LoadRecentMessages(roomID string, limit, offset int) ([]models.Message, error) {
	args := m.Called(roomID, limit, offset)
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockStorage) MarkRoomRead(roomID, userID string) error {
	args := m.Called(roomID, userID)
	return args.Error(0)
}

func (m *MockStorage) IsRoomMember(tenantID, roomID, userID string) (bool, error) {
	args := m.Called(tenantID, roomID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) RoomContacts(userID string) ([]string, error) {
	args := m.Called(userID)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStorage) EnsureRoom(room *models.ChatRoom) error {
	args := m.Called(room)
	return args.Error(0)
}

func (m *MockStorage) SaveCallRecord(rec *models.CallRecord) error {
	args := m.Called(rec)
	return args.Error(0)
}

func (m *MockStorage) UpdateCallRecord(rec *models.CallRecord) error {
	args := m.Called(rec)
	return args.Error(0)
}

func (m *MockStorage) SaveCallParticipant(p *models.CallParticipant) error {
	args := m.Called(p)
	return args.Error(0)
}

func (m *MockStorage) UpdateCallParticipant(p *models.CallParticipant) error {
	args := m.Called(p)
	return args.Error(0)
}

func (m *MockStorage) ActiveCallIDs() ([]string, error) {
	args := m.Called()
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStorage) SetPresence(userID string, status models.PresenceStatus, ttl time.Duration) error {
	args := m.Called(userID, status, ttl)
	return args.Error(0)
}

func (m *MockStorage) GetPresence(userID string) (models.PresenceStatus, error) {
	args := m.Called(userID)
	return args.Get(0).(models.PresenceStatus), args.Error(1)
}

func (m *MockStorage) ClearPresence(userID string) error {
	args := m.Called(userID)
	return args.Error(0)
}

func (m *MockStorage) PublishEvent(roomID string, ev models.Event) error {
	args := m.Called(roomID, ev)
	return args.Error(0)
}

func (m *MockStorage) SubscribeRooms() *redis.PubSub {
	args := m.Called()
	return args.Get(0).(*redis.PubSub)
}

// newMockStorage pre-arms the ambient expectations every component touches
// so individual tests only arm what they assert on.
func newMockStorage() *MockStorage {
	m := new(MockStorage)
	m.On("SetPresence", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	m.On("ClearPresence", mock.Anything).Return(nil)
	m.On("RoomContacts", mock.Anything).Return([]string{}, nil)
	m.On("PublishEvent", mock.Anything, mock.Anything).Return(nil)
	m.On("SubscribeRooms").Return(&redis.PubSub{})
	m.On("SaveMessage", mock.Anything).Return(nil)
	m.On("MarkRoomRead", mock.Anything, mock.Anything).Return(nil)
	m.On("SaveCallRecord", mock.Anything).Return(nil)
	m.On("UpdateCallRecord", mock.Anything).Return(nil)
	m.On("SaveCallParticipant", mock.Anything).Return(nil)
	m.On("UpdateCallParticipant", mock.Anything).Return(nil)
	return m
}

type MockPusher struct {
	mock.Mock
}

func (m *MockPusher) Push(userID string, ev models.Event) error {
	args := m.Called(userID, ev)
	return args.Error(0)
}

type mockClient struct {
	connID      string
	userID      string
	tenantID    string
	RecvChannel chan models.Event
	failSend    bool
	closed      bool
}

func newMockClient(connID, userID string) *mockClient {
	return &mockClient{
		connID:      connID,
		userID:      userID,
		tenantID:    "tenant_1",
		RecvChannel: make(chan models.Event, 64),
	}
}

func (c *mockClient) ConnID() string   { return c.connID }
func (c *mockClient) UserID() string   { return c.userID }
func (c *mockClient) TenantID() string { return c.tenantID }

func (c *mockClient) Enqueue(ev models.Event) error {
	if c.failSend {
		return realtime.ErrRecipientUnreachable
	}
	c.RecvChannel <- ev
	return nil
}

func (c *mockClient) Run() {}

func (c *mockClient) Close() {
	c.closed = true
}

func recvTypes(c *mockClient) []models.EventType {
	var types []models.EventType
	for {
		select {
		case ev := <-c.RecvChannel:
			types = append(types, ev.Type)
		default:
			return types
		}
	}
}

func newTestConfig() config.Config {
	return config.Config{
		AwayThreshold:    40 * time.Millisecond,
		OfflineThreshold: 10 * time.Second,
		SweepInterval:    10 * time.Millisecond,
		RingingTimeout:   60 * time.Millisecond,
		SendBuffer:       16,
		SendTimeout:      100 * time.Millisecond,
		DispatchQueue:    16,
	}
}

func newTestHub(st storage.Storage, cfg config.Config) (*realtime.Hub, *MockPusher) {
	pusher := new(MockPusher)
	pusher.On("Push", mock.Anything, mock.Anything).Return(nil)
	return realtime.NewHub(st, scoring.Heuristic{}, pusher, cfg), pusher
}
