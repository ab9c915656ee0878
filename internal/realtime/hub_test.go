package realtime_test

import (
	"testing"

	"teamgrid/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestHub_DisconnectedMemberStillGetsOfflineNotifications(t *testing.T) {
	storageMock := newMockStorage()
	storageMock.On("IsRoomMember", "tenant_1", "room_1", mock.Anything).Return(true, nil)
	hub, _ := newTestHub(storageMock, newTestConfig())

	a := newMockClient("conn_A", "user_A")
	b := newMockClient("conn_B", "user_B")
	assert.NoError(t, hub.Registry.Register(a))
	assert.NoError(t, hub.Registry.Register(b))
	_, err := hub.Rooms.Join("tenant_1", "room_1", "user_A")
	assert.NoError(t, err)
	_, err = hub.Rooms.Join("tenant_1", "room_1", "user_B")
	assert.NoError(t, err)

	hub.Registry.Unregister("conn_A")

	assert.Equal(t, models.PresenceOffline, hub.Presence.Get("user_A").Status)
	assert.Contains(t, hub.Rooms.MembersOf("room_1"), "user_A",
		"chat membership survives the disconnect")

	_, err = hub.Router.Publish("tenant_1", "room_1", "user_B", "hello", "text")
	assert.NoError(t, err)
	assert.Equal(t, 1, hub.Dispatcher.Pending(),
		"the offline member is handed to the dispatcher")
	assert.Empty(t, a.RecvChannel)
}

func TestHub_ExplicitLeaveStopsNotifications(t *testing.T) {
	storageMock := newMockStorage()
	storageMock.On("IsRoomMember", "tenant_1", "room_1", mock.Anything).Return(true, nil)
	hub, _ := newTestHub(storageMock, newTestConfig())

	a := newMockClient("conn_A", "user_A")
	b := newMockClient("conn_B", "user_B")
	assert.NoError(t, hub.Registry.Register(a))
	assert.NoError(t, hub.Registry.Register(b))
	_, err := hub.Rooms.Join("tenant_1", "room_1", "user_A")
	assert.NoError(t, err)
	_, err = hub.Rooms.Join("tenant_1", "room_1", "user_B")
	assert.NoError(t, err)

	hub.Rooms.Leave("room_1", "user_A")
	hub.Registry.Unregister("conn_A")

	_, err = hub.Router.Publish("tenant_1", "room_1", "user_B", "hello", "text")
	assert.NoError(t, err)
	assert.Equal(t, 0, hub.Dispatcher.Pending())
}
