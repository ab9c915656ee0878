package realtime_test

import (
	"testing"

	"teamgrid/backend/internal/models"
	"teamgrid/backend/internal/realtime"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_FirstOpenLastCloseHooks(t *testing.T) {
	reg := realtime.NewRegistry(false)
	var opened, closed []string
	reg.OnFirstOpen = func(userID string) { opened = append(opened, userID) }
	reg.OnLastClose = func(userID string) { closed = append(closed, userID) }

	laptop := newMockClient("conn_1", "user_A")
	phone := newMockClient("conn_2", "user_A")

	assert.NoError(t, reg.Register(laptop))
	assert.NoError(t, reg.Register(phone))
	assert.Equal(t, []string{"user_A"}, opened, "hook fires on the first connection only")
	assert.Equal(t, 2, reg.ConnectionCount())
	assert.Equal(t, 1, reg.UserCount())

	reg.Unregister("conn_1")
	assert.Empty(t, closed, "user still reachable through the second device")

	reg.Unregister("conn_2")
	assert.Equal(t, []string{"user_A"}, closed)
	assert.Equal(t, 0, reg.UserCount())
}

func TestRegistry_SingleSessionRejectsSecondConnection(t *testing.T) {
	reg := realtime.NewRegistry(true)

	assert.NoError(t, reg.Register(newMockClient("conn_1", "user_A")))
	err := reg.Register(newMockClient("conn_2", "user_A"))
	assert.ErrorIs(t, err, realtime.ErrDuplicateSession)
	assert.Equal(t, 1, reg.ConnectionCount())
}

func TestRegistry_SendToUserAllDevices(t *testing.T) {
	reg := realtime.NewRegistry(false)
	laptop := newMockClient("conn_1", "user_A")
	phone := newMockClient("conn_2", "user_A")
	assert.NoError(t, reg.Register(laptop))
	assert.NoError(t, reg.Register(phone))

	delivered := reg.SendToUser("user_A", models.Event{Type: models.EventMessage, Content: "hi"})
	assert.True(t, delivered)
	assert.Len(t, laptop.RecvChannel, 1)
	assert.Len(t, phone.RecvChannel, 1)

	assert.False(t, reg.SendToUser("user_B", models.Event{Type: models.EventMessage}))
}

func TestRegistry_ForceDisconnect(t *testing.T) {
	reg := realtime.NewRegistry(false)
	var closed []string
	reg.OnLastClose = func(userID string) { closed = append(closed, userID) }

	laptop := newMockClient("conn_1", "user_A")
	phone := newMockClient("conn_2", "user_A")
	assert.NoError(t, reg.Register(laptop))
	assert.NoError(t, reg.Register(phone))

	reg.ForceDisconnect("user_A")

	assert.True(t, laptop.closed)
	assert.True(t, phone.closed)
	assert.Equal(t, 0, reg.ConnectionCount())
	assert.Equal(t, []string{"user_A"}, closed)
}
