package realtime_test

import (
	"testing"
	"time"

	"teamgrid/backend/internal/models"
	"teamgrid/backend/internal/realtime"

	"github.com/stretchr/testify/assert"
)

func TestRooms_JoinChecksMembership(t *testing.T) {
	storageMock := newMockStorage()
	storageMock.On("IsRoomMember", "tenant_1", "room_1", "user_A").Return(true, nil)
	storageMock.On("IsRoomMember", "tenant_1", "room_1", "user_B").Return(false, nil)

	rooms := realtime.NewRoomManager(storageMock)

	members, err := rooms.Join("tenant_1", "room_1", "user_A")
	assert.NoError(t, err)
	assert.Equal(t, []string{"user_A"}, members)

	_, err = rooms.Join("tenant_1", "room_1", "user_B")
	assert.ErrorIs(t, err, realtime.ErrAccessDenied)
}

func TestRooms_JoinTwiceIsNoOp(t *testing.T) {
	storageMock := newMockStorage()
	storageMock.On("IsRoomMember", "tenant_1", "room_1", "user_A").Return(true, nil)

	rooms := realtime.NewRoomManager(storageMock)
	_, err := rooms.Join("tenant_1", "room_1", "user_A")
	assert.NoError(t, err)
	members, err := rooms.Join("tenant_1", "room_1", "user_A")
	assert.NoError(t, err)
	assert.Equal(t, []string{"user_A"}, members)

	// The membership collaborator is consulted once; the second join hits
	// the live room.
	storageMock.AssertNumberOfCalls(t, "IsRoomMember", 1)
}

func TestRooms_CallRoomsAreInviteOnly(t *testing.T) {
	rooms := realtime.NewRoomManager(newMockStorage())
	rooms.CreateCallRoom("room_call_1", []string{"user_A", "user_B"})

	assert.NoError(t, rooms.JoinCall("room_call_1", "user_A"))
	assert.ErrorIs(t, rooms.JoinCall("room_call_1", "user_C"), realtime.ErrAccessDenied)
	assert.ErrorIs(t, rooms.JoinCall("room_missing", "user_A"), realtime.ErrAccessDenied)

	kind, ok := rooms.Kind("room_call_1")
	assert.True(t, ok)
	assert.Equal(t, models.RoomCall, kind)
}

func TestRooms_LastLeaveFiresOnEmpty(t *testing.T) {
	storageMock := newMockStorage()
	storageMock.On("IsRoomMember", "tenant_1", "room_1", "user_A").Return(true, nil)

	rooms := realtime.NewRoomManager(storageMock)
	emptied := make(chan string, 1)
	rooms.OnEmpty = func(roomID string, kind models.RoomKind) { emptied <- roomID }

	_, err := rooms.Join("tenant_1", "room_1", "user_A")
	assert.NoError(t, err)
	rooms.Leave("room_1", "user_A")

	select {
	case roomID := <-emptied:
		assert.Equal(t, "room_1", roomID)
	case <-time.After(time.Second):
		t.Error("OnEmpty hook did not fire")
	}
	assert.Empty(t, rooms.MembersOf("room_1"))
}
