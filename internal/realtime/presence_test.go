package realtime_test

import (
	"errors"
	"testing"
	"time"

	"teamgrid/backend/internal/models"
	"teamgrid/backend/internal/realtime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newPresenceFixture(t *testing.T) (*realtime.Registry, *realtime.PresenceTracker, *MockStorage) {
	t.Helper()
	storageMock := newMockStorage()
	reg := realtime.NewRegistry(false)
	tracker := realtime.NewPresenceTracker(reg, storageMock, newTestConfig())
	reg.OnFirstOpen = tracker.MarkOnline
	reg.OnLastClose = tracker.MarkOffline
	return reg, tracker, storageMock
}

func TestPresence_OnlineWhileAnyConnectionOpen(t *testing.T) {
	reg, tracker, _ := newPresenceFixture(t)

	laptop := newMockClient("conn_1", "user_A")
	phone := newMockClient("conn_2", "user_A")
	assert.NoError(t, reg.Register(laptop))
	assert.NoError(t, reg.Register(phone))
	assert.Equal(t, models.PresenceOnline, tracker.Get("user_A").Status)

	reg.Unregister("conn_1")
	assert.Equal(t, models.PresenceOnline, tracker.Get("user_A").Status)

	reg.Unregister("conn_2")
	assert.Equal(t, models.PresenceOffline, tracker.Get("user_A").Status)
}

func TestPresence_AutoAwayRevertsOnActivity(t *testing.T) {
	reg, tracker, _ := newPresenceFixture(t)
	assert.NoError(t, reg.Register(newMockClient("conn_1", "user_A")))

	go tracker.Run()
	defer tracker.Stop()

	time.Sleep(100 * time.Millisecond)
	st := tracker.Get("user_A")
	assert.Equal(t, models.PresenceAway, st.Status)
	assert.True(t, st.AutoAway)

	tracker.Touch("user_A")
	st = tracker.Get("user_A")
	assert.Equal(t, models.PresenceOnline, st.Status)
	assert.False(t, st.AutoAway)
}

func TestPresence_ExplicitStatusSurvivesSweepAndActivity(t *testing.T) {
	reg, tracker, _ := newPresenceFixture(t)
	assert.NoError(t, reg.Register(newMockClient("conn_1", "user_A")))

	assert.NoError(t, tracker.SetStatus("user_A", models.PresenceBusy, "in a meeting"))

	go tracker.Run()
	defer tracker.Stop()
	time.Sleep(100 * time.Millisecond)

	st := tracker.Get("user_A")
	assert.Equal(t, models.PresenceBusy, st.Status)
	assert.Equal(t, "in a meeting", st.CustomMessage)

	// Activity never overrides a status the user chose.
	tracker.Touch("user_A")
	assert.Equal(t, models.PresenceBusy, tracker.Get("user_A").Status)
}

func TestPresence_ExplicitOnlineReenablesAutoAway(t *testing.T) {
	reg, tracker, _ := newPresenceFixture(t)
	assert.NoError(t, reg.Register(newMockClient("conn_1", "user_A")))
	assert.NoError(t, tracker.SetStatus("user_A", models.PresenceOnline, ""))

	go tracker.Run()
	defer tracker.Stop()
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, models.PresenceAway, tracker.Get("user_A").Status)
}

func TestPresence_SetStatusRejectsOffline(t *testing.T) {
	_, tracker, _ := newPresenceFixture(t)
	assert.Error(t, tracker.SetStatus("user_A", models.PresenceOffline, ""))
}

func TestPresence_ContactLookupFailureIsBestEffort(t *testing.T) {
	storageMock := new(MockStorage)
	storageMock.On("SetPresence", "user_A", models.PresenceBusy, mock.Anything).Return(nil)
	storageMock.On("RoomContacts", "user_A").Return([]string{}, errors.New("connection refused"))

	reg := realtime.NewRegistry(false)
	tracker := realtime.NewPresenceTracker(reg, storageMock, newTestConfig())

	assert.NoError(t, tracker.SetStatus("user_A", models.PresenceBusy, ""))
	assert.Equal(t, models.PresenceBusy, tracker.Get("user_A").Status)
	storageMock.AssertCalled(t, "SetPresence", "user_A", models.PresenceBusy, mock.Anything)
}

func TestPresence_ChangesReachRoomContacts(t *testing.T) {
	storageMock := new(MockStorage)
	storageMock.On("SetPresence", "user_A", models.PresenceBusy, mock.Anything).Return(nil)
	storageMock.On("RoomContacts", "user_A").Return([]string{"user_B"}, nil)

	reg := realtime.NewRegistry(false)
	tracker := realtime.NewPresenceTracker(reg, storageMock, newTestConfig())

	contact := newMockClient("conn_B", "user_B")
	assert.NoError(t, reg.Register(contact))

	assert.NoError(t, tracker.SetStatus("user_A", models.PresenceBusy, ""))

	select {
	case ev := <-contact.RecvChannel:
		assert.Equal(t, models.EventPresenceChanged, ev.Type)
		assert.Equal(t, "user_A", ev.SenderID)
		assert.Equal(t, string(models.PresenceBusy), ev.Content)
	default:
		t.Error("contact did not receive the presence change")
	}
}
