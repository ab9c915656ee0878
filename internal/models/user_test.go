package models_test

import (
	"testing"

	"teamgrid/backend/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestUser_Elevated(t *testing.T) {
	assert.False(t, (&models.User{Role: "member"}).Elevated())
	assert.True(t, (&models.User{Role: "admin"}).Elevated())
	assert.True(t, (&models.User{Role: "super_admin"}).Elevated())
}

func TestEvent_Ephemeral(t *testing.T) {
	assert.True(t, models.Event{Type: models.EventTypingStart}.Ephemeral())
	assert.True(t, models.Event{Type: models.EventPresenceChanged}.Ephemeral())
	assert.True(t, models.Event{Type: models.EventMessageRead}.Ephemeral())

	assert.False(t, models.Event{Type: models.EventMessage}.Ephemeral())
	assert.False(t, models.Event{Type: models.EventOffer}.Ephemeral())
	assert.False(t, models.Event{Type: models.EventCallInvitation}.Ephemeral())
}

func TestMediaUpdate_ApplyKeepsUnsetFields(t *testing.T) {
	state := models.MediaState{AudioEnabled: true, VideoEnabled: true}

	muted := false
	models.MediaUpdate{AudioEnabled: &muted}.Apply(&state)

	assert.False(t, state.AudioEnabled)
	assert.True(t, state.VideoEnabled)
	assert.False(t, state.ScreenSharing)
}
