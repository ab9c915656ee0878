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

func TestDispatcher_NotifyNeverBlocks(t *testing.T) {
	pusher := new(MockPusher)
	d := realtime.NewDispatcher(pusher, 1)

	d.Notify("user_A", models.Event{Type: models.EventMessage})
	// Queue is full now; the second notification is dropped, not queued.
	d.Notify("user_A", models.Event{Type: models.EventMessage})
	assert.Equal(t, 1, d.Pending())
}

func TestDispatcher_DrainsQueueToPusher(t *testing.T) {
	pusher := new(MockPusher)
	pusher.On("Push", "user_A", mock.AnythingOfType("models.Event")).Return(nil)
	pusher.On("Push", "user_B", mock.AnythingOfType("models.Event")).Return(errors.New("chat not linked"))
	d := realtime.NewDispatcher(pusher, 8)

	d.Notify("user_A", models.Event{Type: models.EventMessage})
	d.Notify("user_B", models.Event{Type: models.EventCallInvitation})

	go d.Run()
	defer d.Stop()
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 0, d.Pending(), "failed pushes are dropped, not retried")
	pusher.AssertNumberOfCalls(t, "Push", 2)
}
