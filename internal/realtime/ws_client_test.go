package realtime_test

import (
	"sync"
	"testing"

	"teamgrid/backend/internal/models"
	"teamgrid/backend/internal/realtime"

	"github.com/stretchr/testify/assert"
)

func TestWebSocketClient_EnqueueAfterClose(t *testing.T) {
	hub, _ := newTestHub(newMockStorage(), newTestConfig())
	c := realtime.NewWebSocketClient(hub, nil, "user_A", "tenant_1")

	c.Close()
	c.Close() // second close is a no-op

	err := c.Enqueue(models.Event{Type: models.EventMessage, Content: "hi"})
	assert.ErrorIs(t, err, realtime.ErrRecipientUnreachable)
	assert.NoError(t, c.Enqueue(models.Event{Type: models.EventTypingStart}),
		"ephemeral events are silently dropped")
}

func TestWebSocketClient_EnqueueCloseRace(t *testing.T) {
	hub, _ := newTestHub(newMockStorage(), newTestConfig())

	// A fan-out racing a disconnect must never panic, whichever side wins.
	for i := 0; i < 500; i++ {
		c := realtime.NewWebSocketClient(hub, nil, "user_A", "tenant_1")

		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 8; j++ {
					c.Enqueue(models.Event{Type: models.EventMessage})
					c.Enqueue(models.Event{Type: models.EventTypingStart})
				}
			}()
		}
		c.Close()
		wg.Wait()
	}
}
