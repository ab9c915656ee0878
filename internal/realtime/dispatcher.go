package realtime

import (
	"log"

	"teamgrid/backend/internal/models"
)

// Pusher is the external push-notification collaborator.
type Pusher interface {
	Push(userID string, ev models.Event) error
}

type notification struct {
	userID string
	event  models.Event
}

// Dispatcher queues best-effort notifications for members who are not
// currently connected. Notify never blocks the caller; when the queue is
// full the notification is dropped and logged. Failures are never retried
// synchronously.
type Dispatcher struct {
	pusher Pusher
	queue  chan notification
	stopCh chan struct{}
}

func NewDispatcher(p Pusher, queueSize int) *Dispatcher {
	return &Dispatcher{
		pusher: p,
		queue:  make(chan notification, queueSize),
		stopCh: make(chan struct{}),
	}
}

// Notify enqueues a push for an unreachable user and returns immediately.
func (d *Dispatcher) Notify(userID string, ev models.Event) {
	select {
	case d.queue <- notification{userID: userID, event: ev}:
	default:
		log.Printf("dispatcher: queue full, dropping %s notification for user %s", ev.Type, userID)
	}
}

// Run drains the queue until Stop is called.
func (d *Dispatcher) Run() {
	for {
		select {
		case n := <-d.queue:
			if err := d.pusher.Push(n.userID, n.event); err != nil {
				log.Printf("dispatcher: push to user %s failed: %v", n.userID, err)
			}
		case <-d.stopCh:
			return
		}
	}
}

func (d *Dispatcher) Stop() {
	close(d.stopCh)
}

// Pending returns the number of queued notifications.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}
