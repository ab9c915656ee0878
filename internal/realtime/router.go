package realtime

import (
	"encoding/json"
	"log"
	"time"

	"teamgrid/backend/internal/models"
	"teamgrid/backend/internal/scoring"
	"teamgrid/backend/internal/storage"

	"github.com/google/uuid"
)

// Router fans chat events out to the live members of a room, hands
// unreachable members to the dispatcher, and persists messages after
// delivery has been initiated. Fan-out for one room runs under that
// room's lock, which yields per-room, per-sender FIFO to every recipient;
// there is no ordering across rooms.
type Router struct {
	registry   *Registry
	rooms      *RoomManager
	storage    storage.Storage
	scorer     scoring.Scorer
	dispatcher *Dispatcher

	// nodeID distinguishes this process on the shared pub/sub channels.
	nodeID string

	stopCh chan struct{}
}

func NewRouter(reg *Registry, rooms *RoomManager, st storage.Storage, sc scoring.Scorer, d *Dispatcher) *Router {
	return &Router{
		registry:   reg,
		rooms:      rooms,
		storage:    st,
		scorer:     sc,
		dispatcher: d,
		nodeID:     uuid.New().String(),
		stopCh:     make(chan struct{}),
	}
}

// Publish delivers a message to every other member of the room and then
// persists it. Live delivery is never rolled back: a storage failure
// comes back as *PersistenceError alongside the message so the caller can
// warn the sender, after the recipients already have the event.
func (r *Router) Publish(tenantID, roomID, senderID, content, msgType string) (*models.Message, error) {
	now := time.Now()
	msg := &models.Message{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		TenantID:  tenantID,
		SenderID:  senderID,
		Content:   content,
		Type:      msgType,
		CreatedAt: now,
	}

	ev := models.Event{
		Type:      models.EventMessage,
		RoomID:    roomID,
		SenderID:  senderID,
		MessageID: msg.ID,
		Content:   content,
		NodeID:    r.nodeID,
		CreatedAt: now,
	}

	// Advisory only: scoring failures do not hold up delivery and the
	// result never affects routing.
	if res, err := r.scorer.Score(ev); err == nil {
		ev.Confidence = res.Confidence
		ev.Tags = res.Tags
		msg.Confidence = res.Confidence
		msg.Tags = res.Tags
	} else {
		log.Printf("router: scoring failed for message %s: %v", msg.ID, err)
	}

	sent := r.fanOut(roomID, senderID, ev, true)
	if !sent {
		return nil, ErrAccessDenied
	}

	if err := r.storage.PublishEvent(roomID, ev); err != nil {
		log.Printf("router: pub/sub publish for room %s failed: %v", roomID, err)
	}

	if err := r.storage.SaveMessage(msg); err != nil {
		return msg, &PersistenceError{Err: err}
	}
	return msg, nil
}

// Typing fans a typing indicator out to live members only. Indicators are
// never persisted and never forwarded to the dispatcher.
func (r *Router) Typing(roomID, userID string, start bool) {
	t := models.EventTypingStop
	if start {
		t = models.EventTypingStart
	}
	ev := models.Event{
		Type:      t,
		RoomID:    roomID,
		SenderID:  userID,
		NodeID:    r.nodeID,
		CreatedAt: time.Now(),
	}
	r.fanOut(roomID, userID, ev, false)
}

// MarkRead fans a read receipt out and records the read position. The
// receipt itself is ephemeral; only the position is durable.
func (r *Router) MarkRead(roomID, userID, messageID string) {
	ev := models.Event{
		Type:      models.EventMessageRead,
		RoomID:    roomID,
		SenderID:  userID,
		MessageID: messageID,
		NodeID:    r.nodeID,
		CreatedAt: time.Now(),
	}
	r.fanOut(roomID, userID, ev, false)
	if err := r.storage.MarkRoomRead(roomID, userID); err != nil {
		log.Printf("router: failed to record read position for user %s in room %s: %v", userID, roomID, err)
	}
}

// Broadcast sends a server-generated event to every member of a room
// except one, without persistence or offline dispatch.
func (r *Router) Broadcast(roomID string, ev models.Event, excludeUserID string) {
	ev.NodeID = r.nodeID
	r.fanOut(roomID, excludeUserID, ev, false)
	if err := r.storage.PublishEvent(roomID, ev); err != nil {
		log.Printf("router: pub/sub publish for room %s failed: %v", roomID, err)
	}
}

// fanOut enqueues the event on every member's connections except the
// sender's, under the room lock. When notifyOffline is set, members with
// no live connection are handed to the dispatcher. Returns false when the
// sender is not in the room.
func (r *Router) fanOut(roomID, senderID string, ev models.Event, notifyOffline bool) bool {
	senderSeen := false
	ok := r.rooms.withRoom(roomID, func(members []string) {
		for _, member := range members {
			if member == senderID {
				senderSeen = true
				continue
			}
			clients := r.registry.Resolve(member)
			if len(clients) == 0 {
				if notifyOffline {
					r.dispatcher.Notify(member, ev)
				}
				continue
			}
			for _, c := range clients {
				if err := c.Enqueue(ev); err != nil {
					log.Printf("router: delivery of %s to user %s abandoned: %v", ev.Type, member, err)
				}
			}
		}
	})
	// Server-generated broadcasts pass the excluded user, who may have
	// already left the room.
	return ok && (senderSeen || senderID == "")
}

// RunPubSub mirrors events published by sibling nodes onto local
// connections. Events originating from this node are skipped.
func (r *Router) RunPubSub() {
	pubsub := r.storage.SubscribeRooms()
	defer pubsub.Close()
	ch := pubsub.Channel()

	for {
		select {
		case m, ok := <-ch:
			if !ok {
				return
			}
			var ev models.Event
			if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
				log.Printf("router: bad pub/sub payload: %v", err)
				continue
			}
			if ev.NodeID == r.nodeID || ev.RoomID == "" {
				continue
			}
			r.fanOut(ev.RoomID, ev.SenderID, ev, false)
		case <-r.stopCh:
			return
		}
	}
}

func (r *Router) Stop() {
	close(r.stopCh)
}
