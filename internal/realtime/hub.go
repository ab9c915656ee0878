package realtime

import (
	"log"

	"teamgrid/backend/internal/config"
	"teamgrid/backend/internal/models"
	"teamgrid/backend/internal/scoring"
	"teamgrid/backend/internal/storage"
)

// Hub wires the realtime components together and owns the disconnect
// plumbing between them. Components are plain dependency-injected values,
// so tests can build isolated hubs with mock collaborators.
type Hub struct {
	Registry   *Registry
	Presence   *PresenceTracker
	Rooms      *RoomManager
	Router     *Router
	Calls      *CallCoordinator
	Dispatcher *Dispatcher
	Storage    storage.Storage

	Cfg config.Config
}

// NewHub constructs the component graph and hooks up the lifecycle
// callbacks: first connection marks a user online, last close marks them
// offline and finalizes their calls; an empty call room ends its
// session. Chat membership survives the disconnect, so later room
// traffic still reaches the user through the offline dispatcher.
func NewHub(st storage.Storage, sc scoring.Scorer, pusher Pusher, cfg config.Config) *Hub {
	registry := NewRegistry(cfg.SingleSession)
	dispatcher := NewDispatcher(pusher, cfg.DispatchQueue)
	rooms := NewRoomManager(st)
	router := NewRouter(registry, rooms, st, sc, dispatcher)
	presence := NewPresenceTracker(registry, st, cfg)
	calls := NewCallCoordinator(registry, rooms, router, st, dispatcher, cfg.RingingTimeout)

	h := &Hub{
		Registry:   registry,
		Presence:   presence,
		Rooms:      rooms,
		Router:     router,
		Calls:      calls,
		Dispatcher: dispatcher,
		Storage:    st,
		Cfg:        cfg,
	}

	registry.OnFirstOpen = presence.MarkOnline
	registry.OnLastClose = h.handleLastClose
	rooms.OnEmpty = func(roomID string, kind models.RoomKind) {
		if kind == models.RoomCall {
			calls.HandleRoomEmpty(roomID)
		} else {
			log.Printf("rooms: chat room %s evicted from cache", roomID)
		}
	}
	return h
}

// Run starts the background workers: the presence sweep, the offline
// dispatcher and the cross-node pub/sub mirror.
func (h *Hub) Run() {
	go h.Presence.Run()
	go h.Dispatcher.Run()
	go h.Router.RunPubSub()
}

// Stop shuts down the background workers.
func (h *Hub) Stop() {
	h.Presence.Stop()
	h.Dispatcher.Stop()
	h.Router.Stop()
}

func (h *Hub) handleLastClose(userID string) {
	h.Presence.MarkOffline(userID)
	h.Calls.HandleDisconnect(userID)
}
