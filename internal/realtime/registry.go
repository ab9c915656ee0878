package realtime

import (
	"log"
	"sync"

	"teamgrid/backend/internal/models"
)

// Registry is the single source of truth for which users are reachable
// right now. It is the only writer of the user->connections mapping and
// the only component allowed to close a transport; everything else
// signals intent through it.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]Client            // connID -> client
	byUser map[string]map[string]Client // userID -> connID -> client

	singleSession bool

	// OnFirstOpen fires after a user's first connection registers;
	// OnLastClose fires after their final connection is removed. Both are
	// invoked outside the registry lock.
	OnFirstOpen func(userID string)
	OnLastClose func(userID string)
}

func NewRegistry(singleSession bool) *Registry {
	return &Registry{
		conns:         make(map[string]Client),
		byUser:        make(map[string]map[string]Client),
		singleSession: singleSession,
	}
}

// Register adds a live connection. In single-session mode a second
// connection for the same user fails with ErrDuplicateSession.
func (r *Registry) Register(c Client) error {
	r.mu.Lock()
	userID := c.UserID()
	existing := r.byUser[userID]
	if r.singleSession && len(existing) > 0 {
		r.mu.Unlock()
		return ErrDuplicateSession
	}
	first := len(existing) == 0
	if existing == nil {
		existing = make(map[string]Client)
		r.byUser[userID] = existing
	}
	existing[c.ConnID()] = c
	r.conns[c.ConnID()] = c
	r.mu.Unlock()

	log.Printf("registry: connection %s registered for user %s", c.ConnID(), userID)
	if first && r.OnFirstOpen != nil {
		r.OnFirstOpen(userID)
	}
	return nil
}

// Unregister removes a connection. When it was the user's last one, the
// OnLastClose hook runs so presence can flip to offline and rooms can be
// vacated.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	c, ok := r.conns[connID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.conns, connID)
	userID := c.UserID()
	if userConns := r.byUser[userID]; userConns != nil {
		delete(userConns, connID)
		if len(userConns) == 0 {
			delete(r.byUser, userID)
		}
	}
	last := len(r.byUser[userID]) == 0
	r.mu.Unlock()

	log.Printf("registry: connection %s unregistered for user %s", connID, userID)
	if last && r.OnLastClose != nil {
		r.OnLastClose(userID)
	}
}

// Resolve returns the user's live connections; an empty slice means
// currently unreachable.
func (r *Registry) Resolve(userID string) []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userConns := r.byUser[userID]
	clients := make([]Client, 0, len(userConns))
	for _, c := range userConns {
		clients = append(clients, c)
	}
	return clients
}

// Send delivers fire-and-forget to a single connection. A connection that
// closed between resolve and send is logged, never an error; callers must
// tolerate partial delivery.
func (r *Registry) Send(connID string, ev models.Event) {
	r.mu.RLock()
	c, ok := r.conns[connID]
	r.mu.RUnlock()
	if !ok {
		log.Printf("registry: send to closed connection %s dropped (%s)", connID, ev.Type)
		return
	}
	if err := c.Enqueue(ev); err != nil {
		log.Printf("registry: delivery to connection %s abandoned: %v", connID, err)
	}
}

// SendToUser enqueues the event on every live connection of the user and
// reports whether at least one delivery was accepted.
func (r *Registry) SendToUser(userID string, ev models.Event) bool {
	delivered := false
	for _, c := range r.Resolve(userID) {
		if err := c.Enqueue(ev); err != nil {
			log.Printf("registry: delivery to user %s conn %s abandoned: %v", userID, c.ConnID(), err)
			continue
		}
		delivered = true
	}
	return delivered
}

// ForceDisconnect closes every transport of a user. Used by the idle
// sweep and admin tooling; components never close transports themselves.
func (r *Registry) ForceDisconnect(userID string) {
	clients := r.Resolve(userID)
	for _, c := range clients {
		c.Close()
		r.Unregister(c.ConnID())
	}
	if len(clients) > 0 {
		log.Printf("registry: force-disconnected user %s (%d connections)", userID, len(clients))
	}
}

// ConnectionCount returns the number of live connections.
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// UserCount returns the number of distinct reachable users.
func (r *Registry) UserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
