package realtime

import "teamgrid/backend/internal/models"

// Client is one live connection for a user. It abstracts the transport so
// the registry and routers can treat websocket connections and test
// doubles uniformly. A user may hold several clients at once
// (multi-device).
type Client interface {
	// ConnID returns the unique id of this connection.
	ConnID() string
	// UserID returns the authenticated user behind the connection.
	UserID() string
	// TenantID returns the tenant the user belongs to.
	TenantID() string

	// Enqueue places an event on the connection's bounded outbound queue.
	// Ephemeral events are dropped when the queue is full; other events
	// block briefly and return ErrRecipientUnreachable on timeout.
	Enqueue(ev models.Event) error

	// Run starts the connection's pumps.
	Run()
	// Close shuts the connection down. Only the registry calls this.
	Close()
}
