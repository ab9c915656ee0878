package models

import "time"

// PresenceStatus is a user's availability state.
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceAway    PresenceStatus = "away"
	PresenceBusy    PresenceStatus = "busy"
	PresenceOffline PresenceStatus = "offline"
)

// PresenceState is the per-user availability record. It is created on the
// first connection and survives disconnects (as offline) until the user is
// removed from the tenant.
type PresenceState struct {
	UserID         string         `json:"user_id"`
	Status         PresenceStatus `json:"status"`
	CustomMessage  string         `json:"custom_message,omitempty"`
	LastActivityAt time.Time      `json:"last_activity_at"`

	// AutoAway marks an away status derived from idleness rather than set
	// by the user. Only auto-away snaps back to online on activity.
	AutoAway bool `json:"-"`
	// Explicit marks a status the user chose; the idle sweep never
	// overrides it with auto-away.
	Explicit bool `json:"-"`
}
